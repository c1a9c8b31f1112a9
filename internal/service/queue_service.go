package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue is the scheduler's broker. Delivery is at-least-once: a claimed id
// sits on a processing list until acked, and the reaper pushes abandoned
// ids back onto the queue.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Ack(ctx context.Context, jobID string) error
	ScheduleRetry(ctx context.Context, jobID string, delay time.Duration) error
	PromoteDue(ctx context.Context, limit int64) (int64, error)
	RequeueStale(ctx context.Context, max int64) (int64, error)
}

// redisQueue implements a reliable queue on Redis lists plus a sorted set
// for delayed retries.
// Claim:    BRPOPLPUSH queue -> processing
// Ack:      LREM from processing
// Retry:    ZADD scheduled (score = due unix time); PromoteDue moves ripe
//           ids back onto the queue.
type redisQueue struct {
	rdb           *redis.Client
	queueKey      string
	processingKey string
	scheduledKey  string
}

func NewRedisQueue(rdb *redis.Client, queueKey, processingKey, scheduledKey string) Queue {
	return &redisQueue{
		rdb:           rdb,
		queueKey:      queueKey,
		processingKey: processingKey,
		scheduledKey:  scheduledKey,
	}
}

func (q *redisQueue) Enqueue(ctx context.Context, jobID string) error {
	return q.rdb.LPush(ctx, q.queueKey, jobID).Err()
}

func (q *redisQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	return q.rdb.BRPopLPush(ctx, q.queueKey, q.processingKey, timeout).Result()
}

func (q *redisQueue) Ack(ctx context.Context, jobID string) error {
	return q.rdb.LRem(ctx, q.processingKey, 1, jobID).Err()
}

// ScheduleRetry parks a job id until its backoff delay has passed. The job
// row is already back in pending; it just isn't claimable yet.
func (q *redisQueue) ScheduleRetry(ctx context.Context, jobID string, delay time.Duration) error {
	due := float64(time.Now().Add(delay).UnixMilli())
	return q.rdb.ZAdd(ctx, q.scheduledKey, redis.Z{Score: due, Member: jobID}).Err()
}

// PromoteDue moves ids whose backoff has elapsed from the scheduled set back
// onto the queue. ZRem before LPush: only the remover enqueues, so two
// promoters never double-deliver the same id.
func (q *redisQueue) PromoteDue(ctx context.Context, limit int64) (int64, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ids, err := q.rdb.ZRangeByScore(ctx, q.scheduledKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: limit,
	}).Result()
	if err != nil {
		return 0, err
	}

	var moved int64
	for _, id := range ids {
		removed, err := q.rdb.ZRem(ctx, q.scheduledKey, id).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, q.queueKey, id).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// RequeueStale drains the processing list back onto the queue. Run
// periodically, it recovers jobs whose worker died mid-flight.
func (q *redisQueue) RequeueStale(ctx context.Context, max int64) (int64, error) {
	var moved int64
	for i := int64(0); i < max; i++ {
		id, err := q.rdb.RPopLPush(ctx, q.processingKey, q.queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return moved, err
		}
		if id != "" {
			moved++
		}
	}
	return moved, nil
}
