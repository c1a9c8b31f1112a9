package worker

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

const DefaultStaleAfter = 5 * time.Minute

// StaleJobStore releases job rows stuck at running after a worker crash.
type StaleJobStore interface {
	ReleaseStale(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error)
}

// RecoveryQueue is the reaper's view of the broker.
type RecoveryQueue interface {
	Enqueue(ctx context.Context, jobID string) error
	RequeueStale(ctx context.Context, max int64) (int64, error)
}

// Reaper recovers work lost to crashed workers. A crash strands a job in two
// places: the row stays at running, and the id may sit on the processing list
// or be gone entirely if a previous sweep already drained and acked it. Each
// sweep releases stale running rows back to pending, re-enqueues their ids,
// then drains the processing list.
type Reaper struct {
	repo       StaleJobStore
	queue      RecoveryQueue
	staleAfter time.Duration
	maxDrain   int64
}

func NewReaper(repo StaleJobStore, queue RecoveryQueue, staleAfter time.Duration) *Reaper {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Reaper{repo: repo, queue: queue, staleAfter: staleAfter, maxDrain: 100}
}

func (r *Reaper) Sweep(ctx context.Context) error {
	ids, err := r.repo.ReleaseStale(ctx, r.staleAfter)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := r.queue.Enqueue(ctx, id.String()); err != nil {
			return err
		}
	}
	if len(ids) > 0 {
		log.Printf("[worker] released %d stale running jobs", len(ids))
	}

	n, err := r.queue.RequeueStale(ctx, r.maxDrain)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("[worker] requeued %d jobs from processing", n)
	}
	return nil
}
