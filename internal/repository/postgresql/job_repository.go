package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tts-worker-service/internal/entity"
	"tts-worker-service/internal/faults"
)

const jobColumns = `id, kind, status, caller_id, batch_id, batch_pos, input, result, error,
attempts, max_attempts, created_at, updated_at, completed_at`

// JobRepository is the durable job store. Status, attempts, result and error
// are only ever changed through the single-statement updates below, so a
// poll never observes a partially written transition.
type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(
	ctx context.Context,
	kind entity.JobKind,
	callerID string,
	batchID *uuid.UUID,
	batchPos int,
	maxAttempts int,
	input json.RawMessage,
) (uuid.UUID, error) {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}

	const q = `
INSERT INTO jobs (kind, status, caller_id, batch_id, batch_pos, input, max_attempts)
VALUES ($1, 'pending', $2, $3, $4, $5, $6)
RETURNING id;
`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, q, string(kind), callerID, batchID, batchPos, input, maxAttempts).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("%w: insert job: %v", faults.ErrStore, err)
	}
	return id, nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`
	return r.scanJob(r.pool.QueryRow(ctx, q, id))
}

// Claim atomically moves one pending job to running and counts the attempt.
// The status guard makes the claim exclusive: a second worker hitting the
// same id gets NotFound and drops the message.
func (r *JobRepository) Claim(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	q := `
UPDATE jobs
SET status='running', attempts=attempts+1, updated_at=now()
WHERE id = $1 AND status='pending'
RETURNING ` + jobColumns + `;`
	return r.scanJob(r.pool.QueryRow(ctx, q, id))
}

// MarkSucceeded records the result and completion time in one statement.
func (r *JobRepository) MarkSucceeded(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	const q = `
UPDATE jobs
SET status='succeeded', result=$2, error=NULL, completed_at=now(), updated_at=now()
WHERE id = $1 AND status='running';`
	return r.exec(ctx, q, id, result)
}

// MarkFailed ends the attempt loop with a classified reason.
func (r *JobRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	const q = `
UPDATE jobs
SET status='failed', error=$2, result=NULL, completed_at=now(), updated_at=now()
WHERE id = $1 AND status='running';`
	return r.exec(ctx, q, id, reason)
}

// MarkRetry returns a running job to pending so it can be claimed again
// after its backoff delay.
func (r *JobRepository) MarkRetry(ctx context.Context, id uuid.UUID) error {
	const q = `
UPDATE jobs
SET status='pending', updated_at=now()
WHERE id = $1 AND status='running';`
	return r.exec(ctx, q, id)
}

// ReleaseStale returns rows stuck at running back to pending and reports
// their ids so the caller can re-enqueue them. A row goes stale when its
// worker died mid-execution; the window must comfortably exceed the longest
// expected execution so a live worker's job is never released under it.
func (r *JobRepository) ReleaseStale(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error) {
	const q = `
UPDATE jobs
SET status='pending', updated_at=now()
WHERE status='running' AND updated_at < now() - $1
RETURNING id;`
	rows, err := r.pool.Query(ctx, q, olderThan)
	if err != nil {
		return nil, fmt.Errorf("%w: release stale jobs: %v", faults.ErrStore, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan stale job id: %v", faults.ErrStore, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: release stale jobs: %v", faults.ErrStore, err)
	}
	return ids, nil
}

func (r *JobRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*entity.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE batch_id = $1 ORDER BY batch_pos;`
	rows, err := r.pool.Query(ctx, q, batchID)
	if err != nil {
		return nil, fmt.Errorf("%w: list batch jobs: %v", faults.ErrStore, err)
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list batch jobs: %v", faults.ErrStore, err)
	}
	return jobs, nil
}

func (r *JobRepository) exec(ctx context.Context, q string, args ...any) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%w: update job: %v", faults.ErrStore, err)
	}
	if tag.RowsAffected() == 0 {
		return faults.ErrNotFound
	}
	return nil
}

func (r *JobRepository) scanJob(row pgx.Row) (*entity.Job, error) {
	var (
		job         entity.Job
		kind        string
		status      string
		inputBytes  []byte
		resultBytes []byte
	)
	err := row.Scan(
		&job.ID,
		&kind,
		&status,
		&job.CallerID,
		&job.BatchID,
		&job.BatchPos,
		&inputBytes,
		&resultBytes, // NULL => nil
		&job.Error,   // NULL => nil
		&job.Attempts,
		&job.MaxAttempts,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, faults.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scan job: %v", faults.ErrStore, err)
	}

	job.Kind = entity.JobKind(kind)
	job.Status = entity.JobStatus(status)
	job.Input = json.RawMessage(inputBytes)
	if resultBytes != nil {
		job.Result = json.RawMessage(resultBytes)
	}
	return &job, nil
}
