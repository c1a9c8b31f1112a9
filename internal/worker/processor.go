package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"tts-worker-service/internal/entity"
	"tts-worker-service/internal/faults"
)

// Store-side ports (implementation: postgresql.JobRepository).
type JobRepo interface {
	Claim(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	MarkSucceeded(ctx context.Context, id uuid.UUID, result json.RawMessage) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	MarkRetry(ctx context.Context, id uuid.UUID) error
}

// RetryScheduler parks a job id until its backoff delay elapses.
type RetryScheduler interface {
	ScheduleRetry(ctx context.Context, jobID string, delay time.Duration) error
}

// JobExecutor port (implementation: Executor).
type JobExecutor interface {
	Execute(ctx context.Context, job *entity.Job) (json.RawMessage, error)
}

// Processor drives one claimed job through the state machine:
// pending -> running -> succeeded | pending(retry) | failed.
// Execution errors never leave here; they become job state.
type Processor struct {
	repo    JobRepo
	exec    JobExecutor
	retries RetryScheduler
	backoff Backoff
}

func NewProcessor(repo JobRepo, exec JobExecutor, retries RetryScheduler, backoff Backoff) *Processor {
	return &Processor{repo: repo, exec: exec, retries: retries, backoff: backoff}
}

func (p *Processor) Process(ctx context.Context, jobID string) error {
	start := time.Now()

	id, err := uuid.Parse(jobID)
	if err != nil {
		log.Printf("[worker] job_id=%s parse_error=%v", jobID, err)
		return err
	}

	// exclusive claim: pending -> running, attempts+1. NotFound means
	// another worker got here first or the job is already terminal.
	job, err := p.repo.Claim(ctx, id)
	if err != nil {
		log.Printf("[worker] job_id=%s claim_skipped error=%v", id.String(), err)
		return nil
	}

	log.Printf("[worker] job_id=%s kind=%s attempt=%d status=running", id.String(), job.Kind, job.Attempts)

	result, execErr := p.exec.Execute(ctx, job)
	if execErr == nil {
		if err := p.repo.MarkSucceeded(ctx, id, result); err != nil {
			log.Printf("[worker] job_id=%s set_succeeded error=%v", id.String(), err)
			return err
		}
		log.Printf("[worker] job_id=%s kind=%s status=succeeded duration_ms=%d",
			id.String(), job.Kind, time.Since(start).Milliseconds())
		return nil
	}

	reason := faults.Reason(execErr)

	if faults.Retriable(execErr) && job.Attempts < job.MaxAttempts {
		// schedule first: a row left at running is recovered by the reaper,
		// a pending row with no delivery pending is not
		delay := p.backoff.Delay(job.Attempts)
		if err := p.retries.ScheduleRetry(ctx, jobID, delay); err != nil {
			log.Printf("[worker] job_id=%s schedule_retry error=%v", id.String(), err)
			return err
		}
		if err := p.repo.MarkRetry(ctx, id); err != nil {
			log.Printf("[worker] job_id=%s set_retry error=%v", id.String(), err)
			return err
		}
		log.Printf("[worker] job_id=%s kind=%s status=retry attempt=%d delay_ms=%d reason=%s",
			id.String(), job.Kind, job.Attempts, delay.Milliseconds(), reason)
		return nil
	}

	if err := p.repo.MarkFailed(ctx, id, reason); err != nil {
		log.Printf("[worker] job_id=%s set_failed error=%v", id.String(), err)
		return err
	}
	log.Printf("[worker] job_id=%s kind=%s status=failed attempt=%d duration_ms=%d reason=%s",
		id.String(), job.Kind, job.Attempts, time.Since(start).Milliseconds(), reason)
	return nil
}
