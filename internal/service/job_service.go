package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"tts-worker-service/internal/entity"
	"tts-worker-service/internal/faults"
)

const DefaultMaxAttempts = 3

// Repository port (implementation: postgresql.JobRepository).
type JobRepository interface {
	Create(ctx context.Context, kind entity.JobKind, callerID string, batchID *uuid.UUID,
		batchPos int, maxAttempts int, input json.RawMessage) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
}

// Enqueue-only queue port, so the API binary never needs the claim side.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error
}

// JobService accepts submissions and answers status polls. Submission never
// blocks on execution: the job is persisted pending, enqueued, and its id
// returned immediately.
type JobService struct {
	repo        JobRepository
	queue       JobQueue
	maxAttempts int
}

func NewJobService(repo JobRepository, queue JobQueue, maxAttempts int) *JobService {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &JobService{repo: repo, queue: queue, maxAttempts: maxAttempts}
}

// SubmitSynthesis enqueues one synthesis job and returns its id, pending.
func (s *JobService) SubmitSynthesis(ctx context.Context, callerID string, in entity.SynthesisInput) (uuid.UUID, error) {
	if in.Text == "" {
		return uuid.Nil, fmt.Errorf("%w: text is required", faults.ErrInvalidInput)
	}
	if in.VoiceID == "" {
		return uuid.Nil, fmt.Errorf("%w: voice_id is required", faults.ErrInvalidInput)
	}
	in.ApplyDefaults()

	input, err := json.Marshal(in)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: marshal input: %v", faults.ErrInvalidInput, err)
	}

	return s.submit(ctx, entity.KindSynthesize, callerID, input)
}

// SubmitPostProcess derives a post-process job from a succeeded job's
// artifact. The source artifact is never mutated; execution writes a new one.
func (s *JobService) SubmitPostProcess(ctx context.Context, callerID string, sourceJobID uuid.UUID, effects json.RawMessage) (uuid.UUID, error) {
	source, err := s.repo.GetByID(ctx, sourceJobID)
	if err != nil {
		return uuid.Nil, err
	}
	if source.Status != entity.StatusSucceeded {
		return uuid.Nil, fmt.Errorf("%w: source job %s has no artifact", faults.ErrInvalidInput, sourceJobID)
	}

	var result entity.JobResult
	if err := json.Unmarshal(source.Result, &result); err != nil || result.OutputFile == "" {
		return uuid.Nil, fmt.Errorf("%w: source job %s has no artifact reference", faults.ErrInvalidInput, sourceJobID)
	}

	if len(effects) == 0 {
		effects = json.RawMessage(`{}`)
	}
	input, err := json.Marshal(entity.PostProcessInput{
		SourceFile: result.OutputFile,
		Effects:    effects,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: marshal input: %v", faults.ErrInvalidInput, err)
	}

	return s.submit(ctx, entity.KindPostProcess, callerID, input)
}

func (s *JobService) submit(ctx context.Context, kind entity.JobKind, callerID string, input json.RawMessage) (uuid.UUID, error) {
	id, err := s.repo.Create(ctx, kind, callerID, nil, 0, s.maxAttempts, input)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.queue.Enqueue(ctx, id.String()); err != nil {
		return uuid.Nil, fmt.Errorf("%w: enqueue job: %v", faults.ErrStore, err)
	}
	return id, nil
}

// GetJob answers a status poll; unknown ids yield NotFound.
func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return s.repo.GetByID(ctx, id)
}
