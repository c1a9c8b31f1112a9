package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tts-worker-service/internal/entity"
	"tts-worker-service/internal/faults"
)

// Batch repository port (implementation: postgresql.BatchRepository).
type BatchRepository interface {
	Create(ctx context.Context, callerID string, size int) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Batch, error)
}

// The coordinator additionally needs to list a batch's jobs.
type BatchJobRepository interface {
	JobRepository
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*entity.Job, error)
}

// BatchService fans one composite submission into per-segment jobs and joins
// their outcomes. Item failures are reported per item; the batch itself is
// succeeded as soon as every item is terminal.
type BatchService struct {
	batches     BatchRepository
	jobs        BatchJobRepository
	queue       JobQueue
	maxAttempts int
}

func NewBatchService(batches BatchRepository, jobs BatchJobRepository, queue JobQueue, maxAttempts int) *BatchService {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &BatchService{batches: batches, jobs: jobs, queue: queue, maxAttempts: maxAttempts}
}

// SplitText cuts raw batch text into trimmed, non-empty segments.
func SplitText(raw string, policy entity.SplitPolicy, customSep string) []string {
	var parts []string
	switch policy {
	case entity.SplitParagraph:
		parts = strings.Split(raw, "\n\n")
	case entity.SplitLine:
		parts = strings.Split(raw, "\n")
	case entity.SplitCustom:
		if customSep == "" {
			customSep = "---"
		}
		parts = strings.Split(raw, customSep)
	default:
		parts = []string{raw}
	}

	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			segments = append(segments, t)
		}
	}
	return segments
}

// SubmitBatch splits the text, persists the batch and one pending job per
// segment, enqueues them all and returns the batch id plus item count.
func (s *BatchService) SubmitBatch(
	ctx context.Context,
	callerID, rawText string,
	policy entity.SplitPolicy,
	customSep string,
	shared entity.SynthesisInput,
) (uuid.UUID, int, error) {
	if shared.VoiceID == "" {
		return uuid.Nil, 0, fmt.Errorf("%w: voice_id is required", faults.ErrInvalidInput)
	}
	if !policy.Known() {
		return uuid.Nil, 0, fmt.Errorf("%w: unknown delimiter policy %q", faults.ErrInvalidInput, policy)
	}
	segments := SplitText(rawText, policy, customSep)
	if len(segments) == 0 {
		return uuid.Nil, 0, fmt.Errorf("%w: batch text is empty", faults.ErrInvalidInput)
	}
	shared.ApplyDefaults()

	batchID, err := s.batches.Create(ctx, callerID, len(segments))
	if err != nil {
		return uuid.Nil, 0, err
	}

	for pos, segment := range segments {
		item := shared
		item.Text = segment

		input, err := json.Marshal(item)
		if err != nil {
			return uuid.Nil, 0, fmt.Errorf("%w: marshal item input: %v", faults.ErrInvalidInput, err)
		}

		jobID, err := s.jobs.Create(ctx, entity.KindBatchItem, callerID, &batchID, pos, s.maxAttempts, input)
		if err != nil {
			return uuid.Nil, 0, err
		}
		if err := s.queue.Enqueue(ctx, jobID.String()); err != nil {
			return uuid.Nil, 0, fmt.Errorf("%w: enqueue batch item: %v", faults.ErrStore, err)
		}
	}
	return batchID, len(segments), nil
}

// BatchItemView is one item's outcome: exactly one of Result/Error once the
// item is terminal, neither before.
type BatchItemView struct {
	JobID  uuid.UUID         `json:"job_id"`
	Input  string            `json:"input"`
	Status entity.JobStatus  `json:"status"`
	Result *entity.JobResult `json:"result,omitempty"`
	Error  *string           `json:"error,omitempty"`
}

type BatchView struct {
	ID     uuid.UUID          `json:"id"`
	Status entity.BatchStatus `json:"status"`
	Items  []BatchItemView    `json:"items"`
}

// BatchStatus reports the joined outcome. Succeeded means every item is
// terminal, with failures carried per item, never as an overall failure.
func (s *BatchService) BatchStatus(ctx context.Context, id uuid.UUID) (*BatchView, error) {
	batch, err := s.batches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	jobs, err := s.jobs.ListByBatch(ctx, batch.ID)
	if err != nil {
		return nil, err
	}

	view := &BatchView{ID: batch.ID, Status: entity.BatchSucceeded}
	for _, job := range jobs {
		item := BatchItemView{JobID: job.ID, Status: job.Status, Error: job.Error}

		var in entity.SynthesisInput
		if err := json.Unmarshal(job.Input, &in); err == nil {
			item.Input = in.Text
		}
		if job.Status == entity.StatusSucceeded && len(job.Result) > 0 {
			var res entity.JobResult
			if err := json.Unmarshal(job.Result, &res); err == nil {
				item.Result = &res
			}
		}
		if !job.Status.Terminal() {
			view.Status = entity.BatchPending
		}
		view.Items = append(view.Items, item)
	}
	return view, nil
}
