package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"tts-worker-service/internal/entity"
	"tts-worker-service/internal/faults"
	"tts-worker-service/internal/service"
)

// ---- fakes ----

type memRepo struct {
	jobs map[uuid.UUID]*entity.Job
}

func newMemRepo() *memRepo {
	return &memRepo{jobs: map[uuid.UUID]*entity.Job{}}
}

func (r *memRepo) Create(ctx context.Context, kind entity.JobKind, callerID string, batchID *uuid.UUID,
	batchPos int, maxAttempts int, input json.RawMessage) (uuid.UUID, error) {
	id := uuid.New()
	r.jobs[id] = &entity.Job{
		ID:          id,
		Kind:        kind,
		Status:      entity.StatusPending,
		CallerID:    callerID,
		BatchID:     batchID,
		BatchPos:    batchPos,
		MaxAttempts: maxAttempts,
		Input:       input,
	}
	return id, nil
}

func (r *memRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, faults.ErrNotFound
	}
	return job, nil
}

func (r *memRepo) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*entity.Job, error) {
	var out []*entity.Job
	for _, job := range r.jobs {
		if job.BatchID != nil && *job.BatchID == batchID {
			out = append(out, job)
		}
	}
	// order by batch position
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].BatchPos < out[i].BatchPos {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

type fakeQueue struct {
	enqueued []string
	err      error
}

func (q *fakeQueue) Enqueue(ctx context.Context, jobID string) error {
	q.enqueued = append(q.enqueued, jobID)
	return q.err
}

// ---- tests ----

func TestSubmitSynthesis_StartsPending(t *testing.T) {
	repo := newMemRepo()
	queue := &fakeQueue{}
	svc := service.NewJobService(repo, queue, 3)

	id, err := svc.SubmitSynthesis(context.Background(), "caller-1", entity.SynthesisInput{
		Text:    "Hello world",
		VoiceID: "v1",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	job, err := svc.GetJob(context.Background(), id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != entity.StatusPending {
		t.Fatalf("status right after submit must be pending, got %s", job.Status)
	}
	if job.Kind != entity.KindSynthesize {
		t.Fatalf("expected kind synthesize, got %s", job.Kind)
	}
	if job.Result != nil || job.Error != nil {
		t.Fatal("fresh job must have neither result nor error")
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0] != id.String() {
		t.Fatalf("expected job enqueued once, got %v", queue.enqueued)
	}
}

func TestSubmitSynthesis_AppliesDefaults(t *testing.T) {
	repo := newMemRepo()
	svc := service.NewJobService(repo, &fakeQueue{}, 3)

	id, err := svc.SubmitSynthesis(context.Background(), "caller-1", entity.SynthesisInput{
		Text:    "hi",
		VoiceID: "v1",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	var in entity.SynthesisInput
	if err := json.Unmarshal(repo.jobs[id].Input, &in); err != nil {
		t.Fatalf("unmarshal input: %v", err)
	}
	if in.Emotion != "neutral" || in.Stability != 0.75 || in.SimilarityBoost != 0.75 {
		t.Fatalf("voice defaults not applied: %+v", in)
	}
	if in.Pitch != 1.0 || in.Rate != 1.0 || in.Format != "mp3" {
		t.Fatalf("pitch/rate/format defaults not applied: %+v", in)
	}
}

func TestSubmitSynthesis_EmptyTextRejected(t *testing.T) {
	svc := service.NewJobService(newMemRepo(), &fakeQueue{}, 3)

	_, err := svc.SubmitSynthesis(context.Background(), "caller-1", entity.SynthesisInput{VoiceID: "v1"})
	if !errors.Is(err, faults.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestGetJob_UnknownIsNotFound(t *testing.T) {
	svc := service.NewJobService(newMemRepo(), &fakeQueue{}, 3)

	_, err := svc.GetJob(context.Background(), uuid.New())
	if !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubmitPostProcess_FromSucceededJob(t *testing.T) {
	repo := newMemRepo()
	queue := &fakeQueue{}
	svc := service.NewJobService(repo, queue, 3)

	sourceID := uuid.New()
	repo.jobs[sourceID] = &entity.Job{
		ID:     sourceID,
		Kind:   entity.KindSynthesize,
		Status: entity.StatusSucceeded,
		Result: json.RawMessage(`{"output_file":"v1_20240101_abc.wav","format":"wav"}`),
	}

	id, err := svc.SubmitPostProcess(context.Background(), "caller-1", sourceID,
		json.RawMessage(`{"volume":3,"normalize":true}`))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	var in entity.PostProcessInput
	if err := json.Unmarshal(repo.jobs[id].Input, &in); err != nil {
		t.Fatalf("unmarshal input: %v", err)
	}
	if in.SourceFile != "v1_20240101_abc.wav" {
		t.Fatalf("expected source artifact carried over, got %q", in.SourceFile)
	}
	if repo.jobs[id].Kind != entity.KindPostProcess {
		t.Fatalf("expected kind post-process, got %s", repo.jobs[id].Kind)
	}
}

func TestSubmitPostProcess_SourceNotSucceededRejected(t *testing.T) {
	repo := newMemRepo()
	svc := service.NewJobService(repo, &fakeQueue{}, 3)

	sourceID := uuid.New()
	repo.jobs[sourceID] = &entity.Job{ID: sourceID, Status: entity.StatusRunning}

	_, err := svc.SubmitPostProcess(context.Background(), "caller-1", sourceID, nil)
	if !errors.Is(err, faults.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
