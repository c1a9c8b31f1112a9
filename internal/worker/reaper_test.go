package worker_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"tts-worker-service/internal/entity"
	"tts-worker-service/internal/worker"
)

type recoveryQueueFake struct {
	enqueued []string
	drained  []string
}

func (q *recoveryQueueFake) Enqueue(ctx context.Context, jobID string) error {
	q.enqueued = append(q.enqueued, jobID)
	return nil
}

func (q *recoveryQueueFake) RequeueStale(ctx context.Context, max int64) (int64, error) {
	n := int64(len(q.drained))
	q.enqueued = append(q.enqueued, q.drained...)
	q.drained = nil
	return n, nil
}

func TestReaper_RecoversJobFromCrashedWorker(t *testing.T) {
	// the worker died after claiming: row stuck at running, and the id was
	// already drained from the processing list and acked away
	job := newJob(3)
	job.Status = entity.StatusRunning
	job.Attempts = 1
	job.UpdatedAt = time.Now().Add(-10 * time.Minute)
	repo := &fakeRepo{job: job}
	queue := &recoveryQueueFake{}

	reaper := worker.NewReaper(repo, queue, 5*time.Minute)
	if err := reaper.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if job.Status != entity.StatusPending {
		t.Fatalf("stale running job not released, status=%s", job.Status)
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0] != job.ID.String() {
		t.Fatalf("released job not re-enqueued, got %v", queue.enqueued)
	}

	// the re-delivered id is claimable again and runs to a terminal state
	exec := &fakeExecutor{result: json.RawMessage(`{"output_file":"v1_x.mp3"}`)}
	sched := &fakeScheduler{}
	if err := newProcessor(repo, exec, sched).Process(context.Background(), queue.enqueued[0]); err != nil {
		t.Fatalf("process released job: %v", err)
	}
	if job.Status != entity.StatusSucceeded {
		t.Fatalf("expected succeeded after recovery, got %s", job.Status)
	}
}

func TestReaper_LeavesLiveRunningJobAlone(t *testing.T) {
	job := newJob(3)
	job.Status = entity.StatusRunning
	job.UpdatedAt = time.Now()
	repo := &fakeRepo{job: job}
	queue := &recoveryQueueFake{}

	reaper := worker.NewReaper(repo, queue, 5*time.Minute)
	if err := reaper.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if job.Status != entity.StatusRunning {
		t.Fatalf("live running job released, status=%s", job.Status)
	}
	if len(queue.enqueued) != 0 {
		t.Fatalf("live running job re-enqueued: %v", queue.enqueued)
	}
}

func TestReaper_DrainsAbandonedProcessingIds(t *testing.T) {
	repo := &fakeRepo{}
	queue := &recoveryQueueFake{drained: []string{"abandoned-id"}}

	reaper := worker.NewReaper(repo, queue, 5*time.Minute)
	if err := reaper.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if len(queue.enqueued) != 1 || queue.enqueued[0] != "abandoned-id" {
		t.Fatalf("processing leftovers not drained onto the queue, got %v", queue.enqueued)
	}
}
