package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"tts-worker-service/internal/entity"
	"tts-worker-service/internal/faults"
	"tts-worker-service/internal/service"
	"tts-worker-service/internal/synthesis"
	httptransport "tts-worker-service/internal/transport/http"
)

// ---- fakes ----

type memJobs struct {
	jobs map[uuid.UUID]*entity.Job
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[uuid.UUID]*entity.Job{}}
}

func (r *memJobs) Create(ctx context.Context, kind entity.JobKind, callerID string, batchID *uuid.UUID,
	batchPos int, maxAttempts int, input json.RawMessage) (uuid.UUID, error) {
	id := uuid.New()
	r.jobs[id] = &entity.Job{
		ID: id, Kind: kind, Status: entity.StatusPending, CallerID: callerID,
		BatchID: batchID, BatchPos: batchPos, MaxAttempts: maxAttempts,
		Input: input, CreatedAt: time.Now().UTC(),
	}
	return id, nil
}

func (r *memJobs) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, faults.ErrNotFound
	}
	return job, nil
}

func (r *memJobs) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*entity.Job, error) {
	var out []*entity.Job
	for _, job := range r.jobs {
		if job.BatchID != nil && *job.BatchID == batchID {
			out = append(out, job)
		}
	}
	return out, nil
}

type memBatches struct {
	batches map[uuid.UUID]*entity.Batch
}

func newMemBatches() *memBatches {
	return &memBatches{batches: map[uuid.UUID]*entity.Batch{}}
}

func (r *memBatches) Create(ctx context.Context, callerID string, size int) (uuid.UUID, error) {
	id := uuid.New()
	r.batches[id] = &entity.Batch{ID: id, CallerID: callerID, Size: size}
	return id, nil
}

func (r *memBatches) GetByID(ctx context.Context, id uuid.UUID) (*entity.Batch, error) {
	b, ok := r.batches[id]
	if !ok {
		return nil, faults.ErrNotFound
	}
	return b, nil
}

type queueStub struct {
	enqueued []string
}

func (q *queueStub) Enqueue(ctx context.Context, jobID string) error {
	q.enqueued = append(q.enqueued, jobID)
	return nil
}

type catalogStub struct {
	voices []synthesis.Voice
}

func (c *catalogStub) Voices(ctx context.Context) []synthesis.Voice { return c.voices }

type metadataStub struct {
	byCaller map[string][]*entity.MetadataRecord
}

func (m *metadataStub) ListByCaller(ctx context.Context, callerID string, limit int) ([]*entity.MetadataRecord, error) {
	return m.byCaller[callerID], nil
}

func (m *metadataStub) Analytics(ctx context.Context) (*entity.Analytics, error) {
	return &entity.Analytics{TotalJobs: 2, Formats: map[string]int{"mp3": 2}, AvgDuration: 1.5}, nil
}

type presetStub struct {
	presets map[uuid.UUID]*entity.Preset
}

func newPresetStub() *presetStub {
	return &presetStub{presets: map[uuid.UUID]*entity.Preset{}}
}

func (p *presetStub) Create(ctx context.Context, preset *entity.Preset) (uuid.UUID, error) {
	id := uuid.New()
	preset.ID = id
	p.presets[id] = preset
	return id, nil
}

func (p *presetStub) ListByCaller(ctx context.Context, callerID string) ([]*entity.Preset, error) {
	var out []*entity.Preset
	for _, preset := range p.presets {
		if preset.CallerID == callerID {
			out = append(out, preset)
		}
	}
	return out, nil
}

func (p *presetStub) Delete(ctx context.Context, callerID string, id uuid.UUID) error {
	preset, ok := p.presets[id]
	if !ok || preset.CallerID != callerID {
		return faults.ErrNotFound
	}
	delete(p.presets, id)
	return nil
}

type env struct {
	jobs    *memJobs
	queue   *queueStub
	router  http.Handler
	presets *presetStub
}

func newEnv() *env {
	jobs := newMemJobs()
	queue := &queueStub{}
	presets := newPresetStub()

	jobSvc := service.NewJobService(jobs, queue, 3)
	batchSvc := service.NewBatchService(newMemBatches(), jobs, queue, 3)
	h := httptransport.NewHandler(jobSvc, batchSvc,
		&catalogStub{voices: []synthesis.Voice{{VoiceID: "v1", Name: "Anna"}}},
		&metadataStub{byCaller: map[string][]*entity.MetadataRecord{
			"caller-1": {{VoiceID: "v1", Format: "mp3"}},
		}},
		presets,
	)
	return &env{jobs: jobs, queue: queue, router: httptransport.Routes(h), presets: presets}
}

func (e *env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Caller-ID", "caller-1")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// ---- tests ----

func TestHTTP_SubmitSynthesis_202_ThenPending(t *testing.T) {
	e := newEnv()

	rr := e.do(t, http.MethodPost, "/synthesize", `{"text":"Hello world","voice_id":"v1","format":"mp3"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d, body=%s", rr.Code, rr.Body.String())
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if len(e.queue.enqueued) != 1 || e.queue.enqueued[0] != resp.ID {
		t.Fatalf("expected enqueue of %s, got %v", resp.ID, e.queue.enqueued)
	}

	rr2 := e.do(t, http.MethodGet, "/jobs/"+resp.ID, "")
	if rr2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr2.Code, rr2.Body.String())
	}

	var job map[string]any
	if err := json.Unmarshal(rr2.Body.Bytes(), &job); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if job["status"] != "pending" {
		t.Fatalf("status right after submit must be pending, got %v", job["status"])
	}
	if _, ok := job["result"]; ok {
		t.Fatal("pending job must not expose a result")
	}
}

func TestHTTP_SubmitSynthesis_400_OnEmptyText(t *testing.T) {
	e := newEnv()

	rr := e.do(t, http.MethodPost, "/synthesize", `{"voice_id":"v1"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHTTP_GetJob_404_Unknown(t *testing.T) {
	e := newEnv()

	rr := e.do(t, http.MethodGet, "/jobs/"+uuid.NewString(), "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHTTP_GetJobResult_409_WhenNotSucceeded(t *testing.T) {
	e := newEnv()

	id := uuid.New()
	e.jobs.jobs[id] = &entity.Job{ID: id, Status: entity.StatusRunning}

	rr := e.do(t, http.MethodGet, "/jobs/"+id.String()+"/result", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestHTTP_GetJobResult_200_RawJSON(t *testing.T) {
	e := newEnv()

	id := uuid.New()
	e.jobs.jobs[id] = &entity.Job{
		ID:     id,
		Status: entity.StatusSucceeded,
		Result: json.RawMessage(`{"output_file":"v1_x.mp3","format":"mp3","duration_seconds":2.5}`),
	}

	rr := e.do(t, http.MethodGet, "/jobs/"+id.String()+"/result", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"output_file":"v1_x.mp3","format":"mp3","duration_seconds":2.5}` {
		t.Fatalf("expected raw result json, got %s", got)
	}
}

func TestHTTP_SubmitEffects_202_FromSucceededJob(t *testing.T) {
	e := newEnv()

	id := uuid.New()
	e.jobs.jobs[id] = &entity.Job{
		ID:     id,
		Status: entity.StatusSucceeded,
		Result: json.RawMessage(`{"output_file":"v1_x.wav","format":"wav"}`),
	}

	rr := e.do(t, http.MethodPost, "/jobs/"+id.String()+"/effects", `{"volume":3,"normalize":true}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d, body=%s", rr.Code, rr.Body.String())
	}
}

func TestHTTP_Batch_SubmitAndPoll(t *testing.T) {
	e := newEnv()

	rr := e.do(t, http.MethodPost, "/batch",
		`{"text":"one\ntwo\nthree","delimiter":"line","voice_id":"v1"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d, body=%s", rr.Code, rr.Body.String())
	}

	var resp struct {
		BatchID string `json:"batch_id"`
		Items   int    `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Items != 3 {
		t.Fatalf("expected 3 items, got %d", resp.Items)
	}

	rr2 := e.do(t, http.MethodGet, "/batch/"+resp.BatchID, "")
	if rr2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr2.Code)
	}
	var view map[string]any
	if err := json.Unmarshal(rr2.Body.Bytes(), &view); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if view["status"] != "pending" {
		t.Fatalf("expected pending batch, got %v", view["status"])
	}
}

func TestHTTP_Batch_400_OnUnknownDelimiter(t *testing.T) {
	e := newEnv()

	rr := e.do(t, http.MethodPost, "/batch",
		`{"text":"one two","delimiter":"word","voice_id":"v1"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown delimiter, got %d, body=%s", rr.Code, rr.Body.String())
	}
	if len(e.queue.enqueued) != 0 {
		t.Fatalf("rejected batch must not enqueue jobs, got %v", e.queue.enqueued)
	}
}

func TestHTTP_Voices(t *testing.T) {
	e := newEnv()

	rr := e.do(t, http.MethodGet, "/voices", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string][]synthesis.Voice
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp["voices"]) != 1 || resp["voices"][0].VoiceID != "v1" {
		t.Fatalf("unexpected voices: %v", resp)
	}
}

func TestHTTP_History_ScopedByCaller(t *testing.T) {
	e := newEnv()

	rr := e.do(t, http.MethodGet, "/history", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var recs []entity.MetadataRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &recs); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(recs) != 1 || recs[0].VoiceID != "v1" {
		t.Fatalf("unexpected history: %v", recs)
	}

	// different caller sees nothing
	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	req.Header.Set("X-Caller-ID", "someone-else")
	rr2 := httptest.NewRecorder()
	e.router.ServeHTTP(rr2, req)

	var other []entity.MetadataRecord
	if err := json.Unmarshal(rr2.Body.Bytes(), &other); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected empty history for other caller, got %v", other)
	}
}

func TestHTTP_Presets_CRUD(t *testing.T) {
	e := newEnv()

	rr := e.do(t, http.MethodPost, "/presets", `{"name":"narrator","voice_id":"v1","pitch":1.2}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}

	rr2 := e.do(t, http.MethodGet, "/presets", "")
	var presets []entity.Preset
	if err := json.Unmarshal(rr2.Body.Bytes(), &presets); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(presets) != 1 || presets[0].Name != "narrator" {
		t.Fatalf("unexpected presets: %v", presets)
	}
	// defaults applied on create
	if presets[0].Emotion != "neutral" || presets[0].Rate != 1.0 {
		t.Fatalf("preset defaults not applied: %+v", presets[0])
	}

	rr3 := e.do(t, http.MethodDelete, "/presets/"+resp.ID, "")
	if rr3.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr3.Code)
	}

	rr4 := e.do(t, http.MethodDelete, "/presets/"+resp.ID, "")
	if rr4.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rr4.Code)
	}
}
