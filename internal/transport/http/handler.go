package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tts-worker-service/internal/entity"
	"tts-worker-service/internal/service"
	"tts-worker-service/internal/synthesis"
)

// VoiceCatalog port (implementation: synthesis.Catalog).
type VoiceCatalog interface {
	Voices(ctx context.Context) []synthesis.Voice
}

// MetadataReader port (implementation: postgresql.MetadataRepository).
type MetadataReader interface {
	ListByCaller(ctx context.Context, callerID string, limit int) ([]*entity.MetadataRecord, error)
	Analytics(ctx context.Context) (*entity.Analytics, error)
}

// PresetStore port (implementation: postgresql.PresetRepository).
type PresetStore interface {
	Create(ctx context.Context, p *entity.Preset) (uuid.UUID, error)
	ListByCaller(ctx context.Context, callerID string) ([]*entity.Preset, error)
	Delete(ctx context.Context, callerID string, id uuid.UUID) error
}

type Handler struct {
	jobSvc   *service.JobService
	batchSvc *service.BatchService
	catalog  VoiceCatalog
	metadata MetadataReader
	presets  PresetStore
}

func NewHandler(
	jobSvc *service.JobService,
	batchSvc *service.BatchService,
	catalog VoiceCatalog,
	metadata MetadataReader,
	presets PresetStore,
) *Handler {
	return &Handler{
		jobSvc:   jobSvc,
		batchSvc: batchSvc,
		catalog:  catalog,
		metadata: metadata,
		presets:  presets,
	}
}

type submitResp struct {
	ID string `json:"id"`
}

type jobResp struct {
	ID          string            `json:"id"`
	Kind        entity.JobKind    `json:"kind"`
	Status      entity.JobStatus  `json:"status"`
	Attempts    int               `json:"attempts"`
	Result      *entity.JobResult `json:"result,omitempty"`
	Error       *string           `json:"error,omitempty"`
	CreatedAt   string            `json:"created_at"`
	CompletedAt string            `json:"completed_at,omitempty"`
}

// SubmitSynthesis godoc
// @Summary Submit a synthesis job
// @Description Persists a pending job, enqueues it for background synthesis and returns its id. Poll GET /jobs/{id} for progress.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body entity.SynthesisInput true "text, voice and synthesis controls"
// @Success 202 {object} submitResp
// @Failure 400 {object} apiError
// @Failure 500 {object} apiError
// @Router /synthesize [post]
func (h *Handler) SubmitSynthesis(w http.ResponseWriter, r *http.Request) {
	var in entity.SynthesisInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	id, err := h.jobSvc.SubmitSynthesis(r.Context(), callerFrom(r.Context()), in)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, submitResp{ID: id.String()})
}

// GetJob godoc
// @Summary Poll job status
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} jobResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	job, err := h.jobSvc.GetJob(r.Context(), id)
	if err != nil {
		writeFault(w, err)
		return
	}

	resp := jobResp{
		ID:        job.ID.String(),
		Kind:      job.Kind,
		Status:    job.Status,
		Attempts:  job.Attempts,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	if job.Status == entity.StatusSucceeded && len(job.Result) > 0 {
		var res entity.JobResult
		if err := json.Unmarshal(job.Result, &res); err == nil {
			resp.Result = &res
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJobResult godoc
// @Summary Get the artifact reference of a succeeded job
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} entity.JobResult
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id}/result [get]
func (h *Handler) GetJobResult(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	job, err := h.jobSvc.GetJob(r.Context(), id)
	if err != nil {
		writeFault(w, err)
		return
	}
	if job.Status != entity.StatusSucceeded {
		writeErr(w, http.StatusConflict, "job not succeeded")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(job.Result)
}

// SubmitEffects godoc
// @Summary Post-process a succeeded job's artifact
// @Description Derives a post-process job from the source job's artifact. Effects run in a fixed order: volume, fade-in, fade-out, speed, normalize.
// @Tags jobs
// @Accept json
// @Produce json
// @Param id path string true "source job id (uuid)"
// @Param request body audio.Effects true "effect set"
// @Success 202 {object} submitResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id}/effects [post]
func (h *Handler) SubmitEffects(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	var effects json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&effects); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	newID, err := h.jobSvc.SubmitPostProcess(r.Context(), callerFrom(r.Context()), id, effects)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, submitResp{ID: newID.String()})
}

type submitBatchDTO struct {
	Text            string `json:"text"`
	Delimiter       string `json:"delimiter"` // paragraph|line|custom|none
	CustomDelimiter string `json:"custom_delimiter,omitempty"`
	entity.SynthesisInput
}

type submitBatchResp struct {
	BatchID string `json:"batch_id"`
	Items   int    `json:"items"`
}

// SubmitBatch godoc
// @Summary Submit a batch of synthesis jobs
// @Description Splits the text by the delimiter policy and submits one job per non-empty segment. Poll GET /batch/{id}.
// @Tags batch
// @Accept json
// @Produce json
// @Param request body submitBatchDTO true "batch text, delimiter policy and shared synthesis controls"
// @Success 202 {object} submitBatchResp
// @Failure 400 {object} apiError
// @Router /batch [post]
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var dto submitBatchDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	policy := entity.SplitPolicy(dto.Delimiter)
	if policy == "" {
		policy = entity.SplitParagraph
	}

	batchID, items, err := h.batchSvc.SubmitBatch(
		r.Context(), callerFrom(r.Context()),
		dto.Text, policy, dto.CustomDelimiter, dto.SynthesisInput,
	)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, submitBatchResp{BatchID: batchID.String(), Items: items})
}

// GetBatch godoc
// @Summary Poll batch status
// @Description Pending until every item is terminal, then succeeded with a per-item result-or-error list. Item failures never fail the batch.
// @Tags batch
// @Produce json
// @Param id path string true "batch id (uuid)"
// @Success 200 {object} service.BatchView
// @Failure 404 {object} apiError
// @Router /batch/{id} [get]
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	view, err := h.batchSvc.BatchStatus(r.Context(), id)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListVoices godoc
// @Summary List the provider's voices
// @Description Served from a cache with a bounded freshness window; a provider outage yields an empty list, not an error.
// @Tags voices
// @Produce json
// @Success 200 {object} map[string][]synthesis.Voice
// @Router /voices [get]
func (h *Handler) ListVoices(w http.ResponseWriter, r *http.Request) {
	voices := h.catalog.Voices(r.Context())
	if voices == nil {
		voices = []synthesis.Voice{}
	}
	writeJSON(w, http.StatusOK, map[string][]synthesis.Voice{"voices": voices})
}

// ListHistory godoc
// @Summary List the caller's completed synthesis jobs, newest first
// @Tags history
// @Produce json
// @Param limit query int false "max records (default 100)"
// @Success 200 {array} entity.MetadataRecord
// @Router /history [get]
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	recs, err := h.metadata.ListByCaller(r.Context(), callerFrom(r.Context()), limit)
	if err != nil {
		writeFault(w, err)
		return
	}
	if recs == nil {
		recs = []*entity.MetadataRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// GetAnalytics godoc
// @Summary Aggregate statistics over completed jobs
// @Tags history
// @Produce json
// @Success 200 {object} entity.Analytics
// @Router /analytics [get]
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.metadata.Analytics(r.Context())
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type createPresetDTO struct {
	Name    string  `json:"name"`
	VoiceID string  `json:"voice_id"`
	Emotion string  `json:"emotion,omitempty"`
	Pitch   float64 `json:"pitch,omitempty"`
	Rate    float64 `json:"rate,omitempty"`
}

// CreatePreset godoc
// @Summary Save a voice preset for the caller
// @Tags presets
// @Accept json
// @Produce json
// @Param request body createPresetDTO true "preset"
// @Success 201 {object} submitResp
// @Failure 400 {object} apiError
// @Router /presets [post]
func (h *Handler) CreatePreset(w http.ResponseWriter, r *http.Request) {
	var dto createPresetDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if dto.Name == "" || dto.VoiceID == "" {
		writeErr(w, http.StatusBadRequest, "name and voice_id are required")
		return
	}
	if dto.Emotion == "" {
		dto.Emotion = entity.DefaultEmotion
	}
	if dto.Pitch == 0 {
		dto.Pitch = entity.DefaultPitch
	}
	if dto.Rate == 0 {
		dto.Rate = entity.DefaultRate
	}

	id, err := h.presets.Create(r.Context(), &entity.Preset{
		CallerID: callerFrom(r.Context()),
		Name:     dto.Name,
		VoiceID:  dto.VoiceID,
		Emotion:  dto.Emotion,
		Pitch:    dto.Pitch,
		Rate:     dto.Rate,
	})
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitResp{ID: id.String()})
}

// ListPresets godoc
// @Summary List the caller's voice presets
// @Tags presets
// @Produce json
// @Success 200 {array} entity.Preset
// @Router /presets [get]
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := h.presets.ListByCaller(r.Context(), callerFrom(r.Context()))
	if err != nil {
		writeFault(w, err)
		return
	}
	if presets == nil {
		presets = []*entity.Preset{}
	}
	writeJSON(w, http.StatusOK, presets)
}

// DeletePreset godoc
// @Summary Delete a caller's voice preset
// @Tags presets
// @Param id path string true "preset id (uuid)"
// @Success 204
// @Failure 404 {object} apiError
// @Router /presets/{id} [delete]
func (h *Handler) DeletePreset(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.presets.Delete(r.Context(), callerFrom(r.Context()), id); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
