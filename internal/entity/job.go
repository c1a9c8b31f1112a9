package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

type JobKind string

const (
	KindSynthesize  JobKind = "synthesize"
	KindBatchItem   JobKind = "batch-item"
	KindPostProcess JobKind = "post-process"
)

// Job is one unit of asynchronous synthesis or post-processing work.
// Result is set only on succeeded, Error only on failed, never both.
type Job struct {
	ID          uuid.UUID       `json:"id"`
	Kind        JobKind         `json:"kind"`
	Status      JobStatus       `json:"status"`
	CallerID    string          `json:"caller_id"`
	BatchID     *uuid.UUID      `json:"batch_id,omitempty"`
	BatchPos    int             `json:"batch_pos"`
	Input       json.RawMessage `json:"input"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *string         `json:"error,omitempty"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// SynthesisInput is the payload of a synthesize or batch-item job.
// Control names mirror the provider's voice_settings object.
type SynthesisInput struct {
	Text            string  `json:"text"`
	VoiceID         string  `json:"voice_id"`
	Emotion         string  `json:"emotion,omitempty"`
	Stability       float64 `json:"stability,omitempty"`
	SimilarityBoost float64 `json:"similarity_boost,omitempty"`
	Pitch           float64 `json:"pitch,omitempty"`
	Rate            float64 `json:"rate,omitempty"`
	Format          string  `json:"format,omitempty"`
}

const (
	DefaultEmotion         = "neutral"
	DefaultStability       = 0.75
	DefaultSimilarityBoost = 0.75
	DefaultPitch           = 1.0
	DefaultRate            = 1.0
	DefaultFormat          = "mp3"
)

// ApplyDefaults fills zero-valued controls so every job record carries the
// effective parameters it ran with.
func (in *SynthesisInput) ApplyDefaults() {
	if in.Emotion == "" {
		in.Emotion = DefaultEmotion
	}
	if in.Stability == 0 {
		in.Stability = DefaultStability
	}
	if in.SimilarityBoost == 0 {
		in.SimilarityBoost = DefaultSimilarityBoost
	}
	if in.Pitch == 0 {
		in.Pitch = DefaultPitch
	}
	if in.Rate == 0 {
		in.Rate = DefaultRate
	}
	if in.Format == "" {
		in.Format = DefaultFormat
	}
}

// PostProcessInput is the payload of a post-process job: a source artifact
// plus the effect set to apply to it.
type PostProcessInput struct {
	SourceFile string          `json:"source_file"`
	Effects    json.RawMessage `json:"effects"`
}

// JobResult is the artifact reference recorded on success; the bytes
// themselves live in the artifact store.
type JobResult struct {
	OutputFile      string  `json:"output_file"`
	Format          string  `json:"format"`
	DurationSeconds float64 `json:"duration_seconds"`
}
