package entity

import (
	"time"

	"github.com/google/uuid"
)

// MetadataRecord is the write-once projection of a succeeded synthesis job,
// kept for history and analytics. It is never updated after the insert.
type MetadataRecord struct {
	JobID           uuid.UUID `json:"job_id"`
	CallerID        string    `json:"caller_id"`
	Text            string    `json:"text"`
	VoiceID         string    `json:"voice_id"`
	Format          string    `json:"format"`
	DurationSeconds float64   `json:"duration_seconds"`
	OutputFile      string    `json:"output_file"`
	CreatedAt       time.Time `json:"created_at"`
}

// Analytics summarizes all metadata records.
type Analytics struct {
	TotalJobs   int            `json:"total_jobs"`
	Formats     map[string]int `json:"formats"`
	AvgDuration float64        `json:"avg_duration"`
	AvgChars    float64        `json:"avg_chars"`
	TotalChars  int            `json:"total_chars"`
}

// Preset is a caller-scoped named set of synthesis controls.
type Preset struct {
	ID        uuid.UUID `json:"id"`
	CallerID  string    `json:"caller_id"`
	Name      string    `json:"name"`
	VoiceID   string    `json:"voice_id"`
	Emotion   string    `json:"emotion"`
	Pitch     float64   `json:"pitch"`
	Rate      float64   `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
}
