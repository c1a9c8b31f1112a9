package entity

import (
	"time"

	"github.com/google/uuid"
)

type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchSucceeded BatchStatus = "succeeded"
)

// Batch groups the jobs fanned out from one composite submission. A batch is
// succeeded once every item is terminal; item failures stay on the items and
// never fail the batch itself.
type Batch struct {
	ID        uuid.UUID `json:"id"`
	CallerID  string    `json:"caller_id"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// SplitPolicy selects how batch text is cut into items.
type SplitPolicy string

const (
	SplitParagraph SplitPolicy = "paragraph"
	SplitLine      SplitPolicy = "line"
	SplitCustom    SplitPolicy = "custom"
	SplitNone      SplitPolicy = "none"
)

// Known reports whether p names one of the delimiter policies.
func (p SplitPolicy) Known() bool {
	switch p {
	case SplitParagraph, SplitLine, SplitCustom, SplitNone:
		return true
	}
	return false
}
