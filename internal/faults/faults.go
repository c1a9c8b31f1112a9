// Package faults defines the failure taxonomy shared by the synthesis client,
// the post-processor and the scheduler, and decides which failures are worth
// retrying.
package faults

import "errors"

var (
	// ErrInvalidInput is a caller error (empty text, unknown voice,
	// malformed payload). Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited means the provider rejected the call with 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrProvider covers provider 5xx responses and transport failures.
	ErrProvider = errors.New("provider error")

	// ErrTimeout means the per-call deadline elapsed.
	ErrTimeout = errors.New("timeout")

	// ErrProcessing covers audio decode/encode failures in post-processing.
	ErrProcessing = errors.New("processing error")

	// ErrNotFound is an unknown job, batch, preset or artifact id.
	ErrNotFound = errors.New("not found")

	// ErrStore is a persistence failure. Retried: it may be a transient
	// storage hiccup.
	ErrStore = errors.New("store error")
)

// Retriable reports whether a failed attempt should be rescheduled.
func Retriable(err error) bool {
	switch {
	case errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrProvider),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrProcessing),
		errors.Is(err, ErrStore):
		return true
	}
	return false
}

// Reason maps an execution error to the stable reason code persisted on a
// failed job. Callers see this code, never the raw error chain.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrProcessing):
		return "processing_error"
	case errors.Is(err, ErrStore):
		return "store_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "provider_error"
	}
}
