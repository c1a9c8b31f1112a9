package worker

import "time"

const (
	DefaultBackoffBase = 5 * time.Second
	DefaultBackoffCap  = 60 * time.Second
)

// Backoff computes the delay before a failed job becomes claimable again:
// min(cap, base * 2^attempt). Doubling stops at the cap, so the sequence is
// non-decreasing.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

func NewBackoff(base, cap time.Duration) Backoff {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if cap <= 0 {
		cap = DefaultBackoffCap
	}
	return Backoff{Base: base, Cap: cap}
}

func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Cap {
			return b.Cap
		}
	}
	if d > b.Cap {
		return b.Cap
	}
	return d
}
