// Package ratelimit throttles outgoing backend requests on the client side.
//
// A token bucket bounds the steady request rate so that fast scrolling through
// a list cannot flood the backend. When the backend answers 429 the limiter
// additionally pauses all requests until the Retry-After moment has passed.
package ratelimit

import (
	"time"
)

// State is a point-in-time view of the limiter.
type State struct {
	// RequestsPerSecond is the steady refill rate; 0 means unlimited.
	RequestsPerSecond float64 `json:"requests_per_second"`

	// Burst is the bucket size.
	Burst int `json:"burst"`

	// PausedUntil is set after a 429 response carrying Retry-After.
	PausedUntil time.Time `json:"paused_until"`
}

// IsPaused reports whether requests are currently held back by a 429 pause.
func (s State) IsPaused() bool {
	return time.Now().Before(s.PausedUntil)
}

// TimeUntilResume returns the remaining pause.
// Returns 0 if the limiter is not paused.
func (s State) TimeUntilResume() time.Duration {
	d := time.Until(s.PausedUntil)
	if d < 0 {
		return 0
	}
	return d
}
