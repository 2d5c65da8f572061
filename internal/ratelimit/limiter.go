// Package ratelimit defines the per-caller request quota applied before generation.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // Set when Allowed is false
}

// Limiter enforces a fixed request quota per time window per identifier.
type Limiter interface {
	Allow(ctx context.Context, id string) (Decision, error)
}
