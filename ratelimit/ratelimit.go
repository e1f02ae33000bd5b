// Package ratelimit provides tiered fixed-window request limiting keyed by
// caller identity.
package ratelimit

import (
	"context"
	"time"
)

// Tier is a named limiting policy: a fixed window and the maximum number of
// requests admitted within it.
type Tier struct {
	Name   string
	Window time.Duration
	Max    int
}

// Result is the outcome of a limit check.
type Result struct {
	Allowed    bool
	Remaining  int           // requests left in the current window
	RetryAfter time.Duration // how long until the window rolls over (when denied)
}

// Limiter checks and counts a request against a tier. The increment and the
// comparison are atomic with respect to concurrent callers sharing the same
// identity and tier.
type Limiter interface {
	Check(ctx context.Context, tier Tier, identity string) (Result, error)
}
