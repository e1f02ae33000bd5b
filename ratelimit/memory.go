package ratelimit

import (
	"context"
	"sync"
	"time"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var _ Limiter = (*MemoryLimiter)(nil)

// MemoryLimiter is a single-process limiter used in tests and as a degraded
// mode when the shared counter store is unavailable.
type MemoryLimiter struct {
	windows map[string]*window
	lock    sync.Mutex
}

type window struct {
	start time.Time
	count int
}

func NewMemory() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]*window)}
}

func (l *MemoryLimiter) Check(_ context.Context, tier Tier, identity string) (Result, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	key := tier.Name + ":" + identity
	now := NowTimeFunc()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= tier.Window {
		w = &window{start: now}
		l.windows[key] = w
	}

	w.count++
	if w.count > tier.Max {
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: tier.Window - now.Sub(w.start),
		}, nil
	}
	return Result{Allowed: true, Remaining: tier.Max - w.count}, nil
}
