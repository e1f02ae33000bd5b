package authflowrepo

import (
	"errors"
	"sync"
	"time"
)

// NowTimeFunc is overridable for testing expiry behaviour.
var NowTimeFunc = time.Now

// InMemoryRepo is a thread-safe in-memory implementation of the Repo
// interface. Expired entries are swept lazily on Consume and on Put.
type InMemoryRepo struct {
	mu     sync.Mutex
	states map[string]*FlowState
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		states: make(map[string]*FlowState),
	}
}

// Put stores a pending login attempt under its state parameter.
func (r *InMemoryRepo) Put(state string, flowState *FlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if flowState == nil {
		return errors.New("flowState cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked(NowTimeFunc())

	// Store a copy to prevent external modifications
	copied := *flowState
	r.states[state] = &copied
	return nil
}

// Consume returns the attempt stored under state and removes it, so a
// state value can only ever complete one callback.
func (r *InMemoryRepo) Consume(state string) (*FlowState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	flowState, exists := r.states[state]
	if !exists {
		return nil, ErrStateNotFound
	}
	delete(r.states, state)

	if flowState.Expired(NowTimeFunc()) {
		return nil, ErrStateExpired
	}

	copied := *flowState
	return &copied, nil
}

func (r *InMemoryRepo) sweepLocked(now time.Time) {
	for state, flowState := range r.states {
		if flowState.Expired(now) {
			delete(r.states, state)
		}
	}
}
