// Package authflowrepo tracks in-flight federated login attempts keyed by
// the opaque state parameter. Entries are single-use and short-lived.
package authflowrepo

import (
	"errors"
	"time"
)

// FlowTTL bounds how long a login attempt may sit between the redirect to
// the identity provider and the callback.
const FlowTTL = 10 * time.Minute

var (
	ErrStateNotFound = errors.New("auth flow state not found")
	ErrStateExpired  = errors.New("auth flow state expired")
)

// FlowState is everything the callback needs to finish a login attempt.
type FlowState struct {
	TenantID     string
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

// Expired reports whether the attempt has outlived FlowTTL.
func (f *FlowState) Expired(now time.Time) bool {
	return now.Sub(f.CreatedAt) > FlowTTL
}

// Repo stores pending login attempts. Consume is one-shot: a state value
// can complete at most one callback, which blocks replayed codes.
type Repo interface {
	Put(state string, flowState *FlowState) error
	Consume(state string) (*FlowState, error)
}
