// Package sessions manages server-side session records correlating issued
// tokens with user and tenant context. Records live in a shared cache with
// per-key TTLs matching the token lifetimes.
package sessions

import (
	"context"
	"time"
)

// Record correlates an issued credential pair with its user/tenant context.
// A record is stored under three key shapes: by access token, by refresh
// token, and referenced from a per-user set of active access tokens (used
// for "logout everywhere").
type Record struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	TenantID     string    `json:"tenant_id"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	IP           string    `json:"ip,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`

	// RefreshToken is set by the store on Create so that revoking by
	// access token can reach the paired refresh-keyed record. Never
	// exposed to clients.
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TTL sentinel values returned by TTLRemaining, mirroring the cache's
// TTL command semantics.
const (
	TTLNoExpiry int64 = -1
	TTLNotFound int64 = -2
)

// Store is the session lifecycle contract. The access-keyed record carries
// the access-token lifetime, the refresh-keyed record and the per-user set
// carry the refresh-token lifetime.
type Store interface {
	// Create writes both keyed records and adds the access token to the
	// user's active-session set.
	Create(ctx context.Context, accessToken, refreshToken string, record Record) error

	// GetByAccess returns the record stored under the access token.
	GetByAccess(ctx context.Context, accessToken string) (*Record, error)

	// GetByRefresh returns the record stored under the refresh token.
	GetByRefresh(ctx context.Context, refreshToken string) (*Record, error)

	// Touch rewrites the access-keyed record with an updated LastActivity,
	// preserving the record's remaining TTL. Failures are non-fatal to the
	// caller's request.
	Touch(ctx context.Context, accessToken string) error

	// Revoke deletes both keyed records and removes the access token from
	// the user's active-session set.
	Revoke(ctx context.Context, accessToken, refreshToken, userID string) error

	// RevokeAll invalidates every active session for the user and returns
	// the number of sessions removed. Revoking a user with no sessions
	// returns 0 without error.
	RevokeAll(ctx context.Context, userID string) (int, error)

	// CountActive returns the number of active sessions for the user.
	CountActive(ctx context.Context, userID string) (int, error)

	// TTLRemaining returns the remaining lifetime in seconds of the
	// access-keyed record, TTLNoExpiry for a record without expiry, or
	// TTLNotFound when no record exists.
	TTLRemaining(ctx context.Context, accessToken string) (int64, error)
}
