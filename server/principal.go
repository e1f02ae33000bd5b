package server

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-edge-gateway/tenants"
	"github.com/jrsteele09/go-edge-gateway/users"
)

// Principal is the authenticated identity attached to a request after
// successful token verification. Built fresh per request and never
// persisted.
type Principal struct {
	UserID    string
	TenantID  string
	Role      string
	Email     string
	SourceIP  string
	UserAgent string
}

// IsSuperAdmin reports whether the principal bypasses tenant-ownership
// checks entirely.
func (p *Principal) IsSuperAdmin() bool {
	return p.Role == string(users.RoleSuperAdmin)
}

// IsAdmin reports whether the principal may act on other users' resources
// within its own tenant.
func (p *Principal) IsAdmin() bool {
	return p.Role == string(users.RoleAdmin) || p.IsSuperAdmin()
}

// HasRole reports whether the principal's role is in the allowed set.
func (p *Principal) HasRole(allowed ...users.RoleType) bool {
	for _, role := range allowed {
		if p.Role == string(role) {
			return true
		}
	}
	return false
}

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyPrincipal stores the authenticated Principal
	ContextKeyPrincipal ContextKey = "principal"
	// ContextKeyTenant stores the resolved tenant
	ContextKeyTenant ContextKey = "tenant"
	// ContextKeyRequestID stores the per-request correlation id
	ContextKeyRequestID ContextKey = "request_id"
	// ContextKeyAccessToken stores the raw access token for revocation
	ContextKeyAccessToken ContextKey = "access_token"
)

// PrincipalFromContext returns the request's Principal, if one was attached.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(*Principal)
	return p, ok
}

// TenantFromContext returns the request's resolved tenant, if one was
// attached.
func TenantFromContext(ctx context.Context) (*tenants.Tenant, bool) {
	t, ok := ctx.Value(ContextKeyTenant).(*tenants.Tenant)
	return t, ok
}

// RequestIDFromContext returns the request's correlation id, or "" when the
// request-id middleware has not run.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}

func accessTokenFromContext(ctx context.Context) string {
	tok, _ := ctx.Value(ContextKeyAccessToken).(string)
	return tok
}

// clientIP extracts the caller's IP, honouring the first X-Forwarded-For
// entry when an upstream proxy set one.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx != -1 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
