package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	gatewayerrors "github.com/jrsteele09/go-edge-gateway/internal/errors"
	"github.com/jrsteele09/go-edge-gateway/users"
)

// bearerToken extracts the access token from the Authorization header,
// falling back to the access-token cookie for browser clients.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := r.Cookie(CookieAccessToken); err == nil {
		return cookie.Value
	}
	return ""
}

// authenticate verifies the access token and its session record, returning
// a request whose context carries the Principal and the raw token. A
// verified token whose session record has been revoked fails, so "logout
// everywhere" takes effect before the token expires.
func (s *Server) authenticate(r *http.Request) (*http.Request, error) {
	accessToken := bearerToken(r)
	if accessToken == "" {
		return nil, gatewayerrors.Authentication("missing credentials")
	}

	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.GetByAccess(r.Context(), accessToken); err != nil {
		if gatewayerrors.Is(err, gatewayerrors.ErrSessionNotFound) {
			return nil, gatewayerrors.Authentication("session has been revoked")
		}
		return nil, gatewayerrors.Wrap(gatewayerrors.KindInternal, "session lookup failed", err)
	}

	// Sliding activity marker. A failed touch never fails the request.
	if err := s.sessions.Touch(r.Context(), accessToken); err != nil {
		log.Warn().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("session touch failed")
	}

	principal := &Principal{
		UserID:    claims.UserID,
		TenantID:  claims.TenantID,
		Role:      claims.Role,
		Email:     claims.Email,
		SourceIP:  clientIP(r),
		UserAgent: r.UserAgent(),
	}

	ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
	ctx = context.WithValue(ctx, ContextKeyAccessToken, accessToken)
	return r.WithContext(ctx), nil
}

// RequireAuth rejects requests that carry no valid, live credential. A
// principal already attached by OptionalAuth earlier in the chain is not
// re-verified. The principal's tenant must also still be in good standing:
// a credential does not outlive a suspension, cancellation, or trial expiry.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if _, ok := PrincipalFromContext(r.Context()); !ok {
				authed, err := s.authenticate(r)
				if err != nil {
					s.RespondError(w, r, err)
					return
				}
				r = authed
			}

			principal, _ := PrincipalFromContext(r.Context())
			if _, err := s.resolver.Find(r.Context(), principal.TenantID); err != nil {
				s.RespondError(w, r, err)
				return
			}

			next(w, r)
		}
	}
}

// OptionalAuth attaches a Principal when a valid token is presented and
// passes the request through anonymously otherwise. Invalid tokens are
// ignored, not rejected.
func (s *Server) OptionalAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if authed, err := s.authenticate(r); err == nil {
				r = authed
			}
			next(w, r)
		}
	}
}

// RequireRole restricts a route to principals holding one of the allowed
// roles. Chain after RequireAuth.
func (s *Server) RequireRole(allowed ...users.RoleType) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				s.RespondError(w, r, gatewayerrors.Authentication("missing credentials"))
				return
			}
			if !principal.HasRole(allowed...) {
				s.RespondError(w, r, gatewayerrors.Authorization("insufficient role"))
				return
			}
			next(w, r)
		}
	}
}

// ValidateTenantAccess rejects principals acting outside their own tenant.
// Super admins cross tenant boundaries freely. Anonymous requests pass
// through: requiring a principal is RequireAuth's job.
func (s *Server) ValidateTenantAccess() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				next(w, r)
				return
			}
			if tenant, ok := TenantFromContext(r.Context()); ok && !principal.IsSuperAdmin() {
				if principal.TenantID != tenant.ID {
					s.RespondError(w, r, gatewayerrors.Authorization("access to this tenant is not permitted"))
					return
				}
			}
			next(w, r)
		}
	}
}

// ValidateResourceOwnership restricts a route with a {userID} path segment
// to that user. Admins may act on any user within their tenant and super
// admins on anyone. Chain after RequireAuth.
func (s *Server) ValidateResourceOwnership() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				s.RespondError(w, r, gatewayerrors.Authentication("missing credentials"))
				return
			}
			targetUserID := r.PathValue("userID")
			if targetUserID == "" || targetUserID == principal.UserID || principal.IsSuperAdmin() {
				next(w, r)
				return
			}
			if principal.IsAdmin() {
				target, err := s.users.GetByID(r.Context(), targetUserID)
				if err != nil && !gatewayerrors.Is(err, gatewayerrors.ErrUserNotFound) {
					s.RespondError(w, r, err)
					return
				}
				// An unknown target gets the same denial as a foreign one.
				if err == nil && target.TenantID == principal.TenantID {
					next(w, r)
					return
				}
			}
			s.RespondError(w, r, gatewayerrors.Authorization("access to this resource is not permitted"))
		}
	}
}
