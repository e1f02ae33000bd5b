package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	gatewayerrors "github.com/jrsteele09/go-edge-gateway/internal/errors"
)

// RateLimitMiddleware counts the request against the named tier. The
// identity is the authenticated user when a principal is present, otherwise
// the client IP. A limiter failure admits the request: throttling is a
// guard rail, not a gate, and a degraded counter store must not take the
// gateway down with it.
func (s *Server) RateLimitMiddleware(tierName string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !s.config.GetEnableRateLimiting() {
				next(w, r)
				return
			}

			tier, ok := s.tiers[tierName]
			if !ok {
				next(w, r)
				return
			}

			identity := clientIP(r)
			if principal, ok := PrincipalFromContext(r.Context()); ok {
				identity = principal.UserID
			}

			result, err := s.limiter.Check(r.Context(), tier, identity)
			if err != nil {
				log.Warn().
					Err(err).
					Str("tier", tier.Name).
					Str("request_id", RequestIDFromContext(r.Context())).
					Msg("rate limit check failed, admitting request")
				next(w, r)
				return
			}

			if !result.Allowed {
				retryAfter := int(result.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				s.RespondError(w, r, gatewayerrors.RateLimit("too many requests").
					WithDetails(map[string]any{"retry_after_seconds": retryAfter}))
				return
			}

			next(w, r)
		}
	}
}
