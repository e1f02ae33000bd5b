package server

import (
	"net/http"

	gatewayerrors "github.com/jrsteele09/go-edge-gateway/internal/errors"
)

func (s *Server) initRoutes() {
	// Health routes carry no auth or rate limiting so orchestrators can
	// probe a degraded gateway.
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteFunc("GET "+RouteHealthLive, s.LiveHandler())
	s.RegisterRouteFunc("GET "+RouteHealthReady, s.ReadyHandler())

	// Credential-issuing routes sit behind the strict auth tier.
	s.RegisterRouteHandler("POST "+RouteAuthRegister, ChainMiddleware(s.RegisterHandler(),
		s.APIMiddleware(s.RateLimitMiddleware("auth"), s.ResolveTenant())...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(),
		s.APIMiddleware(s.RateLimitMiddleware("auth"))...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(),
		s.APIMiddleware(s.RateLimitMiddleware("auth"))...))

	// Session management for the authenticated caller.
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(),
		s.APIMiddleware(s.RequireAuth(), s.RateLimitMiddleware("api"))...))
	s.RegisterRouteHandler("POST "+RouteAuthLogoutAll, ChainMiddleware(s.LogoutAllHandler(),
		s.APIMiddleware(s.RequireAuth(), s.RateLimitMiddleware("api"))...))
	s.RegisterRouteHandler("GET "+RouteAuthMe, ChainMiddleware(s.MeHandler(),
		s.APIMiddleware(s.RequireAuth(), s.RateLimitMiddleware("api"))...))
	s.RegisterRouteHandler("GET "+RouteAuthSessions, ChainMiddleware(s.SessionsHandler(),
		s.APIMiddleware(s.RequireAuth(), s.RateLimitMiddleware("api"))...))

	// Per-user session administration, ownership-checked.
	s.RegisterRouteHandler("GET "+RouteUserSessions, ChainMiddleware(s.UserSessionsHandler(),
		s.APIMiddleware(s.RequireAuth(), s.RateLimitMiddleware("api"), s.ValidateResourceOwnership())...))
	s.RegisterRouteHandler("POST "+RouteUserLogoutAll, ChainMiddleware(s.UserLogoutAllHandler(),
		s.APIMiddleware(s.RequireAuth(), s.RateLimitMiddleware("api"), s.ValidateResourceOwnership())...))

	// Federated login against the upstream identity provider.
	s.RegisterRouteHandler("GET "+RouteOIDCStart, ChainMiddleware(s.OIDCStartHandler(),
		s.APIMiddleware(s.RateLimitMiddleware("auth"))...))
	s.RegisterRouteHandler("GET "+RouteOIDCCallback, ChainMiddleware(s.OIDCCallbackHandler(),
		s.APIMiddleware(s.RateLimitMiddleware("auth"))...))
	s.RegisterRouteHandler("POST "+RouteOIDCCallback, ChainMiddleware(s.OIDCCallbackHandler(),
		s.APIMiddleware(s.RateLimitMiddleware("auth"))...)) // For form_post response mode

	s.registerProxyRoutes()

	// Anything that matched neither a gateway route nor a backend prefix.
	s.RegisterRouteHandler("/", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		s.RespondError(w, r, gatewayerrors.Wrap(gatewayerrors.KindNotFound, "no route for this path", gatewayerrors.ErrRouteNotFound))
	}, s.APIMiddleware()...))
}

// registerProxyRoutes mounts each backend descriptor as a subtree pattern.
// The mux picks the longest matching prefix, so overlapping descriptors
// resolve to the most specific backend.
func (s *Server) registerProxyRoutes() {
	for _, route := range s.config.GetRoutes() {
		// Rate limiting runs between optional and required auth: a known
		// principal is throttled per user, everyone else per client IP, and
		// an over-limit caller sees 429 whether or not it could authenticate.
		mw := []func(http.HandlerFunc) http.HandlerFunc{s.OptionalAuth()}
		if route.RateLimitTier != "" {
			mw = append(mw, s.RateLimitMiddleware(route.RateLimitTier))
		}
		if route.RequireAuth {
			mw = append(mw, s.RequireAuth())
		}
		mw = append(mw, s.ResolveTenantOptional(), s.ValidateTenantAccess())

		pattern := route.PathPrefix
		if pattern[len(pattern)-1] != '/' {
			pattern += "/"
		}
		handler := ChainMiddleware(s.ProxyHandler(route), s.APIMiddleware(mw...)...)
		// Both the bare prefix and the subtree route to the same backend.
		s.RegisterRouteHandler(route.PathPrefix, handler)
		s.RegisterRouteHandler(pattern, handler)
	}
}
