package server

// Route path constants
// All gateway-owned routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAuthRegister  = "/api/auth/register"
	RouteAuthLogin     = "/api/auth/login"
	RouteAuthRefresh   = "/api/auth/refresh"
	RouteAuthLogout    = "/api/auth/logout"
	RouteAuthLogoutAll = "/api/auth/logout-all"
	RouteAuthMe        = "/api/auth/me"
	RouteAuthSessions  = "/api/auth/sessions"

	// Session administration (per-user, ownership-checked)
	RouteUserSessions  = "/api/auth/users/{userID}/sessions"
	RouteUserLogoutAll = "/api/auth/users/{userID}/logout-all"

	// Federated login (upstream OIDC)
	RouteOIDCStart    = "/api/auth/oidc/{tenant}"
	RouteOIDCCallback = "/api/auth/oidc/callback"

	// Health Routes - exempt from authentication and rate limiting
	RouteHealth      = "/health"
	RouteHealthLive  = "/health/live"
	RouteHealthReady = "/health/ready"
)

// Identity and tracing headers injected on proxied requests
const (
	HeaderRequestID = "X-Request-ID"
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
	HeaderTenantID  = "X-Tenant-Id"
)

// Cookie names set by the auth handlers
const (
	CookieRefreshToken = "refreshToken"
	CookieSessionID    = "sessionId"
	CookieAccessToken  = "accessToken"
)
