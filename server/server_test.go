package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-edge-gateway/auth"
	"github.com/jrsteele09/go-edge-gateway/internal/config"
	"github.com/jrsteele09/go-edge-gateway/ratelimit"
	"github.com/jrsteele09/go-edge-gateway/server"
	"github.com/jrsteele09/go-edge-gateway/sessions/storefakes"
	"github.com/jrsteele09/go-edge-gateway/tenants"
	tenantrepofakes "github.com/jrsteele09/go-edge-gateway/tenants/repofakes"
	"github.com/jrsteele09/go-edge-gateway/token"
	"github.com/jrsteele09/go-edge-gateway/users"
	fakeuserrepo "github.com/jrsteele09/go-edge-gateway/users/repofake"
)

const (
	testTenantID   = "tenant-1"
	otherTenantID  = "tenant-2"
	testEmail      = "john.doe@example.com"
	testPassword   = "Password123"
	adminEmail     = "admin@example.com"
	testHost       = "localhost:8080"
	accessExpiry   = 15 * time.Minute
	refreshExpiry  = 7 * 24 * time.Hour
	defaultAuthMax = 1000
)

// testConfig satisfies config.Config with deterministic values, overriding
// the env-backed pieces the tests need to control.
type testConfig struct {
	config.EnvVars
	config.Cors
	config.Stores
	config.Federation
	routes        []config.RouteDescriptor
	authLimitMax  int
	strategyOrder []string
}

func (testConfig) GetAccessTokenSecret() string         { return "access-secret" }
func (testConfig) GetRefreshTokenSecret() string        { return "refresh-secret" }
func (testConfig) GetAccessTokenExpiry() time.Duration  { return accessExpiry }
func (testConfig) GetRefreshTokenExpiry() time.Duration { return refreshExpiry }
func (testConfig) GetTokenIssuer() string               { return "test-issuer" }

func (c testConfig) GetRoutes() []config.RouteDescriptor { return c.routes }
func (testConfig) GetProxyTimeout() time.Duration        { return 2 * time.Second }
func (c testConfig) GetTenantStrategyOrder() []string {
	if len(c.strategyOrder) > 0 {
		return c.strategyOrder
	}
	return []string{"token", "header", "subdomain", "query"}
}

func (testConfig) GetAuthLimitWindow() time.Duration { return time.Minute }
func (c testConfig) GetAuthLimitMax() int            { return c.authLimitMax }
func (testConfig) GetAPILimitWindow() time.Duration  { return time.Minute }
func (testConfig) GetAPILimitMax() int               { return 100 }
func (testConfig) GetEnableRateLimiting() bool       { return true }

type gatewayFixture struct {
	server     *server.Server
	userRepo   *fakeuserrepo.FakeUserRepo
	tenantRepo *tenantrepofakes.FakeTenantRepo
	store      *storefakes.FakeStore
}

func setupGateway(t *testing.T, cfg testConfig) *gatewayFixture {
	t.Helper()

	if cfg.authLimitMax == 0 {
		cfg.authLimitMax = defaultAuthMax
	}

	ur := fakeuserrepo.NewFakeUserRepo()
	tr := tenantrepofakes.NewFakeTenantRepo()
	store := storefakes.NewFakeStore(accessExpiry, refreshExpiry)
	tokens := token.NewService(cfg)

	ctx := t.Context()
	require.NoError(t, tr.Upsert(ctx, &tenants.Tenant{
		ID: testTenantID, Slug: "acme", Name: "Acme", Plan: "standard",
		Status: tenants.StatusActive, MaxUsers: 10,
	}))
	require.NoError(t, tr.Upsert(ctx, &tenants.Tenant{
		ID: otherTenantID, Slug: "globex", Name: "Globex", Plan: "standard",
		Status: tenants.StatusActive, MaxUsers: 10,
	}))
	require.NoError(t, tr.Upsert(ctx, &tenants.Tenant{
		ID: "tenant-suspended", Slug: "frozen", Name: "Frozen Corp", Plan: "standard",
		Status: tenants.StatusSuspended, MaxUsers: 10,
	}))

	hash, err := users.HashPassword(testPassword)
	require.NoError(t, err)
	require.NoError(t, ur.Upsert(ctx, &users.User{
		ID: "user-1", TenantID: testTenantID, Email: testEmail,
		PasswordHash: hash, Role: users.RoleUser,
	}))
	require.NoError(t, ur.Upsert(ctx, &users.User{
		ID: "admin-1", TenantID: testTenantID, Email: adminEmail,
		PasswordHash: hash, Role: users.RoleAdmin,
	}))
	require.NoError(t, ur.Upsert(ctx, &users.User{
		ID: "user-frozen", TenantID: "tenant-suspended", Email: "frozen@example.com",
		PasswordHash: hash, Role: users.RoleUser,
	}))

	authService, err := auth.NewService(auth.Repos{Users: ur, Tenants: tr}, tokens, store)
	require.NoError(t, err)

	srv, err := server.New(server.Deps{
		Config:   cfg,
		Auth:     authService,
		Tokens:   tokens,
		Resolver: tenants.NewResolver(tr, cfg.GetTenantStrategyOrder()),
		Users:    ur,
		Sessions: store,
		Limiter:  ratelimit.NewMemory(),
	})
	require.NoError(t, err)

	return &gatewayFixture{server: srv, userRepo: ur, tenantRepo: tr, store: store}
}

type envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Message string         `json:"message"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (f *gatewayFixture) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	}
	return rec, env
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Host = testHost
	req.Header.Set("Content-Type", "application/json")
	return req
}

// login performs a full login and returns the access token and the cookies
// the handler set.
func (f *gatewayFixture) login(t *testing.T, email, password string) (string, []*http.Cookie) {
	t.Helper()
	rec, env := f.do(t, jsonRequest(t, http.MethodPost, server.RouteAuthLogin, map[string]string{
		"email": email, "password": password,
	}))
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	accessToken, ok := env.Data["accessToken"].(string)
	require.True(t, ok)
	require.NotEmpty(t, accessToken)
	return accessToken, rec.Result().Cookies()
}

func authedRequest(t *testing.T, method, path, accessToken string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Host = testHost
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return req
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginIssuesCredentialsAndCookies(t *testing.T) {
	f := setupGateway(t, testConfig{})

	rec, env := f.do(t, jsonRequest(t, http.MethodPost, server.RouteAuthLogin, map[string]string{
		"email": testEmail, "password": testPassword,
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)
	require.NotEmpty(t, env.Data["accessToken"])
	require.EqualValues(t, accessExpiry.Seconds(), env.Data["expiresIn"])
	require.NotEmpty(t, env.Data["sessionId"])

	// The refresh token travels only as an HTTP-only cookie.
	require.NotContains(t, env.Data, "refreshToken")
	refreshCookie := cookieByName(rec.Result().Cookies(), server.CookieRefreshToken)
	require.NotNil(t, refreshCookie)
	require.True(t, refreshCookie.HttpOnly)
	require.NotEmpty(t, refreshCookie.Value)
	require.NotNil(t, cookieByName(rec.Result().Cookies(), server.CookieSessionID))
}

func TestLoginFailuresAreUniform(t *testing.T) {
	f := setupGateway(t, testConfig{})

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", testEmail, "WrongPassword1"},
		{"unknown user", "nobody@example.com", testPassword},
	}

	var messages []string
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := f.do(t, jsonRequest(t, http.MethodPost, server.RouteAuthLogin, map[string]string{
				"email": tc.email, "password": tc.password,
			}))
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.False(t, env.Success)
			require.Equal(t, "AUTHENTICATION_ERROR", env.Error.Code)
			messages = append(messages, env.Error.Message)
		})
	}

	// Unknown account and wrong password must be indistinguishable.
	require.Equal(t, messages[0], messages[1])
}

func TestLoginSuspendedTenantDenied(t *testing.T) {
	f := setupGateway(t, testConfig{})

	rec, env := f.do(t, jsonRequest(t, http.MethodPost, server.RouteAuthLogin, map[string]string{
		"email": "frozen@example.com", "password": testPassword,
	}))

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "AUTHORIZATION_ERROR", env.Error.Code)
}

func TestSuspensionLocksOutActiveSessions(t *testing.T) {
	f := setupGateway(t, testConfig{})
	accessToken, _ := f.login(t, testEmail, testPassword)

	// Suspend the tenant mid-session. The token and session are still live.
	require.NoError(t, f.tenantRepo.Upsert(t.Context(), &tenants.Tenant{
		ID: testTenantID, Slug: "acme", Name: "Acme", Plan: "standard",
		Status: tenants.StatusSuspended, MaxUsers: 10,
	}))

	rec, env := f.do(t, authedRequest(t, http.MethodGet, server.RouteAuthMe, accessToken))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "AUTHORIZATION_ERROR", env.Error.Code)
}

func TestRegisterCreatesUserUnderResolvedTenant(t *testing.T) {
	f := setupGateway(t, testConfig{})

	req := jsonRequest(t, http.MethodPost, server.RouteAuthRegister, map[string]string{
		"email": "new.user@example.com", "password": "Password123",
		"firstName": "New", "lastName": "User",
	})
	req.Header.Set(tenants.TenantIDHeader, testTenantID)

	rec, env := f.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	require.True(t, env.Success)

	user, ok := env.Data["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "new.user@example.com", user["email"])
	require.Equal(t, testTenantID, user["tenant_id"])
	require.Equal(t, string(users.RoleUser), user["role"])

	created, err := f.userRepo.GetByEmail(t.Context(), "new.user@example.com")
	require.NoError(t, err)
	require.Equal(t, testTenantID, created.TenantID)
}

func TestRegisterUnknownTenant(t *testing.T) {
	f := setupGateway(t, testConfig{})

	req := jsonRequest(t, http.MethodPost, server.RouteAuthRegister, map[string]string{
		"email": "new.user@example.com", "password": "Password123",
	})
	req.Header.Set(tenants.TenantIDHeader, "no-such-tenant")

	rec, env := f.do(t, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestMeRequiresAuth(t *testing.T) {
	f := setupGateway(t, testConfig{})

	req := httptest.NewRequest(http.MethodGet, server.RouteAuthMe, nil)
	req.Host = testHost
	rec, env := f.do(t, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "AUTHENTICATION_ERROR", env.Error.Code)

	accessToken, _ := f.login(t, testEmail, testPassword)
	rec, env = f.do(t, authedRequest(t, http.MethodGet, server.RouteAuthMe, accessToken))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, testEmail, env.Data["email"])
}

func TestLogoutRevokesSession(t *testing.T) {
	f := setupGateway(t, testConfig{})
	accessToken, _ := f.login(t, testEmail, testPassword)

	rec, _ := f.do(t, authedRequest(t, http.MethodPost, server.RouteAuthLogout, accessToken))
	require.Equal(t, http.StatusOK, rec.Code)

	// The token is still cryptographically valid but its session is gone.
	rec, env := f.do(t, authedRequest(t, http.MethodGet, server.RouteAuthMe, accessToken))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "AUTHENTICATION_ERROR", env.Error.Code)
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	f := setupGateway(t, testConfig{})

	first, _ := f.login(t, testEmail, testPassword)
	second, _ := f.login(t, testEmail, testPassword)

	rec, env := f.do(t, authedRequest(t, http.MethodPost, server.RouteAuthLogoutAll, first))
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 2, env.Data["revokedSessions"])

	rec, _ = f.do(t, authedRequest(t, http.MethodGet, server.RouteAuthMe, second))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshRotatesCredentialPair(t *testing.T) {
	f := setupGateway(t, testConfig{})
	_, cookies := f.login(t, testEmail, testPassword)
	refreshCookie := cookieByName(cookies, server.CookieRefreshToken)
	require.NotNil(t, refreshCookie)

	req := httptest.NewRequest(http.MethodPost, server.RouteAuthRefresh, nil)
	req.Host = testHost
	req.AddCookie(refreshCookie)
	rec, env := f.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	newAccess, ok := env.Data["accessToken"].(string)
	require.True(t, ok)
	rec, _ = f.do(t, authedRequest(t, http.MethodGet, server.RouteAuthMe, newAccess))
	require.Equal(t, http.StatusOK, rec.Code)

	// The rotated-out refresh token is dead.
	req = httptest.NewRequest(http.MethodPost, server.RouteAuthRefresh, nil)
	req.Host = testHost
	req.AddCookie(refreshCookie)
	rec, env = f.do(t, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "AUTHENTICATION_ERROR", env.Error.Code)
}

func TestRefreshFromRequestBody(t *testing.T) {
	f := setupGateway(t, testConfig{})
	_, cookies := f.login(t, testEmail, testPassword)
	refreshCookie := cookieByName(cookies, server.CookieRefreshToken)

	rec, env := f.do(t, jsonRequest(t, http.MethodPost, server.RouteAuthRefresh, map[string]string{
		"refreshToken": refreshCookie.Value,
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, env.Data["accessToken"])
}

func TestSessionsReportsActivity(t *testing.T) {
	f := setupGateway(t, testConfig{})
	accessToken, _ := f.login(t, testEmail, testPassword)
	_, _ = f.login(t, testEmail, testPassword)

	rec, env := f.do(t, authedRequest(t, http.MethodGet, server.RouteAuthSessions, accessToken))
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 2, env.Data["activeSessions"])
	require.NotEmpty(t, env.Data["currentSessionId"])
	require.Greater(t, env.Data["ttlSeconds"].(float64), float64(0))
}

func TestUserSessionAdminOwnership(t *testing.T) {
	f := setupGateway(t, testConfig{})

	userToken, _ := f.login(t, testEmail, testPassword)
	adminToken, _ := f.login(t, adminEmail, testPassword)

	// A regular user cannot inspect another user's sessions.
	rec, env := f.do(t, authedRequest(t, http.MethodGet, "/api/auth/users/admin-1/sessions", userToken))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "AUTHORIZATION_ERROR", env.Error.Code)

	// An admin can, for users within the same tenant.
	rec, env = f.do(t, authedRequest(t, http.MethodGet, "/api/auth/users/user-1/sessions", adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, env.Data["activeSessions"])

	// Admin force-logout of the user.
	rec, env = f.do(t, authedRequest(t, http.MethodPost, "/api/auth/users/user-1/logout-all", adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, env.Data["revokedSessions"])

	rec, _ = f.do(t, authedRequest(t, http.MethodGet, server.RouteAuthMe, userToken))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownRouteEnvelope(t *testing.T) {
	f := setupGateway(t, testConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/unknown/thing", nil)
	req.Host = testHost
	rec, env := f.do(t, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.False(t, env.Success)
	require.Equal(t, "NOT_FOUND", env.Error.Code)
	require.NotEmpty(t, rec.Header().Get(server.HeaderRequestID))
}

func TestAuthTierRateLimit(t *testing.T) {
	f := setupGateway(t, testConfig{authLimitMax: 3})

	var last *httptest.ResponseRecorder
	var lastEnv envelope
	for i := 0; i < 4; i++ {
		req := jsonRequest(t, http.MethodPost, server.RouteAuthLogin, map[string]string{
			"email": testEmail, "password": fmt.Sprintf("WrongPassword%d", i),
		})
		// All attempts share one client identity.
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		last, lastEnv = f.do(t, req)
	}

	require.Equal(t, http.StatusTooManyRequests, last.Code)
	require.Equal(t, "RATE_LIMIT_EXCEEDED", lastEnv.Error.Code)
	require.NotEmpty(t, last.Header().Get("Retry-After"))
}

func TestHealthEndpoints(t *testing.T) {
	f := setupGateway(t, testConfig{})

	for _, path := range []string{server.RouteHealth, server.RouteHealthLive, server.RouteHealthReady} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Host = testHost
		rec, env := f.do(t, req)
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.True(t, env.Success, path)
	}
}
