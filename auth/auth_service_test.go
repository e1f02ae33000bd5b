package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-edge-gateway/auth"
	"github.com/jrsteele09/go-edge-gateway/internal/errors"
	"github.com/jrsteele09/go-edge-gateway/sessions/storefakes"
	"github.com/jrsteele09/go-edge-gateway/tenants"
	tenantrepofakes "github.com/jrsteele09/go-edge-gateway/tenants/repofakes"
	"github.com/jrsteele09/go-edge-gateway/token"
	"github.com/jrsteele09/go-edge-gateway/users"
	fakeuserrepo "github.com/jrsteele09/go-edge-gateway/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testTenantID     = "tenant-1"
	testUserEmail    = "john.doe@example.com"
	testUserPassword = "Password123"
)

type testTokenConfig struct{}

func (testTokenConfig) GetAccessTokenSecret() string         { return "access-secret" }
func (testTokenConfig) GetRefreshTokenSecret() string        { return "refresh-secret" }
func (testTokenConfig) GetAccessTokenExpiry() time.Duration  { return 15 * time.Minute }
func (testTokenConfig) GetRefreshTokenExpiry() time.Duration { return 7 * 24 * time.Hour }
func (testTokenConfig) GetTokenIssuer() string               { return "test-issuer" }

// testFixture holds all test dependencies
type testFixture struct {
	userRepo   users.UserRepo
	tenantRepo tenants.Repo
	store      *storefakes.FakeStore
	tokens     *token.Service
	service    *auth.Service
}

// setupTestFixture creates a new test fixture with all dependencies
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	ur := fakeuserrepo.NewFakeUserRepo()
	tr := tenantrepofakes.NewFakeTenantRepo()
	store := storefakes.NewFakeStore(15*time.Minute, 7*24*time.Hour)
	tokens := token.NewService(testTokenConfig{})

	require.NoError(t, tr.Upsert(context.Background(), &tenants.Tenant{
		ID:       testTenantID,
		Slug:     "acme",
		Name:     "Acme",
		Plan:     "standard",
		Status:   tenants.StatusActive,
		MaxUsers: 3,
	}))

	service, err := auth.NewService(auth.Repos{Users: ur, Tenants: tr}, tokens, store)
	require.NoError(t, err)

	return &testFixture{
		userRepo:   ur,
		tenantRepo: tr,
		store:      store,
		tokens:     tokens,
		service:    service,
	}
}

func (f *testFixture) register(t *testing.T, email string) *auth.Credentials {
	t.Helper()
	creds, err := f.service.Register(context.Background(), auth.RegisterParams{
		TenantID:  testTenantID,
		Email:     email,
		Password:  testUserPassword,
		FirstName: "John",
		LastName:  "Doe",
	})
	require.NoError(t, err)
	return creds
}

func TestRegisterIssuesVerifiablePair(t *testing.T) {
	f := setupTestFixture(t)

	creds := f.register(t, testUserEmail)
	require.NotEmpty(t, creds.SessionID)

	claims, err := f.tokens.VerifyAccess(creds.Pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, creds.User.ID, claims.UserID)
	require.Equal(t, testTenantID, claims.TenantID)
	require.Equal(t, string(users.RoleUser), claims.Role)
	require.Equal(t, testUserEmail, claims.Email)

	record, err := f.store.GetByAccess(context.Background(), creds.Pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, creds.User.ID, record.UserID)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t, testUserEmail)

	_, err := f.service.Register(context.Background(), auth.RegisterParams{
		TenantID: testTenantID,
		Email:    testUserEmail,
		Password: testUserPassword,
	})
	require.Error(t, err)
	require.Equal(t, errors.KindConflict, errors.KindOf(err))
}

func TestRegisterEnforcesTenantCapacity(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t, "one@example.com")
	f.register(t, "two@example.com")
	f.register(t, "three@example.com")

	_, err := f.service.Register(context.Background(), auth.RegisterParams{
		TenantID: testTenantID,
		Email:    "four@example.com",
		Password: testUserPassword,
	})
	require.Error(t, err)
	require.Equal(t, errors.KindBusinessRule, errors.KindOf(err))
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Register(context.Background(), auth.RegisterParams{
		TenantID: testTenantID,
		Email:    testUserEmail,
		Password: "short",
	})
	require.Error(t, err)
	require.Equal(t, errors.KindValidation, errors.KindOf(err))
}

func TestLogin(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t, testUserEmail)

	creds, err := f.service.Login(context.Background(), testUserEmail, testUserPassword, "203.0.113.9", "go-test")
	require.NoError(t, err)

	claims, err := f.tokens.VerifyAccess(creds.Pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, testUserEmail, claims.Email)

	record, err := f.store.GetByAccess(context.Background(), creds.Pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "203.0.113.9", record.IP)
	require.Equal(t, "go-test", record.UserAgent)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t, testUserEmail)

	_, err := f.service.Login(context.Background(), testUserEmail, "WrongPassword1", "", "")
	require.ErrorIs(t, err, errors.ErrInvalidCredentials)
	require.Equal(t, errors.KindAuthentication, errors.KindOf(err))
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Login(context.Background(), "nobody@example.com", testUserPassword, "", "")
	require.ErrorIs(t, err, errors.ErrInvalidCredentials)
}

func TestLoginRejectsBlockedUser(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t, testUserEmail)
	require.NoError(t, f.userRepo.SetBlocked(context.Background(), testUserEmail, true))

	_, err := f.service.Login(context.Background(), testUserEmail, testUserPassword, "", "")
	require.ErrorIs(t, err, errors.ErrUserBlocked)
}

func TestLoginRejectsSuspendedTenant(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t, testUserEmail)

	require.NoError(t, f.tenantRepo.Upsert(context.Background(), &tenants.Tenant{
		ID:     testTenantID,
		Slug:   "acme",
		Status: tenants.StatusSuspended,
	}))

	_, err := f.service.Login(context.Background(), testUserEmail, testUserPassword, "", "")
	require.ErrorIs(t, err, errors.ErrTenantAccessDenied)
	require.Equal(t, errors.KindAuthorization, errors.KindOf(err))
}

func TestRefreshRotatesPair(t *testing.T) {
	f := setupTestFixture(t)
	creds := f.register(t, testUserEmail)

	rotated, err := f.service.Refresh(context.Background(), creds.Pair.RefreshToken, "", "")
	require.NoError(t, err)
	require.NotEqual(t, creds.Pair.RefreshToken, rotated.Pair.RefreshToken)

	// The old refresh token is dead after rotation.
	_, err = f.service.Refresh(context.Background(), creds.Pair.RefreshToken, "", "")
	require.Error(t, err)
	require.Equal(t, errors.KindAuthentication, errors.KindOf(err))

	// The new one works.
	_, err = f.service.Refresh(context.Background(), rotated.Pair.RefreshToken, "", "")
	require.NoError(t, err)
}

func TestRefreshRejectsSuspendedTenant(t *testing.T) {
	f := setupTestFixture(t)
	creds := f.register(t, testUserEmail)

	require.NoError(t, f.tenantRepo.Upsert(context.Background(), &tenants.Tenant{
		ID:     testTenantID,
		Slug:   "acme",
		Status: tenants.StatusSuspended,
	}))

	// A still-valid refresh token cannot rotate a new pair once the tenant
	// is suspended.
	_, err := f.service.Refresh(context.Background(), creds.Pair.RefreshToken, "", "")
	require.ErrorIs(t, err, errors.ErrTenantAccessDenied)
	require.Equal(t, errors.KindAuthorization, errors.KindOf(err))
}

func TestRefreshRejectsGarbageToken(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Refresh(context.Background(), "garbage", "", "")
	require.Error(t, err)
	require.Equal(t, errors.KindAuthentication, errors.KindOf(err))
}

func TestLogoutRevokesSession(t *testing.T) {
	f := setupTestFixture(t)
	creds := f.register(t, testUserEmail)

	require.NoError(t, f.service.Logout(context.Background(), creds.Pair.AccessToken, creds.Pair.RefreshToken, creds.User.ID))

	_, err := f.store.GetByAccess(context.Background(), creds.Pair.AccessToken)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	count, err := f.service.ActiveSessions(context.Background(), creds.User.ID)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestFederatedLoginIssuesLocalCredentials(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t, testUserEmail)

	creds, err := f.service.FederatedLogin(context.Background(), testTenantID, testUserEmail, "203.0.113.9", "test-agent")
	require.NoError(t, err)

	claims, err := f.tokens.VerifyAccess(creds.Pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, testUserEmail, claims.Email)
	require.Equal(t, testTenantID, claims.TenantID)
}

func TestFederatedLoginRejectsUnknownIdentity(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.FederatedLogin(context.Background(), testTenantID, "stranger@example.com", "", "")
	require.Error(t, err)
	require.Equal(t, errors.KindAuthentication, errors.KindOf(err))
}

func TestFederatedLoginRejectsTenantMismatch(t *testing.T) {
	f := setupTestFixture(t)
	f.register(t, testUserEmail)

	// The flow was started for a different tenant than the account's.
	_, err := f.service.FederatedLogin(context.Background(), "some-other-tenant", testUserEmail, "", "")
	require.Error(t, err)
	require.Equal(t, errors.KindAuthentication, errors.KindOf(err))
}

func TestLogoutAllReportsCountThenZero(t *testing.T) {
	f := setupTestFixture(t)
	creds := f.register(t, testUserEmail)
	_, err := f.service.Login(context.Background(), testUserEmail, testUserPassword, "", "")
	require.NoError(t, err)

	count, err := f.service.LogoutAll(context.Background(), creds.User.ID)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = f.service.LogoutAll(context.Background(), creds.User.ID)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
