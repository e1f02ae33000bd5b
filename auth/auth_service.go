// Package auth orchestrates credential issuance and session lifecycle for
// the gateway's first-party auth routes.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-edge-gateway/internal/errors"
	"github.com/jrsteele09/go-edge-gateway/sessions"
	"github.com/jrsteele09/go-edge-gateway/tenants"
	"github.com/jrsteele09/go-edge-gateway/token"
	"github.com/jrsteele09/go-edge-gateway/users"
)

// Repos holds the lookup-store dependencies for the Service.
type Repos struct {
	Users   users.UserRepo // Repository for user data
	Tenants tenants.Repo   // Repository for tenant data
}

// Service implements register/login/refresh/logout on top of the token
// service and the session store. It holds no mutable state of its own.
type Service struct {
	repos    Repos
	tokens   *token.Service
	sessions sessions.Store
	nowTime  func() time.Time // nowTime function (injectable for testing)
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// NewService initializes the auth service with its required dependencies.
func NewService(repos Repos, tokens *token.Service, sessionStore sessions.Store, options ...ServiceOption) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.Internal("[NewService] Users repo is required")
	}
	if repos.Tenants == nil {
		return nil, errors.Internal("[NewService] Tenants repo is required")
	}
	if tokens == nil {
		return nil, errors.Internal("[NewService] token service is required")
	}
	if sessionStore == nil {
		return nil, errors.Internal("[NewService] session store is required")
	}

	s := &Service{
		repos:    repos,
		tokens:   tokens,
		sessions: sessionStore,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// RegisterParams are the inputs to Register. TenantID must reference an
// already-resolved, validated tenant.
type RegisterParams struct {
	TenantID  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	IP        string
	UserAgent string
}

// Credentials is the outcome of a successful register/login/refresh: the
// authenticated user, the issued pair, and the new session id.
type Credentials struct {
	User      *users.User
	Pair      token.CredentialPair
	SessionID string
}

// Register creates a user under the tenant and starts a session.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*Credentials, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.Validation("a valid email address is required")
	}
	if err := users.ValidatePasswordStrength(params.Password); err != nil {
		return nil, errors.Wrap(errors.KindValidation, err.Error(), err)
	}

	tenant, err := s.repos.Tenants.Get(ctx, params.TenantID)
	if err != nil || tenant == nil {
		return nil, errors.Wrap(errors.KindNotFound, "tenant not found", errors.ErrTenantNotFound)
	}
	if err := tenants.Validate(tenant); err != nil {
		return nil, err
	}

	if existing, err := s.repos.Users.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, errors.Conflict("a user with this email already exists")
	}

	if tenant.MaxUsers > 0 {
		count, err := s.repos.Users.CountByTenant(ctx, tenant.ID)
		if err != nil {
			return nil, errors.Wrap(errors.KindInternal, "failed to check tenant capacity", err)
		}
		if count >= tenant.MaxUsers {
			return nil, errors.BusinessRule("tenant has reached its maximum number of users")
		}
	}

	hash, err := users.HashPassword(params.Password)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "failed to hash password", err)
	}

	user := &users.User{
		ID:           uuid.New().String(),
		TenantID:     tenant.ID,
		Email:        email,
		PasswordHash: hash,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Role:         users.RoleUser,
		CreatedAt:    s.nowTime(),
	}
	if err := s.repos.Users.Upsert(ctx, user); err != nil {
		return nil, errors.Wrap(errors.KindInternal, "failed to create user", err)
	}

	return s.startSession(ctx, user, params.IP, params.UserAgent)
}

// Login verifies the credentials and the user's tenant status, then starts
// a session.
func (s *Service) Login(ctx context.Context, email, password, ip, userAgent string) (*Credentials, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repos.Users.GetByEmail(ctx, email)
	if err != nil || user == nil {
		// Indistinguishable from a wrong password to the caller.
		return nil, errors.Wrap(errors.KindAuthentication, "invalid email or password", errors.ErrInvalidCredentials)
	}
	if !user.CheckPassword(password) {
		return nil, errors.Wrap(errors.KindAuthentication, "invalid email or password", errors.ErrInvalidCredentials)
	}
	if user.Blocked {
		return nil, errors.Wrap(errors.KindAuthentication, "account is blocked", errors.ErrUserBlocked)
	}

	tenant, err := s.repos.Tenants.Get(ctx, user.TenantID)
	if err != nil || tenant == nil {
		return nil, errors.Wrap(errors.KindNotFound, "tenant not found", errors.ErrTenantNotFound)
	}
	if err := tenants.Validate(tenant); err != nil {
		return nil, err
	}

	// Purely informational; a failed timestamp must not block login.
	_ = s.repos.Users.SetLastLogin(ctx, user.ID)

	return s.startSession(ctx, user, ip, userAgent)
}

// FederatedLogin starts a session for a user whose identity was verified by
// an upstream identity provider. The provider only proves who the caller
// is; the account must already exist under the tenant the flow named, so
// federation can never create or move users.
func (s *Service) FederatedLogin(ctx context.Context, tenantID, email, ip, userAgent string) (*Credentials, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repos.Users.GetByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, errors.Wrap(errors.KindAuthentication, "no account for this identity", errors.ErrUserNotFound)
	}
	if user.TenantID != tenantID {
		return nil, errors.Wrap(errors.KindAuthentication, "no account for this identity", errors.ErrUserNotFound)
	}
	if user.Blocked {
		return nil, errors.Wrap(errors.KindAuthentication, "account is blocked", errors.ErrUserBlocked)
	}

	tenant, err := s.repos.Tenants.Get(ctx, user.TenantID)
	if err != nil || tenant == nil {
		return nil, errors.Wrap(errors.KindNotFound, "tenant not found", errors.ErrTenantNotFound)
	}
	if err := tenants.Validate(tenant); err != nil {
		return nil, err
	}

	_ = s.repos.Users.SetLastLogin(ctx, user.ID)

	return s.startSession(ctx, user, ip, userAgent)
}

// Refresh rotates a credential pair. The presented refresh token must both
// verify and still have a live session record; a revoked token fails even
// when cryptographically valid.
func (s *Service) Refresh(ctx context.Context, refreshToken, ip, userAgent string) (*Credentials, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, errors.Wrap(errors.KindAuthentication, "invalid refresh token", err)
	}

	if _, err := s.sessions.GetByRefresh(ctx, refreshToken); err != nil {
		return nil, errors.Wrap(errors.KindAuthentication, "session has been revoked", errors.ErrSessionNotFound)
	}

	user, err := s.repos.Users.GetByID(ctx, claims.UserID)
	if err != nil || user == nil {
		return nil, errors.Wrap(errors.KindAuthentication, "user no longer exists", errors.ErrUserNotFound)
	}
	if user.Blocked {
		return nil, errors.Wrap(errors.KindAuthentication, "account is blocked", errors.ErrUserBlocked)
	}

	// A refresh token must not outlive its tenant's standing: a tenant
	// suspended mid-session cannot rotate fresh pairs for the remainder of
	// the refresh lifetime.
	tenant, err := s.repos.Tenants.Get(ctx, user.TenantID)
	if err != nil || tenant == nil {
		return nil, errors.Wrap(errors.KindNotFound, "tenant not found", errors.ErrTenantNotFound)
	}
	if err := tenants.Validate(tenant); err != nil {
		return nil, err
	}

	// Invalidate the presented refresh token. The paired access-keyed
	// record is short-lived and ages out on its own TTL.
	if err := s.sessions.Revoke(ctx, "", refreshToken, user.ID); err != nil {
		return nil, errors.Wrap(errors.KindInternal, "failed to rotate session", err)
	}

	return s.startSession(ctx, user, ip, userAgent)
}

// Logout revokes the current session.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken, userID string) error {
	if err := s.sessions.Revoke(ctx, accessToken, refreshToken, userID); err != nil {
		return errors.Wrap(errors.KindInternal, "failed to revoke session", err)
	}
	return nil
}

// LogoutAll revokes every active session for the user and returns the
// number invalidated.
func (s *Service) LogoutAll(ctx context.Context, userID string) (int, error) {
	count, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return 0, errors.Wrap(errors.KindInternal, "failed to revoke sessions", err)
	}
	return count, nil
}

// ActiveSessions returns the number of live sessions for the user.
func (s *Service) ActiveSessions(ctx context.Context, userID string) (int, error) {
	return s.sessions.CountActive(ctx, userID)
}

func (s *Service) startSession(ctx context.Context, user *users.User, ip, userAgent string) (*Credentials, error) {
	pair, err := s.tokens.IssuePair(token.Claims{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Role:     string(user.Role),
		Email:    user.Email,
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "failed to issue credentials", err)
	}

	now := s.nowTime()
	record := sessions.Record{
		SessionID:    uuid.New().String(),
		UserID:       user.ID,
		TenantID:     user.TenantID,
		Email:        user.Email,
		Role:         string(user.Role),
		CreatedAt:    now,
		LastActivity: now,
		IP:           ip,
		UserAgent:    userAgent,
	}
	if err := s.sessions.Create(ctx, pair.AccessToken, pair.RefreshToken, record); err != nil {
		return nil, errors.Wrap(errors.KindInternal, "failed to create session", err)
	}

	return &Credentials{User: user, Pair: pair, SessionID: record.SessionID}, nil
}
