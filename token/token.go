// Package token issues and verifies the gateway's signed credential pairs.
package token

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-edge-gateway/internal/config"
	"github.com/jrsteele09/go-edge-gateway/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const (
	useAccess  = "access"
	useRefresh = "refresh"
)

// Claims are the identity claims embedded in both tokens of a pair.
type Claims struct {
	UserID   string
	TenantID string
	Role     string
	Email    string
}

// CredentialPair is a freshly issued access/refresh token pair.
type CredentialPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresIn  int64 // seconds
	RefreshExpiresIn int64 // seconds
}

// signedClaims is the wire shape of a token's claim set.
type signedClaims struct {
	UserID   string `json:"uid"`
	TenantID string `json:"tid"`
	Role     string `json:"role"`
	Email    string `json:"email,omitempty"`
	TokenUse string `json:"use"`
	jwtlib.RegisteredClaims
}

// Service signs and verifies credential pairs. Access and refresh tokens use
// distinct secrets and independent lifetimes. The service is stateless: a
// pure function of its configuration, the clock, and its inputs.
type Service struct {
	config config.TokenConfig
}

// NewService creates a token service from the token configuration.
func NewService(cfg config.TokenConfig) *Service {
	return &Service{config: cfg}
}

// IssuePair signs a new access/refresh pair embedding the given claims.
func (s *Service) IssuePair(claims Claims) (CredentialPair, error) {
	accessExpiry := s.config.GetAccessTokenExpiry()
	refreshExpiry := s.config.GetRefreshTokenExpiry()

	accessToken, err := s.sign(claims, useAccess, accessExpiry, s.config.GetAccessTokenSecret())
	if err != nil {
		return CredentialPair{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken, err := s.sign(claims, useRefresh, refreshExpiry, s.config.GetRefreshTokenSecret())
	if err != nil {
		return CredentialPair{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return CredentialPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresIn:  int64(accessExpiry.Seconds()),
		RefreshExpiresIn: int64(refreshExpiry.Seconds()),
	}, nil
}

// VerifyAccess verifies an access token's signature and expiry and returns
// the claims it carries.
func (s *Service) VerifyAccess(tokenStr string) (Claims, error) {
	return s.verify(tokenStr, useAccess, s.config.GetAccessTokenSecret())
}

// VerifyRefresh verifies a refresh token's signature and expiry and returns
// the claims it carries.
func (s *Service) VerifyRefresh(tokenStr string) (Claims, error) {
	return s.verify(tokenStr, useRefresh, s.config.GetRefreshTokenSecret())
}

func (s *Service) sign(claims Claims, use string, expiry time.Duration, secret string) (string, error) {
	now := NowTimeFunc()
	sc := signedClaims{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		Role:     claims.Role,
		Email:    claims.Email,
		TokenUse: use,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    s.config.GetTokenIssuer(),
			Subject:   claims.UserID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(expiry)),
			ID:        uuid.New().String(),
		},
	}

	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, sc).SignedString([]byte(secret))
}

func (s *Service) verify(tokenStr, use, secret string) (Claims, error) {
	var sc signedClaims
	_, err := jwtlib.ParseWithClaims(tokenStr, &sc,
		func(t *jwtlib.Token) (any, error) {
			if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		},
		// Expiry is compared against the wall clock with no grace period.
		jwtlib.WithTimeFunc(func() time.Time { return NowTimeFunc() }),
		jwtlib.WithIssuer(s.config.GetTokenIssuer()),
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return Claims{}, errors.Wrapf(errors.ErrExpiredCredential, "token verification")
		}
		return Claims{}, errors.Wrapf(errors.ErrMalformedCredential, "token verification: %v", err)
	}

	// A refresh token must never pass access verification even if the two
	// secrets are misconfigured to the same value.
	if sc.TokenUse != use {
		return Claims{}, errors.Wrapf(errors.ErrMalformedCredential, "token use %q, expected %q", sc.TokenUse, use)
	}

	return Claims{
		UserID:   sc.UserID,
		TenantID: sc.TenantID,
		Role:     sc.Role,
		Email:    sc.Email,
	}, nil
}
