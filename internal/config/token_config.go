package config

import "time"

type TokenConfig interface {
	GetAccessTokenSecret() string
	GetRefreshTokenSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetTokenIssuer() string
}

type Tokens struct{}

var _ TokenConfig = Tokens{}

func (Tokens) GetAccessTokenSecret() string {
	return GetEnv("ACCESS_TOKEN_SECRET", "dev-access-secret-change-me")
}

func (Tokens) GetRefreshTokenSecret() string {
	return GetEnv("REFRESH_TOKEN_SECRET", "dev-refresh-secret-change-me")
}

func (Tokens) GetAccessTokenExpiry() time.Duration {
	return GetEnvDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute)
}

func (Tokens) GetRefreshTokenExpiry() time.Duration {
	return GetEnvDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour)
}

func (Tokens) GetTokenIssuer() string {
	return GetEnv("TOKEN_ISSUER", "go-edge-gateway")
}
