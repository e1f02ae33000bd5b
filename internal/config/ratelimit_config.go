package config

import "time"

type RateLimitConfig interface {
	GetAuthLimitWindow() time.Duration
	GetAuthLimitMax() int
	GetAPILimitWindow() time.Duration
	GetAPILimitMax() int
	GetEnableRateLimiting() bool
}

type RateLimits struct{}

var _ RateLimitConfig = RateLimits{}

// The auth tier guards credential-issuing routes and is deliberately strict.
func (RateLimits) GetAuthLimitWindow() time.Duration {
	return GetEnvDuration("AUTH_RATE_LIMIT_WINDOW", 15*time.Minute)
}

func (RateLimits) GetAuthLimitMax() int {
	return GetEnvInt("AUTH_RATE_LIMIT_MAX", 20)
}

func (RateLimits) GetAPILimitWindow() time.Duration {
	return GetEnvDuration("API_RATE_LIMIT_WINDOW", 15*time.Minute)
}

func (RateLimits) GetAPILimitMax() int {
	return GetEnvInt("API_RATE_LIMIT_MAX", 900)
}

func (RateLimits) GetEnableRateLimiting() bool {
	return GetEnv("ENABLE_RATE_LIMITING", "true") == "true"
}
