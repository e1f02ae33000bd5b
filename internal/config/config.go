package config

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	StoreConfig
	GatewayConfig
	RateLimitConfig
	FederationConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Tokens
	Stores
	Gateway
	RateLimits
	Federation
}

func New() Config {
	return mainConfig{}
}
