package config

import (
	"strings"
	"time"
)

// RouteDescriptor maps a path prefix onto a backend service. The gateway
// resolves inbound paths against the descriptor table by longest matching
// prefix.
type RouteDescriptor struct {
	ServiceName   string
	PathPrefix    string
	TargetBaseURL string
	StripPrefix   bool // strip PathPrefix before forwarding
	RateLimitTier string
	RequireAuth   bool
	Timeout       time.Duration // zero means the gateway default applies
}

type GatewayConfig interface {
	GetRoutes() []RouteDescriptor
	GetProxyTimeout() time.Duration
	GetTenantStrategyOrder() []string
}

type Gateway struct{}

var _ GatewayConfig = Gateway{}

// GetRoutes returns the static backend routing table. Target URLs come from
// per-service env vars so deployments can relocate backends without a
// rebuild.
func (Gateway) GetRoutes() []RouteDescriptor {
	return []RouteDescriptor{
		{
			ServiceName:   "billing",
			PathPrefix:    "/api/billing",
			TargetBaseURL: GetEnv("BILLING_SERVICE_URL", "http://localhost:8081"),
			RateLimitTier: "api",
			RequireAuth:   true,
		},
		{
			ServiceName:   "customers",
			PathPrefix:    "/api/customers",
			TargetBaseURL: GetEnv("CUSTOMER_SERVICE_URL", "http://localhost:8082"),
			RateLimitTier: "api",
			RequireAuth:   true,
		},
		{
			ServiceName:   "documents",
			PathPrefix:    "/api/documents",
			TargetBaseURL: GetEnv("DOCUMENT_SERVICE_URL", "http://localhost:8083"),
			StripPrefix:   true,
			RateLimitTier: "api",
			RequireAuth:   true,
		},
		{
			ServiceName:   "notifications",
			PathPrefix:    "/api/notifications",
			TargetBaseURL: GetEnv("NOTIFICATION_SERVICE_URL", "http://localhost:8084"),
			RateLimitTier: "api",
			RequireAuth:   true,
		},
	}
}

func (Gateway) GetProxyTimeout() time.Duration {
	return GetEnvDuration("PROXY_TIMEOUT", 30*time.Second)
}

// GetTenantStrategyOrder returns the order in which tenant resolution
// strategies are tried.
func (Gateway) GetTenantStrategyOrder() []string {
	order := GetEnv("TENANT_STRATEGY_ORDER", "token,header,subdomain,query")
	parts := strings.Split(order, ",")
	strategies := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			strategies = append(strategies, s)
		}
	}
	return strategies
}
