package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-edge-gateway/auth"
	"github.com/jrsteele09/go-edge-gateway/internal/config"
	"github.com/jrsteele09/go-edge-gateway/ratelimit"
	"github.com/jrsteele09/go-edge-gateway/server/authflowrepo"
	"github.com/jrsteele09/go-edge-gateway/sessions"
	"github.com/jrsteele09/go-edge-gateway/tenants"
	"github.com/jrsteele09/go-edge-gateway/token"
	"github.com/jrsteele09/go-edge-gateway/users"
)

// Deps holds every external dependency the gateway needs. All handles are
// constructed once at process start and passed in explicitly; the server
// keeps no ambient singletons.
type Deps struct {
	Config   config.Config
	Auth     *auth.Service
	Tokens   *token.Service
	Resolver *tenants.Resolver
	Users    users.UserRepo
	Sessions sessions.Store
	Limiter  ratelimit.Limiter

	// DB and Redis are optional readiness-probe handles. Nil handles are
	// reported as "skipped" by /health/ready.
	DB    *pgxpool.Pool
	Redis *redis.Client
}

type Server struct {
	env         string // Environment (e.g., "DEV", "production")
	mux         *http.ServeMux
	routes      []string
	config      config.Config
	auth        *auth.Service
	tokens      *token.Service
	resolver    *tenants.Resolver
	users       users.UserRepo
	sessions    sessions.Store
	limiter     ratelimit.Limiter
	tiers       map[string]ratelimit.Tier
	proxyClient *http.Client
	db          *pgxpool.Pool
	redis       *redis.Client

	authState authflowrepo.Repo

	oidc     *oidcFederation
	oidcOnce sync.Once
}

func New(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("[Server New] config is required")
	}
	if deps.Auth == nil || deps.Tokens == nil || deps.Resolver == nil {
		return nil, fmt.Errorf("[Server New] auth, token, and resolver dependencies are required")
	}
	if deps.Users == nil || deps.Sessions == nil || deps.Limiter == nil {
		return nil, fmt.Errorf("[Server New] user repo, session store, and limiter are required")
	}

	s := &Server{
		env:       deps.Config.GetEnv(),
		mux:       http.NewServeMux(),
		config:    deps.Config,
		auth:      deps.Auth,
		tokens:    deps.Tokens,
		resolver:  deps.Resolver,
		users:     deps.Users,
		sessions:  deps.Sessions,
		limiter:   deps.Limiter,
		db:        deps.DB,
		redis:     deps.Redis,
		authState: authflowrepo.NewInMemoryRepo(),
		tiers: map[string]ratelimit.Tier{
			"auth": {Name: "auth", Window: deps.Config.GetAuthLimitWindow(), Max: deps.Config.GetAuthLimitMax()},
			"api":  {Name: "api", Window: deps.Config.GetAPILimitWindow(), Max: deps.Config.GetAPILimitMax()},
		},
		// The proxy client carries no client-level timeout; per-route
		// deadlines come from the request context.
		proxyClient: &http.Client{},
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	for _, route := range s.routes {
		log.Debug().Str("route", route).Msg("registered route")
	}
}
