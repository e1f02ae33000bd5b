package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-edge-gateway/auth"
	"github.com/jrsteele09/go-edge-gateway/internal/config"
	"github.com/jrsteele09/go-edge-gateway/ratelimit"
	"github.com/jrsteele09/go-edge-gateway/server"
	"github.com/jrsteele09/go-edge-gateway/sessions"
	"github.com/jrsteele09/go-edge-gateway/tenants"
	tenantspg "github.com/jrsteele09/go-edge-gateway/tenants/postgres"
	"github.com/jrsteele09/go-edge-gateway/token"
	userspg "github.com/jrsteele09/go-edge-gateway/users/postgres"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("error running gateway")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("gateway stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	configureLogging(c)
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, c.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("pgxpool.New: %w", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     c.GetRedisAddr(),
		Password: c.GetRedisPassword(),
		DB:       c.GetRedisDB(),
	})
	defer redisClient.Close()

	// The session store needs the shared cache; the rate limiter can fall
	// back to per-process counters when the cache is down.
	var limiter ratelimit.Limiter = ratelimit.NewRedis(redisClient)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, falling back to in-process rate limiting")
		limiter = ratelimit.NewMemory()
	}

	tokens := token.NewService(c)
	sessionStore := sessions.NewRedisStore(redisClient, c.GetAccessTokenExpiry(), c.GetRefreshTokenExpiry())
	userRepo := userspg.NewRepo(pool)
	tenantRepo := tenantspg.NewRepo(pool)
	resolver := tenants.NewResolver(tenantRepo, c.GetTenantStrategyOrder())

	authService, err := auth.NewService(auth.Repos{Users: userRepo, Tenants: tenantRepo}, tokens, sessionStore)
	if err != nil {
		return fmt.Errorf("auth.NewService: %w", err)
	}

	gateway, err := server.New(server.Deps{
		Config:   c,
		Auth:     authService,
		Tokens:   tokens,
		Resolver: resolver,
		Users:    userRepo,
		Sessions: sessionStore,
		Limiter:  limiter,
		DB:       pool,
		Redis:    redisClient,
	})
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: gateway}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func configureLogging(c config.Config) {
	level, err := zerolog.ParseLevel(config.GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func listenAndServe(httpServer *http.Server) error {
	log.Info().Str("addr", httpServer.Addr).Msg("gateway listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
