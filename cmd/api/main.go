// Command api serves the bug tracker HTTP API.
//
//	@title						Bug Tracker API
//	@version					1.0
//	@description				Report, triage and resolve bugs.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/99minutos/bug-tracker/internal/api"
	"github.com/99minutos/bug-tracker/internal/api/handler"
	"github.com/99minutos/bug-tracker/internal/api/metrics"
	"github.com/99minutos/bug-tracker/internal/core/policy"
	"github.com/99minutos/bug-tracker/internal/core/service"
	"github.com/99minutos/bug-tracker/internal/infrastructure/config"
	mongodb "github.com/99minutos/bug-tracker/internal/infrastructure/db/mongo"
	redisdb "github.com/99minutos/bug-tracker/internal/infrastructure/db/redis"
	"github.com/99minutos/bug-tracker/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "api:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "bug-tracker",
	})

	client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer rdb.Close()

	users := mongodb.NewUserRepository(db)
	bugs := mongodb.NewBugRepository(db)
	if err := mongodb.EnsureIndexes(ctx, users, bugs); err != nil {
		return err
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("mongo ready")

	authz, err := policy.NewRegoAuthorizer(ctx)
	if err != nil {
		return err
	}

	denylist := redisdb.NewTokenDenylist(rdb)
	authService := service.NewAuthService(users, denylist, cfg.JWTSecret, service.AuthOptions{
		TokenTTL:    cfg.JWTTTL,
		BcryptCost:  cfg.BcryptCost,
		AdminEmails: cfg.AdminEmails,
	}, log)
	bugService := service.NewBugService(bugs, users, metrics.InstrumentAuthorizer(authz), log)

	e := api.NewRouter(api.Options{
		JWTSecret:          cfg.JWTSecret,
		CORSAllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		AuthRateLimit:      cfg.HTTP.AuthRateLimit,
		AuthRateBurst:      cfg.HTTP.AuthRateBurst,
	}, api.Dependencies{
		Auth:     authService,
		Bugs:     bugService,
		Denylist: denylist,
		Readiness: map[string]handler.DependencyCheck{
			"mongodb": func(ctx context.Context) error { return client.Ping(ctx, nil) },
			"redis":   func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			"policy":  authz.HealthCheck,
		},
	}, log)

	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.Server.IdleTimeout = 120 * time.Second

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}
