package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/secure-api/internal/api/http"
	"github.com/spec-kit/secure-api/internal/api/http/handlers"
	"github.com/spec-kit/secure-api/internal/auth"
	"github.com/spec-kit/secure-api/internal/config"
	"github.com/spec-kit/secure-api/internal/events"
	"github.com/spec-kit/secure-api/internal/observability"
	"github.com/spec-kit/secure-api/internal/persistence"
	"github.com/spec-kit/secure-api/internal/ratelimit"
	"github.com/spec-kit/secure-api/internal/repository"
	"github.com/spec-kit/secure-api/internal/service"
	"github.com/spec-kit/secure-api/internal/worker"
)

const (
	auditQueueSize  = 256
	shutdownTimeout = 10 * time.Second
)

func runServer(ctx context.Context) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()

	var users repository.UserRepository
	if pg.Enabled() {
		users = repository.NewUserRepository(pg.Pool)
	} else {
		users = repository.NewMemoryUserRepository()
	}

	throttle := newLoginThrottle(cfg.Auth, rdb, logger)
	if closer, ok := throttle.(interface{ Close() }); ok {
		defer closer.Close()
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	if err != nil {
		var cfgErr *auth.ConfigurationError
		if errors.As(err, &cfgErr) {
			logger.Fatal("invalid token signing configuration", zap.Error(err))
		}
		return fmt.Errorf("token manager: %w", err)
	}

	metrics := observability.NewMetrics("secure_api")

	authLimiter := ratelimit.NewClientLimiter(ratelimit.ClientLimits{
		RPS:   cfg.Auth.RateLimitRPS,
		Burst: cfg.Auth.RateLimitBurst,
	})
	defer authLimiter.Close()

	dispatcher := events.NewInMemoryDispatcher(logger)
	audit := service.NewAuditService(logger, metrics)
	auditWorker := worker.StartAuditWorker(dispatcher, audit, logger, auditQueueSize)

	authService := service.NewAuthService(service.AuthDependencies{
		Users:      users,
		Tokens:     tokens,
		Verifier:   auth.NewBcryptVerifier(cfg.Auth.BcryptCost),
		Throttle:   throttle,
		Dispatcher: dispatcher,
		Recorder:   metrics,
		Logger:     logger,
	})

	if admin, err := authService.BootstrapAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		logger.Fatal("failed to bootstrap admin account", zap.Error(err))
	} else if admin != nil {
		logger.Info("admin account created", zap.String("email", admin.Email))
	}

	authMiddleware := auth.NewAuthMiddleware(tokens, auth.NewIdentityResolver(users), logger,
		auth.WithOutcomeRecorder(metrics))
	authorizer := auth.NewAuthorizer(auth.NewWhitelist(cfg.Auth.Whitelist), logger)

	app := httptransport.NewApp(cfg.App.Name)
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:  logger,
		Metrics: metrics,
		Timeout: cfg.App.RequestTimeout(),
		CORS:    cfg.CORS,
	})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readinessDeps(pg, rdb)),
		Auth:           handlers.NewAuthHandler(authService, logger),
		Users:          handlers.NewUsersHandler(authService),
		AuthMiddleware: authMiddleware,
		Authorizer:     authorizer,
		Metrics:        metrics,
		Logger:         logger,
		AuthLimiter:    authLimiter,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(ctx, logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := auditWorker.Stop(stopCtx); err != nil {
		logger.Warn("audit worker shutdown", zap.Error(err))
	}
	return nil
}

// newLoginThrottle prefers Redis so that failures are shared between replicas.
func newLoginThrottle(cfg config.AuthConfig, rdb *persistence.Redis, logger *zap.Logger) ratelimit.LoginThrottle {
	settings := ratelimit.Settings{MaxAttempts: cfg.LoginMaxAttempts, Window: cfg.LoginWindow}
	switch {
	case cfg.LoginMaxAttempts == 0:
		logger.Info("login throttling disabled")
		return ratelimit.Disabled{}
	case rdb.Reachable():
		return ratelimit.NewRedisThrottle(rdb.Client, settings)
	default:
		logger.Info("using in-process login throttle")
		return ratelimit.NewMemoryThrottle(settings)
	}
}

func readinessDeps(pg *persistence.Postgres, rdb *persistence.Redis) map[string]handlers.Pinger {
	deps := map[string]handlers.Pinger{}
	if pg.Enabled() {
		deps["postgres"] = pg
	}
	if rdb.Client != nil {
		deps["redis"] = rdb
	}
	return deps
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down", zap.Error(ctx.Err()))
	}
}
