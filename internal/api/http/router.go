package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/secure-api/internal/api/http/handlers"
	"github.com/spec-kit/secure-api/internal/auth"
	"github.com/spec-kit/secure-api/internal/domain"
	"github.com/spec-kit/secure-api/internal/observability"
	"github.com/spec-kit/secure-api/internal/ratelimit"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	Authorizer     *auth.Authorizer
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	AuthLimiter    *ratelimit.ClientLimiter
}

// NewApp returns the fiber app the routes are registered on. Routing is case sensitive
// so that a path reaches a handler exactly when the whitelist sees the same path.
func NewApp(name string) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               name,
		CaseSensitive:         true,
		DisableStartupMessage: true,
	})
}

// RegisterRoutes wires HTTP routes. Every request passes the authenticator and the
// authorizer first; whitelisted paths stay reachable without a token. A non-nil
// AuthLimiter rate limits the register and login routes per client address.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.AuthMiddleware.Handle, cfg.Authorizer.Handle)

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Handler())
	}

	api := app.Group("/api/v1")

	authGroup := api.Group("/auth")
	if cfg.AuthLimiter != nil {
		authGroup.Use(cfg.AuthLimiter.Handler())
	}
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	users := api.Group("/users")
	users.Get("/profile", auth.RequireAnyAuthority(cfg.Logger, domain.RoleUser, domain.RoleAdmin), cfg.Users.Profile)
}
