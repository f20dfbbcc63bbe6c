package auth

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/secure-api/internal/domain"
	apperrors "github.com/spec-kit/secure-api/pkg/util/errorutil"
)

// Authorizer gates every non-whitelisted route on an authenticated, usable identity.
// It must run after AuthMiddleware.
type Authorizer struct {
	whitelist *Whitelist
	logger    *zap.Logger
}

// NewAuthorizer constructs the route gate.
func NewAuthorizer(whitelist *Whitelist, logger *zap.Logger) *Authorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authorizer{whitelist: whitelist, logger: logger}
}

// Handle enforces authentication for protected routes.
func (a *Authorizer) Handle(c *fiber.Ctx) error {
	if a.whitelist.Matches(c.Path()) {
		return c.Next()
	}
	identity, ok := IdentityFromContext(c)
	if !ok {
		return Unauthorized(c, a.logger)
	}
	if err := AccountStateError(identity.User()); err != nil {
		a.logger.Info("unusable account denied", zap.String("subject", identity.Subject()), zap.String("path", c.Path()))
		return apperrors.NewAccountUnusable(err.Error())
	}
	return c.Next()
}

// RequireAnyAuthority ensures the caller holds at least one of roles.
func RequireAnyAuthority(logger *zap.Logger, roles ...domain.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return Unauthorized(c, logger)
		}
		if len(roles) == 0 {
			return c.Next()
		}
		for _, role := range roles {
			if identity.HasAuthority(string(role)) {
				return c.Next()
			}
		}
		return apperrors.NewForbidden("access denied")
	}
}
