package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/secure-api/internal/domain"
)

const (
	identityKey = "auth_identity"
	attemptKey  = "auth_attempted"
	failureKey  = "auth_failure"
)

// IdentityContext is the authenticated caller of a single request. It is built once
// by AuthMiddleware and never modified afterwards.
type IdentityContext struct {
	user         *domain.User
	capabilities []string
}

func newIdentityContext(user *domain.User) *IdentityContext {
	return &IdentityContext{user: user, capabilities: Capabilities(user)}
}

// User returns the resolved identity record.
func (ic *IdentityContext) User() *domain.User {
	return ic.user
}

// Subject returns the identity key the request was authenticated as.
func (ic *IdentityContext) Subject() string {
	return ic.user.Email
}

// Capabilities returns a copy of the granted role labels.
func (ic *IdentityContext) Capabilities() []string {
	return append([]string(nil), ic.capabilities...)
}

// HasAuthority reports whether role is in the capability set.
func (ic *IdentityContext) HasAuthority(role string) bool {
	for _, c := range ic.capabilities {
		if c == role {
			return true
		}
	}
	return false
}

// IdentityFromContext retrieves the authenticated identity of the request.
func IdentityFromContext(c *fiber.Ctx) (*IdentityContext, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*IdentityContext)
	return identity, ok && identity != nil
}

// FailureFromContext returns why authentication rejected the request's token, if it did.
func FailureFromContext(c *fiber.Ctx) (error, bool) {
	err, ok := c.Locals(failureKey).(error)
	return err, ok
}
