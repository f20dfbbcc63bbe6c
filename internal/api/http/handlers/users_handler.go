package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/secure-api/internal/api/dto"
	"github.com/spec-kit/secure-api/internal/auth"
	"github.com/spec-kit/secure-api/internal/service"
)

// UsersHandler serves the authenticated caller's own account.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// Profile handles GET /api/v1/users/profile.
func (h *UsersHandler) Profile(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return auth.Unauthorized(c, nil)
	}

	user, err := h.auth.Profile(c.UserContext(), identity.Subject())
	if err != nil {
		return err
	}
	return c.JSON(dto.Success(http.StatusOK, "User has been retrieved successfully", dto.NewUserView(user)))
}
