package handlers

import (
	"errors"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/secure-api/internal/api/dto"
	"github.com/spec-kit/secure-api/internal/auth"
	"github.com/spec-kit/secure-api/internal/service"
	apperrors "github.com/spec-kit/secure-api/pkg/util/errorutil"
)

// AuthHandler exposes registration and login.
type AuthHandler struct {
	auth   *service.AuthService
	logger *zap.Logger
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: authService, logger: logger}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return validationError(err)
	}

	result, err := h.auth.Register(c.UserContext(), req.ToInput())
	if err != nil {
		return mapAuthError(err)
	}

	c.Location(fmt.Sprintf("/api/v1/users/%s", result.User.ID))
	return c.Status(http.StatusCreated).JSON(dto.Success(http.StatusCreated,
		"User has been registered successfully", dto.NewTokenResponse(result)))
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return validationError(err)
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapAuthError(err)
	}

	return c.JSON(dto.Success(http.StatusOK, "User has been logged in successfully", dto.NewTokenResponse(result)))
}

// mapAuthError turns auth failures into client errors. Anything unrecognized is left
// for the error middleware to report as internal.
func mapAuthError(err error) error {
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr
	case errors.Is(err, auth.ErrAuthenticationFailed):
		return apperrors.NewUnauthorized("Bad credentials")
	case errors.Is(err, auth.ErrAccountUnusable):
		return apperrors.NewAccountUnusable(err.Error())
	default:
		return err
	}
}

func validationError(err error) error {
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]any, len(fieldErrs))
		for field, fieldErr := range fieldErrs {
			details[field] = fieldErr.Error()
		}
		return apperrors.NewValidationError("validation failed", details)
	}
	return apperrors.NewValidationError(err.Error(), nil)
}
