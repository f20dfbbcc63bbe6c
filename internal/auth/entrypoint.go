package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const defaultUnauthorizedMessage = "Full authentication is required to access this resource"

// UnauthorizedResponse is the body returned for protected routes without a valid
// identity. Clients depend on this exact shape.
type UnauthorizedResponse struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// Unauthorized writes the 401 rejection. The message is the recorded failure when it is
// a token or identity rejection; anything else, such as a store error, only reaches
// the log.
func Unauthorized(c *fiber.Ctx, logger *zap.Logger) error {
	message := defaultUnauthorizedMessage
	failure, failed := FailureFromContext(c)
	if failed && clientVisible(failure) {
		message = failure.Error()
	}
	if logger != nil {
		fields := []zap.Field{zap.String("path", c.Path()), zap.String("message", message)}
		if failed {
			fields = append(fields, zap.Error(failure))
		}
		logger.Info("unauthorized request", fields...)
	}
	return c.Status(http.StatusUnauthorized).JSON(UnauthorizedResponse{
		Status:  http.StatusUnauthorized,
		Error:   http.StatusText(http.StatusUnauthorized),
		Message: message,
		Path:    c.Path(),
	})
}

func clientVisible(err error) bool {
	return TokenErrorKindOf(err) != 0 ||
		errors.Is(err, ErrIdentityNotFound) ||
		errors.Is(err, ErrSubjectMismatch)
}
