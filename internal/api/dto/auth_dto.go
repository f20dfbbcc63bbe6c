package dto

import (
	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/spec-kit/secure-api/internal/domain"
	"github.com/spec-kit/secure-api/internal/service"
	"github.com/spec-kit/secure-api/internal/validate"
)

// RegisterRequest payload for new users.
type RegisterRequest struct {
	FirstName       string  `json:"firstName"`
	LastName        string  `json:"lastName"`
	Email           string  `json:"email"`
	Mobile          *string `json:"mobile,omitempty"`
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"confirmPassword"`
}

// Validate checks field formats.
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validate.Name()),
		validation.Field(&r.LastName, validation.Required, validate.Name()),
		validation.Field(&r.Email, validation.Required, validation.Length(1, validate.EmailMaxLength), validate.Email),
		validation.Field(&r.Mobile, validate.Mobile),
		validation.Field(&r.Password, validation.Required, validate.Password()),
		validation.Field(&r.ConfirmPassword, validation.Required, validate.Password()),
	)
}

// ToInput converts the payload for the auth service.
func (r RegisterRequest) ToInput() service.RegisterInput {
	return service.RegisterInput{
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Email:           r.Email,
		Mobile:          r.Mobile,
		Password:        r.Password,
		ConfirmPassword: r.ConfirmPassword,
	}
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks that both credentials are present.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// UserView is the public projection of an account.
type UserView struct {
	ID        string  `json:"id"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Mobile    *string `json:"mobile,omitempty"`
}

// NewUserView projects user.
func NewUserView(user *domain.User) UserView {
	return UserView{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Mobile:    user.Mobile,
	}
}

// TokenResponse standard response for auth endpoints.
type TokenResponse struct {
	User  UserView `json:"user"`
	Token string   `json:"token"`
	Type  string   `json:"type"`
}

// NewTokenResponse builds the token payload from an auth result.
func NewTokenResponse(result *service.AuthResult) TokenResponse {
	return TokenResponse{
		User:  NewUserView(result.User),
		Token: result.Token.Token,
		Type:  result.Token.Type,
	}
}
