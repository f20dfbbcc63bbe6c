package domain

import (
	"errors"
	"time"
)

var (
	// ErrUserNotFound is returned by user stores when no record matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidRole is returned by user stores for a role outside RoleAdmin and RoleUser.
	ErrInvalidRole = errors.New("invalid user role")
)

// UserRole is the single authority granted to a user.
type UserRole string

const (
	RoleAdmin UserRole = "ROLE_ADMIN"
	RoleUser  UserRole = "ROLE_USER"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is the identity record behind a bearer token. Email is the stable key.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	Mobile       *string
	PasswordHash string
	Role         UserRole
	Active       bool
	Locked       bool
	Blocked      bool
	Deleted      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser returns a user with the default account flags: active and not locked,
// blocked or deleted.
func NewUser(firstName, lastName, email string, mobile *string, passwordHash string, role UserRole) *User {
	return &User{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		Mobile:       mobile,
		PasswordHash: passwordHash,
		Role:         role,
		Active:       true,
	}
}
