package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spec-kit/secure-api/internal/domain"
)

// IdentityStore is the lookup the resolver needs from user storage.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

// IdentityResolver maps token subjects to user records.
type IdentityResolver struct {
	store IdentityStore
}

// NewIdentityResolver constructs a resolver over store.
func NewIdentityResolver(store IdentityStore) *IdentityResolver {
	return &IdentityResolver{store: store}
}

// Resolve loads the identity for subject. A missing record is ErrIdentityNotFound.
func (r *IdentityResolver) Resolve(ctx context.Context, subject string) (*domain.User, error) {
	user, err := r.store.FindByEmail(ctx, NormalizeSubject(subject))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	if user == nil {
		return nil, ErrIdentityNotFound
	}
	return user, nil
}

// NormalizeSubject returns the canonical form of an email used as token subject.
func NormalizeSubject(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}

// Capabilities converts the user's single role into its capability set.
func Capabilities(user *domain.User) []string {
	if user == nil || user.Role == "" {
		return nil
	}
	return []string{string(user.Role)}
}

// AccountNonLocked ignores the active flag.
func AccountNonLocked(user *domain.User) bool {
	return !user.Blocked && !user.Locked && !user.Deleted
}

// CredentialsNonExpired additionally requires an active account.
func CredentialsNonExpired(user *domain.User) bool {
	return AccountNonLocked(user) && user.Active
}

// Enabled reports an active, not deleted account.
func Enabled(user *domain.User) bool {
	return user.Active && !user.Deleted
}

// IsUsable is the single check applied before protected routes and token issuance.
func IsUsable(user *domain.User) bool {
	return user != nil && CredentialsNonExpired(user) && Enabled(user)
}

// AccountError describes an unusable account. It matches ErrAccountUnusable.
type AccountError struct {
	Message string
}

func (e *AccountError) Error() string {
	return e.Message
}

func (e *AccountError) Unwrap() error {
	return ErrAccountUnusable
}

// AccountStateError explains why an account is not usable, or returns nil.
func AccountStateError(user *domain.User) error {
	switch {
	case IsUsable(user):
		return nil
	case user == nil:
		return &AccountError{Message: "user not found"}
	case !user.Active || user.Locked || user.Blocked:
		return &AccountError{Message: fmt.Sprintf(
			"User with email: %s is not active or locked or blocked. Please contact the administrator.", user.Email)}
	default:
		return &AccountError{Message: fmt.Sprintf(
			"User with email: %s is deleted. Please contact the administrator.", user.Email)}
	}
}
