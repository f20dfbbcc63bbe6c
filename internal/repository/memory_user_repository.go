package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/secure-api/internal/domain"
)

// memoryUserRepository keeps users in process memory. It serves deployments without a
// database and tests. Returned users are copies.
type memoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	now   func() time.Time
}

// NewMemoryUserRepository returns an empty in-memory repository.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{users: make(map[string]*domain.User), now: time.Now}
}

func (r *memoryUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memoryUserRepository) ExistsByEmailOrMobile(ctx context.Context, email string, mobile *string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if conflicts(u, email, mobile) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryUserRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.users)), nil
}

func (r *memoryUserRepository) Save(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkRole(user.Role); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID != "" {
		if _, ok := r.users[user.ID]; !ok {
			return domain.ErrUserNotFound
		}
	}
	for id, u := range r.users {
		if id != user.ID && conflicts(u, user.Email, user.Mobile) {
			return ErrDuplicateUser
		}
	}

	now := r.now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.users[user.ID] = cloneUser(user)
	return nil
}

func conflicts(u *domain.User, email string, mobile *string) bool {
	if u.Email == email {
		return true
	}
	return mobile != nil && *mobile != "" && u.Mobile != nil && *u.Mobile == *mobile
}

func cloneUser(u *domain.User) *domain.User {
	clone := *u
	if u.Mobile != nil {
		m := *u.Mobile
		clone.Mobile = &m
	}
	return &clone
}
