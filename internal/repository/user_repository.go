package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/secure-api/internal/domain"
)

// ErrDuplicateUser is returned by Save when the email or mobile is already taken.
var ErrDuplicateUser = errors.New("user with this email or mobile already exists")

const uniqueViolation = "23505"

// UserRepository defines persistence access for accounts. Emails are stored and looked
// up in their normalized (lowercase) form.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmailOrMobile(ctx context.Context, email string, mobile *string) (bool, error)
	Count(ctx context.Context) (int64, error)
	// Save inserts users without an ID and updates the others.
	Save(ctx context.Context, user *domain.User) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, first_name, last_name, email, mobile, password_hash, role,
        is_active, is_locked, is_blocked, is_deleted, created_at, updated_at`

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`

	var user domain.User
	if err := r.pool.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Mobile,
		&user.PasswordHash,
		&user.Role,
		&user.Active,
		&user.Locked,
		&user.Blocked,
		&user.Deleted,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	if err := checkRole(user.Role); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ExistsByEmailOrMobile(ctx context.Context, email string, mobile *string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM users WHERE email=$1 OR ($2::text IS NOT NULL AND mobile=$2)
        )`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, email, mobile).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *userRepository) Save(ctx context.Context, user *domain.User) error {
	if err := checkRole(user.Role); err != nil {
		return err
	}
	if user.ID == "" {
		return r.create(ctx, user)
	}
	return r.update(ctx, user)
}

func (r *userRepository) create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, first_name, last_name, email, mobile, password_hash, role,
            is_active, is_locked, is_blocked, is_deleted)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING created_at, updated_at`

	id := uuid.NewString()
	err := r.pool.QueryRow(ctx, query,
		id,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Mobile,
		user.PasswordHash,
		user.Role,
		user.Active,
		user.Locked,
		user.Blocked,
		user.Deleted,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	user.ID = id
	return nil
}

func (r *userRepository) update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET first_name=$1, last_name=$2, email=$3, mobile=$4, password_hash=$5,
            role=$6, is_active=$7, is_locked=$8, is_blocked=$9, is_deleted=$10, updated_at=NOW()
        WHERE id=$11
        RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Mobile,
		user.PasswordHash,
		user.Role,
		user.Active,
		user.Locked,
		user.Blocked,
		user.Deleted,
		user.ID,
	).Scan(&user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrUserNotFound
	}
	return mapWriteError(err)
}

func checkRole(role domain.UserRole) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidRole, role)
	}
	return nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateUser
	}
	return err
}
