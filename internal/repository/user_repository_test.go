package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/secure-api/internal/domain"
	"github.com/spec-kit/secure-api/internal/persistence"
	"github.com/spec-kit/secure-api/internal/repository"
)

func strPtr(s string) *string { return &s }

// exerciseUserRepository runs the behaviour every UserRepository must share.
func exerciseUserRepository(t *testing.T, repo repository.UserRepository) {
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	email := "user-" + suffix + "@example.com"
	mobile := strPtr(fmt.Sprintf("+2010%08d", time.Now().UnixNano()%1e8))

	before, err := repo.Count(ctx)
	require.NoError(t, err)

	_, err = repo.FindByEmail(ctx, email)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	user := domain.NewUser("Alice", "Example", email, nil, "hash", domain.RoleUser)
	require.NoError(t, repo.Save(ctx, user))
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	after, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	found, err := repo.FindByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, domain.RoleUser, found.Role)
	assert.True(t, found.Active)
	assert.False(t, found.Locked || found.Blocked || found.Deleted)
	assert.Nil(t, found.Mobile)

	exists, err := repo.ExistsByEmailOrMobile(ctx, email, nil)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByEmailOrMobile(ctx, "other-"+email, mobile)
	require.NoError(t, err)
	assert.False(t, exists)

	found.Locked = true
	found.Mobile = mobile
	require.NoError(t, repo.Save(ctx, found))

	reloaded, err := repo.FindByEmail(ctx, email)
	require.NoError(t, err)
	assert.True(t, reloaded.Locked)
	require.NotNil(t, reloaded.Mobile)
	assert.Equal(t, *mobile, *reloaded.Mobile)

	exists, err = repo.ExistsByEmailOrMobile(ctx, "other-"+email, mobile)
	require.NoError(t, err)
	assert.True(t, exists)

	dup := domain.NewUser("Bob", "Example", email, nil, "hash", domain.RoleUser)
	assert.ErrorIs(t, repo.Save(ctx, dup), repository.ErrDuplicateUser)

	missing := domain.NewUser("Carol", "Example", "carol-"+email, nil, "hash", domain.RoleUser)
	missing.ID = uuid.NewString()
	assert.ErrorIs(t, repo.Save(ctx, missing), domain.ErrUserNotFound)

	root := domain.NewUser("Dave", "Example", "dave-"+email, nil, "hash", domain.UserRole("ROLE_ROOT"))
	assert.ErrorIs(t, repo.Save(ctx, root), domain.ErrInvalidRole)
	_, err = repo.FindByEmail(ctx, "dave-"+email)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	found.Role = ""
	assert.ErrorIs(t, repo.Save(ctx, found), domain.ErrInvalidRole)
}

func TestMemoryUserRepository(t *testing.T) {
	exerciseUserRepository(t, repository.NewMemoryUserRepository())
}

func TestMemoryUserRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryUserRepository()
	user := domain.NewUser("Alice", "Example", "a@b.com", strPtr("+201012345678"), "hash", domain.RoleUser)
	require.NoError(t, repo.Save(ctx, user))

	first, err := repo.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	first.Blocked = true
	*first.Mobile = "changed"

	second, err := repo.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.False(t, second.Blocked)
	assert.Equal(t, "+201012345678", *second.Mobile)
}

func TestMemoryUserRepository_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := repository.NewMemoryUserRepository()

	_, err := repo.FindByEmail(ctx, "a@b.com")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = repo.Count(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPostgresUserRepository(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	require.NoError(t, persistence.RunMigrations(dsn, zap.NewNop()))

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	exerciseUserRepository(t, repository.NewUserRepository(pool))
}
