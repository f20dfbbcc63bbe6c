package auth_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/secure-api/internal/auth"
	"github.com/spec-kit/secure-api/internal/domain"
)

var (
	testKey    = bytes.Repeat([]byte{0x2a}, 64)
	testSecret = base64.StdEncoding.EncodeToString(testKey)
	testNow    = time.Date(2026, time.March, 1, 12, 0, 0, 500_000_000, time.UTC)
)

// mockIdentityStore implements auth.IdentityStore for testing.
type mockIdentityStore struct {
	mock.Mock
}

func (m *mockIdentityStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// outcomeRecorder captures authentication outcomes.
type outcomeRecorder struct {
	outcomes []string
	reasons  []string
}

func (r *outcomeRecorder) RecordAuthOutcome(outcome, reason string) {
	r.outcomes = append(r.outcomes, outcome)
	r.reasons = append(r.reasons, reason)
}

func newTokenManager(t *testing.T, ttl time.Duration) *auth.TokenManager {
	t.Helper()
	tm, err := auth.NewTokenManager(testSecret, ttl)
	require.NoError(t, err)
	return tm
}

func testUser(email string) *domain.User {
	return &domain.User{
		ID:        "0d6f3a52-4c1e-4a57-9a53-0f1f1c2b3d4e",
		FirstName: "Alice",
		LastName:  "Example",
		Email:     email,
		Role:      domain.RoleUser,
		Active:    true,
	}
}
