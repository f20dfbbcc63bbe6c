package http_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apihttp "github.com/spec-kit/secure-api/internal/api/http"
	"github.com/spec-kit/secure-api/internal/api/http/handlers"
	"github.com/spec-kit/secure-api/internal/auth"
	"github.com/spec-kit/secure-api/internal/config"
	"github.com/spec-kit/secure-api/internal/observability"
	"github.com/spec-kit/secure-api/internal/ratelimit"
	"github.com/spec-kit/secure-api/internal/repository"
	"github.com/spec-kit/secure-api/internal/service"
)

type testServer struct {
	app    *fiber.App
	users  repository.UserRepository
	tokens *auth.TokenManager
	svc    *service.AuthService
}

func newTestServer(t *testing.T, authLimiter ...*ratelimit.ClientLimiter) *testServer {
	t.Helper()
	secret := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x5c}, 64))
	tokens, err := auth.NewTokenManager(secret, time.Hour)
	require.NoError(t, err)

	users := repository.NewMemoryUserRepository()
	metrics := observability.NewMetrics("test")
	svc := service.NewAuthService(service.AuthDependencies{
		Users:    users,
		Tokens:   tokens,
		Verifier: auth.NewBcryptVerifier(bcrypt.MinCost),
		Recorder: metrics,
	})

	app := apihttp.NewApp("secure-api-test")
	apihttp.RegisterMiddlewares(app, apihttp.MiddlewareConfig{Metrics: metrics, Timeout: 5 * time.Second})
	apihttp.RegisterRoutes(app, apihttp.RouteConfig{
		Health:         handlers.NewHealthHandler("secure-api", "test", nil),
		Auth:           handlers.NewAuthHandler(svc, nil),
		Users:          handlers.NewUsersHandler(svc),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, auth.NewIdentityResolver(users), nil, auth.WithOutcomeRecorder(metrics)),
		Authorizer:     auth.NewAuthorizer(auth.NewWhitelist(config.DefaultWhitelist), nil),
		Metrics:        metrics,
		AuthLimiter:    limiterOrNil(authLimiter),
	})
	return &testServer{app: app, users: users, tokens: tokens, svc: svc}
}

func limiterOrNil(limiters []*ratelimit.ClientLimiter) *ratelimit.ClientLimiter {
	if len(limiters) == 0 {
		return nil
	}
	return limiters[0]
}

func (s *testServer) do(t *testing.T, method, path string, body any, header string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp, decoded
}

func registerBody(email string) map[string]any {
	return map[string]any{
		"firstName":       "Alice",
		"lastName":        "Example",
		"email":           email,
		"mobile":          "+201012345678",
		"password":        "secret1",
		"confirmPassword": "secret1",
	}
}

func tokenFrom(t *testing.T, body map[string]any) string {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "missing data in %v", body)
	token, ok := data["token"].(string)
	require.True(t, ok)
	assert.Equal(t, "Bearer", data["type"])
	return token
}

func TestRegisterLoginProfile(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/api/v1/auth/register", registerBody("Alice@Example.com"), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 201, body["status"])
	assert.Equal(t, "User has been registered successfully", body["message"])
	user := body["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "/api/v1/users/"+user["id"].(string), resp.Header.Get("Location"))
	registerToken := tokenFrom(t, body)

	resp, body = s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]any{"email": "alice@example.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	loginToken := tokenFrom(t, body)

	for _, token := range []string{registerToken, loginToken} {
		resp, body = s.do(t, http.MethodGet, "/api/v1/users/profile", nil, "Bearer "+token)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		profile := body["data"].(map[string]any)
		assert.Equal(t, "alice@example.com", profile["email"])
		assert.Equal(t, "+201012345678", profile["mobile"])
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	payload := registerBody("alice@example.com")
	payload["firstName"] = "Al"
	payload["mobile"] = "01012345678"
	resp, body := s.do(t, http.MethodPost, "/api/v1/auth/register", payload, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "VALIDATION_FAILED", body["error"])
	details := body["data"].(map[string]any)
	assert.Contains(t, details, "firstName")
	assert.Contains(t, details, "mobile")

	resp, _ = s.do(t, http.MethodPost, "/api/v1/auth/register", registerBody("alice@example.com"), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, body = s.do(t, http.MethodPost, "/api/v1/auth/register", registerBody("alice@example.com"), "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", body["error"])
}

func TestLoginFailure(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", registerBody("a@b.com"), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for _, creds := range []map[string]any{
		{"email": "a@b.com", "password": "wrong-one"},
		{"email": "ghost@b.com", "password": "secret1"},
	} {
		resp, body := s.do(t, http.MethodPost, "/api/v1/auth/login", creds, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Bad credentials", body["message"])
		assert.Equal(t, "UNAUTHORIZED", body["error"])
	}
}

func TestProtectedRouteWithoutIdentity(t *testing.T) {
	s := newTestServer(t)

	for _, header := range []string{"", "Basic dXNlcjpwYXNz", "bearer abc", "Bearer "} {
		resp, body := s.do(t, http.MethodGet, "/api/v1/users/profile", nil, header)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, header)
		assert.Equal(t, map[string]any{
			"status":  float64(401),
			"error":   "Unauthorized",
			"message": "Full authentication is required to access this resource",
			"path":    "/api/v1/users/profile",
		}, body, header)
	}

	resp, body := s.do(t, http.MethodGet, "/health/live", nil, "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alive", body["status"])
}

func TestExpiredAndTamperedTokens(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", registerBody("a@b.com"), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	expired, _, err := s.tokens.Issue("a@b.com", []string{"ROLE_USER"}, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	resp, body := s.do(t, http.MethodGet, "/api/v1/users/profile", nil, "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "/api/v1/users/profile", body["path"])
	assert.Contains(t, body["message"], auth.ErrTokenExpired.Error())

	resp, body = s.do(t, http.MethodGet, "/api/v1/users/profile", nil, "Bearer not.a.token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body["message"], "malformed")

	resp, _ = s.do(t, http.MethodGet, "/health/live", nil, "Bearer "+expired)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnusableAccountIsForbidden(t *testing.T) {
	s := newTestServer(t)
	_, body := s.do(t, http.MethodPost, "/api/v1/auth/register", registerBody("a@b.com"), "")
	token := tokenFrom(t, body)

	ctx := context.Background()
	user, err := s.users.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	user.Blocked = true
	require.NoError(t, s.users.Save(ctx, user))

	resp, body := s.do(t, http.MethodGet, "/api/v1/users/profile", nil, "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "ACCOUNT_UNUSABLE", body["error"])
	assert.Equal(t, "User with email: a@b.com is not active or locked or blocked. Please contact the administrator.", body["message"])
}

func TestAdminCanReadProfile(t *testing.T) {
	s := newTestServer(t)
	_, err := s.svc.BootstrapAdmin(context.Background(), "admin@example.com", "admin123")
	require.NoError(t, err)

	_, body := s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]any{"email": "admin@example.com", "password": "admin123"}, "")
	token := tokenFrom(t, body)

	resp, body := s.do(t, http.MethodGet, "/api/v1/users/profile", nil, "Bearer "+token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Admin", body["data"].(map[string]any)["firstName"])
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/api/v1/auth/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["error"])

	resp, body = s.do(t, http.MethodGet, "/api/v1/unknown", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "/api/v1/unknown", body["path"])

	resp, body = s.do(t, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])

	resp, _ = s.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoutesAreCaseSensitive(t *testing.T) {
	s := newTestServer(t)
	resp, _ := s.do(t, http.MethodPost, "/api/v1/auth/register", registerBody("a@b.com"), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	creds := map[string]any{"email": "a@b.com", "password": "secret1"}
	resp, body := s.do(t, http.MethodPost, "/API/V1/AUTH/LOGIN", creds, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "/API/V1/AUTH/LOGIN", body["path"])
	assert.NotContains(t, body, "data")

	resp, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", creds, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	limiter := ratelimit.NewClientLimiter(ratelimit.ClientLimits{RPS: 0.01, Burst: 2})
	t.Cleanup(limiter.Close)
	s := newTestServer(t, limiter)

	for i := 0; i < 2; i++ {
		resp, _ := s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]any{"email": "a@b.com", "password": "nope"}, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i)
	}

	resp, body := s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]any{"email": "a@b.com", "password": "nope"}, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "TOO_MANY_REQUESTS", body["error"])
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))

	resp, _ = s.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
