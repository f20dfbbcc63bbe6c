package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/secure-api/internal/auth"
	"github.com/spec-kit/secure-api/internal/domain"
	"github.com/spec-kit/secure-api/internal/events"
	"github.com/spec-kit/secure-api/internal/ratelimit"
	"github.com/spec-kit/secure-api/internal/repository"
	"github.com/spec-kit/secure-api/internal/validate"
	apperrors "github.com/spec-kit/secure-api/pkg/util/errorutil"
)

// Login results reported to the LoginRecorder.
const (
	LoginSucceeded = "succeeded"
	LoginFailed    = "failed"
	LoginThrottled = "throttled"
)

const dummyPassword = "dummy-password-for-timing"

// LoginRecorder counts login attempts by result.
type LoginRecorder interface {
	RecordLogin(result string)
}

// AuthService coordinates registration, login and profile flows.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	verifier   auth.CredentialVerifier
	throttle   ratelimit.LoginThrottle
	dispatcher events.Dispatcher
	recorder   LoginRecorder
	logger     *zap.Logger
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// AuthDependencies encapsulates collaborators for the auth service. Throttle,
// Dispatcher, Recorder, Logger and Now are optional.
type AuthDependencies struct {
	Users      repository.UserRepository
	Tokens     *auth.TokenManager
	Verifier   auth.CredentialVerifier
	Throttle   ratelimit.LoginThrottle
	Dispatcher events.Dispatcher
	Recorder   LoginRecorder
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	s := &AuthService{
		users:      deps.Users,
		tokens:     deps.Tokens,
		verifier:   deps.Verifier,
		throttle:   deps.Throttle,
		dispatcher: deps.Dispatcher,
		recorder:   deps.Recorder,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if s.throttle == nil {
		s.throttle = ratelimit.Disabled{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// RegisterInput carries a registration request after field validation.
type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Mobile          *string
	Password        string
	ConfirmPassword string
}

// AuthResult is a signed token together with the account it was issued for.
type AuthResult struct {
	User  *domain.User
	Token domain.IssuedToken
}

// Register creates a ROLE_USER account and signs the caller in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := auth.NormalizeSubject(in.Email)
	mobile := normalizeMobile(in.Mobile)
	s.logger.Info("registering user", zap.String("email", email), zap.Bool("has_mobile", mobile != nil))

	if !validate.IsEmail(email) {
		return nil, apperrors.NewValidationError("Invalid email address! Please provide proper email address.", map[string]any{"field": "email"})
	}
	if mobile != nil {
		if err := validate.CheckMobile(*mobile); err != nil {
			return nil, apperrors.NewValidationError("Invalid mobile number! Please provide proper mobile number.",
				map[string]any{"field": "mobile", "reason": err.Error()})
		}
	}

	exists, err := s.users.ExistsByEmailOrMobile(ctx, email, mobile)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if exists {
		return nil, conflictError(email, mobile)
	}
	if in.Password != in.ConfirmPassword {
		return nil, apperrors.NewValidationError("Password and confirm password are not the same.", map[string]any{"field": "confirmPassword"})
	}

	hash, err := s.verifier.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := domain.NewUser(strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName), email, mobile, hash, domain.RoleUser)
	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, conflictError(email, mobile)
		}
		return nil, fmt.Errorf("save user: %w", err)
	}
	s.publish(ctx, events.NewEvent(events.EventUserRegistered, email,
		events.UserRegisteredPayload{UserID: user.ID, Role: string(user.Role)}))

	return s.IssueForCredentials(ctx, email, in.Password)
}

// Login exchanges credentials for a token. Repeated failures for one email are
// throttled; throttle backend errors never block a login.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	key := auth.NormalizeSubject(email)

	blocked, err := s.throttle.Blocked(ctx, key)
	if err != nil {
		s.logger.Warn("login throttle unavailable", zap.Error(err))
	}
	if blocked {
		s.recordLogin(LoginThrottled)
		s.publish(ctx, events.NewEvent(events.EventLoginFailed, key, events.LoginFailedPayload{Reason: "throttled"}))
		return nil, apperrors.NewTooManyRequests("Too many failed login attempts. Please try again later.")
	}

	result, reason, err := s.issue(ctx, key, password)
	if err != nil {
		if errors.Is(err, auth.ErrAuthenticationFailed) {
			if terr := s.throttle.RecordFailure(ctx, key); terr != nil {
				s.logger.Warn("login throttle unavailable", zap.Error(terr))
			}
		}
		if reason != "" {
			s.recordLogin(LoginFailed)
			s.publish(ctx, events.NewEvent(events.EventLoginFailed, key, events.LoginFailedPayload{Reason: reason}))
		}
		return nil, err
	}

	if terr := s.throttle.Reset(ctx, key); terr != nil {
		s.logger.Warn("login throttle unavailable", zap.Error(terr))
	}
	s.recordLogin(LoginSucceeded)
	s.publish(ctx, events.NewEvent(events.EventLoginSucceeded, key, nil))
	return result, nil
}

// IssueForCredentials authenticates subject with secret and signs a token. An unknown
// subject and a wrong secret both yield auth.ErrAuthenticationFailed. The account
// state is only revealed to callers holding the right secret.
func (s *AuthService) IssueForCredentials(ctx context.Context, subject, secret string) (*AuthResult, error) {
	result, _, err := s.issue(ctx, auth.NormalizeSubject(subject), secret)
	return result, err
}

// issue returns a non-empty reason for every credential or account failure.
func (s *AuthService) issue(ctx context.Context, email, secret string) (*AuthResult, string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.verifier.Verify(secret, s.dummy())
		s.logger.Debug("authentication failed", zap.String("reason", "unknown_subject"))
		return nil, "unknown_subject", auth.ErrAuthenticationFailed
	}
	if err != nil {
		return nil, "", fmt.Errorf("load user: %w", err)
	}
	if !s.verifier.Verify(secret, user.PasswordHash) {
		s.logger.Debug("authentication failed", zap.String("reason", "bad_secret"))
		return nil, "bad_secret", auth.ErrAuthenticationFailed
	}
	if err := auth.AccountStateError(user); err != nil {
		return nil, "account_unusable", err
	}

	issuedAt := s.now()
	token, expiresAt, err := s.tokens.Issue(user.Email, auth.Capabilities(user), issuedAt)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{
		User: user,
		Token: domain.IssuedToken{
			Token:     token,
			Type:      domain.TokenType,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	}, "", nil
}

// Profile re-reads the account behind subject and refuses unusable accounts.
func (s *AuthService) Profile(ctx context.Context, subject string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, auth.NormalizeSubject(subject))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, apperrors.NewNotFound("user", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if err := auth.AccountStateError(user); err != nil {
		return nil, apperrors.NewAccountUnusable(err.Error())
	}
	return user, nil
}

// BootstrapAdmin creates the admin account when no users exist yet. It returns nil
// when users already exist; invalid credentials are an error.
func (s *AuthService) BootstrapAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil, nil
	}

	email = auth.NormalizeSubject(email)
	s.logger.Info("user table is empty, adding the admin user", zap.String("email", email))
	if !validate.IsEmail(email) {
		return nil, errors.New("invalid admin email address")
	}
	if l := utf8.RuneCountInString(password); l < validate.PasswordMinLength || l > validate.PasswordMaxLength {
		return nil, fmt.Errorf("invalid admin password: must be between %d and %d characters",
			validate.PasswordMinLength, validate.PasswordMaxLength)
	}

	hash, err := s.verifier.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	admin := domain.NewUser("Admin", "User", email, nil, hash, domain.RoleAdmin)
	if err := s.users.Save(ctx, admin); err != nil {
		return nil, fmt.Errorf("save admin: %w", err)
	}
	s.publish(ctx, events.NewEvent(events.EventAdminBootstrapped, email, events.AdminBootstrappedPayload{UserID: admin.ID}))
	return admin, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.verifier.Hash(dummyPassword)
		if err != nil {
			s.logger.Warn("dummy hash unavailable", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func (s *AuthService) recordLogin(result string) {
	if s.recorder != nil {
		s.recorder.RecordLogin(result)
	}
}

func normalizeMobile(mobile *string) *string {
	if mobile == nil {
		return nil
	}
	m := strings.TrimSpace(*mobile)
	if m == "" {
		return nil
	}
	return &m
}

func conflictError(email string, mobile *string) error {
	m := ""
	if mobile != nil {
		m = *mobile
	}
	return apperrors.NewConflict(fmt.Sprintf("User with email: %s or mobile: %s already exists.", email, m), nil)
}
