package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const bearerPrefix = "Bearer "

// Outcome is the result of one pass of the authenticator over a request.
type Outcome string

const (
	OutcomeNoToken       Outcome = "no_token"
	OutcomeRejected      Outcome = "rejected"
	OutcomeAuthenticated Outcome = "authenticated"
	OutcomeSkipped       Outcome = "skipped"
)

// OutcomeRecorder receives authentication outcomes, e.g. for metrics.
type OutcomeRecorder interface {
	RecordAuthOutcome(outcome string, reason string)
}

// AuthMiddleware validates bearer tokens and loads identities. It never rejects a
// request by itself; route authorization decides what an absent identity means.
type AuthMiddleware struct {
	tokens     *TokenManager
	identities *IdentityResolver
	logger     *zap.Logger
	recorder   OutcomeRecorder
	now        func() time.Time
}

// MiddlewareOption customizes AuthMiddleware.
type MiddlewareOption func(*AuthMiddleware)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) MiddlewareOption {
	return func(m *AuthMiddleware) {
		m.now = now
	}
}

// WithOutcomeRecorder reports every outcome to recorder.
func WithOutcomeRecorder(recorder OutcomeRecorder) MiddlewareOption {
	return func(m *AuthMiddleware) {
		m.recorder = recorder
	}
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, identities *IdentityResolver, logger *zap.Logger, opts ...MiddlewareOption) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &AuthMiddleware{tokens: tokens, identities: identities, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle authenticates the request if it carries a bearer token and always continues.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	m.Authenticate(c)
	return c.Next()
}

// Authenticate runs at most once per request; later calls return OutcomeSkipped.
func (m *AuthMiddleware) Authenticate(c *fiber.Ctx) Outcome {
	if c.Locals(attemptKey) != nil {
		return OutcomeSkipped
	}
	c.Locals(attemptKey, true)

	raw, ok := BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		m.record(OutcomeNoToken, "")
		return OutcomeNoToken
	}

	claims, err := m.tokens.Validate(raw, m.now())
	if err != nil {
		return m.reject(c, err, zap.String("subject", m.tokens.PeekSubject(raw)))
	}

	user, err := m.identities.Resolve(c.UserContext(), claims.Subject)
	if err != nil {
		if !errors.Is(err, ErrIdentityNotFound) {
			m.logger.Error("identity lookup failed", zap.String("subject", claims.Subject), zap.Error(err))
		}
		return m.reject(c, err, zap.String("subject", claims.Subject))
	}

	if NormalizeSubject(claims.Subject) != NormalizeSubject(user.Email) {
		return m.reject(c, ErrSubjectMismatch, zap.String("subject", claims.Subject))
	}
	if !m.now().Before(claims.ExpiresAt.Time) {
		return m.reject(c, &TokenError{Kind: KindExpired}, zap.String("subject", claims.Subject))
	}

	identity := newIdentityContext(user)
	c.Locals(identityKey, identity)
	m.logger.Debug("request authenticated",
		zap.String("subject", identity.Subject()),
		zap.Strings("authorities", identity.Capabilities()))
	m.record(OutcomeAuthenticated, "")
	return OutcomeAuthenticated
}

func (m *AuthMiddleware) reject(c *fiber.Ctx, err error, fields ...zap.Field) Outcome {
	c.Locals(failureKey, err)
	reason := rejectionReason(err)
	m.logger.Debug("bearer token rejected", append(fields, zap.String("reason", reason), zap.Error(err))...)
	m.record(OutcomeRejected, reason)
	return OutcomeRejected
}

func (m *AuthMiddleware) record(outcome Outcome, reason string) {
	if m.recorder != nil {
		m.recorder.RecordAuthOutcome(string(outcome), reason)
	}
}

// BearerToken extracts the token from an Authorization header value. Only the exact,
// case-sensitive "Bearer " prefix is accepted.
func BearerToken(header string) (string, bool) {
	if strings.TrimSpace(header) == "" || !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := header[len(bearerPrefix):]
	if token == "" {
		return "", false
	}
	return token, true
}

func rejectionReason(err error) string {
	if kind := TokenErrorKindOf(err); kind != 0 {
		return kind.String()
	}
	switch {
	case errors.Is(err, ErrIdentityNotFound):
		return "identity_not_found"
	case errors.Is(err, ErrSubjectMismatch):
		return "subject_mismatch"
	default:
		return "lookup_failed"
	}
}
