package auth

import (
	"errors"
	"fmt"
)

// TokenErrorKind classifies why a token was rejected.
type TokenErrorKind int

const (
	KindMalformed TokenErrorKind = iota + 1
	KindInvalidSignature
	KindExpired
	KindUnsupported
)

func (k TokenErrorKind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindInvalidSignature:
		return "invalid_signature"
	case KindExpired:
		return "expired"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against a *TokenError of the same kind.
var (
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenInvalidSignature = errors.New("token signature is invalid")
	ErrTokenExpired          = errors.New("token is expired")
	ErrTokenUnsupported      = errors.New("token is unsupported")
)

var (
	// ErrIdentityNotFound means the token subject has no identity record.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrSubjectMismatch means the token subject differs from the resolved identity key.
	ErrSubjectMismatch = errors.New("token subject does not match identity")
	// ErrAuthenticationFailed covers every credential failure at issuance.
	ErrAuthenticationFailed = errors.New("bad credentials")
	// ErrAccountUnusable means the account is inactive, locked, blocked or deleted.
	ErrAccountUnusable = errors.New("account is not usable")
)

// TokenError is the rejection returned by TokenManager.Validate.
type TokenError struct {
	Kind TokenErrorKind
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.sentinel(), e.Err)
	}
	return e.sentinel().Error()
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// Is lets callers match a kind with errors.Is(err, ErrTokenExpired).
func (e *TokenError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *TokenError) sentinel() error {
	switch e.Kind {
	case KindInvalidSignature:
		return ErrTokenInvalidSignature
	case KindExpired:
		return ErrTokenExpired
	case KindUnsupported:
		return ErrTokenUnsupported
	default:
		return ErrTokenMalformed
	}
}

// TokenErrorKindOf returns the kind of a token rejection, or 0 when err is not one.
func TokenErrorKindOf(err error) TokenErrorKind {
	var tokenErr *TokenError
	if errors.As(err, &tokenErr) {
		return tokenErr.Kind
	}
	return 0
}

func malformed(err error) error {
	return &TokenError{Kind: KindMalformed, Err: err}
}

// ConfigurationError reports signing configuration that prevents startup.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "auth configuration: " + e.Reason
}
