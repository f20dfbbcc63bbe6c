package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// minKeyBytes is the smallest key HS512 accepts (512 bits).
const minKeyBytes = 64

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	key    []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// NewTokenManager builds a manager from a base64 encoded secret. A missing or short
// secret is a *ConfigurationError.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, &ConfigurationError{Reason: "signing secret is not set"}
	}
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("signing secret is not valid base64: %v", err)}
	}
	if len(key) < minKeyBytes {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"signing key is %d bits, %s requires at least %d bits",
			len(key)*8, jwt.SigningMethodHS512.Alg(), minKeyBytes*8)}
	}
	if ttl <= 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("token ttl must be positive, got %s", ttl)}
	}
	return &TokenManager{
		key:    key,
		ttl:    ttl,
		parser: jwt.NewParser(jwt.WithoutClaimsValidation()),
	}, nil
}

// TTL returns the configured token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Claims describes JWT payload.
type Claims struct {
	Roles RoleList `json:"roles"`
	jwt.RegisteredClaims
}

// RoleList is the roles claim. It is written as a list of labels and also reads the
// [{"authority":"ROLE_X"}] form emitted by older issuers.
type RoleList []string

func (r *RoleList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	roles := make(RoleList, 0, len(raw))
	for _, item := range raw {
		var label string
		if err := json.Unmarshal(item, &label); err == nil {
			roles = append(roles, label)
			continue
		}
		var granted struct {
			Authority string `json:"authority"`
		}
		if err := json.Unmarshal(item, &granted); err != nil || granted.Authority == "" {
			return fmt.Errorf("invalid role entry %s", item)
		}
		roles = append(roles, granted.Authority)
	}
	*r = roles
	return nil
}

// Contains reports whether label is one of the roles.
func (r RoleList) Contains(label string) bool {
	for _, role := range r {
		if role == label {
			return true
		}
	}
	return false
}

// Issue builds and signs a token for subject. Timestamps are whole epoch seconds:
// iat is truncated and exp is rounded up, so measured from issuedAt the token lives
// at least the configured TTL and less than TTL plus one second.
func (tm *TokenManager) Issue(subject string, roles []string, issuedAt time.Time) (string, time.Time, error) {
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, errors.New("token subject is required")
	}
	if len(roles) == 0 {
		return "", time.Time{}, errors.New("token roles are required")
	}

	iat := issuedAt.Truncate(time.Second)
	expiresAt := ceilSecond(issuedAt.Add(tm.ttl))
	claims := &Claims{
		Roles: append(RoleList(nil), roles...),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	tokenString, err := token.SignedString(tm.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Validate verifies the signature before decoding the payload, so any change to the
// signed segments is reported as an invalid signature rather than a decode failure.
func (tm *TokenManager) Validate(tokenStr string, now time.Time) (*Claims, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return nil, malformed(fmt.Errorf("expected 3 segments, got %d", len(parts)))
	}

	headerJSON, err := tm.parser.DecodeSegment(parts[0])
	if err != nil {
		return nil, malformed(fmt.Errorf("decode header: %w", err))
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, malformed(fmt.Errorf("decode header: %w", err))
	}
	if header.Alg == "" {
		return nil, malformed(errors.New("header has no alg"))
	}
	if header.Alg != jwt.SigningMethodHS512.Alg() {
		return nil, &TokenError{Kind: KindUnsupported, Err: fmt.Errorf("signing method %q", header.Alg)}
	}

	signature, err := tm.parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, malformed(fmt.Errorf("decode signature: %w", err))
	}
	if err := jwt.SigningMethodHS512.Verify(parts[0]+"."+parts[1], signature, tm.key); err != nil {
		return nil, &TokenError{Kind: KindInvalidSignature, Err: err}
	}

	claims := &Claims{}
	if _, _, err := tm.parser.ParseUnverified(tokenStr, claims); err != nil {
		return nil, malformed(err)
	}
	switch {
	case strings.TrimSpace(claims.Subject) == "":
		return nil, malformed(errors.New("missing sub claim"))
	case claims.IssuedAt == nil:
		return nil, malformed(errors.New("missing iat claim"))
	case claims.ExpiresAt == nil:
		return nil, malformed(errors.New("missing exp claim"))
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return nil, &TokenError{Kind: KindExpired, Err: fmt.Errorf("expired at %s", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))}
	}
	return claims, nil
}

// PeekSubject reads the sub claim without verifying anything. Only for log output.
func (tm *TokenManager) PeekSubject(tokenStr string) string {
	claims := &Claims{}
	if _, _, err := tm.parser.ParseUnverified(tokenStr, claims); err != nil {
		return ""
	}
	return claims.Subject
}

func ceilSecond(t time.Time) time.Time {
	truncated := t.Truncate(time.Second)
	if truncated.Equal(t) {
		return truncated
	}
	return truncated.Add(time.Second)
}
