package domain

import "time"

// TokenType is the scheme returned alongside issued tokens.
const TokenType = "Bearer"

// IssuedToken describes a freshly signed access token.
type IssuedToken struct {
	Token     string
	Type      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
