package ratelimit

import (
	"context"
	"strings"
	"time"
)

// LoginThrottle counts failed logins per account key.
type LoginThrottle interface {
	// Blocked reports whether key has used up its failed attempts for the window.
	Blocked(ctx context.Context, key string) (bool, error)
	// RecordFailure registers a failed attempt for key.
	RecordFailure(ctx context.Context, key string) error
	// Reset forgets the failures of key.
	Reset(ctx context.Context, key string) error
}

// Settings bounds failed attempts. MaxAttempts of zero disables throttling.
type Settings struct {
	MaxAttempts int
	Window      time.Duration
}

func (s Settings) enabled() bool {
	return s.MaxAttempts > 0 && s.Window > 0
}

// Disabled never blocks.
type Disabled struct{}

func (Disabled) Blocked(context.Context, string) (bool, error) { return false, nil }
func (Disabled) RecordFailure(context.Context, string) error { return nil }
func (Disabled) Reset(context.Context, string) error { return nil }

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
