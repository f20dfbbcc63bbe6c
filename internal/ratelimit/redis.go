package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "secure-api:login-failures:"

// RedisThrottle shares failure counters between instances. The counter key expires one
// window after the first failure.
type RedisThrottle struct {
	client   redis.Cmdable
	settings Settings
}

// NewRedisThrottle returns a throttle backed by client.
func NewRedisThrottle(client redis.Cmdable, settings Settings) *RedisThrottle {
	return &RedisThrottle{client: client, settings: settings}
}

func (t *RedisThrottle) Blocked(ctx context.Context, key string) (bool, error) {
	if !t.settings.enabled() {
		return false, nil
	}
	count, err := t.client.Get(ctx, redisKey(key)).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read login failures: %w", err)
	}
	return count >= t.settings.MaxAttempts, nil
}

func (t *RedisThrottle) RecordFailure(ctx context.Context, key string) error {
	if !t.settings.enabled() {
		return nil
	}
	k := redisKey(key)
	pipe := t.client.TxPipeline()
	pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, t.settings.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	return nil
}

func (t *RedisThrottle) Reset(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}

func redisKey(key string) string {
	return redisKeyPrefix + normalizeKey(key)
}
