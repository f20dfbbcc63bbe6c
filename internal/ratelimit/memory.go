package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryThrottle counts failures per key in process memory. Like the Redis counter, a
// key's window opens at its first failure and closes Window later, whatever happens
// in between.
type MemoryThrottle struct {
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	counters map[string]*counter

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

type counter struct {
	failures  int
	expiresAt time.Time
}

// NewMemoryThrottle returns a throttle and starts its expired counter sweeper, which
// runs until Close.
func NewMemoryThrottle(settings Settings) *MemoryThrottle {
	return newMemoryThrottle(settings, time.Now, settings.Window)
}

func newMemoryThrottle(settings Settings, now func() time.Time, sweepEvery time.Duration) *MemoryThrottle {
	t := &MemoryThrottle{
		settings: settings,
		now:      now,
		counters: make(map[string]*counter),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	go t.sweep(sweepEvery)
	return t
}

func (t *MemoryThrottle) Blocked(_ context.Context, key string) (bool, error) {
	if !t.settings.enabled() {
		return false, nil
	}
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.counters[normalizeKey(key)]
	if !ok || !now.Before(c.expiresAt) {
		return false, nil
	}
	return c.failures >= t.settings.MaxAttempts, nil
}

func (t *MemoryThrottle) RecordFailure(_ context.Context, key string) error {
	if !t.settings.enabled() {
		return nil
	}
	now := t.now()
	k := normalizeKey(key)
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.counters[k]
	if !ok || !now.Before(c.expiresAt) {
		c = &counter{expiresAt: now.Add(t.settings.Window)}
		t.counters[k] = c
	}
	c.failures++
	return nil
}

func (t *MemoryThrottle) Reset(_ context.Context, key string) error {
	t.mu.Lock()
	delete(t.counters, normalizeKey(key))
	t.mu.Unlock()
	return nil
}

// Close stops the sweeper.
func (t *MemoryThrottle) Close() {
	t.once.Do(func() {
		close(t.stop)
		<-t.done
	})
}

func (t *MemoryThrottle) sweep(every time.Duration) {
	defer close(t.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.evictExpired()
		}
	}
}

func (t *MemoryThrottle) evictExpired() {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, c := range t.counters {
		if !now.Before(c.expiresAt) {
			delete(t.counters, k)
		}
	}
}

func (t *MemoryThrottle) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.counters)
}
