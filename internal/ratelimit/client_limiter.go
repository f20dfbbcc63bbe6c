package ratelimit

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/spec-kit/secure-api/pkg/util/errorutil"
)

// ClientLimits bounds request rate per client address. A zero RPS disables limiting.
type ClientLimits struct {
	RPS   float64
	Burst int
}

func (l ClientLimits) enabled() bool {
	return l.RPS > 0 && l.Burst > 0
}

// ClientLimiter keeps one token bucket per client address. Stale buckets are dropped
// by a sweeper that runs until Close.
type ClientLimiter struct {
	limits  ClientLimits
	now     func() time.Time
	idleTTL time.Duration

	mu      sync.Mutex
	clients map[string]*clientEntry

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

type clientEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewClientLimiter starts a limiter. Buckets idle for an hour are forgotten.
func NewClientLimiter(limits ClientLimits) *ClientLimiter {
	return newClientLimiter(limits, time.Now, time.Hour, 5*time.Minute)
}

func newClientLimiter(limits ClientLimits, now func() time.Time, idleTTL, sweepEvery time.Duration) *ClientLimiter {
	l := &ClientLimiter{
		limits:  limits,
		now:     now,
		idleTTL: idleTTL,
		clients: make(map[string]*clientEntry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go l.sweep(sweepEvery)
	return l
}

// Allow reports whether client may make a request now. When it may not, retryAfter is
// the wait until the next token.
func (l *ClientLimiter) Allow(client string) (ok bool, retryAfter time.Duration) {
	if l == nil || !l.limits.enabled() {
		return true, 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, found := l.clients[client]
	if !found {
		entry = &clientEntry{limiter: rate.NewLimiter(rate.Limit(l.limits.RPS), l.limits.Burst)}
		l.clients[client] = entry
	}
	entry.lastAccess = now
	if entry.limiter.AllowN(now, 1) {
		return true, 0
	}
	r := entry.limiter.ReserveN(now, 1)
	retryAfter = r.DelayFrom(now)
	r.CancelAt(now)
	return false, retryAfter
}

// Handler rejects requests over the limit with 429 and a Retry-After header.
func (l *ClientLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, retryAfter := l.Allow(c.IP())
		if ok {
			return c.Next()
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		return apperrors.NewTooManyRequests("Too many requests. Please try again later.")
	}
}

// Close stops the sweeper.
func (l *ClientLimiter) Close() {
	l.once.Do(func() {
		close(l.stop)
		<-l.done
	})
}

func (l *ClientLimiter) sweep(every time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

func (l *ClientLimiter) evictIdle() {
	threshold := l.now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.clients {
		if e.lastAccess.Before(threshold) {
			delete(l.clients, k)
		}
	}
}
