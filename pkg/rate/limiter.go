// Package rate throttles outbound calls per key.
package rate

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Limiter limits operations based on a provided key.
type Limiter interface {
	// Wait blocks until an operation for key may happen, or ctx is done.
	Wait(ctx context.Context, key string) error
}

type localRateLimiter struct {
	limit rate.Limit
	burst int

	sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLocalRateLimiter returns an in memory limiter allowing limit operations
// per second for each key. Fractional limits get a burst of one.
func NewLocalRateLimiter(limit rate.Limit) Limiter {
	burst := int(limit)
	if burst < 1 {
		burst = 1
	}

	return &localRateLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *localRateLimiter) get(key string) *rate.Limiter {
	l.Lock()
	defer l.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	return limiter
}

// Wait implements limiter.Wait.
func (l *localRateLimiter) Wait(ctx context.Context, key string) error {
	if err := l.get(key).Wait(ctx); err != nil {
		return errors.Wrapf(err, "rate limit wait for %s", key)
	}
	return nil
}

// NoLimiter never limits operations. It is used when no request rate is
// configured.
type NoLimiter struct{}

// Wait implements limiter.Wait.
func (n *NoLimiter) Wait(ctx context.Context, key string) error {
	return ctx.Err()
}
