package retry

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/prereq-client/pkg/retry/backoff"
)

// Strategy is a function that determines whether or not an action should be
// retried. Strategies are allowed to delay or cause other side effects.
type Strategy func(ctx context.Context, attempts uint, err error) bool

// Limit returns a strategy that limits the total number of retries.
// maxAttempts should be >= 1, since the action is evaluated first.
func Limit(maxAttempts uint) Strategy {
	return func(_ context.Context, attempts uint, err error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors returns a strategy that specifies which errors can be retried.
func RetriableErrors(retriableErrors ...error) Strategy {
	return func(_ context.Context, attempts uint, err error) bool {
		for _, e := range retriableErrors {
			if errors.Is(err, e) {
				return true
			}
		}

		return false
	}
}

// Logged returns a strategy that records each failed attempt at debug level.
// It never stops retries, so it should precede the strategies that do.
func Logged(log *logrus.Entry) Strategy {
	return func(_ context.Context, attempts uint, err error) bool {
		log.WithError(err).WithField("attempt", attempts).Debug("attempt failed")
		return true
	}
}

// Backoff returns a strategy that will delay the next retry, provided the
// action resulted in an error. The returned strategy will cause the caller
// (the retrier) to sleep, and stops retrying if ctx ends during the sleep.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	capped := backoff.Capped(strategy, maxBackoff)
	return func(ctx context.Context, attempts uint, err error) bool {
		return sleeperImpl.Sleep(ctx, capped(attempts))
	}
}

// BackoffWithJitter returns a strategy similar to Backoff, but induces a jitter
// on the total delay. The maxBackoff is applied before the jitter.
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	jittered := backoff.WithJitter(backoff.Capped(strategy, maxBackoff), jitter)
	return func(ctx context.Context, attempts uint, err error) bool {
		return sleeperImpl.Sleep(ctx, jittered(attempts))
	}
}

type sleeper interface {
	// Sleep blocks for d, returning false if ctx ended first.
	Sleep(ctx context.Context, d time.Duration) bool
}

// realSleeper uses a timer to perform actual sleeps
type realSleeper struct{}

func (r *realSleeper) Sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var sleeperImpl sleeper = &realSleeper{}
