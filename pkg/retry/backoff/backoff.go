// Package backoff computes the delays between retried RPC calls.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Strategy is a function that provides the amount of time to wait before trying
// again. Note: attempts starts at 1
type Strategy func(attempts uint) time.Duration

// Constant returns a strategy that always returns the provided duration.
func Constant(interval time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		return interval
	}
}

// BinaryExponential returns a strategy that doubles the delay on every
// attempt.
//
// delay = baseDelay * 2^(attempts - 1)
// Ex. BinaryExponential(2*time.Seconds) = 2s, 4s, 8s, 16s, ...
func BinaryExponential(baseDelay time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		if attempts == 0 {
			return baseDelay
		}
		if delay := baseDelay * time.Duration(math.Pow(2, float64(attempts-1))); delay >= 0 {
			return delay
		}

		return math.MaxInt64
	}
}

// Capped limits the delay of strategy to maxDelay.
func Capped(strategy Strategy, maxDelay time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		if delay := strategy(attempts); delay < maxDelay {
			return delay
		}
		return maxDelay
	}
}

// WithJitter offsets the delay of strategy by up to +/- jitter of itself.
// A 100ms delay with a jitter of 0.1 results in a delay within [90ms, 110ms].
func WithJitter(strategy Strategy, jitter float64) Strategy {
	return func(attempts uint) time.Duration {
		delay := strategy(attempts)
		return time.Duration(float64(delay) * (1 + (rand.Float64()*jitter*2 - jitter)))
	}
}
