package resilience

import (
	"cmp"
	"time"
)

// Config tunes retries and the per-operation circuit breaker. Zero fields
// fall back to DefaultConfig; BreakerEnabled is taken as given.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

const (
	defaultRetryMaxAttempts    = 3
	defaultRetryInitialBackoff = 100 * time.Millisecond
	defaultRetryMaxBackoff     = 400 * time.Millisecond
	defaultRetryMultiplier     = 2.0

	defaultBreakerMinRequests      = 10
	defaultBreakerFailureRatio     = 0.5
	defaultBreakerOpenTimeout      = 30 * time.Second
	defaultBreakerHalfOpenMaxCalls = 2
)

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    defaultRetryMaxAttempts,
		RetryInitialBackoff: defaultRetryInitialBackoff,
		RetryMaxBackoff:     defaultRetryMaxBackoff,
		RetryMultiplier:     defaultRetryMultiplier,

		BreakerEnabled:          true,
		BreakerMinRequests:      defaultBreakerMinRequests,
		BreakerFailureRatio:     defaultBreakerFailureRatio,
		BreakerOpenTimeout:      defaultBreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: defaultBreakerHalfOpenMaxCalls,
	}
}

func (c Config) normalize() Config {
	out := c
	out.RetryMaxAttempts = positiveOr(out.RetryMaxAttempts, defaultRetryMaxAttempts)
	out.RetryInitialBackoff = positiveOr(out.RetryInitialBackoff, defaultRetryInitialBackoff)
	out.RetryMaxBackoff = max(positiveOr(out.RetryMaxBackoff, defaultRetryMaxBackoff), out.RetryInitialBackoff)
	if out.RetryMultiplier < 1 {
		out.RetryMultiplier = defaultRetryMultiplier
	}

	out.BreakerMinRequests = positiveOr(out.BreakerMinRequests, defaultBreakerMinRequests)
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = defaultBreakerFailureRatio
	}
	out.BreakerOpenTimeout = positiveOr(out.BreakerOpenTimeout, defaultBreakerOpenTimeout)
	out.BreakerHalfOpenMaxCalls = positiveOr(out.BreakerHalfOpenMaxCalls, defaultBreakerHalfOpenMaxCalls)
	return out
}

func positiveOr[T cmp.Ordered](v, fallback T) T {
	var zero T
	if v <= zero {
		return fallback
	}
	return v
}
