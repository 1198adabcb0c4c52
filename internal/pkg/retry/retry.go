package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Config controls how an operation is retried.
type Config struct {
	MaxRetries    int           // attempts beyond the first call
	BaseDelay     time.Duration // delay before the first retry
	MaxDelay      time.Duration // upper bound on any single delay
	BackoffFactor float64       // multiplier applied per attempt
	Jitter        bool          // randomize each delay to [0.5,1.0] of its value
	RetryIf       func(error) bool
}

// StatusError is implemented by errors that carry an HTTP status,
// letting retry predicates decide without importing the API layer.
type StatusError interface {
	error
	HTTPStatus() int
}

// Do runs op up to cfg.MaxRetries+1 times and returns its last result.
// Context cancellation always stops retrying, regardless of RetryIf.
func Do[T any](ctx context.Context, name string, cfg Config, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !retryable(cfg, err) || attempt == attempts {
			break
		}

		delay := backoffDelay(cfg, attempt)
		log.Debug().
			Str("operation", name).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("retrying operation")

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}

// DoErr is Do for operations without a result value.
func DoErr(ctx context.Context, name string, cfg Config, op func(context.Context) error) error {
	_, err := Do(ctx, name, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func retryable(cfg Config, err error) bool {
	// Cancelled or deadline-expired operations are never retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if cfg.RetryIf != nil {
		return cfg.RetryIf(err)
	}
	return RetryTransient(err)
}

func backoffDelay(cfg Config, attempt int) time.Duration {
	base := cfg.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	factor := cfg.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	delay := time.Duration(float64(base) * math.Pow(factor, float64(attempt-1)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.Jitter {
		// Uniform in [0.5,1.0] of the computed delay so concurrent
		// clients do not retry in lockstep.
		delay = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
	}
	return delay
}

// RetryTransient reports whether err looks transient: transport
// failures, 5xx, 408 and 429. Auth failures (401/403) and other 4xx
// are permanent.
func RetryTransient(err error) bool {
	var se StatusError
	if errors.As(err, &se) {
		status := se.HTTPStatus()
		switch {
		case status == 0: // transport-level failure, no response
			return true
		case status == 401 || status == 403:
			return false
		case status == 408 || status == 429:
			return true
		case status >= 500:
			return true
		default:
			return false
		}
	}
	// Unknown error shapes are assumed transient.
	return true
}

// RetryNetworkOnly retries only transport-level failures, never
// anything the server actually answered.
func RetryNetworkOnly(err error) bool {
	var se StatusError
	if errors.As(err, &se) {
		return se.HTTPStatus() == 0
	}
	return true
}
