package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrBreakerOpen is returned when a call is rejected without being attempted.
var ErrBreakerOpen = errors.New("circuit breaker open")

// State of a circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// halfOpenSuccesses is the probe-success count that closes the breaker
// again. It is fixed rather than derived from FailureThreshold; the
// two being independent is intentional and relied upon by callers.
const halfOpenSuccesses = 3

// CircuitBreaker guards a named downstream service. After
// FailureThreshold consecutive failures it rejects calls outright for
// ResetTimeout, then lets probes through until halfOpenSuccesses of
// them succeed in a row.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	resetTimeout     time.Duration

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
}

// NewCircuitBreaker creates a closed breaker for the named service.
func NewCircuitBreaker(name string, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
	}
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn under the breaker. When the breaker is open and the
// cooldown has not elapsed, fn is not invoked at all.
func (b *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	err := fn(ctx)
	b.afterCall(err)
	return err
}

func (b *CircuitBreaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if time.Since(b.openedAt) < b.resetTimeout {
			return fmt.Errorf("%s: %w", b.name, ErrBreakerOpen)
		}
		b.state = StateHalfOpen
		b.successes = 0
		log.Info().Str("service", b.name).Msg("circuit breaker half-open, probing")
	}
	return nil
}

func (b *CircuitBreaker) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		switch b.state {
		case StateHalfOpen:
			// A failed probe re-opens immediately.
			b.trip()
		case StateClosed:
			b.failures++
			if b.failures >= b.failureThreshold {
				b.trip()
			}
		}
		return
	}

	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= halfOpenSuccesses {
			b.state = StateClosed
			b.failures = 0
			log.Info().Str("service", b.name).Msg("circuit breaker closed")
		}
	case StateClosed:
		b.failures = 0
	}
}

func (b *CircuitBreaker) trip() {
	b.state = StateOpen
	b.openedAt = time.Now()
	log.Warn().
		Str("service", b.name).
		Int("failures", b.failures).
		Msg("circuit breaker opened")
}

// DoWithBreaker applies the breaker as the outer guard and retry as
// the inner mechanism: the breaker records one outcome for the whole
// retried operation, not one per attempt.
func DoWithBreaker[T any](ctx context.Context, b *CircuitBreaker, name string, cfg Config, op func(context.Context) (T, error)) (T, error) {
	var v T
	err := b.Execute(ctx, func(ctx context.Context) error {
		var inner error
		v, inner = Do(ctx, name, cfg, op)
		return inner
	})
	return v, err
}
