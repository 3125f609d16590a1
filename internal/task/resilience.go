package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// RetryConfig configures exponential backoff for transient start failures.
// The window is kept short: Launch runs on the loop's effect path, so the
// total retry budget bounds how long a start may stall the loop.
type RetryConfig struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     10 * time.Millisecond,
		MaxInterval:         50 * time.Millisecond,
		MaxElapsedTime:      250 * time.Millisecond,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// BreakerRegistry manages per-program circuit breakers. A program that
// keeps failing stops being spawned until the breaker half-opens.
type BreakerRegistry struct {
	mu       sync.Mutex
	log      zerolog.Logger
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry creates a new circuit breaker registry.
func NewBreakerRegistry(log zerolog.Logger) *BreakerRegistry {
	return &BreakerRegistry{
		log:      log,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the circuit breaker for the given program, creating it on
// first use.
func (r *BreakerRegistry) Get(program string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[program]; ok {
		return cb
	}

	log := r.log
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        program,
		MaxRequests: 3,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().Str("program", name).
				Stringer("from", from).Stringer("to", to).
				Msg("circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is the user's doing, not the program's.
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})

	r.breakers[program] = cb
	return cb
}

// runFailure carries a failed completion into the breaker's accounting.
type runFailure struct {
	completion Completion
}

func (e runFailure) Error() string {
	if e.completion.Err != "" {
		return e.completion.Err
	}
	return "non-zero exit status"
}

// Launcher wraps an Executor with retry and circuit breaking on the start
// path. An open breaker or exhausted retry budget comes back as an error
// the reducer turns into a start rejection, never a fault.
type Launcher struct {
	exec     Executor
	breakers *BreakerRegistry
	retry    RetryConfig
}

// NewLauncher creates a launcher around exec.
func NewLauncher(exec Executor, breakers *BreakerRegistry, retry RetryConfig) *Launcher {
	return &Launcher{exec: exec, breakers: breakers, retry: retry}
}

// Launch hands the invocation to the executor, retrying busy rejections
// with exponential backoff and refusing outright while the program's
// breaker is open.
func (l *Launcher) Launch(inv Invocation) error {
	cb := l.breakers.Get(inv.Program)

	operation := func() error {
		if state := cb.State(); state == gobreaker.StateOpen {
			return backoff.Permanent(gobreaker.ErrOpenState)
		}

		err := l.exec.Start(inv)
		if errors.Is(err, ErrBusy) {
			// Worker slots free up on their own; a busy executor is
			// retryable and not the program's fault, so it bypasses
			// the breaker's accounting.
			return err
		}

		if _, cbErr := cb.Execute(func() (interface{}, error) { return nil, err }); cbErr != nil {
			return backoff.Permanent(cbErr)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = l.retry.InitialInterval
	policy.MaxInterval = l.retry.MaxInterval
	policy.MaxElapsedTime = l.retry.MaxElapsedTime
	policy.Multiplier = l.retry.Multiplier
	policy.RandomizationFactor = l.retry.RandomizationFactor

	return backoff.Retry(operation, policy)
}

// Observe feeds a completion's outcome into the program's breaker so
// consecutive run failures eventually trip it. gobreaker only counts
// through Execute, so the outcome is replayed as a no-op call.
func (l *Launcher) Observe(program string, c Completion) {
	cb := l.breakers.Get(program)
	_, _ = cb.Execute(func() (interface{}, error) {
		if c.Cancelled {
			return nil, context.Canceled
		}
		if c.Failed() {
			return nil, runFailure{completion: c}
		}
		return nil, nil
	})
}
