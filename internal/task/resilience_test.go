package task

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// fakeExecutor scripts Start outcomes for launcher tests.
type fakeExecutor struct {
	errs    []error // Consumed one per Start call; empty means success
	started []Invocation
}

func (f *fakeExecutor) Start(inv Invocation) error {
	f.started = append(f.started, inv)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeExecutor) Cancel(string, uint64)          {}
func (f *fakeExecutor) Logs() <-chan LogLine           { return nil }
func (f *fakeExecutor) Completions() <-chan Completion { return nil }
func (f *fakeExecutor) Shutdown()                      {}

func testRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     time.Millisecond,
		MaxInterval:         5 * time.Millisecond,
		MaxElapsedTime:      50 * time.Millisecond,
		Multiplier:          2.0,
		RandomizationFactor: 0,
	}
}

func TestLauncherStartsCleanly(t *testing.T) {
	fake := &fakeExecutor{}
	l := NewLauncher(fake, NewBreakerRegistry(zerolog.Nop()), testRetryConfig())

	if err := l.Launch(Invocation{TaskID: "t", RunID: 1, Program: "make"}); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if len(fake.started) != 1 {
		t.Errorf("started %d invocations, want 1", len(fake.started))
	}
}

func TestLauncherRetriesBusy(t *testing.T) {
	fake := &fakeExecutor{errs: []error{ErrBusy, ErrBusy}}
	l := NewLauncher(fake, NewBreakerRegistry(zerolog.Nop()), testRetryConfig())

	if err := l.Launch(Invocation{TaskID: "t", RunID: 1, Program: "make"}); err != nil {
		t.Fatalf("Launch after busy retries: %v", err)
	}
	if len(fake.started) != 3 {
		t.Errorf("started %d times, want 3 (two busy, one accepted)", len(fake.started))
	}
}

func TestLauncherGivesUpWhenBusyPersists(t *testing.T) {
	fake := &fakeExecutor{errs: []error{
		ErrBusy, ErrBusy, ErrBusy, ErrBusy, ErrBusy, ErrBusy, ErrBusy, ErrBusy,
		ErrBusy, ErrBusy, ErrBusy, ErrBusy, ErrBusy, ErrBusy, ErrBusy, ErrBusy,
		ErrBusy, ErrBusy, ErrBusy, ErrBusy, ErrBusy, ErrBusy, ErrBusy, ErrBusy,
	}}
	l := NewLauncher(fake, NewBreakerRegistry(zerolog.Nop()), testRetryConfig())

	err := l.Launch(Invocation{TaskID: "t", RunID: 1, Program: "make"})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("Launch = %v, want ErrBusy after exhausted budget", err)
	}
}

func TestLauncherRefusesWhileBreakerOpen(t *testing.T) {
	fake := &fakeExecutor{}
	registry := NewBreakerRegistry(zerolog.Nop())
	l := NewLauncher(fake, registry, testRetryConfig())

	// Five consecutive run failures trip the program's breaker.
	for i := 0; i < 5; i++ {
		l.Observe("make", Completion{TaskID: "t", RunID: uint64(i + 1), StatusCode: 1})
	}
	if registry.Get("make").State() != gobreaker.StateOpen {
		t.Fatal("breaker should be open after five consecutive failures")
	}

	err := l.Launch(Invocation{TaskID: "t", RunID: 6, Program: "make"})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("Launch with open breaker = %v, want ErrOpenState", err)
	}
	if len(fake.started) != 0 {
		t.Error("open breaker must not reach the executor")
	}
}

func TestLauncherObserveIgnoresCancellation(t *testing.T) {
	registry := NewBreakerRegistry(zerolog.Nop())
	l := NewLauncher(&fakeExecutor{}, registry, testRetryConfig())

	for i := 0; i < 10; i++ {
		l.Observe("make", Completion{TaskID: "t", RunID: uint64(i + 1), Cancelled: true})
	}
	if registry.Get("make").State() != gobreaker.StateClosed {
		t.Error("cancellations must not trip the breaker")
	}
}
