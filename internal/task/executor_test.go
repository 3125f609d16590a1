package task

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// collect drains the executor until the wanted completion arrives or the
// deadline hits, returning streamed lines for the run alongside it.
func collect(t *testing.T, e *ProcessExecutor, runID uint64, timeout time.Duration) ([]string, Completion) {
	t.Helper()

	var lines []string
	deadline := time.After(timeout)
	for {
		select {
		case line := <-e.Logs():
			if line.RunID == runID {
				lines = append(lines, line.Line)
			}
		case c := <-e.Completions():
			if c.RunID == runID {
				return lines, c
			}
		case <-deadline:
			t.Fatalf("no completion for run %d within %v", runID, timeout)
		}
	}
}

func TestProcessExecutorSuccess(t *testing.T) {
	e := NewProcessExecutor(context.Background(), 2, zerolog.Nop())
	defer e.Shutdown()

	inv := Invocation{
		TaskID:  "greet",
		RunID:   1,
		Program: "sh",
		Args:    []string{"-c", "echo one; echo two"},
	}
	if err := e.Start(inv); err != nil {
		t.Fatalf("Start: %v", err)
	}

	lines, c := collect(t, e, 1, 5*time.Second)
	if c.Failed() {
		t.Fatalf("run failed: %+v", c)
	}
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Errorf("streamed lines = %v, want [one two]", lines)
	}
	if !strings.Contains(c.Stdout, "one") || !strings.Contains(c.Stdout, "two") {
		t.Errorf("stdout = %q missing expected output", c.Stdout)
	}
}

func TestProcessExecutorNonZeroExit(t *testing.T) {
	e := NewProcessExecutor(context.Background(), 2, zerolog.Nop())
	defer e.Shutdown()

	inv := Invocation{
		TaskID:  "boom",
		RunID:   7,
		Program: "sh",
		Args:    []string{"-c", "echo oops >&2; exit 3"},
	}
	if err := e.Start(inv); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, c := collect(t, e, 7, 5*time.Second)
	if c.StatusCode != 3 {
		t.Errorf("status = %d, want 3", c.StatusCode)
	}
	if c.Cancelled {
		t.Error("non-zero exit must not be marked cancelled")
	}
	if !strings.Contains(c.Stderr, "oops") {
		t.Errorf("stderr = %q, want it to contain oops", c.Stderr)
	}
	if !c.Failed() {
		t.Error("completion with status 3 should report failure")
	}
}

func TestProcessExecutorTimeout(t *testing.T) {
	e := NewProcessExecutor(context.Background(), 2, zerolog.Nop())
	defer e.Shutdown()

	inv := Invocation{
		TaskID:  "slow",
		RunID:   9,
		Program: "sleep",
		Args:    []string{"30"},
		Timeout: 100 * time.Millisecond,
	}
	if err := e.Start(inv); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, c := collect(t, e, 9, 5*time.Second)
	if !c.Cancelled {
		t.Error("timed-out run should be marked cancelled")
	}
	if c.Err == "" {
		t.Error("timed-out run should carry an error message")
	}
}

func TestProcessExecutorCancel(t *testing.T) {
	e := NewProcessExecutor(context.Background(), 2, zerolog.Nop())
	defer e.Shutdown()

	inv := Invocation{
		TaskID:  "long",
		RunID:   11,
		Program: "sleep",
		Args:    []string{"30"},
	}
	if err := e.Start(inv); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Give the worker a moment to register the pid, then cancel.
	time.Sleep(100 * time.Millisecond)
	e.Cancel("long", 11)

	_, c := collect(t, e, 11, 5*time.Second)
	if !c.Cancelled {
		t.Errorf("cancelled run not marked cancelled: %+v", c)
	}

	// Cancelling a finished run is a no-op.
	e.Cancel("long", 11)
}

func TestProcessExecutorBusy(t *testing.T) {
	e := NewProcessExecutor(context.Background(), 1, zerolog.Nop())
	defer e.Shutdown()

	if err := e.Start(Invocation{TaskID: "a", RunID: 1, Program: "sleep", Args: []string{"30"}}); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	err := e.Start(Invocation{TaskID: "b", RunID: 2, Program: "echo", Args: []string{"hi"}})
	if err != ErrBusy {
		t.Fatalf("second Start = %v, want ErrBusy", err)
	}

	e.Cancel("a", 1)
	_, c := collect(t, e, 1, 5*time.Second)
	if !c.Cancelled {
		t.Errorf("first run should report cancelled, got %+v", c)
	}
}

func TestProcessExecutorShutdownWithoutConsumer(t *testing.T) {
	e := NewProcessExecutor(context.Background(), 2, zerolog.Nop())

	// More lines than the log channel buffers, and nothing draining it:
	// the worker parks on the channel send until Shutdown stops the
	// executor context.
	inv := Invocation{
		TaskID:  "chatty",
		RunID:   1,
		Program: "sh",
		Args:    []string{"-c", "i=0; while [ $i -lt 400 ]; do echo line $i; i=$((i+1)); done"},
	}
	if err := e.Start(inv); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	returned := make(chan struct{})
	go func() {
		e.Shutdown()
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(3 * time.Second):
		t.Fatal("Shutdown did not return with an undrained log channel")
	}
}
