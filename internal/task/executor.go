package task

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Invocation is one request to run an external command for a task.
type Invocation struct {
	TaskID  string
	RunID   uint64
	Program string
	Args    []string
	Dir     string
	Timeout time.Duration // Zero means no deadline
}

// LogLine is one line of incremental output, tagged with the run that
// produced it so the reducer can discard output from superseded runs.
type LogLine struct {
	TaskID string
	RunID  uint64
	Line   string
}

// Completion is the single terminal report for an accepted run. Timeouts
// and cancellations arrive here as data, never as a fault.
type Completion struct {
	TaskID     string
	RunID      uint64
	Stdout     string
	Stderr     string
	StatusCode int
	Cancelled  bool
	Err        string
	Duration   time.Duration
}

// Failed reports whether the run ended unsuccessfully.
func (c Completion) Failed() bool {
	return c.Cancelled || c.Err != "" || c.StatusCode != 0
}

// Executor runs task invocations asynchronously and reports back through
// two channels the runtime loop drains every iteration.
type Executor interface {
	// Start accepts an invocation. ErrBusy means the worker limit is
	// reached; the caller surfaces that as a start rejection.
	Start(inv Invocation) error

	// Cancel kills the process group for an in-flight run. Cancelling a
	// run that has already finished is a no-op. The cancelled run still
	// delivers its completion, marked cancelled.
	Cancel(taskID string, runID uint64)

	Logs() <-chan LogLine
	Completions() <-chan Completion

	// Shutdown kills every in-flight run and waits for the workers to
	// exit, even when nothing is draining the channels anymore.
	Shutdown()
}

// ErrBusy is returned by Start when all worker slots are taken.
var ErrBusy = errors.New("executor: all worker slots busy")

// newCommand creates an exec.Cmd with process group isolation so the whole
// subprocess tree can be terminated together.
func newCommand(ctx context.Context, inv Invocation) *exec.Cmd {
	cmd := exec.CommandContext(ctx, inv.Program, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	return cmd
}

// killProcessGroup kills the entire process group associated with the
// command, not just the immediate subprocess.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill process group: %w", err)
	}
	return nil
}

// runKey identifies an in-flight run. Run ids are monotonic per task, so
// the task id is part of the key.
type runKey struct {
	taskID string
	runID  uint64
}

// run tracks one in-flight invocation.
type run struct {
	mu        sync.Mutex
	cmd       *exec.Cmd
	cancelled bool
	finished  bool
}

func (r *run) markCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return false
	}
	r.cancelled = true
	return true
}

func (r *run) markFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = true
	return r.cancelled
}

// ProcessExecutor runs invocations as subprocesses with a bounded worker
// pool. Workers stream stdout lines into the log channel as they appear and
// deliver exactly one completion per accepted run.
type ProcessExecutor struct {
	ctx    context.Context
	stop   context.CancelFunc
	group  *errgroup.Group
	log    zerolog.Logger
	logs   chan LogLine
	done   chan Completion
	mu     sync.Mutex
	active map[runKey]*run
}

// NewProcessExecutor creates an executor with at most limit concurrent runs
// (default 4). Channel buffers are sized so workers rarely block on the
// loop; a full buffer blocks the worker, never drops.
func NewProcessExecutor(ctx context.Context, limit int, log zerolog.Logger) *ProcessExecutor {
	if limit <= 0 {
		limit = 4
	}
	execCtx, stop := context.WithCancel(ctx)
	g := &errgroup.Group{}
	g.SetLimit(limit)
	return &ProcessExecutor{
		ctx:    execCtx,
		stop:   stop,
		group:  g,
		log:    log,
		logs:   make(chan LogLine, 256),
		done:   make(chan Completion, 64),
		active: make(map[runKey]*run),
	}
}

// Logs returns the incremental output channel.
func (e *ProcessExecutor) Logs() <-chan LogLine { return e.logs }

// Completions returns the terminal completion channel.
func (e *ProcessExecutor) Completions() <-chan Completion { return e.done }

// Start accepts an invocation if a worker slot is free.
func (e *ProcessExecutor) Start(inv Invocation) error {
	if inv.Program == "" {
		return fmt.Errorf("executor: empty program for task %q", inv.TaskID)
	}

	key := runKey{taskID: inv.TaskID, runID: inv.RunID}
	r := &run{}
	e.mu.Lock()
	e.active[key] = r
	e.mu.Unlock()

	accepted := e.group.TryGo(func() error {
		e.execute(inv, r)
		return nil
	})
	if !accepted {
		e.mu.Lock()
		delete(e.active, key)
		e.mu.Unlock()
		return ErrBusy
	}
	return nil
}

// Cancel kills the process group for a run. No-op for unknown or finished
// runs.
func (e *ProcessExecutor) Cancel(taskID string, runID uint64) {
	e.mu.Lock()
	r, ok := e.active[runKey{taskID: taskID, runID: runID}]
	e.mu.Unlock()
	if !ok {
		return
	}
	if !r.markCancelled() {
		return
	}

	r.mu.Lock()
	cmd := r.cmd
	r.mu.Unlock()
	if cmd != nil {
		if err := killProcessGroup(cmd); err != nil {
			e.log.Warn().Str("task_id", taskID).Uint64("run_id", runID).Err(err).Msg("cancel: kill failed")
		}
	}
}

// Shutdown cancels every in-flight run and waits for the workers to exit.
// Stopping the executor context also unblocks workers parked on the log or
// completion channels, so Shutdown returns even when nothing drains them;
// output still in flight at that point is dropped.
func (e *ProcessExecutor) Shutdown() {
	e.mu.Lock()
	keys := make([]runKey, 0, len(e.active))
	for key := range e.active {
		keys = append(keys, key)
	}
	e.mu.Unlock()

	for _, key := range keys {
		e.Cancel(key.taskID, key.runID)
	}
	e.stop()
	_ = e.group.Wait()
}

// execute runs one invocation to completion, streaming stdout lines and
// finishing with exactly one Completion.
func (e *ProcessExecutor) execute(inv Invocation, r *run) {
	started := time.Now()

	finish := func(c Completion) {
		cancelled := r.markFinished()
		e.mu.Lock()
		delete(e.active, runKey{taskID: inv.TaskID, runID: inv.RunID})
		e.mu.Unlock()

		c.TaskID = inv.TaskID
		c.RunID = inv.RunID
		c.Cancelled = c.Cancelled || cancelled
		c.Duration = time.Since(started)
		// Once the executor is stopped nobody drains the channel
		// anymore; dropping the completion beats wedging the worker.
		select {
		case e.done <- c:
		case <-e.ctx.Done():
		}
	}

	ctx := e.ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := newCommand(ctx, inv)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		finish(Completion{Err: fmt.Sprintf("stdout pipe: %v", err), StatusCode: -1})
		return
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		finish(Completion{Err: fmt.Sprintf("stderr pipe: %v", err), StatusCode: -1})
		return
	}

	if err := cmd.Start(); err != nil {
		finish(Completion{Err: fmt.Sprintf("start: %v", err), StatusCode: -1})
		return
	}

	r.mu.Lock()
	r.cmd = cmd
	alreadyCancelled := r.cancelled
	r.mu.Unlock()
	if alreadyCancelled {
		// Cancel raced with Start before the pid was registered.
		_ = killProcessGroup(cmd)
	}

	// Drain both pipes concurrently before calling cmd.Wait, so output
	// larger than the pipe buffer cannot deadlock the subprocess.
	var wg sync.WaitGroup
	var stdoutBuf, stderrBuf bytes.Buffer
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdoutPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			stdoutBuf.WriteString(line)
			stdoutBuf.WriteByte('\n')
			select {
			case e.logs <- LogLine{TaskID: inv.TaskID, RunID: inv.RunID, Line: line}:
			case <-e.ctx.Done():
				// Loop gone; keep draining the pipe so the
				// subprocess can exit, but stop forwarding.
				for scanner.Scan() {
					stdoutBuf.WriteString(scanner.Text())
					stdoutBuf.WriteByte('\n')
				}
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		io.Copy(&stderrBuf, stderrPipe)
	}()

	wg.Wait()
	waitErr := cmd.Wait()

	c := Completion{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}

	switch {
	case waitErr == nil:
		c.StatusCode = 0
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		c.StatusCode = -1
		c.Cancelled = true
		c.Err = fmt.Sprintf("timed out after %v", inv.Timeout)
	default:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			c.StatusCode = exitErr.ExitCode()
		} else {
			c.StatusCode = -1
		}
		c.Err = waitErr.Error()
	}

	e.log.Debug().
		Str("task_id", inv.TaskID).
		Uint64("run_id", inv.RunID).
		Int("status", c.StatusCode).
		Bool("cancelled", c.Cancelled).
		Msg("run finished")

	finish(c)
}
