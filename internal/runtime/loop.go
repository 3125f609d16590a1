package runtime

import (
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stepflow/internal/sched"
	"github.com/aristath/stepflow/internal/task"
	"github.com/aristath/stepflow/internal/widget"
)

// Hooks are the loop's outward edges. All are optional; the loop calls
// them synchronously from its own goroutine.
type Hooks struct {
	// OnStepSubmitted fires after a step validates cleanly, with its
	// answers.
	OnStepSubmitted func(stepID string, values map[string]string)

	// OnRunFinished fires for every completion that still belongs to the
	// active run of its task.
	OnRunFinished func(taskID string, c task.Completion)

	// OnReload fires when a debounced config-reload event comes due.
	OnReload func()
}

// Loop owns the dispatch cycle: intents reduce to effects, effects are
// applied in order, and at most one render is signalled per dispatch. It is
// single-threaded; the executor's channels are drained by the caller and
// fed back in through HandleLog and HandleCompletion.
type Loop struct {
	State    *State
	Sched    *sched.Scheduler
	Launcher *task.Launcher
	Exec     task.Executor
	Hooks    Hooks

	log zerolog.Logger
}

// NewLoop wires a loop around prepared state.
func NewLoop(state *State, scheduler *sched.Scheduler, launcher *task.Launcher, exec task.Executor, log zerolog.Logger) *Loop {
	return &Loop{
		State:    state,
		Sched:    scheduler,
		Launcher: launcher,
		Exec:     exec,
		log:      log.With().Str("component", "runtime").Logger(),
	}
}

// Dispatch runs one intent through the reducer and applies its effects.
// Returns true when the UI should re-render; multiple RequestRender effects
// in one dispatch still yield a single render.
func (l *Loop) Dispatch(intent Intent, now time.Time) bool {
	effects := Reduce(l.State, intent, now)
	return l.apply(effects, now)
}

func (l *Loop) apply(effects []Effect, now time.Time) bool {
	render := false
	for _, eff := range effects {
		switch e := eff.(type) {
		case RequestRender:
			render = true
		case Schedule:
			l.Sched.Schedule(e.Command, now)
		case System:
			l.handleSystem(e.Event, now)
		case Action:
			if l.applyAction(e.Action, now) {
				render = true
			}
		}
	}
	return render
}

func (l *Loop) handleSystem(ev SystemEvent, now time.Time) {
	switch e := ev.(type) {
	case StepSubmitted:
		l.log.Info().Str("step", e.StepID).Msg("step submitted")
		if l.Hooks.OnStepSubmitted != nil {
			l.Hooks.OnStepSubmitted(e.StepID, e.Values)
		}
	case TaskStartRejected:
		l.log.Debug().Str("task", e.TaskID).Str("reason", e.Reason).Msg("task start rejected")
		tv := l.State.TaskDisplay(e.TaskID)
		tv.Status = "rejected"
		tv.Err = e.Reason
		l.Sched.Schedule(sched.Debounce{
			Key:   taskErrorKey(e.TaskID),
			Delay: TaskErrorTTL,
			Event: ClearTaskError{TaskID: e.TaskID},
		}, now)
	case FlowFinished:
		l.log.Info().Str("flow", l.State.Flow.ID).Msg("flow finished")
	case ExitRequested:
		l.log.Info().Msg("exit requested")
	case StepChanged:
		l.log.Debug().Int("index", e.Index).Msg("step changed")
	}
}

// applyAction executes a start or cancel against the executor. A launch
// failure rolls back the run bookkeeping the reducer already recorded and
// surfaces as a rejection rather than an error.
func (l *Loop) applyAction(act WidgetAction, now time.Time) bool {
	switch a := act.(type) {
	case CancelRun:
		l.log.Debug().Str("task", a.TaskID).Uint64("run", a.RunID).Msg("cancelling superseded run")
		l.Exec.Cancel(a.TaskID, a.RunID)
		return false

	case StartRun:
		inv := task.Invocation{
			TaskID:  a.Spec.ID,
			RunID:   a.RunID,
			Program: a.Spec.Program,
			Args:    a.Spec.Args,
			Dir:     a.Spec.Dir,
			Timeout: a.Spec.Timeout,
		}
		if err := l.Launcher.Launch(inv); err != nil {
			l.log.Warn().Err(err).Str("task", a.Spec.ID).Msg("launch rejected")
			rs := l.State.RunState(a.Spec.ID)
			rs.OnFinished(a.RunID, now)
			if l.State.ActiveRuns[a.Spec.ID] == a.RunID {
				delete(l.State.ActiveRuns, a.Spec.ID)
			}
			l.handleSystem(TaskStartRejected{TaskID: a.Spec.ID, Reason: err.Error()}, now)
			return true
		}
		l.log.Info().Str("task", a.Spec.ID).Uint64("run", a.RunID).Str("program", a.Spec.Program).Msg("run started")
		return false
	}
	return false
}

// Tick drains every due scheduler event and handles it. Returns true when
// any handled event changed something visible.
func (l *Loop) Tick(now time.Time) bool {
	events := l.Sched.DrainReady(now)
	render := false
	for _, ev := range events {
		if l.handleEvent(ev, now) {
			render = true
		}
	}
	return render
}

func (l *Loop) handleEvent(ev sched.Event, now time.Time) bool {
	switch e := ev.(type) {
	case ClearInlineError:
		if _, ok := l.State.InlineErrors[e.WidgetID]; !ok {
			return false
		}
		delete(l.State.InlineErrors, e.WidgetID)
		return true

	case ClearStepError:
		if l.State.StepError == "" {
			return false
		}
		l.State.StepError = ""
		return true

	case ClearTaskError:
		tv := l.State.TaskDisplay(e.TaskID)
		if tv.Err == "" {
			return false
		}
		tv.Err = ""
		if tv.Status == "rejected" {
			tv.Status = "idle"
		}
		return true

	case RescanWidget:
		w := l.State.Flow.WidgetByID(e.WidgetID)
		if w == nil {
			return false
		}
		if r, ok := w.(widget.Rescanner); ok {
			r.Rescan()
			if fw := l.State.FocusedWidget(); fw != nil && fw.ID() == e.WidgetID {
				refreshGhost(l.State, fw)
			}
			return true
		}
		return false

	case ReloadConfig:
		l.log.Info().Msg("reloading flow definition")
		if l.Hooks.OnReload != nil {
			l.Hooks.OnReload()
		}
		return true
	}

	// Unknown payloads pass through as intents for embedders that schedule
	// their own events.
	if it, ok := ev.(Intent); ok {
		return l.Dispatch(it, now)
	}
	return false
}

// HandleLog appends a line to its task's display ring, unless the line
// belongs to a superseded run, in which case it is dropped without trace.
func (l *Loop) HandleLog(line task.LogLine) bool {
	if l.State.ActiveRuns[line.TaskID] != line.RunID {
		return false
	}
	tv := l.State.TaskDisplay(line.TaskID)
	tv.Lines = append(tv.Lines, line.Line)
	if len(tv.Lines) > maxTaskLines {
		tv.Lines = tv.Lines[len(tv.Lines)-maxTaskLines:]
	}
	return true
}

// HandleCompletion records a run's terminal report. Bookkeeping (the
// running counter, breaker observation) always happens; display and hooks
// only fire when the completion still belongs to the active run.
func (l *Loop) HandleCompletion(c task.Completion, now time.Time) bool {
	rs := l.State.RunState(c.TaskID)
	rs.OnFinished(c.RunID, now)

	if spec, ok := l.State.Flow.Task(c.TaskID); ok {
		l.Launcher.Observe(spec.Program, c)
	}

	if l.State.ActiveRuns[c.TaskID] != c.RunID {
		l.log.Debug().Str("task", c.TaskID).Uint64("run", c.RunID).Msg("stale completion discarded")
		return false
	}
	delete(l.State.ActiveRuns, c.TaskID)

	tv := l.State.TaskDisplay(c.TaskID)
	tv.LastDuration = c.Duration
	switch {
	case c.Cancelled:
		tv.Status = "cancelled"
	case c.Err != "" || c.StatusCode != 0:
		tv.Status = "failed"
		tv.Err = c.Err
		if tv.Err == "" {
			tv.Err = "exited with status " + strconv.Itoa(c.StatusCode)
		}
		l.Sched.Schedule(sched.Debounce{
			Key:   taskErrorKey(c.TaskID),
			Delay: TaskErrorTTL,
			Event: ClearTaskError{TaskID: c.TaskID},
		}, now)
	default:
		tv.Status = "ok"
	}

	l.log.Info().
		Str("task", c.TaskID).
		Uint64("run", c.RunID).
		Str("status", tv.Status).
		Dur("duration", c.Duration).
		Msg("run finished")

	if l.Hooks.OnRunFinished != nil {
		l.Hooks.OnRunFinished(c.TaskID, c)
	}
	return true
}

// PollTimeout bounds how long the outer driver may block waiting for input
// before the next delayed event comes due.
func (l *Loop) PollTimeout(now time.Time, def time.Duration) time.Duration {
	return l.Sched.PollTimeout(now, def)
}
