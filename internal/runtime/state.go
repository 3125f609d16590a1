package runtime

import (
	"time"

	"github.com/google/uuid"

	"github.com/aristath/stepflow/internal/completion"
	"github.com/aristath/stepflow/internal/flow"
	"github.com/aristath/stepflow/internal/task"
	"github.com/aristath/stepflow/internal/widget"
)

// maxTaskLines bounds the per-task output ring kept for display.
const maxTaskLines = 500

// TaskDisplay is what the renderer sees of a task: status, recent output,
// and the error line (if any) still within its display TTL.
type TaskDisplay struct {
	Status       string // idle, running, ok, failed, cancelled, rejected
	Lines        []string
	Err          string
	LastDuration time.Duration
}

// State is the mutable runtime state owned by the single-threaded loop.
// Nothing here is locked: the reducer and effect application are the only
// mutators and they never run concurrently.
type State struct {
	Flow      *flow.Flow
	SessionID string

	StepIndex int
	Focus     int
	Done      bool

	Overlay  string
	Overlays []string

	StepError    string
	InlineErrors map[string]string

	Completion *completion.Engine

	runStates  map[string]*task.RunState
	ActiveRuns map[string]uint64
	tasks      map[string]*TaskDisplay
}

// NewState creates runtime state for a validated flow.
func NewState(f *flow.Flow) *State {
	return &State{
		Flow:         f,
		SessionID:    uuid.NewString(),
		Overlays:     []string{"help", "log"},
		InlineErrors: make(map[string]string),
		Completion:   completion.New(),
		runStates:    make(map[string]*task.RunState),
		ActiveRuns:   make(map[string]uint64),
		tasks:        make(map[string]*TaskDisplay),
	}
}

// CurrentStep returns the step the wizard is on, or nil when done.
func (s *State) CurrentStep() *flow.Step {
	return s.Flow.Step(s.StepIndex)
}

// FocusedWidget returns the focused widget, or nil for an empty step.
func (s *State) FocusedWidget() widget.Widget {
	step := s.CurrentStep()
	if step == nil || len(step.Widgets) == 0 {
		return nil
	}
	if s.Focus < 0 || s.Focus >= len(step.Widgets) {
		return nil
	}
	return step.Widgets[s.Focus]
}

// RunState returns the run bookkeeping for a task, creating it on first
// use.
func (s *State) RunState(taskID string) *task.RunState {
	rs, ok := s.runStates[taskID]
	if !ok {
		rs = &task.RunState{}
		s.runStates[taskID] = rs
	}
	return rs
}

// TaskDisplay returns the display state for a task, creating it on first
// use.
func (s *State) TaskDisplay(taskID string) *TaskDisplay {
	tv, ok := s.tasks[taskID]
	if !ok {
		tv = &TaskDisplay{Status: "idle"}
		s.tasks[taskID] = tv
	}
	return tv
}

// SwapFlow replaces the flow definition in place, carrying over the values
// of widgets whose ids survive and re-anchoring the current step by id.
// Run bookkeeping is kept so policies still see earlier runs.
func (s *State) SwapFlow(f *flow.Flow) {
	prior := s.Answers()
	currentID := ""
	if step := s.CurrentStep(); step != nil {
		currentID = step.ID
	}

	s.Flow = f
	s.StepIndex = 0
	s.Focus = 0
	s.Overlay = ""
	s.StepError = ""
	s.InlineErrors = make(map[string]string)
	s.Completion.Close()

	for id, value := range prior {
		if value == "" {
			continue
		}
		if t, ok := f.WidgetByID(id).(interface{ SetValue(string) }); ok {
			t.SetValue(value)
		}
	}

	for i, step := range f.Steps {
		if step.ID == currentID {
			s.StepIndex = i
			break
		}
	}
}

// Answers collects every widget's current value across the whole flow,
// keyed by widget id. Used for fingerprints and step submission records.
func (s *State) Answers() map[string]string {
	values := make(map[string]string)
	for _, step := range s.Flow.Steps {
		for _, w := range step.Widgets {
			values[w.ID()] = w.Value()
		}
	}
	return values
}

// StepValues collects the submitted values of one step.
func (s *State) StepValues(step *flow.Step) map[string]string {
	values := make(map[string]string, len(step.Widgets))
	for _, w := range step.Widgets {
		values[w.ID()] = w.Value()
	}
	return values
}
