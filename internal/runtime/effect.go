package runtime

import (
	"github.com/aristath/stepflow/internal/flow"
	"github.com/aristath/stepflow/internal/sched"
)

// Effect is the closed set of outputs a reduction can produce. The loop
// applies them in order; renders coalesce to at most one per dispatch.
type Effect interface {
	isEffect()
}

// Action asks the loop to perform a widget-or-task action.
type Action struct {
	Action WidgetAction
}

// System reports a runtime-level event to the loop and its hooks.
type System struct {
	Event SystemEvent
}

// Schedule forwards a command to the scheduler.
type Schedule struct {
	Command sched.Command
}

// RequestRender marks the dispatch as needing a render pass.
type RequestRender struct{}

func (Action) isEffect()        {}
func (System) isEffect()        {}
func (Schedule) isEffect()      {}
func (RequestRender) isEffect() {}

// WidgetAction is the closed set of actions the loop executes on behalf of
// the reducer.
type WidgetAction interface {
	isWidgetAction()
}

// StartRun hands a task invocation to the executor. The reducer has already
// consumed a run id and recorded the start; a failed launch is rolled back
// by the loop and surfaced as a rejection.
type StartRun struct {
	Spec        flow.TaskSpec
	RunID       uint64
	Fingerprint *uint64
}

// CancelRun instructs the executor to cancel an in-flight run before its
// replacement starts.
type CancelRun struct {
	TaskID string
	RunID  uint64
}

func (StartRun) isWidgetAction()  {}
func (CancelRun) isWidgetAction() {}

// SystemEvent is the closed set of runtime-level notifications.
type SystemEvent interface {
	isSystemEvent()
}

// ExitRequested means the user asked to leave the wizard.
type ExitRequested struct{}

// FlowFinished means the final step was submitted cleanly.
type FlowFinished struct{}

// StepChanged means focus moved to a different step.
type StepChanged struct {
	Index int
}

// StepSubmitted carries a cleanly submitted step's answers.
type StepSubmitted struct {
	StepID string
	Values map[string]string
}

// TaskStartRejected means a task refused to start; the policy or the
// executor said no. Reported as data, never an error.
type TaskStartRejected struct {
	TaskID string
	Reason string
}

func (ExitRequested) isSystemEvent()     {}
func (FlowFinished) isSystemEvent()      {}
func (StepChanged) isSystemEvent()       {}
func (StepSubmitted) isSystemEvent()     {}
func (TaskStartRejected) isSystemEvent() {}
