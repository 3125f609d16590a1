// Package flow models a wizard: an ordered list of steps, each holding
// widgets and optional task hooks, plus the task specifications those hooks
// refer to.
package flow

import (
	"fmt"
	"sort"
	"time"

	"github.com/gammazero/toposort"

	"github.com/aristath/stepflow/internal/task"
	"github.com/aristath/stepflow/internal/widget"
)

// TaskSpec describes one external command a flow can run, together with the
// policies governing its restarts.
type TaskSpec struct {
	ID          string
	Program     string
	Args        []string
	Dir         string
	Timeout     time.Duration
	Rerun       task.RerunPolicy
	Concurrency task.ConcurrencyPolicy
}

// Step is one screen of the wizard.
type Step struct {
	ID      string
	Title   string
	Widgets []widget.Widget

	// After lists step IDs that must have been submitted before this one
	// may be entered. Declaration order must already satisfy them;
	// Validate rejects forward or cyclic references.
	After []string

	// OnEnter and OnExit name tasks to start when the step is entered
	// and when it is successfully submitted. Empty means no hook.
	OnEnter string
	OnExit  string
}

// Flow is a validated wizard definition.
type Flow struct {
	ID    string
	Title string
	Steps []*Step
	Tasks map[string]TaskSpec
}

// Task looks up a task spec by id.
func (f *Flow) Task(id string) (TaskSpec, bool) {
	spec, ok := f.Tasks[id]
	return spec, ok
}

// TaskIDs returns the flow's task ids in stable sorted order.
func (f *Flow) TaskIDs() []string {
	ids := make([]string, 0, len(f.Tasks))
	for id := range f.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Step returns the step at index, or nil when out of range.
func (f *Flow) Step(index int) *Step {
	if index < 0 || index >= len(f.Steps) {
		return nil
	}
	return f.Steps[index]
}

// Validate checks the flow for structural problems: duplicate or empty step
// IDs, unknown After/task references, cyclic ordering constraints, and
// declaration order that contradicts the After constraints. Returns the
// topological order of step IDs on success.
func (f *Flow) Validate() ([]string, error) {
	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("flow %q has no steps", f.ID)
	}

	position := make(map[string]int, len(f.Steps))
	for i, step := range f.Steps {
		if step.ID == "" {
			return nil, fmt.Errorf("flow %q: step %d has no id", f.ID, i)
		}
		if _, dup := position[step.ID]; dup {
			return nil, fmt.Errorf("flow %q: duplicate step id %q", f.ID, step.ID)
		}
		position[step.ID] = i
	}

	for _, step := range f.Steps {
		for _, dep := range step.After {
			depPos, ok := position[dep]
			if !ok {
				return nil, fmt.Errorf("step %q depends on unknown step %q", step.ID, dep)
			}
			if depPos >= position[step.ID] {
				return nil, fmt.Errorf("step %q depends on %q, which is not declared before it", step.ID, dep)
			}
		}
		for _, taskID := range []string{step.OnEnter, step.OnExit} {
			if taskID == "" {
				continue
			}
			if _, ok := f.Tasks[taskID]; !ok {
				return nil, fmt.Errorf("step %q references unknown task %q", step.ID, taskID)
			}
		}
	}

	// Topological sort over the After constraints catches cycles that the
	// positional check alone would already reject, and yields the order.
	var edges []toposort.Edge
	for _, step := range f.Steps {
		if len(step.After) == 0 {
			edges = append(edges, toposort.Edge{nil, step.ID})
		} else {
			for _, dep := range step.After {
				edges = append(edges, toposort.Edge{dep, step.ID})
			}
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("flow %q step ordering contains cycle: %w", f.ID, err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	return order, nil
}

// WidgetByID finds a widget anywhere in the flow.
func (f *Flow) WidgetByID(id string) widget.Widget {
	for _, step := range f.Steps {
		for _, w := range step.Widgets {
			if w.ID() == id {
				return w
			}
		}
	}
	return nil
}
