package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/aristath/stepflow/internal/flow"
	"github.com/aristath/stepflow/internal/task"
	"github.com/aristath/stepflow/internal/widget"
)

// flowFile mirrors the TOML flow-definition layout.
type flowFile struct {
	ID    string              `toml:"id"`
	Title string              `toml:"title"`
	Steps []stepFile          `toml:"step"`
	Tasks map[string]taskFile `toml:"task"`
}

type stepFile struct {
	ID      string       `toml:"id"`
	Title   string       `toml:"title"`
	After   []string     `toml:"after"`
	OnEnter string       `toml:"on_enter"`
	OnExit  string       `toml:"on_exit"`
	Widgets []widgetFile `toml:"widget"`
}

type widgetFile struct {
	ID         string   `toml:"id"`
	Kind       string   `toml:"kind"` // text, select
	Label      string   `toml:"label"`
	Required   bool     `toml:"required"`
	Default    string   `toml:"default"`
	Candidates []string `toml:"candidates"`
	Options    []string `toml:"options"`
	PathMode   bool     `toml:"path_mode"`
}

type taskFile struct {
	Program     string   `toml:"program"`
	Args        []string `toml:"args"`
	Dir         string   `toml:"dir"`
	Timeout     duration `toml:"timeout"`
	Rerun       string   `toml:"rerun"`       // never, always, if_changed, cooldown
	Cooldown    duration `toml:"cooldown"`
	Concurrency string   `toml:"concurrency"` // reject, restart, parallel
}

// duration lets TOML carry Go duration strings like "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// LoadFlow reads a TOML flow definition, builds the widgets and task
// specs, and validates the result.
func LoadFlow(path string) (*flow.Flow, error) {
	var file flowFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("parsing flow %s: %w", path, err)
	}
	return buildFlow(&file)
}

// ParseFlow builds a flow from TOML held in memory; tests and reload paths
// use it directly.
func ParseFlow(data string) (*flow.Flow, error) {
	var file flowFile
	if _, err := toml.Decode(data, &file); err != nil {
		return nil, fmt.Errorf("parsing flow: %w", err)
	}
	return buildFlow(&file)
}

func buildFlow(file *flowFile) (*flow.Flow, error) {
	f := &flow.Flow{
		ID:    file.ID,
		Title: file.Title,
		Tasks: make(map[string]flow.TaskSpec, len(file.Tasks)),
	}

	for id, tf := range file.Tasks {
		spec, err := buildTask(id, tf)
		if err != nil {
			return nil, err
		}
		f.Tasks[id] = spec
	}

	for _, sf := range file.Steps {
		step := &flow.Step{
			ID:      sf.ID,
			Title:   sf.Title,
			After:   sf.After,
			OnEnter: sf.OnEnter,
			OnExit:  sf.OnExit,
		}
		for _, wf := range sf.Widgets {
			w, err := buildWidget(sf.ID, wf)
			if err != nil {
				return nil, err
			}
			step.Widgets = append(step.Widgets, w)
		}
		f.Steps = append(f.Steps, step)
	}

	if _, err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func buildTask(id string, tf taskFile) (flow.TaskSpec, error) {
	if tf.Program == "" {
		return flow.TaskSpec{}, fmt.Errorf("task %q has no program", id)
	}

	rerun := task.RerunPolicy{Cooldown: tf.Cooldown.Duration}
	switch tf.Rerun {
	case "", "always":
		rerun.Kind = task.RerunAlways
	case "never":
		rerun.Kind = task.RerunNever
	case "if_changed":
		rerun.Kind = task.RerunIfChanged
	case "cooldown":
		rerun.Kind = task.RerunCooldown
		if rerun.Cooldown <= 0 {
			return flow.TaskSpec{}, fmt.Errorf("task %q: cooldown rerun needs a positive cooldown", id)
		}
	default:
		return flow.TaskSpec{}, fmt.Errorf("task %q: unknown rerun policy %q", id, tf.Rerun)
	}

	var conc task.ConcurrencyPolicy
	switch tf.Concurrency {
	case "", "reject":
		conc = task.ConcurrencyReject
	case "restart":
		conc = task.ConcurrencyRestart
	case "parallel":
		conc = task.ConcurrencyParallel
	default:
		return flow.TaskSpec{}, fmt.Errorf("task %q: unknown concurrency policy %q", id, tf.Concurrency)
	}

	return flow.TaskSpec{
		ID:          id,
		Program:     tf.Program,
		Args:        tf.Args,
		Dir:         tf.Dir,
		Timeout:     tf.Timeout.Duration,
		Rerun:       rerun,
		Concurrency: conc,
	}, nil
}

func buildWidget(stepID string, wf widgetFile) (widget.Widget, error) {
	if wf.ID == "" {
		return nil, fmt.Errorf("step %q has a widget without an id", stepID)
	}

	switch wf.Kind {
	case "", "text":
		t := widget.NewTextInput(wf.ID, wf.Label)
		t.Required = wf.Required
		t.Candidates = wf.Candidates
		t.PathMode = wf.PathMode
		t.Rescan()
		if wf.Default != "" {
			t.SetValue(wf.Default)
		}
		return t, nil

	case "select":
		if len(wf.Options) == 0 {
			return nil, fmt.Errorf("select widget %q has no options", wf.ID)
		}
		s := widget.NewSelect(wf.ID, wf.Label, wf.Options)
		s.Required = wf.Required
		return s, nil
	}
	return nil, fmt.Errorf("widget %q: unknown kind %q", wf.ID, wf.Kind)
}
