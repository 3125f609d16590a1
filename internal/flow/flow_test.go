package flow

import (
	"strings"
	"testing"

	"github.com/aristath/stepflow/internal/widget"
)

// TestFlowValidate tests flow validation across graph shapes.
func TestFlowValidate(t *testing.T) {
	tests := []struct {
		name        string
		flow        *Flow
		wantErr     bool
		errContains string
	}{
		{
			name: "linear chain",
			flow: &Flow{ID: "f", Steps: []*Step{
				{ID: "a"},
				{ID: "b", After: []string{"a"}},
				{ID: "c", After: []string{"b"}},
			}},
		},
		{
			name: "independent steps",
			flow: &Flow{ID: "f", Steps: []*Step{
				{ID: "a"},
				{ID: "b"},
				{ID: "c", After: []string{"a", "b"}},
			}},
		},
		{
			name:        "no steps",
			flow:        &Flow{ID: "f"},
			wantErr:     true,
			errContains: "no steps",
		},
		{
			name: "duplicate ids",
			flow: &Flow{ID: "f", Steps: []*Step{
				{ID: "a"},
				{ID: "a"},
			}},
			wantErr:     true,
			errContains: "duplicate",
		},
		{
			name: "unknown dependency",
			flow: &Flow{ID: "f", Steps: []*Step{
				{ID: "a", After: []string{"ghost"}},
			}},
			wantErr:     true,
			errContains: "unknown step",
		},
		{
			name: "forward dependency",
			flow: &Flow{ID: "f", Steps: []*Step{
				{ID: "a", After: []string{"b"}},
				{ID: "b"},
			}},
			wantErr:     true,
			errContains: "not declared before",
		},
		{
			name: "unknown task hook",
			flow: &Flow{ID: "f", Steps: []*Step{
				{ID: "a", OnExit: "missing"},
			}},
			wantErr:     true,
			errContains: "unknown task",
		},
		{
			name: "known task hook",
			flow: &Flow{
				ID:    "f",
				Steps: []*Step{{ID: "a", OnExit: "build"}},
				Tasks: map[string]TaskSpec{"build": {ID: "build", Program: "make"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := tt.flow.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("want error, got nil")
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if len(order) != len(tt.flow.Steps) {
				t.Errorf("order has %d entries, want %d", len(order), len(tt.flow.Steps))
			}
		})
	}
}

func TestFlowValidateOrderRespectsDeps(t *testing.T) {
	f := &Flow{ID: "f", Steps: []*Step{
		{ID: "base"},
		{ID: "mid", After: []string{"base"}},
		{ID: "last", After: []string{"mid", "base"}},
	}}

	order, err := f.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if !(pos["base"] < pos["mid"] && pos["mid"] < pos["last"]) {
		t.Errorf("topological order %v violates dependencies", order)
	}
}

func TestFlowLookups(t *testing.T) {
	w := widget.NewTextInput("name", "Name")
	f := &Flow{
		ID:    "f",
		Steps: []*Step{{ID: "a", Widgets: []widget.Widget{w}}},
		Tasks: map[string]TaskSpec{"build": {ID: "build", Program: "make"}},
	}

	if got := f.WidgetByID("name"); got != w {
		t.Error("WidgetByID did not find the widget")
	}
	if got := f.WidgetByID("nope"); got != nil {
		t.Error("WidgetByID found a ghost widget")
	}
	if _, ok := f.Task("build"); !ok {
		t.Error("Task lookup failed")
	}
	if f.Step(0) == nil || f.Step(1) != nil || f.Step(-1) != nil {
		t.Error("Step index bounds wrong")
	}
}
