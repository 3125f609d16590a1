// Package widget defines the capability surface a focused node exposes to
// the runtime, plus the reference widgets the wizard ships with. The
// runtime never reaches into widget internals: everything flows through
// these interfaces.
package widget

import (
	"github.com/aristath/stepflow/internal/completion"
)

// ValidateMode selects between per-keystroke and submit-time validation.
type ValidateMode int

const (
	ValidateLive ValidateMode = iota
	ValidateSubmit
)

// KeyResult is the closed set of key handler outcomes.
type KeyResult int

const (
	KeyIgnored       KeyResult = iota // Widget did not consume the key
	KeyHandled                        // Widget consumed the key
	KeyProducedValue                  // Widget consumed the key and committed a value
)

// Widget is the minimal surface every focusable node exposes.
type Widget interface {
	ID() string
	Label() string

	// Value returns the widget's current buffer or selection.
	Value() string

	// HandleKey processes a raw key name (bubbletea key string form) and
	// reports whether it was consumed.
	HandleKey(key string) KeyResult

	// Validate checks the current value. Live mode runs on every edit;
	// Submit mode gates step advancement.
	Validate(mode ValidateMode) error
}

// Completer is the optional completion capability. A widget that returns
// ok=false from TokenView has no completion for its current state and any
// open session for it must close.
type Completer interface {
	Widget

	// TokenView snapshots the buffer, cursor, candidates, and token
	// boundary for the completion engine.
	TokenView() (completion.TokenView, bool)

	// ApplyRewrite performs a programmatic buffer rewrite and then runs
	// the widget's post-edit hook so it can re-derive internal state.
	ApplyRewrite(r completion.Rewrite)
}

// Rescanner is the optional hook for widgets whose candidate lists are
// derived from the outside world (directory listings and the like). The
// runtime invokes it from a debounced scheduler event, so a burst of
// keystrokes produces one rescan.
type Rescanner interface {
	Rescan()
}

// InnerAdvancer lets composite widgets consume a submit to move focus
// between their internal parts before the step itself advances.
type InnerAdvancer interface {
	AdvanceFocus() bool
}
