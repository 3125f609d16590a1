// Package runtime binds the scheduler, task policies, and completion engine
// together through an intent -> reducer -> effect dispatch loop. The outer
// driver (the TUI) turns terminal input into intents, dispatches them
// through the reducer, and applies the resulting effects.
package runtime

// Intent is the closed set of inputs the reducer accepts.
type Intent interface {
	isIntent()
}

// Exit requests an orderly shutdown.
type Exit struct{}

// Submit advances the wizard: accept completion, validate, run hooks, move
// to the next step.
type Submit struct{}

// FocusNext moves focus to the next widget in the step.
type FocusNext struct{}

// FocusPrev moves focus to the previous widget in the step.
type FocusPrev struct{}

// RawKey is a key with dispatch rules of its own (tab, esc, unbound keys).
type RawKey struct {
	Key string
}

// Edit is a text-editing key destined for the focused widget.
type Edit struct {
	Key string
}

// OverlayOpen opens an overlay by id, or by index when ID is empty.
type OverlayOpen struct {
	ID    string
	Index int
}

// OverlayClose closes the open overlay.
type OverlayClose struct{}

// Tick carries no payload; the loop drains due scheduler events around it.
type Tick struct{}

// Noop does nothing.
type Noop struct{}

func (Exit) isIntent()         {}
func (Submit) isIntent()       {}
func (FocusNext) isIntent()    {}
func (FocusPrev) isIntent()    {}
func (RawKey) isIntent()       {}
func (Edit) isIntent()         {}
func (OverlayOpen) isIntent()  {}
func (OverlayClose) isIntent() {}
func (Tick) isIntent()         {}
func (Noop) isIntent()         {}
