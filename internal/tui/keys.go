package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/stepflow/internal/runtime"
)

// Keybinding constants
const (
	KeyTab      = "tab"
	KeyShiftTab = "shift+tab"
	KeyEsc      = "esc"
	KeyEnter    = "enter"
	KeyCtrlC    = "ctrl+c"
	KeyHelp     = "f1"
	KeyLog      = "f2"
)

// intentFor classifies a key press into a runtime intent. Keys with
// dispatch rules of their own travel as RawKey; ordinary editing keys as
// Edit.
func intentFor(msg tea.KeyMsg) runtime.Intent {
	switch msg.String() {
	case KeyCtrlC:
		return runtime.Exit{}
	case KeyEnter:
		return runtime.Submit{}
	case KeyTab:
		return runtime.RawKey{Key: KeyTab}
	case KeyShiftTab:
		return runtime.RawKey{Key: KeyShiftTab}
	case KeyEsc:
		return runtime.RawKey{Key: KeyEsc}
	case KeyHelp:
		return runtime.OverlayOpen{ID: "help"}
	case KeyLog:
		return runtime.OverlayOpen{ID: "log"}
	case "up", "down":
		return runtime.RawKey{Key: msg.String()}
	}
	return runtime.Edit{Key: msg.String()}
}

// HelpView returns a one-line help bar with common keybindings.
func HelpView() string {
	return StyleHelp.Render("Enter: next | Tab: complete/focus | Esc: dismiss | F1: help | F2: task log | Ctrl+C: quit")
}
