package runtime

import (
	"time"
)

// Scheduler event payloads. These travel through the scheduler as opaque
// values and come back to the loop when due.

// ClearInlineError removes a widget's inline validation message after its
// display TTL. Debounced on key "validation:inline:{id}" so re-validation
// restarts the clock.
type ClearInlineError struct {
	WidgetID string
}

// ClearStepError removes the step-level error banner.
type ClearStepError struct{}

// ClearTaskError removes a task's error line after its display TTL.
type ClearTaskError struct {
	TaskID string
}

// RescanWidget re-derives a widget's candidate list. Debounced on key
// "rescan:{id}": typing more characters cancels the previous pending scan.
type RescanWidget struct {
	WidgetID string
}

// ReloadConfig asks the loop's reload hook to re-read the flow definition.
// Debounced on key "config:reload" by the file watcher.
type ReloadConfig struct{}

// Display TTLs and debounce windows.
const (
	InlineErrorTTL = 4 * time.Second
	StepErrorTTL   = 6 * time.Second
	TaskErrorTTL   = 10 * time.Second
	RescanDelay    = 150 * time.Millisecond
)

// Scheduler key helpers, kept in one place so producers and tests agree.
func inlineErrorKey(widgetID string) string { return "validation:inline:" + widgetID }
func stepErrorKey(stepID string) string     { return "validation:step:" + stepID }
func taskErrorKey(taskID string) string     { return "task:error:" + taskID }
func rescanKey(widgetID string) string      { return "rescan:" + widgetID }
