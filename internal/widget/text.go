package widget

import (
	"strings"

	"github.com/aristath/stepflow/internal/completion"
)

// TextInput is a single-line editable input with cursor movement, optional
// completion candidates, and optional path-style token boundaries.
type TextInput struct {
	id    string
	label string

	runes  []rune
	cursor int

	// Candidates feeds the completion engine. CandidatesFn, when set,
	// wins over the static list and is re-invoked by Rescan.
	Candidates   []string
	CandidatesFn func() []string
	candidates   []string

	// PathMode makes the completion token start after the last separator
	// before the cursor, instead of the generic word scan.
	PathMode   bool
	AllowEmpty bool
	Required   bool

	// Validator, when set, augments the built-in Required check.
	Validator func(mode ValidateMode, value string) error

	// OnEdit runs after every buffer change, user-typed or programmatic.
	OnEdit func(value string)
}

// NewTextInput creates a text input widget.
func NewTextInput(id, label string) *TextInput {
	t := &TextInput{id: id, label: label}
	t.Rescan()
	return t
}

func (t *TextInput) ID() string    { return t.id }
func (t *TextInput) Label() string { return t.label }

// Value returns the buffer contents.
func (t *TextInput) Value() string { return string(t.runes) }

// Cursor returns the rune offset of the cursor.
func (t *TextInput) Cursor() int { return t.cursor }

// SetValue replaces the buffer and moves the cursor to the end.
func (t *TextInput) SetValue(v string) {
	t.runes = []rune(v)
	t.cursor = len(t.runes)
	t.edited()
}

// HandleKey implements single-line editing. Unrecognized keys are ignored
// so the runtime can fall back to focus movement.
func (t *TextInput) HandleKey(key string) KeyResult {
	switch key {
	case "left":
		if t.cursor > 0 {
			t.cursor--
		}
		return KeyHandled
	case "right":
		if t.cursor < len(t.runes) {
			t.cursor++
		}
		return KeyHandled
	case "home", "ctrl+a":
		t.cursor = 0
		return KeyHandled
	case "end", "ctrl+e":
		t.cursor = len(t.runes)
		return KeyHandled
	case "backspace":
		if t.cursor > 0 {
			t.runes = append(t.runes[:t.cursor-1], t.runes[t.cursor:]...)
			t.cursor--
			t.edited()
		}
		return KeyHandled
	case "delete":
		if t.cursor < len(t.runes) {
			t.runes = append(t.runes[:t.cursor], t.runes[t.cursor+1:]...)
			t.edited()
		}
		return KeyHandled
	case "ctrl+u":
		t.runes = append([]rune{}, t.runes[t.cursor:]...)
		t.cursor = 0
		t.edited()
		return KeyHandled
	case "space":
		key = " "
	}

	runes := []rune(key)
	if len(runes) != 1 || runes[0] < ' ' {
		return KeyIgnored
	}
	t.runes = append(t.runes[:t.cursor], append([]rune{runes[0]}, t.runes[t.cursor:]...)...)
	t.cursor++
	t.edited()
	return KeyHandled
}

// Validate applies the Required rule and then the custom validator.
func (t *TextInput) Validate(mode ValidateMode) error {
	if t.Required && mode == ValidateSubmit && strings.TrimSpace(t.Value()) == "" {
		return errRequired(t.label)
	}
	if t.Validator != nil {
		return t.Validator(mode, t.Value())
	}
	return nil
}

// TokenView exposes the completion capability.
func (t *TextInput) TokenView() (completion.TokenView, bool) {
	if len(t.candidates) == 0 && t.CandidatesFn == nil {
		return completion.TokenView{}, false
	}

	view := completion.TokenView{
		Value:       t.Value(),
		Cursor:      t.cursor,
		Candidates:  t.candidates,
		PrefixStart: -1,
		AllowEmpty:  t.AllowEmpty,
	}
	if t.PathMode {
		view.PrefixStart = t.pathPrefixStart()
	}
	return view, true
}

// pathPrefixStart returns the rune offset right after the last path
// separator before the cursor, or zero when there is none.
func (t *TextInput) pathPrefixStart() int {
	for i := t.cursor; i > 0; i-- {
		if t.runes[i-1] == '/' {
			return i
		}
	}
	return 0
}

// ApplyRewrite replaces the rune range [Start, End) with Text, places the
// cursor after it, and runs the post-edit hook.
func (t *TextInput) ApplyRewrite(r completion.Rewrite) {
	start, end := r.Start, r.End
	if start < 0 {
		start = 0
	}
	if end > len(t.runes) {
		end = len(t.runes)
	}
	if start > end {
		start = end
	}
	replacement := []rune(r.Text)
	rest := append([]rune{}, t.runes[end:]...)
	t.runes = append(append(t.runes[:start:start], replacement...), rest...)
	t.cursor = start + len(replacement)
	t.edited()
}

// Rescan re-derives the candidate list from CandidatesFn.
func (t *TextInput) Rescan() {
	if t.CandidatesFn != nil {
		t.candidates = t.CandidatesFn()
		return
	}
	t.candidates = t.Candidates
}

func (t *TextInput) edited() {
	// Static candidate lists follow field mutations made after New.
	if t.CandidatesFn == nil {
		t.candidates = t.Candidates
	}
	if t.OnEdit != nil {
		t.OnEdit(t.Value())
	}
}
