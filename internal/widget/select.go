package widget

import (
	"fmt"
)

// errRequired is the shared empty-value validation failure.
func errRequired(label string) error {
	return fmt.Errorf("%s is required", label)
}

// Select is a fixed-choice widget cycled with up/down (or j/k).
type Select struct {
	id      string
	label   string
	options []string
	index   int
	chosen  bool

	Required bool
}

// NewSelect creates a select widget over the given options.
func NewSelect(id, label string, options []string) *Select {
	return &Select{id: id, label: label, options: options}
}

func (s *Select) ID() string    { return s.id }
func (s *Select) Label() string { return s.label }

// Options returns the selectable values.
func (s *Select) Options() []string { return s.options }

// Index returns the highlighted option index.
func (s *Select) Index() int { return s.index }

// Value returns the highlighted option, or empty for no options.
func (s *Select) Value() string {
	if len(s.options) == 0 {
		return ""
	}
	return s.options[s.index]
}

// HandleKey cycles the highlighted option.
func (s *Select) HandleKey(key string) KeyResult {
	if len(s.options) == 0 {
		return KeyIgnored
	}
	switch key {
	case "down", "j":
		s.index = (s.index + 1) % len(s.options)
		s.chosen = true
		return KeyHandled
	case "up", "k":
		s.index = (s.index + len(s.options) - 1) % len(s.options)
		s.chosen = true
		return KeyHandled
	case " ", "space":
		s.chosen = true
		return KeyProducedValue
	}
	return KeyIgnored
}

// Validate requires an explicit choice when Required is set.
func (s *Select) Validate(mode ValidateMode) error {
	if s.Required && mode == ValidateSubmit && !s.chosen {
		return errRequired(s.label)
	}
	return nil
}
