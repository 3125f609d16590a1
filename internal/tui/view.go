package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/stepflow/internal/widget"
)

// View renders the wizard.
func (m Model) View() string {
	if m.quitting {
		return "Done.\n"
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.loop.State.Overlay {
	case "help":
		return m.helpOverlay()
	case "log":
		return m.logOverlay()
	}

	title := StyleTitle.Render(m.loop.State.Flow.Title) +
		StyleHelp.Render(fmt.Sprintf("  step %d/%d", m.loop.State.StepIndex+1, len(m.loop.State.Flow.Steps)))

	body := lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.renderStep(),
		m.renderTasks(),
		HelpView(),
	)
	return body
}

func (m Model) renderStep() string {
	s := m.loop.State
	step := s.CurrentStep()
	if step == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(StyleStepTitle.Render(step.Title))
	b.WriteString("\n\n")

	for i, w := range step.Widgets {
		focused := i == s.Focus
		b.WriteString(m.renderWidget(w, focused))
		if msg, ok := s.InlineErrors[w.ID()]; ok {
			b.WriteString("  " + StyleError.Render("✗ "+msg) + "\n")
		}
		b.WriteString("\n")
	}

	if s.StepError != "" {
		b.WriteString(StyleError.Render("! " + s.StepError))
		b.WriteString("\n")
	}

	style := StyleFocusedBorder
	return style.Width(m.width - 2).Render(b.String())
}

func (m Model) renderWidget(w widget.Widget, focused bool) string {
	label := StyleLabel
	marker := "  "
	if focused {
		label = StyleFocusedLabel
		marker = "> "
	}

	switch t := w.(type) {
	case *widget.TextInput:
		return marker + label.Render(t.Label()) + ": " + m.renderTextValue(t, focused) + "\n"

	case *widget.Select:
		var b strings.Builder
		b.WriteString(marker + label.Render(t.Label()) + ":\n")
		for i, opt := range t.Options() {
			cursor := "   "
			style := StyleLabel
			if i == t.Index() {
				cursor = " ● "
				style = StyleSelected
			}
			if !focused {
				style = StyleStatusIdle
			}
			b.WriteString(cursor + style.Render(opt) + "\n")
		}
		return b.String()
	}
	return marker + label.Render(w.Label()) + ": " + w.Value() + "\n"
}

// renderTextValue draws the buffer with a cursor block and, when a
// completion session is open, the ghost suffix of the selected match.
func (m Model) renderTextValue(t *widget.TextInput, focused bool) string {
	value := t.Value()
	if !focused {
		return value
	}

	runes := []rune(value)
	cursor := t.Cursor()

	ghost := ""
	if view, ok := t.TokenView(); ok {
		ghost = m.loop.State.Completion.GhostSuffix(t.ID(), view)
	}

	if cursor >= len(runes) {
		if ghost != "" {
			// The cursor sits on the first ghost rune.
			gr := []rune(ghost)
			return value + StyleCursor.Render(string(gr[0])) + StyleGhost.Render(string(gr[1:]))
		}
		return value + StyleCursor.Render(" ")
	}
	return string(runes[:cursor]) + StyleCursor.Render(string(runes[cursor])) + string(runes[cursor+1:])
}

func (m Model) renderTasks() string {
	s := m.loop.State
	ids := s.Flow.TaskIDs()
	if len(ids) == 0 {
		return ""
	}

	var b strings.Builder
	for _, id := range ids {
		tv := s.TaskDisplay(id)
		style := StyleStatusIdle
		switch tv.Status {
		case "running":
			style = StyleStatusRunning
		case "ok":
			style = StyleStatusOK
		case "failed", "rejected", "cancelled":
			style = StyleStatusFailed
		}
		line := fmt.Sprintf("%s %s", style.Render("["+tv.Status+"]"), id)
		if tv.LastDuration > 0 {
			line += StyleHelp.Render(fmt.Sprintf(" (%s)", tv.LastDuration))
		}
		if tv.Err != "" {
			line += " " + StyleError.Render(tv.Err)
		}
		b.WriteString(line + "\n")
		if n := len(tv.Lines); n > 0 {
			b.WriteString("  " + StyleHelp.Render(tv.Lines[n-1]) + "\n")
		}
	}
	return StyleUnfocusedBorder.Width(m.width - 2).Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) helpOverlay() string {
	content := strings.Join([]string{
		StyleTitle.Render("Keys"),
		"",
		"  Enter       accept suggestion / submit step",
		"  Tab         complete, cycle matches, move focus",
		"  Shift+Tab   cycle backwards",
		"  Esc         dismiss suggestion, then overlay",
		"  Right       accept suggestion at end of input",
		"  Up/Down     cycle options / move focus",
		"  F2          task output log",
		"  Ctrl+C      quit",
		"",
		StyleHelp.Render("Esc to close"),
	}, "\n")
	return StyleFocusedBorder.Width(m.width - 2).Render(content)
}

func (m Model) logOverlay() string {
	header := StyleTitle.Render("Task output") + StyleHelp.Render("  (Esc to close, arrows to scroll)")
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		StyleFocusedBorder.Width(m.width-2).Render(m.viewport.View()),
	)
}

// taskLogContent flattens every task's retained output for the log
// overlay.
func (m Model) taskLogContent() string {
	s := m.loop.State
	var b strings.Builder
	for _, id := range s.Flow.TaskIDs() {
		tv := s.TaskDisplay(id)
		if len(tv.Lines) == 0 {
			continue
		}
		b.WriteString(StyleStepTitle.Render(id) + "\n")
		for _, line := range tv.Lines {
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return StyleHelp.Render("No task output yet.")
	}
	return b.String()
}
