package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/stepflow/internal/runtime"
	"github.com/aristath/stepflow/internal/sched"
	"github.com/aristath/stepflow/internal/task"
)

// reloadDebounce coalesces bursts of file-change notifications into one
// reload.
const reloadDebounce = 300 * time.Millisecond

// Messages pumped in from the loop's input channels.
type (
	logMsg        task.LogLine
	completionMsg task.Completion
	flowChangedMsg string
	tickMsg       struct {
		tag int
	}
)

// Model is the root Bubble Tea model. It translates terminal input into
// intents, feeds them through the runtime loop, and renders the loop's
// state. All loop access happens on the update goroutine.
type Model struct {
	loop    *runtime.Loop
	changes <-chan string // nil when flow watching is off

	width    int
	height   int
	quitting bool

	// viewport scrolls the task output overlay.
	viewport viewport.Model

	// tickTag invalidates stale scheduled ticks: only the most recently
	// armed tick is honored.
	tickTag     int
	defaultPoll time.Duration
}

// New creates the root model around a prepared loop. changes may be nil.
func New(loop *runtime.Loop, changes <-chan string, defaultPoll time.Duration) Model {
	if defaultPoll <= 0 {
		defaultPoll = 250 * time.Millisecond
	}
	return Model{
		loop:        loop,
		changes:     changes,
		defaultPoll: defaultPoll,
		viewport:    viewport.New(0, 0),
	}
}

// Init arms the channel pumps and the first poll tick.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForLog(m.loop.Exec.Logs()),
		waitForCompletion(m.loop.Exec.Completions()),
	}
	if m.changes != nil {
		cmds = append(cmds, waitForChange(m.changes))
	}
	cmds = append(cmds, m.armTick(time.Now()))
	return tea.Batch(cmds...)
}

// waitForLog returns a command that delivers the next task output line.
func waitForLog(logs <-chan task.LogLine) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-logs
		if !ok {
			return nil
		}
		return logMsg(line)
	}
}

// waitForCompletion returns a command that delivers the next terminal run
// report.
func waitForCompletion(done <-chan task.Completion) tea.Cmd {
	return func() tea.Msg {
		c, ok := <-done
		if !ok {
			return nil
		}
		return completionMsg(c)
	}
}

// waitForChange returns a command that delivers the next flow file change.
func waitForChange(changes <-chan string) tea.Cmd {
	return func() tea.Msg {
		path, ok := <-changes
		if !ok {
			return nil
		}
		return flowChangedMsg(path)
	}
}

// armTick schedules the next poll tick, bounded by the soonest pending
// timer. The current tickTag travels with it; Update drops ticks carrying
// an older tag.
func (m Model) armTick(now time.Time) tea.Cmd {
	timeout := m.loop.PollTimeout(now, m.defaultPoll)
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	tag := m.tickTag
	return tea.Tick(timeout, func(time.Time) tea.Msg {
		return tickMsg{tag: tag}
	})
}

// Update handles messages and drives the loop.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	now := time.Now()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 4
		return m, nil

	case tea.KeyMsg:
		// Overlays are modal. Help swallows everything but its close keys;
		// the log overlay forwards the rest to the viewport for scrolling.
		if m.loop.State.Overlay == "help" {
			switch msg.String() {
			case KeyEsc, KeyHelp, KeyCtrlC:
			default:
				return m, nil
			}
		}
		if m.loop.State.Overlay == "log" {
			switch msg.String() {
			case KeyEsc, KeyLog, KeyCtrlC:
			default:
				var cmd tea.Cmd
				m.viewport, cmd = m.viewport.Update(msg)
				return m, cmd
			}
		}

		m.loop.Tick(now)
		m.loop.Dispatch(intentFor(msg), now)
		if m.loop.State.Done {
			m.quitting = true
			return m, tea.Quit
		}
		if m.loop.State.Overlay == "log" {
			m.viewport.SetContent(m.taskLogContent())
			m.viewport.GotoBottom()
		}
		m.tickTag++
		return m, m.armTick(now)

	case tickMsg:
		if msg.tag != m.tickTag {
			return m, nil
		}
		m.loop.Tick(now)
		m.tickTag++
		return m, m.armTick(now)

	case logMsg:
		m.loop.HandleLog(task.LogLine(msg))
		if m.loop.State.Overlay == "log" {
			m.viewport.SetContent(m.taskLogContent())
			m.viewport.GotoBottom()
		}
		return m, waitForLog(m.loop.Exec.Logs())

	case completionMsg:
		m.loop.HandleCompletion(task.Completion(msg), now)
		return m, waitForCompletion(m.loop.Exec.Completions())

	case flowChangedMsg:
		m.loop.Sched.Schedule(sched.Debounce{
			Key:   "config:reload",
			Delay: reloadDebounce,
			Event: runtime.ReloadConfig{},
		}, now)
		m.tickTag++
		return m, tea.Batch(waitForChange(m.changes), m.armTick(now))
	}

	return m, nil
}
