package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/stepflow/internal/config"
	"github.com/aristath/stepflow/internal/history"
	"github.com/aristath/stepflow/internal/logging"
	"github.com/aristath/stepflow/internal/runtime"
	"github.com/aristath/stepflow/internal/sched"
	"github.com/aristath/stepflow/internal/task"
	"github.com/aristath/stepflow/internal/tui"
)

func main() {
	flowPath := flag.String("flow", ".stepflow/flow.toml", "flow definition file")
	flag.Parse()
	if flag.NArg() > 0 {
		*flowPath = flag.Arg(0)
	}

	if err := run(*flowPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(flowPath string) error {
	// Signal-aware context for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := config.LoadDefault()
	if err != nil {
		return err
	}

	log, closeLog, err := logging.Setup(settings.LogFile, settings.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	// First run: leave an editable settings file behind.
	if err := config.SaveIfMissing(settings, config.GlobalSettingsPath()); err != nil {
		log.Warn().Err(err).Msg("writing default settings failed")
	}

	f, err := config.LoadFlow(flowPath)
	if err != nil {
		return err
	}

	var store history.Store
	if settings.HistoryPath != "" {
		store, err = history.NewSQLiteStore(ctx, settings.HistoryPath)
	} else {
		store, err = history.NewMemoryStore(ctx)
	}
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()

	exec := task.NewProcessExecutor(ctx, settings.MaxWorkers, log)
	launcher := task.NewLauncher(exec, task.NewBreakerRegistry(log), task.DefaultRetryConfig())

	state := runtime.NewState(f)
	prefill(ctx, store, state)

	loop := runtime.NewLoop(state, sched.New(), launcher, exec, log)
	loop.Hooks = runtime.Hooks{
		OnStepSubmitted: func(stepID string, values map[string]string) {
			if err := store.SaveAnswers(ctx, state.SessionID, stepID, values); err != nil {
				log.Warn().Err(err).Str("step", stepID).Msg("saving answers failed")
			}
		},
		OnRunFinished: func(taskID string, c task.Completion) {
			rec := history.RunRecord{
				SessionID:  state.SessionID,
				TaskID:     taskID,
				RunID:      c.RunID,
				StatusCode: c.StatusCode,
				Cancelled:  c.Cancelled,
				Error:      c.Err,
				Duration:   c.Duration,
			}
			if err := store.RecordRun(ctx, rec); err != nil {
				log.Warn().Err(err).Str("task", taskID).Msg("recording run failed")
			}
		},
		OnReload: func() {
			reloaded, err := config.LoadFlow(flowPath)
			if err != nil {
				log.Warn().Err(err).Msg("flow reload failed, keeping the current flow")
				return
			}
			state.SwapFlow(reloaded)
			log.Info().Str("flow", reloaded.ID).Msg("flow reloaded")
		},
	}

	if err := store.BeginSession(ctx, state.SessionID, f.ID); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	var changes <-chan string
	if settings.Watch() {
		watcher, werr := config.NewWatcher(flowPath, log)
		if werr != nil {
			log.Warn().Err(werr).Msg("flow watching disabled")
		} else {
			defer watcher.Close()
			go watcher.Run(ctx)
			changes = watcher.Changes()
		}
	}

	poll := time.Duration(settings.PollIntervalMS) * time.Millisecond
	model := tui.New(loop, changes, poll)
	p := tea.NewProgram(model, tea.WithAltScreen())

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	var runErr error
	select {
	case runErr = <-errChan:

	case <-ctx.Done():
		// Restore default signal handling so a second Ctrl+C force-exits.
		stop()
		p.Quit()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		select {
		case runErr = <-errChan:
		case <-shutdownCtx.Done():
			log.Warn().Msg("shutdown timeout exceeded, forcing exit")
		}
	}

	// Kill in-flight task processes and collect their completions.
	exec.Shutdown()

	status := "abandoned"
	if state.Done && state.StepIndex >= len(state.Flow.Steps)-1 {
		status = "completed"
	}
	if err := store.FinishSession(context.Background(), state.SessionID, status); err != nil {
		log.Warn().Err(err).Msg("finishing session failed")
	}

	log.Info().Str("status", status).Msg("shutdown complete")
	return runErr
}

// prefill seeds the widgets with the answers of the flow's last completed
// session.
func prefill(ctx context.Context, store history.Store, state *runtime.State) {
	answers, err := store.LastAnswers(ctx, state.Flow.ID)
	if err != nil {
		return
	}
	for id, value := range answers {
		if value == "" {
			continue
		}
		if w, ok := state.Flow.WidgetByID(id).(interface{ SetValue(string) }); ok {
			w.SetValue(value)
		}
	}
}
