package runtime

import (
	"time"

	"github.com/aristath/stepflow/internal/completion"
	"github.com/aristath/stepflow/internal/flow"
	"github.com/aristath/stepflow/internal/sched"
	"github.com/aristath/stepflow/internal/task"
	"github.com/aristath/stepflow/internal/widget"
)

// Reduce is the dispatch function: it mutates state for one intent and
// returns the effects the loop must apply. It never blocks and never talks
// to the executor or scheduler directly.
func Reduce(s *State, intent Intent, now time.Time) []Effect {
	switch it := intent.(type) {
	case Noop, Tick:
		return nil

	case Exit:
		s.Done = true
		return []Effect{System{ExitRequested{}}, RequestRender{}}

	case OverlayOpen:
		name := it.ID
		if name == "" && it.Index >= 0 && it.Index < len(s.Overlays) {
			name = s.Overlays[it.Index]
		}
		if name == "" {
			return nil
		}
		if name == s.Overlay {
			// Same key again toggles the overlay off.
			s.Overlay = ""
			return []Effect{RequestRender{}}
		}
		s.Overlay = name
		return []Effect{RequestRender{}}

	case OverlayClose:
		if s.Overlay == "" {
			return nil
		}
		s.Overlay = ""
		return []Effect{RequestRender{}}

	case FocusNext:
		return moveFocus(s, 1)

	case FocusPrev:
		return moveFocus(s, -1)

	case Edit:
		return reduceEdit(s, it.Key, now)

	case RawKey:
		return reduceRawKey(s, it.Key, now)

	case Submit:
		return reduceSubmit(s, now)
	}
	return nil
}

// moveFocus shifts focus within the current step, wrapping at the edges,
// and tells the completion engine about the owner change.
func moveFocus(s *State, delta int) []Effect {
	step := s.CurrentStep()
	if step == nil || len(step.Widgets) == 0 {
		return nil
	}
	n := len(step.Widgets)
	s.Focus = ((s.Focus+delta)%n + n) % n
	s.Completion.FocusChanged(step.Widgets[s.Focus].ID())
	return []Effect{RequestRender{}}
}

// reduceEdit routes an editing key to the focused widget. An open session
// intercepts Right at buffer end as an accept; everything else falls
// through. A consumed edit re-validates live, clears the step error, and
// refreshes the ghost preview, in that order.
func reduceEdit(s *State, key string, now time.Time) []Effect {
	fw := s.FocusedWidget()
	if fw == nil {
		return nil
	}

	if sess := s.Completion.ActiveFor(fw.ID()); sess != nil && key == "right" {
		if comp, ok := fw.(widget.Completer); ok {
			if view, vok := comp.TokenView(); vok && cursorAtEnd(view) {
				return acceptCompletion(s, comp, now)
			}
		}
	}

	// Any edit key disarms tab suppression.
	s.Completion.ClearSuppression()

	if fw.HandleKey(key) == widget.KeyIgnored {
		return nil
	}
	return afterEdit(s, fw, now)
}

// reduceRawKey handles keys with their own dispatch rules.
func reduceRawKey(s *State, key string, now time.Time) []Effect {
	switch key {
	case "esc":
		return reduceEscape(s)
	case "tab":
		return reduceTab(s, false, now)
	case "shift+tab":
		return reduceTab(s, true, now)
	}

	fw := s.FocusedWidget()
	if fw != nil && fw.HandleKey(key) != widget.KeyIgnored {
		return afterEdit(s, fw, now)
	}

	// Unconsumed arrows fall back to focus movement so selects keep them
	// for option cycling while text inputs give them up.
	switch key {
	case "up":
		return moveFocus(s, -1)
	case "down":
		return moveFocus(s, 1)
	}
	return nil
}

// reduceEscape cancels an open session (arming tab suppression) before it
// considers closing an overlay.
func reduceEscape(s *State) []Effect {
	if fw := s.FocusedWidget(); fw != nil {
		if s.Completion.ActiveFor(fw.ID()) != nil {
			s.Completion.Cancel(fw.ID())
			return []Effect{RequestRender{}}
		}
	}
	if s.Overlay != "" {
		s.Overlay = ""
		return []Effect{RequestRender{}}
	}
	return nil
}

// reduceTab implements the tab chain: suppression first, then the open
// session (single-match accept, prefix fill, cycle), then a fresh TryStart,
// then the widget itself, and only then focus movement.
func reduceTab(s *State, reverse bool, now time.Time) []Effect {
	delta := 1
	key := "tab"
	if reverse {
		delta = -1
		key = "shift+tab"
	}

	fw := s.FocusedWidget()
	if fw == nil {
		return moveFocus(s, delta)
	}
	id := fw.ID()
	eng := s.Completion

	if eng.ConsumeSuppression(id) {
		if fw.HandleKey(key) == widget.KeyIgnored {
			return moveFocus(s, delta)
		}
		return afterEdit(s, fw, now)
	}

	if sess := eng.ActiveFor(id); sess != nil {
		comp, _ := fw.(widget.Completer)
		if len(sess.Matches) == 1 && comp != nil {
			return acceptCompletion(s, comp, now)
		}
		if comp != nil {
			if view, ok := comp.TokenView(); ok {
				if rw := eng.ExpandCommonPrefix(view); rw != nil {
					comp.ApplyRewrite(*rw)
					return afterEdit(s, fw, now)
				}
			}
		}
		eng.Cycle(delta)
		return []Effect{RequestRender{}}
	}

	if comp, ok := fw.(widget.Completer); ok {
		if view, vok := comp.TokenView(); vok {
			res := eng.TryStart(id, view, reverse)
			if res.Outcome != completion.OutcomeNone {
				if res.Rewrite != nil {
					// A rewrite is an edit like any other and runs
					// the full post-edit chain.
					comp.ApplyRewrite(*res.Rewrite)
					return afterEdit(s, fw, now)
				}
				return []Effect{RequestRender{}}
			}
		}
	}

	if fw.HandleKey(key) != widget.KeyIgnored {
		return afterEdit(s, fw, now)
	}
	return moveFocus(s, delta)
}

// afterEdit is the chain every successful edit runs: live validation, step
// error clearing, ghost refresh, then a debounced rescan so bursts of
// typing collapse into one candidate re-derivation.
func afterEdit(s *State, fw widget.Widget, now time.Time) []Effect {
	effects := validateLive(s, fw)
	s.StepError = ""
	refreshGhost(s, fw)
	if _, ok := fw.(widget.Rescanner); ok {
		effects = append(effects, Schedule{sched.Debounce{
			Key:   rescanKey(fw.ID()),
			Delay: RescanDelay,
			Event: RescanWidget{WidgetID: fw.ID()},
		}})
	}
	return append(effects, RequestRender{})
}

// validateLive runs live validation for one widget, records or clears its
// inline error, and debounces the error's display TTL.
func validateLive(s *State, fw widget.Widget) []Effect {
	if err := fw.Validate(widget.ValidateLive); err != nil {
		s.InlineErrors[fw.ID()] = err.Error()
		return []Effect{Schedule{sched.Debounce{
			Key:   inlineErrorKey(fw.ID()),
			Delay: InlineErrorTTL,
			Event: ClearInlineError{WidgetID: fw.ID()},
		}}}
	}
	delete(s.InlineErrors, fw.ID())
	return nil
}

// refreshGhost recomputes the inline suggestion for the focused widget, or
// closes the session when the widget has no completion capability.
func refreshGhost(s *State, fw widget.Widget) {
	comp, ok := fw.(widget.Completer)
	if !ok {
		s.Completion.Close()
		return
	}
	view, vok := comp.TokenView()
	if !vok {
		s.Completion.Close()
		return
	}
	s.Completion.Refresh(fw.ID(), view)
}

// acceptCompletion applies the selected match, closes the session, and runs
// the widget's edited chain.
func acceptCompletion(s *State, comp widget.Completer, now time.Time) []Effect {
	view, ok := comp.TokenView()
	if !ok {
		s.Completion.Close()
		return []Effect{RequestRender{}}
	}
	rw := s.Completion.Accept(view)
	if rw == nil {
		return nil
	}
	comp.ApplyRewrite(*rw)
	return afterEdit(s, comp, now)
}

func cursorAtEnd(view completion.TokenView) bool {
	return view.Cursor >= len([]rune(view.Value))
}

// reduceSubmit runs the submit pipeline: completion accept wins, then the
// focused widget's submit validation, then composite-widget inner focus,
// then whole-step validation with refocus-on-first-invalid, and finally the
// step's exit/enter hooks and advancement.
func reduceSubmit(s *State, now time.Time) []Effect {
	step := s.CurrentStep()
	if step == nil {
		return nil
	}

	if fw := s.FocusedWidget(); fw != nil {
		if comp, ok := fw.(widget.Completer); ok && s.Completion.ActiveFor(fw.ID()) != nil {
			// Enter always accepts; submission waits for the next press.
			return acceptCompletion(s, comp, now)
		}

		if err := fw.Validate(widget.ValidateSubmit); err != nil {
			s.InlineErrors[fw.ID()] = err.Error()
			return []Effect{
				Schedule{sched.Debounce{
					Key:   inlineErrorKey(fw.ID()),
					Delay: InlineErrorTTL,
					Event: ClearInlineError{WidgetID: fw.ID()},
				}},
				RequestRender{},
			}
		}

		if adv, ok := fw.(widget.InnerAdvancer); ok && adv.AdvanceFocus() {
			return []Effect{RequestRender{}}
		}
	}

	for i, w := range step.Widgets {
		if err := w.Validate(widget.ValidateSubmit); err != nil {
			s.Focus = i
			s.StepError = err.Error()
			s.Completion.FocusChanged(w.ID())
			return []Effect{
				Schedule{sched.Debounce{
					Key:   stepErrorKey(step.ID),
					Delay: StepErrorTTL,
					Event: ClearStepError{},
				}},
				RequestRender{},
			}
		}
	}

	effects := []Effect{System{StepSubmitted{StepID: step.ID, Values: s.StepValues(step)}}}
	if step.OnExit != "" {
		effects = append(effects, startTask(s, step.OnExit, now)...)
	}

	if s.StepIndex >= len(s.Flow.Steps)-1 {
		s.Done = true
		effects = append(effects, System{FlowFinished{}})
		return append(effects, RequestRender{})
	}

	s.StepIndex++
	s.Focus = 0
	s.StepError = ""
	next := s.CurrentStep()
	if len(next.Widgets) > 0 {
		s.Completion.FocusChanged(next.Widgets[0].ID())
	} else {
		s.Completion.Close()
	}
	effects = append(effects, System{StepChanged{Index: s.StepIndex}})
	if next.OnEnter != "" {
		effects = append(effects, startTask(s, next.OnEnter, now)...)
	}
	return append(effects, RequestRender{})
}

// startTask evaluates the rerun and concurrency policies for a task hook
// and, when they allow it, consumes a run id and emits the start (and any
// required cancel) for the loop to execute.
func startTask(s *State, taskID string, now time.Time) []Effect {
	spec, ok := s.Flow.Task(taskID)
	if !ok {
		return nil
	}
	rs := s.RunState(taskID)

	fingerprint := taskFingerprint(spec, s.Answers())

	if !task.ShouldStart(rs, spec.Rerun, now, fingerprint) {
		return nil
	}
	if !task.AllowsStartWhileRunning(rs, spec.Concurrency) {
		return []Effect{
			System{TaskStartRejected{TaskID: taskID, Reason: "a run is already in flight"}},
			RequestRender{},
		}
	}

	var effects []Effect
	if task.ShouldCancelRunningBeforeStart(rs, spec.Concurrency) {
		effects = append(effects, Action{CancelRun{TaskID: taskID, RunID: s.ActiveRuns[taskID]}})
	}

	runID := rs.NextRunID()
	rs.OnStarted(runID, now, fingerprint)
	s.ActiveRuns[taskID] = runID

	tv := s.TaskDisplay(taskID)
	tv.Status = "running"
	tv.Lines = nil
	tv.Err = ""

	return append(effects, Action{StartRun{Spec: spec, RunID: runID, Fingerprint: fingerprint}})
}

// taskFingerprint hashes the invocation plus every current answer; a hash
// failure degrades to no fingerprint rather than blocking the start.
func taskFingerprint(spec flow.TaskSpec, answers map[string]string) *uint64 {
	type inputs struct {
		Program string
		Args    []string
		Dir     string
		Answers map[string]string
	}
	fingerprint, err := task.Fingerprint(inputs{
		Program: spec.Program,
		Args:    spec.Args,
		Dir:     spec.Dir,
		Answers: answers,
	})
	if err != nil {
		return nil
	}
	return fingerprint
}
