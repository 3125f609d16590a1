// Package completion implements the ghost-text completion engine: at most
// one active session, scoped to the currently focused widget, tracking
// candidate matches, cycling order, and tab suppression across key-by-key
// edits.
package completion

import (
	"strings"
	"unicode"
)

// TokenView is the capability snapshot a focused widget exposes on demand:
// its buffer, cursor, candidate list, and optionally an explicit token
// boundary for inputs that control their own (e.g. path-like) tokens.
type TokenView struct {
	Value       string
	Cursor      int // Rune offset into Value
	Candidates  []string
	PrefixStart int  // Explicit token start rune offset; -1 for generic word scan
	AllowEmpty  bool // Permit opening a session on an empty token
}

// Session tracks one open completion session. Matches are deduplicated and
// keep candidate-list order; Start is the rune offset where the completed
// token begins in the owner's buffer.
type Session struct {
	OwnerID string
	Matches []string
	Index   int
	Start   int
}

// Selected returns the match the cycling index points at.
func (s *Session) Selected() string {
	if len(s.Matches) == 0 {
		return ""
	}
	return s.Matches[s.Index]
}

// Rewrite instructs the caller to replace the buffer's rune range
// [Start, End) with Text and place the cursor after it. The engine never
// touches widget state directly; the reducer applies rewrites through the
// widget's capability surface.
type Rewrite struct {
	Start int
	End   int
	Text  string
}

// Outcome is the closed set of TryStart results.
type Outcome int

const (
	OutcomeNone           Outcome = iota // Nothing to do
	OutcomeExpandedSingle                // Buffer rewritten to the only match, no session
	OutcomeOpened                        // Session opened (possibly after a prefix fill)
)

// Result is what a TryStart call produced.
type Result struct {
	Outcome Outcome
	Rewrite *Rewrite
}

// Engine owns the single optional completion session plus the tab
// suppression latch armed by an explicit cancel.
type Engine struct {
	session    *Session
	suppressed string // Widget id whose next Tab bypasses completion
}

// New creates an engine with no session.
func New() *Engine {
	return &Engine{}
}

// Active returns the open session, or nil.
func (e *Engine) Active() *Session {
	return e.session
}

// ActiveFor returns the open session if it belongs to ownerID.
func (e *Engine) ActiveFor(ownerID string) *Session {
	if e.session != nil && e.session.OwnerID == ownerID {
		return e.session
	}
	return nil
}

// tokenStart resolves where the token under the cursor begins: the widget's
// explicit prefix start when given, else a generic scan back to whitespace.
func tokenStart(view TokenView) int {
	if view.PrefixStart >= 0 {
		if view.PrefixStart > view.Cursor {
			return view.Cursor
		}
		return view.PrefixStart
	}
	runes := []rune(view.Value)
	i := view.Cursor
	if i > len(runes) {
		i = len(runes)
	}
	for i > 0 && !unicode.IsSpace(runes[i-1]) {
		i--
	}
	return i
}

// token extracts the characters from start to the cursor.
func token(view TokenView, start int) string {
	runes := []rune(view.Value)
	cursor := view.Cursor
	if cursor > len(runes) {
		cursor = len(runes)
	}
	if start > cursor {
		start = cursor
	}
	return string(runes[start:cursor])
}

// matchCandidates filters the candidate list with a case-insensitive
// starts-with test, deduplicating while preserving order.
func matchCandidates(candidates []string, tok string) []string {
	lower := strings.ToLower(tok)
	var matches []string
	seen := make(map[string]struct{}, len(candidates))
	for _, cand := range candidates {
		if _, dup := seen[cand]; dup {
			continue
		}
		if strings.HasPrefix(strings.ToLower(cand), lower) {
			seen[cand] = struct{}{}
			matches = append(matches, cand)
		}
	}
	return matches
}

// commonPrefix returns the longest case-insensitive common prefix across
// all matches, spelled with the first match's casing.
func commonPrefix(matches []string) string {
	if len(matches) == 0 {
		return ""
	}
	first := []rune(matches[0])
	length := len(first)
	for _, m := range matches[1:] {
		runes := []rune(m)
		if len(runes) < length {
			length = len(runes)
		}
		for i := 0; i < length; i++ {
			if unicode.ToLower(first[i]) != unicode.ToLower(runes[i]) {
				length = i
				break
			}
		}
	}
	return string(first[:length])
}

// TryStart opens (or resolves) completion for the focused widget. Zero
// matches clears any session; a single differing match expands in place
// without opening a menu; two or more matches fill the common prefix first
// and open a session at the head (or tail when reverse).
func (e *Engine) TryStart(ownerID string, view TokenView, reverse bool) Result {
	start := tokenStart(view)
	tok := token(view, start)

	if tok == "" && !view.AllowEmpty {
		e.session = nil
		return Result{Outcome: OutcomeNone}
	}

	matches := matchCandidates(view.Candidates, tok)
	if len(matches) == 0 {
		e.session = nil
		return Result{Outcome: OutcomeNone}
	}

	if len(matches) == 1 {
		if matches[0] == tok {
			return Result{Outcome: OutcomeNone}
		}
		e.session = nil
		return Result{
			Outcome: OutcomeExpandedSingle,
			Rewrite: &Rewrite{Start: start, End: view.Cursor, Text: matches[0]},
		}
	}

	result := Result{Outcome: OutcomeOpened}
	if prefix := commonPrefix(matches); len([]rune(prefix)) > len([]rune(tok)) {
		result.Rewrite = &Rewrite{Start: start, End: view.Cursor, Text: prefix}
	}

	index := 0
	if reverse {
		index = len(matches) - 1
	}
	e.session = &Session{OwnerID: ownerID, Matches: matches, Index: index, Start: start}
	return result
}

// Cycle advances (delta > 0) or retreats (delta < 0) the selection, wrapping
// modulo the match count. The buffer is untouched until Accept.
func (e *Engine) Cycle(delta int) {
	if e.session == nil || len(e.session.Matches) == 0 {
		return
	}
	n := len(e.session.Matches)
	e.session.Index = ((e.session.Index+delta)%n + n) % n
}

// ExpandCommonPrefix re-derives the common prefix of the open session's
// matches relative to its start offset; when strictly longer than the typed
// token it returns a rewrite and leaves the session open. Tab uses this to
// fill forward before it starts cycling.
func (e *Engine) ExpandCommonPrefix(view TokenView) *Rewrite {
	if e.session == nil {
		return nil
	}
	tok := token(view, e.session.Start)
	prefix := commonPrefix(e.session.Matches)
	if len([]rune(prefix)) <= len([]rune(tok)) {
		return nil
	}
	return &Rewrite{Start: e.session.Start, End: view.Cursor, Text: prefix}
}

// Accept replaces the token with the selected match and closes the session.
// Returns nil if no session is open.
func (e *Engine) Accept(view TokenView) *Rewrite {
	if e.session == nil {
		return nil
	}
	rewrite := &Rewrite{Start: e.session.Start, End: view.Cursor, Text: e.session.Selected()}
	e.session = nil
	return rewrite
}

// Refresh recomputes the session for the current token after an edit. It
// keeps the cycling index when the session continues (same owner, same
// start), resets it otherwise, and closes the session when the token stops
// yielding a suggestion. Used purely to drive the inline ghost preview.
func (e *Engine) Refresh(ownerID string, view TokenView) {
	start := tokenStart(view)
	tok := token(view, start)

	continuation := e.session != nil && e.session.OwnerID == ownerID && e.session.Start == start

	if tok == "" && !view.AllowEmpty && !continuation {
		e.session = nil
		return
	}

	matches := matchCandidates(view.Candidates, tok)
	if len(matches) == 0 {
		e.session = nil
		return
	}
	if len(matches) == 1 && matches[0] == tok {
		// Fully typed: nothing left to suggest.
		e.session = nil
		return
	}

	index := 0
	if continuation {
		index = e.session.Index
		if index >= len(matches) {
			index = len(matches) - 1
		}
	}
	e.session = &Session{OwnerID: ownerID, Matches: matches, Index: index, Start: start}
}

// GhostSuffix returns the uncommitted tail of the selected match beyond the
// typed token, for inline rendering after the cursor. Empty when no session
// is open for ownerID or the cursor is mid-token.
func (e *Engine) GhostSuffix(ownerID string, view TokenView) string {
	s := e.ActiveFor(ownerID)
	if s == nil {
		return ""
	}
	tok := token(view, s.Start)
	selected := s.Selected()
	if len([]rune(selected)) <= len([]rune(tok)) {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(selected), strings.ToLower(tok)) {
		return ""
	}
	return string([]rune(selected)[len([]rune(tok)):])
}

// Cancel closes any session and arms tab suppression for the widget, so the
// very next Tab press reaches the widget as a raw key instead of reopening
// completion.
func (e *Engine) Cancel(ownerID string) {
	e.session = nil
	e.suppressed = ownerID
}

// FocusChanged drops the session (and suppression latch) when focus moves
// to a different widget.
func (e *Engine) FocusChanged(focusID string) {
	if e.session != nil && e.session.OwnerID != focusID {
		e.session = nil
	}
	if e.suppressed != "" && e.suppressed != focusID {
		e.suppressed = ""
	}
}

// Close drops the session unconditionally, e.g. when the focused widget
// reports no completion capability.
func (e *Engine) Close() {
	e.session = nil
}

// ConsumeSuppression reports whether Tab is suppressed for the widget and
// clears the latch. Suppression is one-shot.
func (e *Engine) ConsumeSuppression(ownerID string) bool {
	if e.suppressed == ownerID {
		e.suppressed = ""
		return true
	}
	return false
}

// ClearSuppression disarms the latch; any edit key clears it.
func (e *Engine) ClearSuppression() {
	e.suppressed = ""
}
