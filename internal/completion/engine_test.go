package completion

import (
	"testing"
)

func view(value string, cursor int, candidates ...string) TokenView {
	return TokenView{Value: value, Cursor: cursor, Candidates: candidates, PrefixStart: -1}
}

// TestTryStart covers the open/expand decision table.
func TestTryStart(t *testing.T) {
	tests := []struct {
		name        string
		view        TokenView
		wantOutcome Outcome
		wantRewrite string
		wantMatches int
		wantIndex   int
	}{
		{
			name:        "no matches does nothing",
			view:        view("xyz", 3, "status", "stash"),
			wantOutcome: OutcomeNone,
		},
		{
			name:        "single match equal to token is a no-op",
			view:        view("status", 6, "status"),
			wantOutcome: OutcomeNone,
		},
		{
			name:        "single differing match expands without a session",
			view:        view("st", 2, "status"),
			wantOutcome: OutcomeExpandedSingle,
			wantRewrite: "status",
		},
		{
			name:        "multiple matches fill common prefix and open",
			view:        view("st", 2, "status", "stash", "stage"),
			wantOutcome: OutcomeOpened,
			wantRewrite: "sta",
			wantMatches: 3,
			wantIndex:   0,
		},
		{
			name:        "common prefix equal to token opens without rewrite",
			view:        view("sta", 3, "status", "stash", "stage"),
			wantOutcome: OutcomeOpened,
			wantMatches: 3,
			wantIndex:   0,
		},
		{
			name:        "case-insensitive matching keeps candidate casing",
			view:        view("ST", 2, "Status", "Stash"),
			wantOutcome: OutcomeOpened,
			wantRewrite: "Sta",
			wantMatches: 2,
		},
		{
			name:        "empty token refused without allow-empty",
			view:        view("", 0, "status", "stash"),
			wantOutcome: OutcomeNone,
		},
		{
			name: "empty token allowed when widget opts in",
			view: TokenView{
				Value: "", Cursor: 0, PrefixStart: -1, AllowEmpty: true,
				Candidates: []string{"alpha", "beta"},
			},
			wantOutcome: OutcomeOpened,
			wantMatches: 2,
		},
		{
			name:        "duplicate candidates collapse",
			view:        view("st", 2, "status", "status", "stash"),
			wantOutcome: OutcomeOpened,
			wantRewrite: "sta",
			wantMatches: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New()
			got := e.TryStart("w1", tt.view, false)

			if got.Outcome != tt.wantOutcome {
				t.Fatalf("outcome = %d, want %d", got.Outcome, tt.wantOutcome)
			}
			if tt.wantRewrite == "" && got.Rewrite != nil {
				t.Errorf("unexpected rewrite to %q", got.Rewrite.Text)
			}
			if tt.wantRewrite != "" {
				if got.Rewrite == nil {
					t.Fatalf("want rewrite to %q, got none", tt.wantRewrite)
				}
				if got.Rewrite.Text != tt.wantRewrite {
					t.Errorf("rewrite = %q, want %q", got.Rewrite.Text, tt.wantRewrite)
				}
			}
			if tt.wantMatches == 0 {
				if tt.wantOutcome == OutcomeOpened {
					t.Fatal("test wants opened outcome but no match count")
				}
				return
			}
			s := e.Active()
			if s == nil {
				t.Fatal("want open session, got none")
			}
			if len(s.Matches) != tt.wantMatches {
				t.Errorf("matches = %d, want %d", len(s.Matches), tt.wantMatches)
			}
			if s.Index != tt.wantIndex {
				t.Errorf("index = %d, want %d", s.Index, tt.wantIndex)
			}
		})
	}
}

func TestTryStartReverseStartsAtTail(t *testing.T) {
	e := New()
	res := e.TryStart("w1", view("sta", 3, "status", "stash", "stage"), true)
	if res.Outcome != OutcomeOpened {
		t.Fatalf("outcome = %d, want opened", res.Outcome)
	}
	if e.Active().Index != 2 {
		t.Errorf("reverse open index = %d, want 2", e.Active().Index)
	}
}

func TestCycleWraps(t *testing.T) {
	e := New()
	e.TryStart("w1", view("sta", 3, "status", "stash", "stage"), false)

	e.Cycle(1)
	if e.Active().Index != 1 {
		t.Errorf("after one cycle index = %d, want 1", e.Active().Index)
	}
	e.Cycle(1)
	e.Cycle(1)
	if e.Active().Index != 0 {
		t.Errorf("cycle did not wrap forward, index = %d", e.Active().Index)
	}
	e.Cycle(-1)
	if e.Active().Index != 2 {
		t.Errorf("cycle did not wrap backward, index = %d", e.Active().Index)
	}
}

func TestExpandCommonPrefixThenAccept(t *testing.T) {
	e := New()
	// Token "s", matches share prefix "sta".
	res := e.TryStart("w1", view("s", 1, "status", "stash", "stage"), false)
	if res.Rewrite == nil || res.Rewrite.Text != "sta" {
		t.Fatalf("open rewrite = %+v, want sta", res.Rewrite)
	}

	// As if the caller applied the rewrite: buffer and cursor moved on.
	v := view("sta", 3, "status", "stash", "stage")
	if r := e.ExpandCommonPrefix(v); r != nil {
		t.Errorf("prefix already filled, expand rewrote to %q", r.Text)
	}

	e.Cycle(1)
	r := e.Accept(v)
	if r == nil || r.Text != "stash" {
		t.Fatalf("accept rewrite = %+v, want stash", r)
	}
	if e.Active() != nil {
		t.Error("session should close on accept")
	}
}

func TestRefreshContinuationKeepsIndex(t *testing.T) {
	e := New()
	e.TryStart("w1", view("sta", 3, "status", "stash", "stage"), false)
	e.Cycle(1) // select "stash"

	// One more typed character narrows matches; same owner, same start.
	e.Refresh("w1", view("stas", 4, "status", "stash", "stage"))
	s := e.Active()
	if s == nil {
		t.Fatal("continuation refresh closed the session")
	}
	if len(s.Matches) != 1 || s.Matches[0] != "stash" {
		t.Fatalf("matches after narrowing = %v, want [stash]", s.Matches)
	}
	if s.Index != 0 {
		t.Errorf("index = %d, want clamped to 0", s.Index)
	}
}

func TestRefreshClosesWhenTokenFullyTyped(t *testing.T) {
	e := New()
	e.TryStart("w1", view("sta", 3, "status", "stash", "stage"), false)

	e.Refresh("w1", view("stash", 5, "status", "stash", "stage"))
	if e.Active() != nil {
		t.Error("fully typed single match should close the session")
	}
}

func TestRefreshNoMatchesCloses(t *testing.T) {
	e := New()
	e.TryStart("w1", view("sta", 3, "status", "stash"), false)
	e.Refresh("w1", view("staz", 4, "status", "stash"))
	if e.Active() != nil {
		t.Error("token with no candidates should close the session")
	}
}

func TestGhostSuffix(t *testing.T) {
	e := New()
	e.Refresh("w1", view("sta", 3, "status", "stash", "stage"))
	if ghost := e.GhostSuffix("w1", view("sta", 3, "status", "stash", "stage")); ghost != "tus" {
		t.Errorf("ghost = %q, want tus", ghost)
	}
	if ghost := e.GhostSuffix("other", view("sta", 3, "status")); ghost != "" {
		t.Errorf("ghost for non-owner = %q, want empty", ghost)
	}
}

func TestExplicitPrefixStart(t *testing.T) {
	e := New()
	// Path-like widget: token starts after the last slash it reported.
	v := TokenView{
		Value:       "src/ma",
		Cursor:      6,
		PrefixStart: 4,
		Candidates:  []string{"main.go", "makefile"},
	}
	res := e.TryStart("w1", v, false)
	if res.Outcome != OutcomeOpened {
		t.Fatalf("outcome = %d, want opened", res.Outcome)
	}
	if e.Active().Start != 4 {
		t.Errorf("session start = %d, want 4", e.Active().Start)
	}
}

func TestWordScanStopsAtWhitespace(t *testing.T) {
	e := New()
	res := e.TryStart("w1", view("git st", 6, "status", "stash", "stage"), false)
	if res.Outcome != OutcomeOpened {
		t.Fatalf("outcome = %d, want opened", res.Outcome)
	}
	if e.Active().Start != 4 {
		t.Errorf("session start = %d, want 4 (after space)", e.Active().Start)
	}
	if res.Rewrite == nil || res.Rewrite.Text != "sta" {
		t.Errorf("rewrite = %+v, want sta", res.Rewrite)
	}
}

func TestCancelArmsSuppression(t *testing.T) {
	e := New()
	e.TryStart("w1", view("sta", 3, "status", "stash"), false)

	e.Cancel("w1")
	if e.Active() != nil {
		t.Fatal("cancel should close the session")
	}
	if !e.ConsumeSuppression("w1") {
		t.Fatal("suppression should be armed for the cancelling widget")
	}
	if e.ConsumeSuppression("w1") {
		t.Error("suppression must be one-shot")
	}
}

func TestSuppressionScopedToWidget(t *testing.T) {
	e := New()
	e.Cancel("w1")
	if e.ConsumeSuppression("w2") {
		t.Error("suppression for w1 must not apply to w2")
	}
	// Focus moving away disarms the latch.
	e.Cancel("w1")
	e.FocusChanged("w2")
	if e.ConsumeSuppression("w1") {
		t.Error("suppression should clear on focus change")
	}
}

func TestFocusChangeClosesSession(t *testing.T) {
	e := New()
	e.TryStart("w1", view("sta", 3, "status", "stash"), false)
	e.FocusChanged("w2")
	if e.Active() != nil {
		t.Error("session must close when focus moves to another widget")
	}
}
