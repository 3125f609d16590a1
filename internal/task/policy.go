// Package task provides per-task run bookkeeping, the pure policy surface
// deciding when background commands may (re)start, and the process executor
// that runs them.
package task

import (
	"time"
)

// RerunKind enumerates when a task may start again.
type RerunKind int

const (
	RerunNever     RerunKind = iota // Start at most once
	RerunAlways                     // Every request starts
	RerunIfChanged                  // Start only when the input fingerprint moved
	RerunCooldown                   // Start when enough time has passed since the last start
)

// RerunPolicy governs when a task may start again. Cooldown is only
// meaningful for RerunCooldown.
type RerunPolicy struct {
	Kind     RerunKind
	Cooldown time.Duration
}

// ConcurrencyPolicy governs what happens when a start is requested while a
// run is already in flight.
type ConcurrencyPolicy int

const (
	ConcurrencyReject   ConcurrencyPolicy = iota // Refuse the new start (default)
	ConcurrencyRestart                           // Cancel the in-flight run, then start
	ConcurrencyParallel                          // Let runs overlap
)

// ShouldStart reports whether a run may start now under the rerun policy.
// fingerprint is the hash of the task's current inputs, or nil when the
// caller could not produce one.
func ShouldStart(rs *RunState, policy RerunPolicy, now time.Time, fingerprint *uint64) bool {
	switch policy.Kind {
	case RerunNever:
		return !rs.EverStarted()

	case RerunAlways:
		return true

	case RerunIfChanged:
		if fingerprint == nil {
			// A fingerprint existed before (or never did) and none is
			// given now: nothing observable changed.
			return false
		}
		if rs.LastFingerprint == nil {
			return true
		}
		return *rs.LastFingerprint != *fingerprint

	case RerunCooldown:
		if !rs.EverStarted() {
			return true
		}
		return now.Sub(rs.LastStartedAt) >= policy.Cooldown
	}
	return false
}

// AllowsStartWhileRunning reports whether the concurrency policy permits a
// new start given the current run state. Always true when nothing runs.
func AllowsStartWhileRunning(rs *RunState, policy ConcurrencyPolicy) bool {
	if rs.Running == 0 {
		return true
	}
	return policy == ConcurrencyRestart || policy == ConcurrencyParallel
}

// ShouldCancelRunningBeforeStart reports whether the in-flight run must be
// cancelled before handing a new invocation to the executor. Only the
// Restart policy cancels, and only when something is actually running.
func ShouldCancelRunningBeforeStart(rs *RunState, policy ConcurrencyPolicy) bool {
	return rs.Running > 0 && policy == ConcurrencyRestart
}
