package task

import (
	"time"
)

// RunState is the per-task bookkeeping the runtime keeps between runs. It is
// owned exclusively by the single-threaded runtime and mutated only through
// OnStarted and OnFinished.
type RunState struct {
	Running           int // Number of in-flight runs; never goes below zero
	LastStartedRunID  uint64
	LastFinishedRunID uint64
	LastStartedAt     time.Time
	LastFinishedAt    time.Time
	LastFingerprint   *uint64

	sequence uint64
}

// NextRunID returns the next monotonically increasing run identifier. Every
// start must consume exactly one.
func (rs *RunState) NextRunID() uint64 {
	rs.sequence++
	return rs.sequence
}

// EverStarted reports whether any run has ever started for this task.
func (rs *RunState) EverStarted() bool {
	return rs.LastStartedRunID != 0
}

// OnStarted records a run start. The fingerprint is only overwritten when
// the caller supplied one.
func (rs *RunState) OnStarted(runID uint64, now time.Time, fingerprint *uint64) {
	rs.Running++
	rs.LastStartedRunID = runID
	rs.LastStartedAt = now
	if fingerprint != nil {
		fp := *fingerprint
		rs.LastFingerprint = &fp
	}
}

// OnFinished records a run completion. The decrement saturates at zero so a
// duplicate or unmatched completion cannot underflow the counter.
func (rs *RunState) OnFinished(runID uint64, now time.Time) {
	if rs.Running > 0 {
		rs.Running--
	}
	rs.LastFinishedRunID = runID
	rs.LastFinishedAt = now
}
