// Package sched provides the runtime's timer and event scheduler.
//
// The scheduler knows nothing about widgets or tasks: callers hand it
// commands carrying opaque event payloads, and the outer loop drains ready
// events once per iteration. Cancellation is versioned rather than handle
// based: every key has a monotonic version counter, delayed entries snapshot
// the version they were scheduled under, and a stale snapshot means the
// entry is dropped at drain time.
package sched

import (
	"time"
)

// Event is an opaque payload delivered back to the loop when due.
type Event any

// Command is the closed set of scheduler operations.
type Command interface {
	isCommand()
}

// EmitNow appends an event to the ready queue unconditionally.
type EmitNow struct {
	Event Event
}

// EmitAfter schedules an event after a delay, guarded by the key's current
// version. The version is NOT bumped, so multiple EmitAfter calls on the
// same key can each fire independently unless the key is cancelled.
type EmitAfter struct {
	Key   string
	Delay time.Duration
	Event Event
}

// Debounce bumps the key's version and schedules the event guarded by the
// new version: any earlier pending entry for the key becomes stale and is
// dropped at drain time. Only the most recent call survives.
type Debounce struct {
	Key   string
	Delay time.Duration
	Event Event
}

// Throttle fires the event immediately unless the key's throttle window is
// still open, in which case the call is a no-op.
type Throttle struct {
	Key    string
	Window time.Duration
	Event  Event
}

// Cancel bumps the key's version, invalidating all pending guarded entries
// for it, and clears any throttle window.
type Cancel struct {
	Key string
}

func (EmitNow) isCommand()   {}
func (EmitAfter) isCommand() {}
func (Debounce) isCommand()  {}
func (Throttle) isCommand()  {}
func (Cancel) isCommand()    {}

// guard invalidates a delayed entry when its key's stored version moves on.
type guard struct {
	key     string
	version uint64
}

type delayedEntry struct {
	dueAt time.Time
	guard *guard
	event Event
}

// Scheduler queues immediate and time-delayed events for the runtime loop.
// It is owned by the single-threaded loop and is not safe for concurrent
// use; cross-thread producers go through the loop's pending command list.
type Scheduler struct {
	ready         []Event
	delayed       []delayedEntry
	keyVersions   map[string]uint64
	throttleUntil map[string]time.Time
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{
		keyVersions:   make(map[string]uint64),
		throttleUntil: make(map[string]time.Time),
	}
}

// Schedule applies a single command at the given time.
func (s *Scheduler) Schedule(cmd Command, now time.Time) {
	switch c := cmd.(type) {
	case EmitNow:
		s.ready = append(s.ready, c.Event)

	case EmitAfter:
		// Snapshot the current version without bumping it. Concurrent
		// EmitAfter entries on one key coexist until a Debounce or
		// Cancel moves the version.
		s.delayed = append(s.delayed, delayedEntry{
			dueAt: now.Add(c.Delay),
			guard: &guard{key: c.Key, version: s.keyVersions[c.Key]},
			event: c.Event,
		})

	case Debounce:
		s.keyVersions[c.Key]++
		s.delayed = append(s.delayed, delayedEntry{
			dueAt: now.Add(c.Delay),
			guard: &guard{key: c.Key, version: s.keyVersions[c.Key]},
			event: c.Event,
		})

	case Throttle:
		if until, ok := s.throttleUntil[c.Key]; ok && now.Before(until) {
			return
		}
		s.throttleUntil[c.Key] = now.Add(c.Window)
		s.ready = append(s.ready, c.Event)

	case Cancel:
		s.keyVersions[c.Key]++
		delete(s.throttleUntil, c.Key)
	}
}

// DrainReady moves every due delayed entry whose guard is still current into
// the ready queue, silently discards stale ones, and returns the whole ready
// queue. Previously-ready events come first in original order, followed by
// newly-due entries in scan order.
func (s *Scheduler) DrainReady(now time.Time) []Event {
	if len(s.delayed) > 0 {
		remaining := s.delayed[:0]
		for _, entry := range s.delayed {
			if entry.dueAt.After(now) {
				remaining = append(remaining, entry)
				continue
			}
			if entry.guard == nil || s.keyVersions[entry.guard.key] == entry.guard.version {
				s.ready = append(s.ready, entry.event)
			}
			// Stale guard: dropped without a trace.
		}
		s.delayed = remaining
	}

	if len(s.ready) == 0 {
		return nil
	}
	drained := s.ready
	s.ready = nil
	return drained
}

// PollTimeout returns the smaller of def and the time until the soonest
// delayed entry (floored at zero). The outer loop uses it to bound its
// blocking poll so timers fire promptly even with no input.
func (s *Scheduler) PollTimeout(now time.Time, def time.Duration) time.Duration {
	timeout := def
	for _, entry := range s.delayed {
		until := entry.dueAt.Sub(now)
		if until < 0 {
			until = 0
		}
		if until < timeout {
			timeout = until
		}
	}
	if len(s.ready) > 0 {
		return 0
	}
	return timeout
}

// PendingDelayed reports how many delayed entries are queued, including ones
// whose guards have gone stale. Useful for tests and status display.
func (s *Scheduler) PendingDelayed() int {
	return len(s.delayed)
}
