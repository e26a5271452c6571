// Package traffic keeps short sliding windows of dashboard refresh outcomes and
// rate-limit denials. Health evaluation and the window gauges read from it.
package traffic

import (
	"sync"
	"time"
)

// retention bounds how far back any window can look.
const retention = 5 * time.Minute

type outcome uint8

const (
	outcomeSuccess outcome = iota
	outcomeError
	outcomeDenied
)

type event struct {
	at   time.Time
	kind outcome
}

var defaultTracker = NewTracker()

// RecordSuccess records a refresh whose upstream fetches all succeeded.
func RecordSuccess() { defaultTracker.Record(outcomeSuccess) }

// RecordError records a refresh that fell back to the snapshot or failed.
func RecordError() { defaultTracker.Record(outcomeError) }

// RecordDenied records a rate-limit denial (429).
func RecordDenied() { defaultTracker.Record(outcomeDenied) }

// ErrorRate returns (errors, successes+errors) within the window.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.Count(window, outcomeDenied)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() { defaultTracker.Reset() }

// Tracker is an append-only, time-ordered event log pruned to retention.
type Tracker struct {
	mu     sync.Mutex
	events []event
	now    func() time.Time
}

// NewTracker returns an empty tracker using the wall clock.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Record appends an outcome at the current time.
func (t *Tracker) Record(kind outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.events = append(t.events, event{at: now, kind: kind})
	t.pruneLocked(now)
}

// Count returns how many events of kind happened within the window.
func (t *Tracker) Count(window time.Duration, kind outcome) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	n := 0
	for _, e := range t.events {
		if e.kind == kind && !e.at.Before(cutoff) {
			n++
		}
	}
	return n
}

// ErrorRate returns (errors, successes+errors) within the window; denials are excluded.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	for _, e := range t.events {
		if e.at.Before(cutoff) {
			continue
		}
		switch e.kind {
		case outcomeError:
			errors++
			total++
		case outcomeSuccess:
			total++
		}
	}
	return errors, total
}

// Reset drops every recorded event.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}

// pruneLocked drops events older than retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	i := 0
	for ; i < len(t.events) && t.events[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}
