// Package health tracks request outcomes over sliding windows and holds the
// process lifecycle flag. The health endpoint derives its state (degraded,
// overloaded, idle, shutting-down) from these counters.
package health

import (
	"sync"
	"time"
)

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeError
	outcomeDenied
)

type event struct {
	at   time.Time
	kind outcome
}

// Tracker maintains a sliding window of request outcomes. Safe for
// concurrent use. Events older than the longest window anyone asks about
// are pruned lazily on write.
type Tracker struct {
	mu     sync.Mutex
	events []event
	// maxAge bounds how long events are retained; queries with a larger
	// window see at most maxAge of history.
	maxAge time.Duration
}

// NewTracker returns a Tracker retaining events up to maxAge.
func NewTracker(maxAge time.Duration) *Tracker {
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	return &Tracker{maxAge: maxAge}
}

func (t *Tracker) record(kind outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.events = append(t.events, event{at: now, kind: kind})
	t.pruneLocked(now)
}

// pruneLocked drops events older than maxAge. Caller holds t.mu.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.maxAge)
	i := 0
	for ; i < len(t.events); i++ {
		if t.events[i].at.After(cutoff) {
			break
		}
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}

// RecordSuccess records a successfully served request.
func (t *Tracker) RecordSuccess() { t.record(outcomeSuccess) }

// RecordError records a failed request (predictor error, timeout, etc.).
func (t *Tracker) RecordError() { t.record(outcomeError) }

// RecordDenial records a rate-limit denial (429).
func (t *Tracker) RecordDenial() { t.record(outcomeDenied) }

func (t *Tracker) count(window time.Duration, match func(outcome) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	n := 0
	for _, e := range t.events {
		if e.at.After(cutoff) && match(e.kind) {
			n++
		}
	}
	return n
}

// RequestCount returns all outcomes (success + error + denied) within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	return t.count(window, func(outcome) bool { return true })
}

// DenialCount returns rate-limit denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	return t.count(window, func(k outcome) bool { return k == outcomeDenied })
}

// ErrorRate returns (errors, total) within the window, where total counts
// successes plus errors (denials are excluded: a denied request never
// reached the service).
func (t *Tracker) ErrorRate(window time.Duration) (errs, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	for _, e := range t.events {
		if !e.at.After(cutoff) {
			continue
		}
		switch e.kind {
		case outcomeSuccess:
			total++
		case outcomeError:
			errs++
			total++
		}
	}
	return errs, total
}

// Reset clears all recorded events. For tests only.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}
