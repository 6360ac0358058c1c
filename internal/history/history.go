// Package history is the append-only persistence collaborator: it records
// "observation received" and "prediction computed" events off the hot path.
// Emission is fire-and-forget; when the buffer is full events are dropped
// and counted, never blocking a response.
package history

import (
	"sync"
	"time"

	"github.com/emberalert/risk-service/internal/models"
	"github.com/emberalert/risk-service/internal/observability"
)

// Kind distinguishes recorded event types.
type Kind string

const (
	KindObservation Kind = "observation"
	KindPrediction  Kind = "prediction"
)

// Event is one recorded observation or prediction for a location.
type Event struct {
	Kind       Kind                  `json:"kind"`
	Key        string                `json:"key"` // location key, coordinates only
	Query      models.RiskQuery      `json:"query,omitempty"`
	Assessment models.RiskAssessment `json:"assessment,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// Recorder buffers events through a channel consumed by a single goroutine
// and retains them per location with count and age bounds.
type Recorder struct {
	ch   chan Event
	done chan struct{}

	mu        sync.RWMutex
	data      map[string][]Event
	maxPerKey int
	maxAge    time.Duration

	// sendMu serializes emits against Close so no send can race the
	// channel close.
	sendMu   sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

// NewRecorder creates and starts a Recorder. bufSize is the channel
// capacity (default 256); maxPerKey and maxAge bound retention per
// location (<= 0 means 100 events and 24h).
func NewRecorder(bufSize, maxPerKey int, maxAge time.Duration) *Recorder {
	if bufSize <= 0 {
		bufSize = 256
	}
	if maxPerKey <= 0 {
		maxPerKey = 100
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	r := &Recorder{
		ch:        make(chan Event, bufSize),
		done:      make(chan struct{}),
		data:      make(map[string][]Event),
		maxPerKey: maxPerKey,
		maxAge:    maxAge,
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	for ev := range r.ch {
		r.append(ev)
	}
	close(r.done)
}

func (r *Recorder) append(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := append(r.data[ev.Key], ev)

	if over := len(events) - r.maxPerKey; over > 0 {
		events = events[over:]
	}
	cutoff := time.Now().Add(-r.maxAge)
	i := 0
	for ; i < len(events); i++ {
		if !events[i].Timestamp.Before(cutoff) {
			break
		}
	}
	if i > 0 {
		events = events[i:]
	}
	r.data[ev.Key] = events
}

// emit enqueues without blocking; a full buffer or closed recorder drops
// the event.
func (r *Recorder) emit(ev Event) {
	r.sendMu.RLock()
	defer r.sendMu.RUnlock()
	if r.closed {
		observability.HistoryDroppedTotal.Inc()
		return
	}
	select {
	case r.ch <- ev:
	default:
		observability.HistoryDroppedTotal.Inc()
	}
}

// RecordObservation records that a query was received for a location.
func (r *Recorder) RecordObservation(q models.RiskQuery) {
	r.emit(Event{
		Kind:      KindObservation,
		Key:       q.LocationKey(),
		Query:     q,
		Timestamp: time.Now().UTC(),
	})
}

// RecordPrediction records a freshly computed assessment.
func (r *Recorder) RecordPrediction(key string, a models.RiskAssessment) {
	r.emit(Event{
		Kind:       KindPrediction,
		Key:        key,
		Assessment: a,
		Timestamp:  time.Now().UTC(),
	})
}

// Events returns the retained events for a location key, oldest first.
func (r *Recorder) Events(key string) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events := r.data[key]
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// Close stops the consumer after draining buffered events. Call during
// shutdown; Record* calls after Close drop their events.
func (r *Recorder) Close() {
	r.stopOnce.Do(func() {
		r.sendMu.Lock()
		r.closed = true
		close(r.ch)
		r.sendMu.Unlock()
		<-r.done
	})
}
