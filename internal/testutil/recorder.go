package testutil

import (
	"sync"

	"github.com/Belphemur/flash/internal/metrics"
)

// EventLog is a metrics.Recorder keeping every captured event.
// This is a test helper and should not be used in production code.
type EventLog struct {
	mu     sync.Mutex
	events []metrics.Event
}

// Capture implements metrics.Recorder.
func (l *EventLog) Capture(e metrics.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

// Events returns a copy of the captured events.
func (l *EventLog) Events() []metrics.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]metrics.Event, len(l.events))
	copy(out, l.events)
	return out
}

// Last returns the most recent event and whether there was one.
func (l *EventLog) Last() (metrics.Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return metrics.Event{}, false
	}
	return l.events[len(l.events)-1], true
}

// Reset drops every captured event.
func (l *EventLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}
