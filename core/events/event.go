package events

import "sync"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
// Useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorder retains the most recent events in a bounded ring so callers can
// reconcile settlements without an external indexer.
type Recorder struct {
	mu     sync.RWMutex
	limit  int
	buffer []Event
}

// NewRecorder creates a recorder that keeps at most limit events.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 256
	}
	return &Recorder{limit: limit}
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer = append(r.buffer, evt)
	if overflow := len(r.buffer) - r.limit; overflow > 0 {
		r.buffer = append(r.buffer[:0], r.buffer[overflow:]...)
	}
}

// Recent returns the retained events, oldest first.
func (r *Recorder) Recent() []Event {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, len(r.buffer))
	copy(out, r.buffer)
	return out
}
