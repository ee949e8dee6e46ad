package testsupport

import (
	"sync"

	"comicdl/internal/events"
)

// EventRecorder captures every payload published on a bus, in order.
type EventRecorder struct {
	mu     sync.Mutex
	events []events.Payload
}

// RecordEvents subscribes a recorder to every kind on bus.
func RecordEvents(bus *events.Bus) *EventRecorder {
	rec := &EventRecorder{}
	bus.SubscribeAll(func(p events.Payload) {
		rec.mu.Lock()
		rec.events = append(rec.events, p)
		rec.mu.Unlock()
	})
	return rec
}

// All returns a snapshot of the recorded payloads.
func (r *EventRecorder) All() []events.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Payload(nil), r.events...)
}

// Kinds returns the recorded kinds in publish order.
func (r *EventRecorder) Kinds() []events.Kind {
	all := r.All()
	out := make([]events.Kind, len(all))
	for i, p := range all {
		out[i] = p.Kind()
	}
	return out
}

// Count returns how many payloads of kind were recorded.
func (r *EventRecorder) Count(kind events.Kind) int {
	n := 0
	for _, p := range r.All() {
		if p.Kind() == kind {
			n++
		}
	}
	return n
}

// Index returns the position of the first payload matching pred, or -1.
func (r *EventRecorder) Index(pred func(events.Payload) bool) int {
	for i, p := range r.All() {
		if pred(p) {
			return i
		}
	}
	return -1
}

// Of returns the recorded payloads of type P.
func Of[P events.Payload](r *EventRecorder) []P {
	var out []P
	for _, p := range r.All() {
		if typed, ok := p.(P); ok {
			out = append(out, typed)
		}
	}
	return out
}
