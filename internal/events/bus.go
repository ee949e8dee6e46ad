package events

import (
	"fmt"
	"sync"
)

// Handler receives a published payload.
type Handler func(Payload)

// Publisher is the narrow view producers depend on.
type Publisher interface {
	Publish(Payload)
}

type subscription struct {
	id   uint64
	kind Kind // KindInvalid subscribes to everything
	fn   Handler
}

// Bus fans published payloads out to subscribers. Handlers run synchronously on
// the publishing goroutine in subscription order, so events from one producer
// arrive in the order they were published.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Publish delivers p to every matching subscriber. Payloads with an
// unregistered kind are dropped.
func (b *Bus) Publish(p Payload) {
	if b == nil || p == nil || !p.Kind().Valid() {
		return
	}
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	kind := p.Kind()
	for _, sub := range subs {
		if sub.kind == KindInvalid || sub.kind == kind {
			sub.fn(p)
		}
	}
}

// Subscribe registers fn for one kind and returns a function that removes it.
func (b *Bus) Subscribe(kind Kind, fn Handler) func() {
	if !kind.Valid() {
		panic(fmt.Sprintf("events: subscribe to invalid kind %d", int(kind)))
	}
	return b.add(kind, fn)
}

// SubscribeName registers fn by wire name.
func (b *Bus) SubscribeName(name string, fn Handler) (func(), error) {
	kind, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown event %q", name)
	}
	return b.add(kind, fn), nil
}

// SubscribeAll registers fn for every kind.
func (b *Bus) SubscribeAll(fn Handler) func() {
	return b.add(KindInvalid, fn)
}

// On registers a handler typed by its payload, e.g.
//
//	events.On(bus, func(e events.EpisodeEnd) { ... })
func On[P Payload](b *Bus, fn func(P)) func() {
	var zero P
	return b.Subscribe(zero.Kind(), func(p Payload) {
		if typed, ok := p.(P); ok {
			fn(typed)
		}
	})
}

func (b *Bus) add(kind Kind, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	next := make([]subscription, 0, len(b.subs)+1)
	next = append(next, b.subs...)
	b.subs = append(next, subscription{id: id, kind: kind, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := make([]subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.id != id {
			next = append(next, sub)
		}
	}
	b.subs = next
}
