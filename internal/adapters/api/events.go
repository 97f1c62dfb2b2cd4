package api

import "sync"

// EventType names a process-wide signal
type EventType string

// EventTokenExpired is published when the backend rejected a visitor's token
const EventTokenExpired EventType = "token_expired"

// Event is delivered to every subscriber
type Event struct {
	Type      EventType
	VisitorID string
}

// Events is a small synchronous publish/subscribe bus
type Events struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

// NewEvents creates an empty bus
func NewEvents() *Events {
	return &Events{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function removing it again
func (e *Events) Subscribe(fn func(Event)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.subs[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// Publish delivers ev to all subscribers on the caller's goroutine
func (e *Events) Publish(ev Event) {
	e.mu.RLock()
	handlers := make([]func(Event), 0, len(e.subs))
	for _, fn := range e.subs {
		handlers = append(handlers, fn)
	}
	e.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}
