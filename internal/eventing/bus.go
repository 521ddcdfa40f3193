// Package eventing carries engine events to in-process subscribers.
// Notification channels attach here; the engine never blocks on them.
package eventing

import (
	"context"
	"errors"
	"sync"
)

// Event is an engine event with a stable type tag.
type Event interface {
	EventType() string
}

// Handler handles a published event.
type Handler func(ctx context.Context, event Event) error

// Bus delivers events to subscribed handlers.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType string, handler Handler)
}

// ErrNilEvent is returned when a nil event is published.
var ErrNilEvent = errors.New("eventing: nil event")

// InMemoryBus is a minimal in-process event bus.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewInMemoryBus constructs a new in-memory bus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{handlers: make(map[string][]Handler)}
}

// Publish dispatches an event to all handlers of its type. Handler errors
// do not stop delivery; the first one is returned.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.EventType()]...)
	b.mu.RUnlock()

	var firstErr error
	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		if err := handler(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Subscribe registers a handler for an event type.
func (b *InMemoryBus) Subscribe(eventType string, handler Handler) {
	if eventType == "" || handler == nil {
		return
	}
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()
}
