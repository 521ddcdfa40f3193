// Package notify fans engine events out to external sinks.
package notify

import (
	"context"
	"log"

	"microgrid-market/internal/eventing"
)

// Channel delivers an engine event to one sink.
type Channel interface {
	Send(ctx context.Context, event eventing.Event) error
}

// LogChannel writes events to a logger. Used as the default sink and in
// tests.
type LogChannel struct {
	logger *log.Logger
}

// NewLogChannel constructs a LogChannel.
func NewLogChannel(logger *log.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

// Send implements Channel.
func (c *LogChannel) Send(_ context.Context, event eventing.Event) error {
	if c == nil || c.logger == nil || event == nil {
		return nil
	}
	c.logger.Printf("notify event=%s payload=%+v", event.EventType(), event)
	return nil
}

// Attach subscribes a channel to every engine event type on the bus.
// Delivery failures are logged and never propagate into the engine.
func Attach(bus eventing.Bus, channel Channel, logger *log.Logger) {
	if bus == nil || channel == nil {
		return
	}
	for _, eventType := range eventing.AllTypes {
		bus.Subscribe(eventType, func(ctx context.Context, event eventing.Event) error {
			if err := channel.Send(ctx, event); err != nil && logger != nil {
				logger.Printf("notify send error: event=%s err=%v", event.EventType(), err)
			}
			return nil
		})
	}
}
