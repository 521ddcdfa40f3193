package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"microgrid-market/internal/eventing"
)

// NATSChannel publishes events on NATS subjects under a shared prefix.
type NATSChannel struct {
	conn    *nats.Conn
	subject string
}

// NewNATSChannel constructs a NATSChannel.
func NewNATSChannel(conn *nats.Conn, subject string) (*NATSChannel, error) {
	if conn == nil {
		return nil, errors.New("nats channel: nil connection")
	}
	if subject == "" {
		subject = "microgrid"
	}
	return &NATSChannel{conn: conn, subject: subject}, nil
}

// Send implements Channel.
func (c *NATSChannel) Send(_ context.Context, event eventing.Event) error {
	if event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("nats channel: marshal: %w", err)
	}
	target := c.subject + "." + event.EventType()
	if err := c.conn.Publish(target, payload); err != nil {
		return fmt.Errorf("nats channel: publish %s: %w", target, err)
	}
	return nil
}
