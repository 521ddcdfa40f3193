package notify

import (
	"context"

	"microgrid-market/internal/eventing"
)

// MultiChannel dispatches events to multiple channels.
type MultiChannel struct {
	channels []Channel
}

// NewMultiChannel constructs a MultiChannel.
func NewMultiChannel(channels ...Channel) *MultiChannel {
	return &MultiChannel{channels: channels}
}

// Send forwards the event to all channels. The first error is returned
// after every channel was attempted.
func (m *MultiChannel) Send(ctx context.Context, event eventing.Event) error {
	if m == nil {
		return nil
	}
	var firstErr error
	for _, channel := range m.channels {
		if channel == nil {
			continue
		}
		if err := channel.Send(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
