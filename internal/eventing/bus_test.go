package eventing

import (
	"context"
	"errors"
	"testing"
)

type testEvent struct {
	kind string
}

func (e testEvent) EventType() string { return e.kind }

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewInMemoryBus()

	var got []Event
	bus.Subscribe("a", func(ctx context.Context, event Event) error {
		got = append(got, event)
		return nil
	})
	bus.Subscribe("b", func(ctx context.Context, event Event) error {
		t.Fatalf("wrong type delivered")
		return nil
	})

	if err := bus.Publish(context.Background(), testEvent{kind: "a"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one delivery, got %d", len(got))
	}
}

func TestPublishContinuesPastHandlerError(t *testing.T) {
	bus := NewInMemoryBus()
	sentinel := errors.New("boom")

	var second bool
	bus.Subscribe("a", func(ctx context.Context, event Event) error { return sentinel })
	bus.Subscribe("a", func(ctx context.Context, event Event) error {
		second = true
		return nil
	})

	err := bus.Publish(context.Background(), testEvent{kind: "a"})
	if err != sentinel {
		t.Fatalf("expected first handler error, got %v", err)
	}
	if !second {
		t.Fatalf("handler error must not stop delivery")
	}
}

func TestPublishNilEvent(t *testing.T) {
	bus := NewInMemoryBus()
	if err := bus.Publish(context.Background(), nil); err != ErrNilEvent {
		t.Fatalf("expected ErrNilEvent, got %v", err)
	}
}
