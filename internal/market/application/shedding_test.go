package application

import (
	"context"
	"math"
	"testing"

	"microgrid-market/internal/eventing"
	market "microgrid-market/internal/market/domain"
	"microgrid-market/internal/registry"
)

type stubStability struct {
	level string
}

func (s *stubStability) Stability() string { return s.level }

func newSheddingFixture(t *testing.T, households ...*market.Household) (*SheddingController, *registry.HouseholdRegistry, *stubStability, *recordingBus) {
	t.Helper()
	reg := registry.NewHouseholdRegistry()
	for _, h := range households {
		if err := reg.Upsert(h); err != nil {
			t.Fatalf("upsert %s: %v", h.ID, err)
		}
	}
	stability := &stubStability{level: market.StabilityCritical}
	bus := newRecordingBus()
	controller, err := NewSheddingController(reg, stability, bus, nil)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return controller, reg, stability, bus
}

type recordingBus struct {
	events []eventing.Event
}

func newRecordingBus() *recordingBus { return &recordingBus{} }

func (b *recordingBus) Publish(ctx context.Context, event eventing.Event) error {
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) Subscribe(eventType string, handler eventing.Handler) {}

func TestSheddingCutsNonCriticalLoad(t *testing.T) {
	normal := testHousehold("normal", 0, 10, 0, 0)
	critical := testHousehold("critical", 0, 10, 0, 0)
	critical.Priority = market.PriorityCritical
	offline := testHousehold("offline", 0, 10, 0, 0)
	offline.Online = false

	controller, reg, _, bus := newSheddingFixture(t, normal, critical, offline)
	affected, err := controller.Trigger(context.Background())
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if len(affected) != 1 || affected[0].ID != "normal" {
		t.Fatalf("expected only the online non-critical household, got %+v", affected)
	}

	updated, _ := reg.Get("normal")
	if math.Abs(updated.ConsumptionKW-7) > 1e-9 {
		t.Fatalf("expected 30%% cut to 7, got %.3f", updated.ConsumptionKW)
	}
	untouched, _ := reg.Get("critical")
	if untouched.ConsumptionKW != 10 {
		t.Fatalf("critical household must not be shed")
	}
	skipped, _ := reg.Get("offline")
	if skipped.ConsumptionKW != 10 {
		t.Fatalf("offline household must not be shed")
	}

	if len(bus.events) != 1 {
		t.Fatalf("expected one shedding event, got %d", len(bus.events))
	}
	if _, ok := bus.events[0].(eventing.SheddingApplied); !ok {
		t.Fatalf("unexpected event type %T", bus.events[0])
	}
}

func TestSheddingNoOpWhenNotCritical(t *testing.T) {
	normal := testHousehold("normal", 0, 10, 0, 0)
	controller, reg, stability, bus := newSheddingFixture(t, normal)
	stability.level = market.StabilityWarning

	affected, err := controller.Trigger(context.Background())
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if affected != nil {
		t.Fatalf("expected no-op outside critical, got %+v", affected)
	}
	updated, _ := reg.Get("normal")
	if updated.ConsumptionKW != 10 {
		t.Fatalf("load must be untouched")
	}
	if len(bus.events) != 0 {
		t.Fatalf("no event expected for a no-op")
	}
}

func TestSheddingHighPriorityLast(t *testing.T) {
	high := testHousehold("high", 0, 10, 0, 0)
	high.Priority = market.PriorityHigh
	low := testHousehold("low", 0, 10, 0, 0)
	low.Priority = market.PriorityLow

	controller, _, _, _ := newSheddingFixture(t, high, low)
	affected, err := controller.Trigger(context.Background())
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if len(affected) != 2 {
		t.Fatalf("expected both households shed, got %d", len(affected))
	}
	if affected[0].ID != "low" || affected[1].ID != "high" {
		t.Fatalf("expected high priority shed last, got order %s, %s", affected[0].ID, affected[1].ID)
	}
}

func TestSheddingRepeatedInvocationCompounds(t *testing.T) {
	normal := testHousehold("normal", 0, 10, 0, 0)
	controller, reg, _, _ := newSheddingFixture(t, normal)

	if _, err := controller.Trigger(context.Background()); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if _, err := controller.Trigger(context.Background()); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	updated, _ := reg.Get("normal")
	if math.Abs(updated.ConsumptionKW-4.9) > 1e-9 {
		t.Fatalf("expected compounded cut to 4.9, got %.3f", updated.ConsumptionKW)
	}
}
