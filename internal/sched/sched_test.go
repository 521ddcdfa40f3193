package sched

import (
	"testing"
	"time"
)

func TestSystemClockUTC(t *testing.T) {
	now := SystemClock{}.Now()
	if now.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", now.Location())
	}
}

func TestManualTickerDeliversTick(t *testing.T) {
	ticker := NewManualTicker()
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ticker.Tick(at)

	select {
	case got := <-ticker.C():
		if !got.Equal(at) {
			t.Fatalf("expected %v, got %v", at, got)
		}
	default:
		t.Fatalf("expected buffered tick available")
	}
}
