package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	market "microgrid-market/internal/market/domain"
)

func archivedTrade(id string, createdAt time.Time) *market.Trade {
	return &market.Trade{
		ID:              id,
		BuyerID:         "buyer",
		SellerID:        "seller",
		EnergyAmountKWh: 1,
		PricePerKWh:     0.15,
		TotalPrice:      0.15,
		Status:          market.StatusCompleted,
		Priority:        market.PriorityNormal,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func TestAppendAndGet(t *testing.T) {
	repo := NewHistoryRepository(0)
	now := time.Now().UTC()

	if err := repo.Append(context.Background(), archivedTrade("t1", now)); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := repo.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.ID != "t1" {
		t.Fatalf("expected archived trade, got %+v", got)
	}
	got.Status = market.StatusFailed
	again, _ := repo.Get(context.Background(), "t1")
	if again.Status != market.StatusCompleted {
		t.Fatalf("Get must return a copy")
	}

	missing, err := repo.Get(context.Background(), "nope")
	if err != nil || missing != nil {
		t.Fatalf("absent trade should be nil, nil; got %v %v", missing, err)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	repo := NewHistoryRepository(0)
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		trade := archivedTrade(fmt.Sprintf("t%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := repo.Append(context.Background(), trade); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recent, err := repo.Recent(context.Background(), 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(recent))
	}
	if recent[0].ID != "t4" || recent[2].ID != "t2" {
		t.Fatalf("expected newest first, got %s..%s", recent[0].ID, recent[2].ID)
	}
}

func TestCapEvictsOldest(t *testing.T) {
	repo := NewHistoryRepository(2)
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		trade := archivedTrade(fmt.Sprintf("t%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := repo.Append(context.Background(), trade); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	evicted, _ := repo.Get(context.Background(), "t0")
	if evicted != nil {
		t.Fatalf("expected oldest trade evicted")
	}
	kept, _ := repo.Get(context.Background(), "t2")
	if kept == nil {
		t.Fatalf("expected newest trade kept")
	}
}
