package application

import (
	"context"
	"testing"
	"time"

	market "microgrid-market/internal/market/domain"
	"microgrid-market/internal/sched"
)

func TestMarketClockTicksDeterministically(t *testing.T) {
	seller := testHousehold("seller", 10, 0, 0, 0)
	seller.Policy.AutoTrading = false
	buyer := testHousehold("buyer", 0, 5, 0, 50)
	engine, _, history, clock := newTestEngine(t, seller, buyer)

	trade, err := engine.Submit(context.Background(), market.TradeRequest{
		BuyerID:         "buyer",
		SellerID:        "seller",
		EnergyAmountKWh: 4,
		MaxPriceKWh:     1,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	marketClock, err := NewMarketClock(engine, nil)
	if err != nil {
		t.Fatalf("new clock: %v", err)
	}

	marketClock.MarketTick(context.Background(), clock.Now())
	if len(engine.ActiveTrades()) != 1 {
		t.Fatalf("trade expired before its validity window")
	}
	status := engine.GridStatus()
	if status.LoadKW != 5 || status.SupplyKW != 10 {
		t.Fatalf("market tick did not recompute aggregates: %+v", status)
	}

	clock.Advance(6 * time.Minute)
	marketClock.MarketTick(context.Background(), clock.Now())
	if len(engine.ActiveTrades()) != 0 {
		t.Fatalf("expected trade swept on the tick after expiry")
	}
	archived, _ := history.Get(context.Background(), trade.ID)
	if archived == nil || archived.Status != market.StatusExpired {
		t.Fatalf("expected archived expired trade, got %+v", archived)
	}
}

func TestMarketClockRunStopsOnCancel(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, testHousehold("a", 1, 1, 0, 0))

	marketTicker := sched.NewManualTicker()
	pricingTicker := sched.NewManualTicker()
	tickers := []sched.Ticker{marketTicker, pricingTicker}
	next := 0
	factory := func(period time.Duration) sched.Ticker {
		ticker := tickers[next]
		next++
		return ticker
	}

	marketClock, err := NewMarketClock(engine, nil, WithTickerFactory(factory))
	if err != nil {
		t.Fatalf("new clock: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		marketClock.Run(ctx)
		close(done)
	}()

	at := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	pricingTicker.Tick(at)

	// Evening peak multiplier applies once the tick is processed.
	deadline := time.After(2 * time.Second)
	for engine.CurrentPrice() == 0.15 {
		select {
		case <-deadline:
			t.Fatalf("pricing tick never processed")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("run loop did not stop on context cancel")
	}
}
