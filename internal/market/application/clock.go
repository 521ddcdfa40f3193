package application

import (
	"context"
	"errors"
	"log"
	"time"

	"microgrid-market/internal/observability/metrics"
	"microgrid-market/internal/sched"
)

const (
	defaultMarketTick  = 30 * time.Second
	defaultPricingTick = 5 * time.Minute
)

// MarketClock drives the periodic market work: aggregate recomputation,
// stability evaluation and trade expiry on the market tick, price
// recomputation on the pricing tick. A single goroutine serializes the
// two ticks with respect to each other.
type MarketClock struct {
	engine      *Engine
	logger      *log.Logger
	marketTick  time.Duration
	pricingTick time.Duration
	newTicker   sched.TickerFactory
}

// ClockOption configures the market clock.
type ClockOption func(*MarketClock)

// WithMarketTick overrides the market tick period.
func WithMarketTick(period time.Duration) ClockOption {
	return func(c *MarketClock) {
		if period > 0 {
			c.marketTick = period
		}
	}
}

// WithPricingTick overrides the pricing tick period.
func WithPricingTick(period time.Duration) ClockOption {
	return func(c *MarketClock) {
		if period > 0 {
			c.pricingTick = period
		}
	}
}

// WithTickerFactory overrides ticker construction, letting tests advance
// ticks without wall-clock delay.
func WithTickerFactory(factory sched.TickerFactory) ClockOption {
	return func(c *MarketClock) {
		if factory != nil {
			c.newTicker = factory
		}
	}
}

// NewMarketClock constructs a MarketClock.
func NewMarketClock(engine *Engine, logger *log.Logger, opts ...ClockOption) (*MarketClock, error) {
	if engine == nil {
		return nil, errors.New("market clock: nil engine")
	}
	c := &MarketClock{
		engine:      engine,
		logger:      logger,
		marketTick:  defaultMarketTick,
		pricingTick: defaultPricingTick,
		newTicker:   sched.NewTicker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run loops until the context is cancelled. A failed tick is logged and
// never halts the clock.
func (c *MarketClock) Run(ctx context.Context) {
	marketTicker := c.newTicker(c.marketTick)
	defer marketTicker.Stop()
	pricingTicker := c.newTicker(c.pricingTick)
	defer pricingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-marketTicker.C():
			c.MarketTick(ctx, now.UTC())
		case now := <-pricingTicker.C():
			c.PricingTick(now.UTC())
		}
	}
}

// MarketTick recomputes the grid aggregates and sweeps expired trades.
func (c *MarketClock) MarketTick(ctx context.Context, now time.Time) {
	status := c.engine.RecomputeGrid(ctx, now)
	expired := c.engine.SweepExpired(ctx, now)
	metrics.IncMarketTick()
	if c.logger != nil {
		c.logger.Printf("market tick: load=%.2f supply=%.2f stability=%s expired=%d", status.LoadKW, status.SupplyKW, status.Stability, expired)
	}
}

// PricingTick recomputes the published price.
func (c *MarketClock) PricingTick(now time.Time) {
	c.engine.RecomputePrice(now)
	metrics.IncPricingTick()
}
