package application

import (
	"context"
	"sort"

	market "microgrid-market/internal/market/domain"
)

// MarketSnapshot is the read model handed to external collaborators.
type MarketSnapshot struct {
	GridStatus    market.GridStatus   `json:"grid_status"`
	Pricing       market.PricingState `json:"pricing"`
	ActiveTrades  []*market.Trade     `json:"active_trades"`
	RecentHistory []*market.Trade     `json:"recent_history"`
	Households    []*market.Household `json:"households"`
}

// Snapshot returns a consistent copy of the market state. Without
// intervening mutation two snapshots report identical aggregates.
func (e *Engine) Snapshot(ctx context.Context) (*MarketSnapshot, error) {
	e.mu.Lock()
	grid := e.grid
	pricing := e.pricing
	active := make([]*market.Trade, 0, len(e.active))
	for _, trade := range e.active {
		active = append(active, trade.Clone())
	}
	e.mu.Unlock()

	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })

	recent, err := e.history.Recent(ctx, e.historyLimit)
	if err != nil {
		return nil, err
	}
	return &MarketSnapshot{
		GridStatus:    grid,
		Pricing:       pricing,
		ActiveTrades:  active,
		RecentHistory: recent,
		Households:    e.households.List(),
	}, nil
}
