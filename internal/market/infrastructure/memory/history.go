package memory

import (
	"context"
	"sync"

	market "microgrid-market/internal/market/domain"
)

// HistoryRepository is an in-memory trade history archive. It is the
// default backend when no database is configured.
type HistoryRepository struct {
	mu     sync.RWMutex
	order  []string
	trades map[string]*market.Trade
	cap    int
}

// NewHistoryRepository constructs a repository retaining at most cap
// trades (0 means unbounded).
func NewHistoryRepository(cap int) *HistoryRepository {
	return &HistoryRepository{
		trades: make(map[string]*market.Trade),
		cap:    cap,
	}
}

// Append archives a terminal trade.
func (r *HistoryRepository) Append(ctx context.Context, trade *market.Trade) error {
	_ = ctx
	if trade == nil {
		return market.ErrTradeNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trades[trade.ID]; !ok {
		r.order = append(r.order, trade.ID)
	}
	r.trades[trade.ID] = trade.Clone()
	if r.cap > 0 && len(r.order) > r.cap {
		evicted := r.order[0]
		r.order = r.order[1:]
		delete(r.trades, evicted)
	}
	return nil
}

// Recent returns up to limit trades, newest first.
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]*market.Trade, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.order) {
		limit = len(r.order)
	}
	out := make([]*market.Trade, 0, limit)
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.trades[r.order[i]].Clone())
	}
	return out, nil
}

// Get returns an archived trade or nil when absent.
func (r *HistoryRepository) Get(ctx context.Context, id string) (*market.Trade, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	trade, ok := r.trades[id]
	if !ok {
		return nil, nil
	}
	return trade.Clone(), nil
}
