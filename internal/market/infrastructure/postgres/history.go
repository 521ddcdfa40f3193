package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	market "microgrid-market/internal/market/domain"
)

// HistoryRepository is a Postgres trade history archive. Terminal trades
// are immutable, so inserts use ON CONFLICT DO NOTHING.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository constructs a repository.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append archives a terminal trade.
func (r *HistoryRepository) Append(ctx context.Context, trade *market.Trade) error {
	if r == nil || r.db == nil {
		return errors.New("history repo: nil db")
	}
	if trade == nil {
		return errors.New("history repo: nil trade")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO trade_history (
	trade_id, buyer_id, seller_id, energy_amount_kwh, price_per_kwh, total_price,
	status, priority, valid_from, valid_until, started_at, completed_at,
	delivered_kwh, paid_price, cancelled_by, cancelled_at, cancel_reason, error,
	created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20
)
ON CONFLICT (trade_id) DO NOTHING`,
		trade.ID, trade.BuyerID, trade.SellerID, trade.EnergyAmountKWh, trade.PricePerKWh, trade.TotalPrice,
		trade.Status, trade.Priority, trade.ValidFrom, trade.ValidUntil, nullTime(trade.StartedAt), nullTime(trade.CompletedAt),
		trade.DeliveredKWh, trade.PaidPrice, nullString(trade.CancelledBy), nullTime(trade.CancelledAt), nullString(trade.CancelReason), nullString(trade.Error),
		trade.CreatedAt, trade.UpdatedAt)
	return err
}

// Recent returns up to limit trades, newest first.
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]*market.Trade, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("history repo: nil db")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT trade_id, buyer_id, seller_id, energy_amount_kwh, price_per_kwh, total_price,
	status, priority, valid_from, valid_until, started_at, completed_at,
	delivered_kwh, paid_price, cancelled_by, cancelled_at, cancel_reason, error,
	created_at, updated_at
FROM trade_history
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*market.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, trade)
	}
	return out, rows.Err()
}

// Get returns an archived trade or nil when absent.
func (r *HistoryRepository) Get(ctx context.Context, id string) (*market.Trade, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("history repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT trade_id, buyer_id, seller_id, energy_amount_kwh, price_per_kwh, total_price,
	status, priority, valid_from, valid_until, started_at, completed_at,
	delivered_kwh, paid_price, cancelled_by, cancelled_at, cancel_reason, error,
	created_at, updated_at
FROM trade_history
WHERE trade_id = $1
LIMIT 1`, id)
	trade, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return trade, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(row scanner) (*market.Trade, error) {
	var trade market.Trade
	var startedAt, completedAt, cancelledAt sql.NullTime
	var cancelledBy, cancelReason, tradeErr sql.NullString
	err := row.Scan(
		&trade.ID, &trade.BuyerID, &trade.SellerID, &trade.EnergyAmountKWh, &trade.PricePerKWh, &trade.TotalPrice,
		&trade.Status, &trade.Priority, &trade.ValidFrom, &trade.ValidUntil, &startedAt, &completedAt,
		&trade.DeliveredKWh, &trade.PaidPrice, &cancelledBy, &cancelledAt, &cancelReason, &tradeErr,
		&trade.CreatedAt, &trade.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if startedAt.Valid {
		trade.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		trade.CompletedAt = completedAt.Time
	}
	if cancelledAt.Valid {
		trade.CancelledAt = cancelledAt.Time
	}
	trade.CancelledBy = cancelledBy.String
	trade.CancelReason = cancelReason.String
	trade.Error = tradeErr.String
	return &trade, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
