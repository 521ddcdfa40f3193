package market

import "context"

// HistoryRepository archives trades that reached a terminal status.
// Terminal trades are immutable, so Append is write-once per trade id.
type HistoryRepository interface {
	Append(ctx context.Context, trade *Trade) error
	Recent(ctx context.Context, limit int) ([]*Trade, error)
	Get(ctx context.Context, id string) (*Trade, error)
}
