package market

import "time"

const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusFailed     = "failed"
	StatusExpired    = "expired"
)

// statusRank orders trade statuses; transitions may only move forward and
// terminal states share the highest rank.
var statusRank = map[string]int{
	StatusPending:    0,
	StatusConfirmed:  1,
	StatusInProgress: 2,
	StatusCompleted:  3,
	StatusCancelled:  3,
	StatusFailed:     3,
	StatusExpired:    3,
}

// TerminalStatus reports whether status is terminal.
func TerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusCancelled, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// Trade is an agreed energy transfer between two households.
type Trade struct {
	ID              string    `json:"id"`
	BuyerID         string    `json:"buyer_id"`
	SellerID        string    `json:"seller_id"`
	EnergyAmountKWh float64   `json:"energy_amount_kwh"`
	PricePerKWh     float64   `json:"price_per_kwh"`
	TotalPrice      float64   `json:"total_price"`
	Status          string    `json:"status"`
	Priority        string    `json:"priority"`
	ValidFrom       time.Time `json:"valid_from"`
	ValidUntil      time.Time `json:"valid_until"`
	StartedAt       time.Time `json:"started_at,omitempty"`
	CompletedAt     time.Time `json:"completed_at,omitempty"`
	DeliveredKWh    float64   `json:"delivered_kwh,omitempty"`
	PaidPrice       float64   `json:"paid_price,omitempty"`
	CancelledBy     string    `json:"cancelled_by,omitempty"`
	CancelledAt     time.Time `json:"cancelled_at,omitempty"`
	CancelReason    string    `json:"cancel_reason,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Terminal reports whether the trade reached a terminal status.
func (t *Trade) Terminal() bool {
	return t != nil && TerminalStatus(t.Status)
}

// ExpiredAt reports whether the validity window has elapsed at now.
func (t *Trade) ExpiredAt(now time.Time) bool {
	return t != nil && !t.ValidUntil.IsZero() && now.After(t.ValidUntil)
}

// TransitionTo moves the trade forward to status. Terminal trades are
// immutable and statuses never regress.
func (t *Trade) TransitionTo(status string, at time.Time) error {
	if t == nil {
		return ErrTradeNotFound
	}
	next, ok := statusRank[status]
	if !ok {
		return ErrInvalidTransition
	}
	current, ok := statusRank[t.Status]
	if !ok {
		return ErrInvalidTransition
	}
	if t.Terminal() || next <= current {
		return ErrInvalidTransition
	}
	t.Status = status
	t.UpdatedAt = at
	return nil
}

// SetAmount updates the energy amount before execution and keeps the
// total price consistent.
func (t *Trade) SetAmount(amountKWh float64, at time.Time) error {
	if t.Terminal() {
		return ErrInvalidTransition
	}
	if amountKWh <= 0 {
		return &ValidationError{Reason: "energy amount must be positive"}
	}
	t.EnergyAmountKWh = amountKWh
	t.TotalPrice = t.EnergyAmountKWh * t.PricePerKWh
	t.UpdatedAt = at
	return nil
}

// SetPrice updates the unit price before execution and keeps the total
// price consistent.
func (t *Trade) SetPrice(pricePerKWh float64, at time.Time) error {
	if t.Terminal() {
		return ErrInvalidTransition
	}
	if pricePerKWh <= 0 {
		return &ValidationError{Reason: "price must be positive"}
	}
	t.PricePerKWh = pricePerKWh
	t.TotalPrice = t.EnergyAmountKWh * t.PricePerKWh
	t.UpdatedAt = at
	return nil
}

// Clone returns a deep copy.
func (t *Trade) Clone() *Trade {
	if t == nil {
		return nil
	}
	copy := *t
	return &copy
}

// NewTrade creates a pending trade from an accepted request.
func NewTrade(id string, req TradeRequest, pricePerKWh float64, now time.Time, validity time.Duration) *Trade {
	return &Trade{
		ID:              id,
		BuyerID:         req.BuyerID,
		SellerID:        req.SellerID,
		EnergyAmountKWh: req.EnergyAmountKWh,
		PricePerKWh:     pricePerKWh,
		TotalPrice:      req.EnergyAmountKWh * pricePerKWh,
		Status:          StatusPending,
		Priority:        req.Priority,
		ValidFrom:       now,
		ValidUntil:      now.Add(validity),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
