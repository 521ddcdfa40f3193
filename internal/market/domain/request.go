package market

import "strings"

// TradeRequest is an incoming request to buy energy from a seller.
type TradeRequest struct {
	BuyerID         string  `json:"buyer_id"`
	SellerID        string  `json:"seller_id"`
	EnergyAmountKWh float64 `json:"energy_amount_kwh"`
	MaxPriceKWh     float64 `json:"max_price_kwh"`
	Priority        string  `json:"priority"`
}

// Normalize validates the request shape and returns a normalized copy.
// It deliberately does not check seller capacity: capacity can change
// between validation and execution, so the engine rechecks it under the
// seller's lock.
func (r TradeRequest) Normalize() (TradeRequest, error) {
	r.BuyerID = strings.TrimSpace(r.BuyerID)
	r.SellerID = strings.TrimSpace(r.SellerID)
	if r.BuyerID == "" {
		return r, &ValidationError{Reason: "missing buyer id"}
	}
	if r.SellerID == "" {
		return r, &ValidationError{Reason: "missing seller id"}
	}
	if r.BuyerID == r.SellerID {
		return r, &ValidationError{Reason: "buyer and seller must differ"}
	}
	if r.EnergyAmountKWh <= 0 {
		return r, &ValidationError{Reason: "energy amount must be positive"}
	}
	if r.MaxPriceKWh <= 0 {
		return r, &ValidationError{Reason: "max price must be positive"}
	}
	if r.Priority == "" {
		r.Priority = PriorityNormal
	}
	if !ValidPriority(r.Priority) {
		return r, &ValidationError{Reason: "unknown priority"}
	}
	return r, nil
}
