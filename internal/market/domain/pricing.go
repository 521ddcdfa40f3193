package market

import "time"

// PriceInputs are the aggregates a price is derived from.
type PriceInputs struct {
	Hour      int
	GridLoad  float64
	DemandKW  float64
	SupplyKW  float64
}

// ComputePrice derives the unit price from the base price and the latest
// grid aggregates. Pure function; the market clock only feeds it inputs.
//
// Morning (06-09) and evening (17-21) windows carry peak multipliers,
// night hours (22-05) a discount. Load raises the price up to 2x, excess
// supply lowers it down to 0.5x.
func ComputePrice(basePrice float64, in PriceInputs) float64 {
	timeMultiplier := 1.0
	switch {
	case in.Hour >= 6 && in.Hour <= 9:
		timeMultiplier = 1.3
	case in.Hour >= 17 && in.Hour <= 21:
		timeMultiplier = 1.5
	case in.Hour >= 22 || in.Hour <= 5:
		timeMultiplier = 0.7
	}

	loadMultiplier := 1.0 + in.GridLoad/100.0
	if loadMultiplier > 2.0 {
		loadMultiplier = 2.0
	}

	demand := in.DemandKW
	if demand < 1 {
		demand = 1
	}
	supplyMultiplier := 2.0 - in.SupplyKW/demand
	if supplyMultiplier < 0.5 {
		supplyMultiplier = 0.5
	}

	return basePrice * timeMultiplier * loadMultiplier * supplyMultiplier
}

// PricingState is the published pricing snapshot, recomputed on each
// pricing tick.
type PricingState struct {
	BasePrice    float64   `json:"base_price"`
	CurrentPrice float64   `json:"current_price"`
	PeakPrice    float64   `json:"peak_price"`
	OffPeakPrice float64   `json:"off_peak_price"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewPricingState seeds the pricing snapshot from the base price.
func NewPricingState(basePrice float64, now time.Time) PricingState {
	return PricingState{
		BasePrice:    basePrice,
		CurrentPrice: basePrice,
		PeakPrice:    basePrice * 1.5,
		OffPeakPrice: basePrice * 0.7,
		UpdatedAt:    now,
	}
}
