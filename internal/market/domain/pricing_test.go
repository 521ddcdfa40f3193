package market

import (
	"math"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputePriceEveningPeak(t *testing.T) {
	// base 0.12, hour 18 (x1.5), load 80 (x1.8), supply 60 vs demand 80
	// (x1.25) -> 0.405.
	price := ComputePrice(0.12, PriceInputs{Hour: 18, GridLoad: 80, DemandKW: 80, SupplyKW: 60})
	if !almostEqual(price, 0.405) {
		t.Fatalf("price = %v, want 0.405", price)
	}
}

func TestComputePriceTimeMultipliers(t *testing.T) {
	cases := []struct {
		hour int
		want float64
	}{
		{hour: 7, want: 1.3},
		{hour: 18, want: 1.5},
		{hour: 23, want: 0.7},
		{hour: 3, want: 0.7},
		{hour: 12, want: 1.0},
	}
	for _, tc := range cases {
		// zero load and balanced supply/demand leave only the time term.
		price := ComputePrice(1.0, PriceInputs{Hour: tc.hour, GridLoad: 0, DemandKW: 10, SupplyKW: 10})
		if !almostEqual(price, tc.want) {
			t.Fatalf("hour %d: price = %v, want %v", tc.hour, price, tc.want)
		}
	}
}

func TestComputePriceLoadClamp(t *testing.T) {
	price := ComputePrice(1.0, PriceInputs{Hour: 12, GridLoad: 500, DemandKW: 10, SupplyKW: 10})
	if !almostEqual(price, 2.0) {
		t.Fatalf("load multiplier not clamped: price = %v", price)
	}
}

func TestComputePriceSupplyClamp(t *testing.T) {
	price := ComputePrice(1.0, PriceInputs{Hour: 12, GridLoad: 0, DemandKW: 10, SupplyKW: 100})
	if !almostEqual(price, 0.5) {
		t.Fatalf("supply multiplier not clamped: price = %v", price)
	}
}

func TestComputePriceZeroDemand(t *testing.T) {
	// demand floors at 1 so the supply term stays defined.
	price := ComputePrice(1.0, PriceInputs{Hour: 12, GridLoad: 0, DemandKW: 0, SupplyKW: 0.5})
	if !almostEqual(price, 1.5) {
		t.Fatalf("price = %v, want 1.5", price)
	}
}

func TestNewPricingState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state := NewPricingState(0.12, now)
	if !almostEqual(state.CurrentPrice, 0.12) {
		t.Fatalf("current price = %v", state.CurrentPrice)
	}
	if !almostEqual(state.PeakPrice, 0.18) || !almostEqual(state.OffPeakPrice, 0.084) {
		t.Fatalf("reference prices = %v / %v", state.PeakPrice, state.OffPeakPrice)
	}
}
