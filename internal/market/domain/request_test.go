package market

import "testing"

func TestNormalizeRejections(t *testing.T) {
	cases := []struct {
		name string
		req  TradeRequest
	}{
		{name: "missing buyer", req: TradeRequest{SellerID: "b", EnergyAmountKWh: 1, MaxPriceKWh: 1}},
		{name: "missing seller", req: TradeRequest{BuyerID: "a", EnergyAmountKWh: 1, MaxPriceKWh: 1}},
		{name: "self trade", req: TradeRequest{BuyerID: "a", SellerID: "a", EnergyAmountKWh: 1, MaxPriceKWh: 1}},
		{name: "zero amount", req: TradeRequest{BuyerID: "a", SellerID: "b", EnergyAmountKWh: 0, MaxPriceKWh: 1}},
		{name: "negative amount", req: TradeRequest{BuyerID: "a", SellerID: "b", EnergyAmountKWh: -2, MaxPriceKWh: 1}},
		{name: "zero max price", req: TradeRequest{BuyerID: "a", SellerID: "b", EnergyAmountKWh: 1}},
		{name: "bad priority", req: TradeRequest{BuyerID: "a", SellerID: "b", EnergyAmountKWh: 1, MaxPriceKWh: 1, Priority: "urgent"}},
	}
	for _, tc := range cases {
		if _, err := tc.req.Normalize(); !IsValidation(err) {
			t.Fatalf("%s: err = %v, want validation error", tc.name, err)
		}
	}
}

func TestNormalizeDefaultsAndTrims(t *testing.T) {
	req, err := TradeRequest{
		BuyerID:         " hh-1 ",
		SellerID:        "hh-2",
		EnergyAmountKWh: 2,
		MaxPriceKWh:     0.4,
	}.Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if req.BuyerID != "hh-1" {
		t.Fatalf("buyer id %q", req.BuyerID)
	}
	if req.Priority != PriorityNormal {
		t.Fatalf("priority %q", req.Priority)
	}
}
