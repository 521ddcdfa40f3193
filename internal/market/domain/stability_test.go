package market

import "testing"

func TestEvaluateStability(t *testing.T) {
	cases := []struct {
		load   float64
		supply float64
		want   string
	}{
		{load: 100, supply: 125, want: StabilityExcellent},
		{load: 100, supply: 120, want: StabilityExcellent},
		{load: 100, supply: 105, want: StabilityStable},
		{load: 100, supply: 100, want: StabilityStable},
		{load: 100, supply: 85, want: StabilityWarning},
		{load: 100, supply: 80, want: StabilityWarning},
		{load: 100, supply: 50, want: StabilityCritical},
		{load: 100, supply: 0, want: StabilityCritical},
	}
	for _, tc := range cases {
		got := EvaluateStability(tc.load, tc.supply)
		if got != tc.want {
			t.Fatalf("load=%v supply=%v: got %s, want %s", tc.load, tc.supply, got, tc.want)
		}
	}
}

func TestEvaluateStabilityZeroLoad(t *testing.T) {
	// load floors at 1, so any positive supply reads as excellent.
	if got := EvaluateStability(0, 10); got != StabilityExcellent {
		t.Fatalf("got %s", got)
	}
}
