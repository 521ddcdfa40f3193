package market

import "time"

const (
	StabilityExcellent = "excellent"
	StabilityStable    = "stable"
	StabilityWarning   = "warning"
	StabilityCritical  = "critical"
)

// EvaluateStability classifies grid health from the supply/load ratio.
// Pure function with no side effects.
func EvaluateStability(loadKW, supplyKW float64) string {
	load := loadKW
	if load < 1 {
		load = 1
	}
	ratio := supplyKW / load
	switch {
	case ratio >= 1.2:
		return StabilityExcellent
	case ratio >= 1.0:
		return StabilityStable
	case ratio >= 0.8:
		return StabilityWarning
	default:
		return StabilityCritical
	}
}

// GridStatus is the derived grid snapshot recomputed on each market tick.
// PeakLoadKW is a high-water mark and never decreases within a process
// lifetime.
type GridStatus struct {
	LoadKW     float64   `json:"load_kw"`
	SupplyKW   float64   `json:"supply_kw"`
	PeakLoadKW float64   `json:"peak_load_kw"`
	Stability  string    `json:"stability"`
	Timestamp  time.Time `json:"timestamp"`
}
