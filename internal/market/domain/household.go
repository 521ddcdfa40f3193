package market

import (
	"errors"
	"time"
)

const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityNormal   = "normal"
	PriorityLow      = "low"
)

// TradingPolicy captures a household's automatic trading preferences.
type TradingPolicy struct {
	AutoTrading    bool    `json:"auto_trading"`
	MinPriceKWh    float64 `json:"min_price_kwh"`
	MaxPriceKWh    float64 `json:"max_price_kwh"`
	ActiveFromHour int     `json:"active_from_hour"`
	ActiveToHour   int     `json:"active_to_hour"`
}

// Household represents a microgrid participant with generation,
// consumption and storage.
type Household struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	SolarCapacityKW    float64       `json:"solar_capacity_kw"`
	BatteryCapacityKWh float64       `json:"battery_capacity_kwh"`
	GenerationKW       float64       `json:"generation_kw"`
	ConsumptionKW      float64       `json:"consumption_kw"`
	StoredEnergyKWh    float64       `json:"stored_energy_kwh"`
	Online             bool          `json:"online"`
	Priority           string        `json:"priority"`
	Policy             TradingPolicy `json:"policy"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// ValidPriority reports whether p is a known priority tier.
func ValidPriority(p string) bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Validate checks household invariants.
func (h Household) Validate() error {
	if h.ID == "" {
		return errors.New("household: empty id")
	}
	if h.Name == "" {
		return errors.New("household: empty name")
	}
	if h.GenerationKW < 0 {
		return errors.New("household: negative generation")
	}
	if h.ConsumptionKW < 0 {
		return errors.New("household: negative consumption")
	}
	if h.StoredEnergyKWh < 0 || h.StoredEnergyKWh > h.BatteryCapacityKWh {
		return errors.New("household: stored energy out of battery range")
	}
	if !ValidPriority(h.Priority) {
		return errors.New("household: unknown priority")
	}
	return nil
}

// Sheddable reports whether the household may be load-shed.
func (h Household) Sheddable() bool {
	return h.Online && h.Priority != PriorityCritical
}

// Clone returns a deep copy.
func (h *Household) Clone() *Household {
	if h == nil {
		return nil
	}
	copy := *h
	return &copy
}

// HouseholdPatch is a partial update applied to a household record.
// Nil fields are left untouched.
type HouseholdPatch struct {
	Name            *string        `json:"name,omitempty"`
	GenerationKW    *float64       `json:"generation_kw,omitempty"`
	ConsumptionKW   *float64       `json:"consumption_kw,omitempty"`
	StoredEnergyKWh *float64       `json:"stored_energy_kwh,omitempty"`
	Online          *bool          `json:"online,omitempty"`
	Priority        *string        `json:"priority,omitempty"`
	Policy          *TradingPolicy `json:"policy,omitempty"`
}

// Apply merges the patch into the household and revalidates.
func (p HouseholdPatch) Apply(h *Household, now time.Time) error {
	if h == nil {
		return errors.New("household: nil record")
	}
	if p.Name != nil {
		h.Name = *p.Name
	}
	if p.GenerationKW != nil {
		h.GenerationKW = *p.GenerationKW
	}
	if p.ConsumptionKW != nil {
		h.ConsumptionKW = *p.ConsumptionKW
	}
	if p.StoredEnergyKWh != nil {
		h.StoredEnergyKWh = *p.StoredEnergyKWh
	}
	if p.Online != nil {
		h.Online = *p.Online
	}
	if p.Priority != nil {
		h.Priority = *p.Priority
	}
	if p.Policy != nil {
		h.Policy = *p.Policy
	}
	if err := h.Validate(); err != nil {
		return err
	}
	h.UpdatedAt = now
	return nil
}
