package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	devices "microgrid-market/internal/devices/domain"
	market "microgrid-market/internal/market/domain"
	simulation "microgrid-market/internal/simulation/domain"
)

// Seed describes the initial registry contents loaded at startup.
type Seed struct {
	Households []SeedHousehold `yaml:"households"`
	Devices    []SeedDevice    `yaml:"devices"`
	Scenarios  []SeedScenario  `yaml:"scenarios"`
}

// SeedHousehold is the YAML shape of a household record.
type SeedHousehold struct {
	ID                 string  `yaml:"id"`
	Name               string  `yaml:"name"`
	SolarCapacityKW    float64 `yaml:"solar_capacity_kw"`
	BatteryCapacityKWh float64 `yaml:"battery_capacity_kwh"`
	GenerationKW       float64 `yaml:"generation_kw"`
	ConsumptionKW      float64 `yaml:"consumption_kw"`
	StoredEnergyKWh    float64 `yaml:"stored_energy_kwh"`
	Online             *bool   `yaml:"online"`
	Priority           string  `yaml:"priority"`

	AutoTrading    bool    `yaml:"auto_trading"`
	MinPriceKWh    float64 `yaml:"min_price_kwh"`
	MaxPriceKWh    float64 `yaml:"max_price_kwh"`
	ActiveFromHour int     `yaml:"active_from_hour"`
	ActiveToHour   int     `yaml:"active_to_hour"`
}

// SeedScenario is the YAML shape of a simulation scenario.
type SeedScenario struct {
	ID                  string  `yaml:"id"`
	Name                string  `yaml:"name"`
	DurationHours       int     `yaml:"duration_hours"`
	LoadVariation       float64 `yaml:"load_variation"`
	GenerationVariation float64 `yaml:"generation_variation"`
	StorageVariation    float64 `yaml:"storage_variation"`
	GridLoadCeilingKW   float64 `yaml:"grid_load_ceiling_kw"`
}

// SeedDevice is the YAML shape of a device record.
type SeedDevice struct {
	ID          string  `yaml:"id"`
	HouseholdID string  `yaml:"household_id"`
	Type        string  `yaml:"type"`
	CapacityKW  float64 `yaml:"capacity_kw"`
	Efficiency  float64 `yaml:"efficiency"`
	Status      string  `yaml:"status"`
}

// LoadSeed parses a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Household converts the YAML shape into a domain record.
func (s SeedHousehold) Household(now time.Time) *market.Household {
	online := true
	if s.Online != nil {
		online = *s.Online
	}
	priority := s.Priority
	if priority == "" {
		priority = market.PriorityNormal
	}
	return &market.Household{
		ID:                 s.ID,
		Name:               s.Name,
		SolarCapacityKW:    s.SolarCapacityKW,
		BatteryCapacityKWh: s.BatteryCapacityKWh,
		GenerationKW:       s.GenerationKW,
		ConsumptionKW:      s.ConsumptionKW,
		StoredEnergyKWh:    s.StoredEnergyKWh,
		Online:             online,
		Priority:           priority,
		Policy: market.TradingPolicy{
			AutoTrading:    s.AutoTrading,
			MinPriceKWh:    s.MinPriceKWh,
			MaxPriceKWh:    s.MaxPriceKWh,
			ActiveFromHour: s.ActiveFromHour,
			ActiveToHour:   s.ActiveToHour,
		},
		UpdatedAt: now,
	}
}

// Scenario converts the YAML shape into a domain scenario.
func (s SeedScenario) Scenario() simulation.Scenario {
	return simulation.Scenario{
		ID:                  s.ID,
		Name:                s.Name,
		DurationHours:       s.DurationHours,
		LoadVariation:       s.LoadVariation,
		GenerationVariation: s.GenerationVariation,
		StorageVariation:    s.StorageVariation,
		GridLoadCeilingKW:   s.GridLoadCeilingKW,
	}
}

// Device converts the YAML shape into a domain record.
func (s SeedDevice) Device(now time.Time) *devices.Device {
	status := s.Status
	if status == "" {
		status = devices.StatusActive
	}
	efficiency := s.Efficiency
	if efficiency == 0 {
		efficiency = 1
	}
	return &devices.Device{
		ID:          s.ID,
		HouseholdID: s.HouseholdID,
		Type:        s.Type,
		CapacityKW:  s.CapacityKW,
		Efficiency:  efficiency,
		Status:      status,
		UpdatedAt:   now,
	}
}
