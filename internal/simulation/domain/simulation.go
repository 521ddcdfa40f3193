package simulation

import (
	"errors"
	"time"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusStopped   = "stopped"
)

const (
	EventGridWarning   = "grid_warning"
	EventDeviceFailure = "device_failure"
)

var (
	// ErrSimulationNotFound is returned for an unknown simulation id.
	ErrSimulationNotFound = errors.New("simulation: not found")
	// ErrScenarioNotFound is returned for an unknown scenario id.
	ErrScenarioNotFound = errors.New("simulation: scenario not found")
	// ErrNotRunning is returned when stopping a finished simulation.
	ErrNotRunning = errors.New("simulation: not running")
)

// Scenario parameterizes the synthetic telemetry a simulation produces.
type Scenario struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	DurationHours       int     `json:"duration_hours"`
	LoadVariation       float64 `json:"load_variation"`
	GenerationVariation float64 `json:"generation_variation"`
	StorageVariation    float64 `json:"storage_variation"`
	GridLoadCeilingKW   float64 `json:"grid_load_ceiling_kw"`
}

// Validate checks scenario invariants.
func (s Scenario) Validate() error {
	if s.ID == "" {
		return errors.New("scenario: empty id")
	}
	if s.DurationHours <= 0 {
		return errors.New("scenario: duration must be positive")
	}
	if s.LoadVariation < 0 || s.GenerationVariation < 0 || s.StorageVariation < 0 {
		return errors.New("scenario: negative variation")
	}
	if s.GridLoadCeilingKW <= 0 {
		return errors.New("scenario: grid load ceiling must be positive")
	}
	return nil
}

// DeviceSample is one device's synthetic reading in a step.
type DeviceSample struct {
	DeviceID string  `json:"device_id"`
	PowerKW  float64 `json:"power_kw"`
	Status   string  `json:"status"`
}

// HouseholdSample is one participant's synthetic reading in a step.
// It is derived telemetry only; live household records are not mutated.
type HouseholdSample struct {
	HouseholdID     string  `json:"household_id"`
	LoadKW          float64 `json:"load_kw"`
	GenerationKW    float64 `json:"generation_kw"`
	StoredEnergyKWh float64 `json:"stored_energy_kwh"`
}

// GridSample is the grid-level synthetic reading in a step.
type GridSample struct {
	LoadKW      float64 `json:"load_kw"`
	FrequencyHz float64 `json:"frequency_hz"`
	VoltageV    float64 `json:"voltage_v"`
	Warning     bool    `json:"warning"`
}

// Step is one snapshot appended to a simulation's time series.
type Step struct {
	Index      int               `json:"index"`
	At         time.Time         `json:"at"`
	Devices    []DeviceSample    `json:"devices"`
	Households []HouseholdSample `json:"households"`
	Grid       GridSample        `json:"grid"`
}

// Event is a threshold crossing detected during a step.
type Event struct {
	Kind     string    `json:"kind"`
	DeviceID string    `json:"device_id,omitempty"`
	Step     int       `json:"step"`
	At       time.Time `json:"at"`
}

// Simulation is an independent time-stepped generator of synthetic
// telemetry, decoupled from live trading state.
type Simulation struct {
	ID           string    `json:"id"`
	ScenarioID   string    `json:"scenario_id"`
	Participants []string  `json:"participants"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	EndsAt       time.Time `json:"ends_at"`
	EndedAt      time.Time `json:"ended_at,omitempty"`
	StepCount    int       `json:"step_count"`
	Steps        []Step    `json:"steps"`
	Events       []Event   `json:"events"`
}

// Running reports whether the simulation still accepts steps.
func (s *Simulation) Running() bool {
	return s != nil && s.Status == StatusRunning
}

// Complete transitions running -> completed. Completed and stopped are
// terminal.
func (s *Simulation) Complete(at time.Time) error {
	if !s.Running() {
		return ErrNotRunning
	}
	s.Status = StatusCompleted
	s.EndedAt = at
	return nil
}

// Stop transitions running -> stopped. Steps already appended stay valid.
func (s *Simulation) Stop(at time.Time) error {
	if !s.Running() {
		return ErrNotRunning
	}
	s.Status = StatusStopped
	s.EndedAt = at
	return nil
}

// Clone returns a deep copy.
func (s *Simulation) Clone() *Simulation {
	if s == nil {
		return nil
	}
	copy := *s
	copy.Participants = append([]string(nil), s.Participants...)
	copy.Steps = append([]Step(nil), s.Steps...)
	copy.Events = append([]Event(nil), s.Events...)
	return &copy
}

// Stats aggregates a simulation for reporting.
type Stats struct {
	SimulationID   string         `json:"simulation_id"`
	Status         string         `json:"status"`
	Steps          int            `json:"steps"`
	EventCounts    map[string]int `json:"event_counts"`
	AveragePowerKW float64        `json:"average_power_kw"`
	Elapsed        time.Duration  `json:"elapsed"`
}

// ComputeStats derives Stats from the recorded series at the given time.
func (s *Simulation) ComputeStats(now time.Time) Stats {
	stats := Stats{
		SimulationID: s.ID,
		Status:       s.Status,
		Steps:        s.StepCount,
		EventCounts:  make(map[string]int),
	}
	for _, event := range s.Events {
		stats.EventCounts[event.Kind]++
	}

	var powerSum float64
	var powerSamples int
	for _, step := range s.Steps {
		for _, sample := range step.Devices {
			powerSum += sample.PowerKW
			powerSamples++
		}
	}
	if powerSamples > 0 {
		stats.AveragePowerKW = powerSum / float64(powerSamples)
	}

	end := s.EndedAt
	if end.IsZero() {
		end = now
	}
	if end.After(s.StartedAt) {
		stats.Elapsed = end.Sub(s.StartedAt)
	}
	return stats
}
