package application

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	devices "microgrid-market/internal/devices/domain"
	"microgrid-market/internal/eventing"
	"microgrid-market/internal/observability/metrics"
	"microgrid-market/internal/registry"
	"microgrid-market/internal/sched"
	simulation "microgrid-market/internal/simulation/domain"
)

const (
	defaultStepInterval = time.Minute
	stepsPerHour        = 60

	failurePowerThresholdKW = 0.1
	nominalFrequencyHz      = 50.0
	nominalVoltageV         = 230.0
)

// Rand is the injectable randomness source; Float64 returns a uniform
// value in [0,1).
type Rand interface {
	Float64() float64
}

// Stepper advances running simulations on a fixed interval, sampling
// synthetic device, household and grid telemetry. Household registry
// records are read-only to the stepper; only device live power is
// written back.
type Stepper struct {
	devices    *registry.DeviceRegistry
	households *registry.HouseholdRegistry
	bus        eventing.Bus
	logger     *log.Logger
	clock      sched.Clock
	rand       Rand
	newTicker  sched.TickerFactory
	newID      func() string
	interval   time.Duration

	mu        sync.Mutex
	scenarios map[string]simulation.Scenario
	sims      map[string]*simulation.Simulation
	cancels   map[string]context.CancelFunc
}

// StepperOption configures the stepper.
type StepperOption func(*Stepper)

// WithStepperClock overrides the default system clock.
func WithStepperClock(clock sched.Clock) StepperOption {
	return func(s *Stepper) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRand overrides the randomness source.
func WithRand(r Rand) StepperOption {
	return func(s *Stepper) {
		if r != nil {
			s.rand = r
		}
	}
}

// WithStepInterval overrides the step interval.
func WithStepInterval(interval time.Duration) StepperOption {
	return func(s *Stepper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithStepperTickerFactory overrides ticker construction for tests.
func WithStepperTickerFactory(factory sched.TickerFactory) StepperOption {
	return func(s *Stepper) {
		if factory != nil {
			s.newTicker = factory
		}
	}
}

// WithStepperIDFactory overrides simulation id generation.
func WithStepperIDFactory(factory func() string) StepperOption {
	return func(s *Stepper) {
		if factory != nil {
			s.newID = factory
		}
	}
}

// NewStepper constructs a simulation stepper.
func NewStepper(deviceReg *registry.DeviceRegistry, householdReg *registry.HouseholdRegistry, bus eventing.Bus, logger *log.Logger, scenarios []simulation.Scenario, opts ...StepperOption) (*Stepper, error) {
	if deviceReg == nil {
		return nil, errors.New("stepper: nil device registry")
	}
	if householdReg == nil {
		return nil, errors.New("stepper: nil household registry")
	}
	if bus == nil {
		return nil, errors.New("stepper: nil event bus")
	}
	s := &Stepper{
		devices:    deviceReg,
		households: householdReg,
		bus:        bus,
		logger:     logger,
		clock:      sched.SystemClock{},
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
		newTicker:  sched.NewTicker,
		newID:      uuid.NewString,
		interval:   defaultStepInterval,
		scenarios:  make(map[string]simulation.Scenario),
		sims:       make(map[string]*simulation.Simulation),
		cancels:    make(map[string]context.CancelFunc),
	}
	for _, scenario := range scenarios {
		if err := scenario.Validate(); err != nil {
			return nil, err
		}
		s.scenarios[scenario.ID] = scenario
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start creates a running simulation and schedules its step loop.
func (s *Stepper) Start(ctx context.Context, scenarioID string, householdIDs []string) (string, error) {
	s.mu.Lock()
	scenario, ok := s.scenarios[scenarioID]
	s.mu.Unlock()
	if !ok {
		return "", simulation.ErrScenarioNotFound
	}
	for _, id := range householdIDs {
		if _, err := s.households.Get(id); err != nil {
			return "", err
		}
	}

	now := s.clock.Now()
	sim := &simulation.Simulation{
		ID:           s.newID(),
		ScenarioID:   scenarioID,
		Participants: append([]string(nil), householdIDs...),
		Status:       simulation.StatusRunning,
		StartedAt:    now,
		EndsAt:       now.Add(time.Duration(scenario.DurationHours) * time.Hour),
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.sims[sim.ID] = sim
	s.cancels[sim.ID] = cancel
	s.mu.Unlock()

	go s.run(runCtx, sim.ID)
	if s.logger != nil {
		s.logger.Printf("simulation started: id=%s scenario=%s participants=%d", sim.ID, scenarioID, len(householdIDs))
	}
	return sim.ID, nil
}

// run drives one simulation until it completes or is stopped.
func (s *Stepper) run(ctx context.Context, simID string) {
	ticker := s.newTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			if !s.Step(ctx, simID, now.UTC()) {
				return
			}
		}
	}
}

// Step advances a simulation by one step and reports whether the
// simulation is still running. Exposed for deterministic tests.
func (s *Stepper) Step(ctx context.Context, simID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sim, ok := s.sims[simID]
	if !ok || !sim.Running() {
		return false
	}
	scenario := s.scenarios[sim.ScenarioID]
	maxSteps := scenario.DurationHours * stepsPerHour
	if now.After(sim.EndsAt) || sim.StepCount >= maxSteps {
		_ = sim.Complete(now)
		if s.logger != nil {
			s.logger.Printf("simulation completed: id=%s steps=%d", sim.ID, sim.StepCount)
		}
		return false
	}

	step := simulation.Step{Index: sim.StepCount, At: now}
	step.Devices = s.sampleDevices(scenario, now)
	step.Households = s.sampleHouseholds(sim.Participants, scenario)
	step.Grid = s.sampleGrid(step.Households, scenario)

	sim.Steps = append(sim.Steps, step)
	sim.StepCount++
	metrics.IncSimulationStep()

	s.detectEvents(ctx, sim, step, now)
	return true
}

// uniform returns a sample in [-0.5, 0.5).
func (s *Stepper) uniform() float64 {
	return s.rand.Float64() - 0.5
}

// sampleDevices draws synthetic power for every registered device and
// writes the live reading back to the registry.
func (s *Stepper) sampleDevices(scenario simulation.Scenario, now time.Time) []simulation.DeviceSample {
	all := s.devices.List()
	samples := make([]simulation.DeviceSample, 0, len(all))
	for _, device := range all {
		base := device.CapacityKW * 0.5
		power := base * (1 + s.uniform()*scenario.LoadVariation)
		if power < 0 {
			power = 0
		}
		if power > device.CapacityKW {
			power = device.CapacityKW
		}
		updated, err := s.devices.Update(device.ID, func(d *devices.Device) error {
			d.CurrentPowerKW = power
			d.UpdatedAt = now
			return nil
		})
		if err != nil {
			continue
		}
		samples = append(samples, simulation.DeviceSample{
			DeviceID: updated.ID,
			PowerKW:  updated.CurrentPowerKW,
			Status:   updated.Status,
		})
	}
	return samples
}

// sampleHouseholds derives participant telemetry from the live records
// without mutating them.
func (s *Stepper) sampleHouseholds(participants []string, scenario simulation.Scenario) []simulation.HouseholdSample {
	samples := make([]simulation.HouseholdSample, 0, len(participants))
	for _, id := range participants {
		h, err := s.households.Get(id)
		if err != nil {
			continue
		}
		load := h.ConsumptionKW * (1 + s.uniform()*scenario.LoadVariation)
		generation := h.GenerationKW * (1 + s.uniform()*scenario.GenerationVariation)
		stored := h.StoredEnergyKWh * (1 + s.uniform()*scenario.StorageVariation)
		samples = append(samples, simulation.HouseholdSample{
			HouseholdID:     id,
			LoadKW:          clampNonNegative(load),
			GenerationKW:    clampNonNegative(generation),
			StoredEnergyKWh: clampNonNegative(stored),
		})
	}
	return samples
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// sampleGrid aggregates household samples into a grid-level reading and
// flags a warning when load exceeds the scenario ceiling.
func (s *Stepper) sampleGrid(households []simulation.HouseholdSample, scenario simulation.Scenario) simulation.GridSample {
	var load float64
	for _, sample := range households {
		load += sample.LoadKW
	}
	return simulation.GridSample{
		LoadKW:      load,
		FrequencyHz: nominalFrequencyHz + s.uniform()*0.2,
		VoltageV:    nominalVoltageV + s.uniform()*10,
		Warning:     load > scenario.GridLoadCeilingKW,
	}
}

// detectEvents appends grid_warning and device_failure events for the
// step and mirrors them onto the event bus.
func (s *Stepper) detectEvents(ctx context.Context, sim *simulation.Simulation, step simulation.Step, now time.Time) {
	publish := func(event simulation.Event) {
		sim.Events = append(sim.Events, event)
		metrics.IncSimulationEvent(event.Kind)
		busEvent := eventing.SimulationEvent{
			SimulationID: sim.ID,
			Kind:         event.Kind,
			DeviceID:     event.DeviceID,
			Step:         event.Step,
			At:           event.At,
		}
		if err := s.bus.Publish(ctx, busEvent); err != nil && s.logger != nil {
			s.logger.Printf("simulation event publish error: sim=%s err=%v", sim.ID, err)
		}
	}

	if step.Grid.Warning {
		publish(simulation.Event{Kind: simulation.EventGridWarning, Step: step.Index, At: now})
	}
	for _, sample := range step.Devices {
		if sample.Status == devices.StatusActive && sample.PowerKW < failurePowerThresholdKW {
			publish(simulation.Event{Kind: simulation.EventDeviceFailure, DeviceID: sample.DeviceID, Step: step.Index, At: now})
		}
	}
}

// Stop halts a running simulation. Already-appended steps and events
// stay recorded.
func (s *Stepper) Stop(simID string) (*simulation.Simulation, error) {
	now := s.clock.Now()

	s.mu.Lock()
	sim, ok := s.sims[simID]
	if !ok {
		s.mu.Unlock()
		return nil, simulation.ErrSimulationNotFound
	}
	if err := sim.Stop(now); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	cancel := s.cancels[simID]
	delete(s.cancels, simID)
	out := sim.Clone()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if s.logger != nil {
		s.logger.Printf("simulation stopped: id=%s steps=%d", simID, out.StepCount)
	}
	return out, nil
}

// Get returns a copy of a simulation.
func (s *Stepper) Get(simID string) (*simulation.Simulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.sims[simID]
	if !ok {
		return nil, simulation.ErrSimulationNotFound
	}
	return sim.Clone(), nil
}

// Stats returns aggregate figures for a simulation.
func (s *Stepper) Stats(simID string) (*simulation.Stats, error) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.sims[simID]
	if !ok {
		return nil, simulation.ErrSimulationNotFound
	}
	stats := sim.ComputeStats(now)
	return &stats, nil
}

// Scenarios lists the configured scenarios.
func (s *Stepper) Scenarios() []simulation.Scenario {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]simulation.Scenario, 0, len(s.scenarios))
	for _, scenario := range s.scenarios {
		out = append(out, scenario)
	}
	return out
}
