package application

import (
	"context"
	"sync"
	"testing"
	"time"

	devices "microgrid-market/internal/devices/domain"
	"microgrid-market/internal/eventing"
	market "microgrid-market/internal/market/domain"
	"microgrid-market/internal/registry"
	simulation "microgrid-market/internal/simulation/domain"
)

// fixedRand always returns the same sample, making step output
// deterministic. 0.5 maps to a zero uniform offset.
type fixedRand struct {
	value float64
}

func (r fixedRand) Float64() float64 { return r.value }

type stepperClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepperClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepperClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testScenario() simulation.Scenario {
	return simulation.Scenario{
		ID:                  "test",
		Name:                "Test",
		DurationHours:       1,
		LoadVariation:       0.2,
		GenerationVariation: 0.2,
		StorageVariation:    0.1,
		GridLoadCeilingKW:   100,
	}
}

func newTestStepper(t *testing.T, scenario simulation.Scenario) (*Stepper, *registry.DeviceRegistry, *registry.HouseholdRegistry, *stepperClock) {
	t.Helper()
	deviceReg := registry.NewDeviceRegistry()
	householdReg := registry.NewHouseholdRegistry()
	if err := householdReg.Upsert(&market.Household{
		ID:            "house-1",
		Name:          "House 1",
		GenerationKW:  5,
		ConsumptionKW: 3,
		Online:        true,
		Priority:      market.PriorityNormal,
	}); err != nil {
		t.Fatalf("upsert household: %v", err)
	}
	if err := deviceReg.Upsert(&devices.Device{
		ID:          "panel-1",
		HouseholdID: "house-1",
		Type:        devices.TypeSolarPanel,
		CapacityKW:  4,
		Efficiency:  0.9,
		Status:      devices.StatusActive,
	}); err != nil {
		t.Fatalf("upsert device: %v", err)
	}

	clock := &stepperClock{now: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)}
	counter := 0
	stepper, err := NewStepper(deviceReg, householdReg, eventing.NewInMemoryBus(), nil, []simulation.Scenario{scenario},
		WithStepperClock(clock),
		WithRand(fixedRand{value: 0.5}),
		WithStepperIDFactory(func() string {
			counter++
			return "sim-1"
		}),
	)
	if err != nil {
		t.Fatalf("new stepper: %v", err)
	}
	return stepper, deviceReg, householdReg, clock
}

func TestStartRejectsUnknownScenarioAndHousehold(t *testing.T) {
	stepper, _, _, _ := newTestStepper(t, testScenario())

	if _, err := stepper.Start(context.Background(), "missing", nil); err != simulation.ErrScenarioNotFound {
		t.Fatalf("expected scenario not found, got %v", err)
	}
	if _, err := stepper.Start(context.Background(), "test", []string{"nobody"}); err != market.ErrHouseholdNotFound {
		t.Fatalf("expected household not found, got %v", err)
	}
}

func TestStepSamplesAndWritesDevicePower(t *testing.T) {
	stepper, deviceReg, _, clock := newTestStepper(t, testScenario())
	simID, err := stepper.Start(context.Background(), "test", []string{"house-1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _, _ = stepper.Stop(simID) })

	clock.Advance(time.Minute)
	if !stepper.Step(context.Background(), simID, clock.Now()) {
		t.Fatalf("expected simulation still running")
	}

	sim, err := stepper.Get(simID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sim.StepCount != 1 || len(sim.Steps) != 1 {
		t.Fatalf("expected one recorded step, got %d", sim.StepCount)
	}
	step := sim.Steps[0]
	if len(step.Devices) != 1 || step.Devices[0].DeviceID != "panel-1" {
		t.Fatalf("expected the registered device sampled, got %+v", step.Devices)
	}
	// Zero uniform offset keeps power at half capacity.
	if step.Devices[0].PowerKW != 2 {
		t.Fatalf("expected 2 kW sample, got %.3f", step.Devices[0].PowerKW)
	}
	device, _ := deviceReg.Get("panel-1")
	if device.CurrentPowerKW != 2 {
		t.Fatalf("expected live power written back, got %.3f", device.CurrentPowerKW)
	}
	if len(step.Households) != 1 || step.Households[0].HouseholdID != "house-1" {
		t.Fatalf("expected participant sampled, got %+v", step.Households)
	}
	if step.Grid.LoadKW != 3 {
		t.Fatalf("expected grid load 3, got %.3f", step.Grid.LoadKW)
	}
	if step.Grid.Warning {
		t.Fatalf("no warning expected below the ceiling")
	}
}

func TestStepDetectsGridWarningAndDeviceFailure(t *testing.T) {
	scenario := testScenario()
	scenario.GridLoadCeilingKW = 1
	stepper, deviceReg, _, clock := newTestStepper(t, scenario)

	// A minimal sample drives active device power below the failure
	// threshold: capacity/2 * (1 - 0.5*variation) with variation 0.2
	// stays positive, so force a tiny capacity instead.
	if err := deviceReg.Upsert(&devices.Device{
		ID:          "panel-1",
		HouseholdID: "house-1",
		Type:        devices.TypeSolarPanel,
		CapacityKW:  0.1,
		Efficiency:  0.9,
		Status:      devices.StatusActive,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	simID, err := stepper.Start(context.Background(), "test", []string{"house-1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _, _ = stepper.Stop(simID) })

	clock.Advance(time.Minute)
	stepper.Step(context.Background(), simID, clock.Now())

	sim, _ := stepper.Get(simID)
	kinds := make(map[string]int)
	for _, event := range sim.Events {
		kinds[event.Kind]++
	}
	if kinds[simulation.EventGridWarning] != 1 {
		t.Fatalf("expected a grid warning, got %+v", kinds)
	}
	if kinds[simulation.EventDeviceFailure] != 1 {
		t.Fatalf("expected a device failure, got %+v", kinds)
	}
}

func TestStepCompletesAtDurationCap(t *testing.T) {
	stepper, _, _, clock := newTestStepper(t, testScenario())
	simID, err := stepper.Start(context.Background(), "test", []string{"house-1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// 1 hour duration caps the run at 60 steps.
	for i := 0; i < 60; i++ {
		clock.Advance(time.Second)
		if !stepper.Step(context.Background(), simID, clock.Now()) {
			t.Fatalf("simulation ended early at step %d", i)
		}
	}
	if stepper.Step(context.Background(), simID, clock.Now()) {
		t.Fatalf("expected completion at the step cap")
	}

	sim, _ := stepper.Get(simID)
	if sim.Status != simulation.StatusCompleted {
		t.Fatalf("expected completed, got %s", sim.Status)
	}
	if sim.StepCount != 60 {
		t.Fatalf("expected 60 steps, got %d", sim.StepCount)
	}
}

func TestStepCompletesPastEndTime(t *testing.T) {
	stepper, _, _, clock := newTestStepper(t, testScenario())
	simID, err := stepper.Start(context.Background(), "test", []string{"house-1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.Advance(61 * time.Minute)
	if stepper.Step(context.Background(), simID, clock.Now()) {
		t.Fatalf("expected completion past the end time")
	}
	sim, _ := stepper.Get(simID)
	if sim.Status != simulation.StatusCompleted {
		t.Fatalf("expected completed, got %s", sim.Status)
	}
}

func TestStopPreservesRecordedSteps(t *testing.T) {
	stepper, _, _, clock := newTestStepper(t, testScenario())
	simID, err := stepper.Start(context.Background(), "test", []string{"house-1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.Advance(time.Minute)
	stepper.Step(context.Background(), simID, clock.Now())

	stopped, err := stepper.Stop(simID)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.Status != simulation.StatusStopped {
		t.Fatalf("expected stopped, got %s", stopped.Status)
	}
	if stopped.StepCount != 1 {
		t.Fatalf("recorded steps must survive a stop")
	}
	if _, err := stepper.Stop(simID); err != simulation.ErrNotRunning {
		t.Fatalf("expected not running on second stop, got %v", err)
	}
	if stepper.Step(context.Background(), simID, clock.Now()) {
		t.Fatalf("stopped simulation must not accept steps")
	}
}

func TestStatsAggregatesEvents(t *testing.T) {
	stepper, _, _, clock := newTestStepper(t, testScenario())
	simID, err := stepper.Start(context.Background(), "test", []string{"house-1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _, _ = stepper.Stop(simID) })

	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		stepper.Step(context.Background(), simID, clock.Now())
	}

	stats, err := stepper.Stats(simID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Steps != 3 {
		t.Fatalf("expected 3 steps, got %d", stats.Steps)
	}
	if stats.AveragePowerKW != 2 {
		t.Fatalf("expected average power 2, got %.3f", stats.AveragePowerKW)
	}
	if stats.Elapsed <= 0 {
		t.Fatalf("expected positive elapsed time")
	}
}
