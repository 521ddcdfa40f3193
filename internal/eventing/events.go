package eventing

import (
	"time"

	devices "microgrid-market/internal/devices/domain"
	market "microgrid-market/internal/market/domain"
)

const (
	TypeTradeCompleted  = "trade.completed"
	TypeTradeFailed     = "trade.failed"
	TypeTradeCancelled  = "trade.cancelled"
	TypeTradeExpired    = "trade.expired"
	TypeDeviceUpdated   = "device.updated"
	TypeSheddingApplied = "shedding.applied"
	TypeGridStatus      = "grid.status"
	TypeSimulation      = "simulation.event"
)

// AllTypes lists every event type for broad subscriptions.
var AllTypes = []string{
	TypeTradeCompleted,
	TypeTradeFailed,
	TypeTradeCancelled,
	TypeTradeExpired,
	TypeDeviceUpdated,
	TypeSheddingApplied,
	TypeGridStatus,
	TypeSimulation,
}

// TradeEvent reports a trade reaching a terminal status.
type TradeEvent struct {
	Type  string       `json:"type"`
	Trade market.Trade `json:"trade"`
}

// EventType implements Event.
func (e TradeEvent) EventType() string { return e.Type }

// DeviceUpdated reports a device state change from a control command or
// simulation step.
type DeviceUpdated struct {
	Device devices.Device `json:"device"`
	Action string         `json:"action"`
}

// EventType implements Event.
func (DeviceUpdated) EventType() string { return TypeDeviceUpdated }

// SheddingApplied reports one emergency load-shedding invocation.
type SheddingApplied struct {
	Affected  []market.Household `json:"affected"`
	Stability string             `json:"stability"`
	At        time.Time          `json:"at"`
}

// EventType implements Event.
func (SheddingApplied) EventType() string { return TypeSheddingApplied }

// GridStatusChanged reports a market-tick grid recomputation.
type GridStatusChanged struct {
	Status market.GridStatus `json:"status"`
}

// EventType implements Event.
func (GridStatusChanged) EventType() string { return TypeGridStatus }

// SimulationEvent reports a threshold-crossing detected by the stepper.
type SimulationEvent struct {
	SimulationID string    `json:"simulation_id"`
	Kind         string    `json:"kind"`
	DeviceID     string    `json:"device_id,omitempty"`
	Step         int       `json:"step"`
	At           time.Time `json:"at"`
}

// EventType implements Event.
func (SimulationEvent) EventType() string { return TypeSimulation }
