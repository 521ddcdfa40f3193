package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	devices "microgrid-market/internal/devices/domain"
	"microgrid-market/internal/eventing"
	"microgrid-market/internal/observability/metrics"
	"microgrid-market/internal/registry"
	"microgrid-market/internal/sched"
)

const (
	ActionStart         = "start"
	ActionStop          = "stop"
	ActionSetPower      = "set_power"
	ActionSetParameters = "set_parameters"
)

// ErrUnknownAction is returned for an unsupported control action.
var ErrUnknownAction = errors.New("device control: unknown action")

// ControlParams carry the action-specific arguments of a control command.
type ControlParams struct {
	PowerKW *float64        `json:"power_kw,omitempty"`
	Params  *devices.Params `json:"params,omitempty"`
}

// Service executes device control commands against the device registry.
type Service struct {
	devices *registry.DeviceRegistry
	bus     eventing.Bus
	clock   sched.Clock
	logger  *log.Logger
}

// NewService constructs a device control service.
func NewService(reg *registry.DeviceRegistry, bus eventing.Bus, logger *log.Logger) (*Service, error) {
	if reg == nil {
		return nil, errors.New("device control: nil device registry")
	}
	if bus == nil {
		return nil, errors.New("device control: nil event bus")
	}
	return &Service{
		devices: reg,
		bus:     bus,
		clock:   sched.SystemClock{},
		logger:  logger,
	}, nil
}

// WithClock overrides the service clock.
func (s *Service) WithClock(clock sched.Clock) *Service {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// Control applies a control action to a device and returns the updated
// record. Supported actions: start, stop, set_power, set_parameters.
func (s *Service) Control(ctx context.Context, deviceID, action string, params ControlParams) (*devices.Device, error) {
	now := s.clock.Now()
	updated, err := s.devices.Update(deviceID, func(d *devices.Device) error {
		switch action {
		case ActionStart:
			d.Status = devices.StatusActive
		case ActionStop:
			d.Status = devices.StatusInactive
			d.CurrentPowerKW = 0
		case ActionSetPower:
			if params.PowerKW == nil {
				return errors.New("device control: set_power requires power_kw")
			}
			power := *params.PowerKW
			if power < 0 || power > d.CapacityKW {
				return fmt.Errorf("device control: power %.3f outside [0, %.3f]", power, d.CapacityKW)
			}
			d.CurrentPowerKW = power
		case ActionSetParameters:
			if params.Params == nil {
				return errors.New("device control: set_parameters requires params")
			}
			d.Params = *params.Params
		default:
			return ErrUnknownAction
		}
		d.UpdatedAt = now
		return d.Validate()
	})
	if err != nil {
		metrics.IncDeviceCommand(action, metrics.ResultError)
		return nil, err
	}

	metrics.IncDeviceCommand(action, metrics.ResultSuccess)
	if err := s.bus.Publish(ctx, eventing.DeviceUpdated{Device: *updated.Clone(), Action: action}); err != nil && s.logger != nil {
		s.logger.Printf("device event publish error: id=%s err=%v", deviceID, err)
	}
	if s.logger != nil {
		s.logger.Printf("device control: id=%s action=%s status=%s power=%.3f", updated.ID, action, updated.Status, updated.CurrentPowerKW)
	}
	return updated, nil
}

// Get returns a device by id.
func (s *Service) Get(id string) (*devices.Device, error) {
	return s.devices.Get(id)
}

// List returns all devices.
func (s *Service) List() []*devices.Device {
	return s.devices.List()
}
