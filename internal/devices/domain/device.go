package devices

import (
	"errors"
	"time"
)

const (
	TypeSolarPanel     = "solar_panel"
	TypeBattery        = "battery"
	TypeInverter       = "inverter"
	TypeSmartMeter     = "smart_meter"
	TypeLoadController = "load_controller"
)

const (
	StatusActive      = "active"
	StatusInactive    = "inactive"
	StatusMaintenance = "maintenance"
	StatusError       = "error"
)

// ValidType reports whether t is a known device type.
func ValidType(t string) bool {
	switch t {
	case TypeSolarPanel, TypeBattery, TypeInverter, TypeSmartMeter, TypeLoadController:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known device status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusInactive, StatusMaintenance, StatusError:
		return true
	}
	return false
}

// SolarPanelParams configure a solar panel.
type SolarPanelParams struct {
	TiltDegrees    float64 `json:"tilt_degrees"`
	AzimuthDegrees float64 `json:"azimuth_degrees"`
}

// BatteryParams configure a battery.
type BatteryParams struct {
	MaxChargeKW      float64 `json:"max_charge_kw"`
	MaxDischargeKW   float64 `json:"max_discharge_kw"`
	DepthOfDischarge float64 `json:"depth_of_discharge"`
}

// InverterParams configure an inverter.
type InverterParams struct {
	Phases          int     `json:"phases"`
	MaxInputVoltage float64 `json:"max_input_voltage"`
}

// SmartMeterParams configure a smart meter.
type SmartMeterParams struct {
	ReportIntervalSeconds int `json:"report_interval_seconds"`
}

// LoadControllerParams configure a load controller.
type LoadControllerParams struct {
	Channels int `json:"channels"`
}

// Params is the tagged per-type parameter set plus an open extension map
// for fields no typed struct covers.
type Params struct {
	SolarPanel     *SolarPanelParams     `json:"solar_panel,omitempty"`
	Battery        *BatteryParams        `json:"battery,omitempty"`
	Inverter       *InverterParams       `json:"inverter,omitempty"`
	SmartMeter     *SmartMeterParams     `json:"smart_meter,omitempty"`
	LoadController *LoadControllerParams `json:"load_controller,omitempty"`
	Extra          map[string]string     `json:"extra,omitempty"`
}

// Device represents a physical device attached to a household.
type Device struct {
	ID             string    `json:"id"`
	HouseholdID    string    `json:"household_id"`
	Type           string    `json:"type"`
	CapacityKW     float64   `json:"capacity_kw"`
	Efficiency     float64   `json:"efficiency"`
	Status         string    `json:"status"`
	CurrentPowerKW float64   `json:"current_power_kw"`
	Params         Params    `json:"params"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks device invariants.
func (d Device) Validate() error {
	if d.ID == "" {
		return errors.New("device: empty id")
	}
	if !ValidType(d.Type) {
		return errors.New("device: unknown type")
	}
	if !ValidStatus(d.Status) {
		return errors.New("device: unknown status")
	}
	if d.CapacityKW < 0 {
		return errors.New("device: negative capacity")
	}
	if d.Efficiency <= 0 || d.Efficiency > 1 {
		return errors.New("device: efficiency out of (0,1]")
	}
	if d.CurrentPowerKW < 0 || d.CurrentPowerKW > d.CapacityKW {
		return errors.New("device: current power out of capacity range")
	}
	return nil
}

// Clone returns a deep copy.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	copy := *d
	if d.Params.SolarPanel != nil {
		sp := *d.Params.SolarPanel
		copy.Params.SolarPanel = &sp
	}
	if d.Params.Battery != nil {
		b := *d.Params.Battery
		copy.Params.Battery = &b
	}
	if d.Params.Inverter != nil {
		inv := *d.Params.Inverter
		copy.Params.Inverter = &inv
	}
	if d.Params.SmartMeter != nil {
		sm := *d.Params.SmartMeter
		copy.Params.SmartMeter = &sm
	}
	if d.Params.LoadController != nil {
		lc := *d.Params.LoadController
		copy.Params.LoadController = &lc
	}
	if d.Params.Extra != nil {
		extra := make(map[string]string, len(d.Params.Extra))
		for k, v := range d.Params.Extra {
			extra[k] = v
		}
		copy.Params.Extra = extra
	}
	return &copy
}

// ErrDeviceNotFound is returned for an unknown device id.
var ErrDeviceNotFound = errors.New("device: not found")
