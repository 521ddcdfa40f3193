package registry

import (
	"sort"
	"sync"

	devices "microgrid-market/internal/devices/domain"
)

// DeviceRegistry stores device records behind a single registry lock.
// Device state only changes through control commands and simulation
// steps, both low-frequency, so a per-record lock set is not needed.
type DeviceRegistry struct {
	mu      sync.RWMutex
	records map[string]*devices.Device
}

// NewDeviceRegistry constructs an empty registry.
func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{records: make(map[string]*devices.Device)}
}

// Upsert inserts or replaces a device record.
func (r *DeviceRegistry) Upsert(d *devices.Device) error {
	if d == nil {
		return devices.ErrDeviceNotFound
	}
	if err := d.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.records[d.ID] = d.Clone()
	r.mu.Unlock()
	return nil
}

// Get returns a copy of the device, or ErrDeviceNotFound.
func (r *DeviceRegistry) Get(id string) (*devices.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.records[id]
	if !ok {
		return nil, devices.ErrDeviceNotFound
	}
	return d.Clone(), nil
}

// Update mutates a device under the registry lock and returns a copy.
func (r *DeviceRegistry) Update(id string, fn func(*devices.Device) error) (*devices.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.records[id]
	if !ok {
		return nil, devices.ErrDeviceNotFound
	}
	if err := fn(d); err != nil {
		return nil, err
	}
	return d.Clone(), nil
}

// List returns copies of all devices sorted by id.
func (r *DeviceRegistry) List() []*devices.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*devices.Device, 0, len(r.records))
	for _, d := range r.records {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
