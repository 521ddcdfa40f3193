// Package registry holds the mutable in-process registries the engine is
// the single writer of.
package registry

import (
	"sort"
	"sync"

	market "microgrid-market/internal/market/domain"
)

// HouseholdRegistry stores household records behind per-record locks.
// A trade submission holds the buyer and seller locks across its
// availability check and mutation, so two concurrent submissions can
// never spend the same unconsumed energy.
type HouseholdRegistry struct {
	mu      sync.RWMutex
	records map[string]*market.Household
	locks   map[string]*sync.Mutex
}

// NewHouseholdRegistry constructs an empty registry.
func NewHouseholdRegistry() *HouseholdRegistry {
	return &HouseholdRegistry{
		records: make(map[string]*market.Household),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Upsert inserts or replaces a household record.
func (r *HouseholdRegistry) Upsert(h *market.Household) error {
	if h == nil {
		return market.ErrHouseholdNotFound
	}
	if err := h.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.records[h.ID]; ok {
		// Overwrite in place so holders of the record lock keep a
		// valid pointer.
		lock := r.locks[h.ID]
		lock.Lock()
		*existing = *h.Clone()
		lock.Unlock()
		return nil
	}
	r.records[h.ID] = h.Clone()
	r.locks[h.ID] = &sync.Mutex{}
	return nil
}

func (r *HouseholdRegistry) lockFor(id string) (*sync.Mutex, *market.Household, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[id]
	if !ok {
		return nil, nil, false
	}
	return r.locks[id], record, true
}

// Get returns a copy of the household, or ErrHouseholdNotFound.
func (r *HouseholdRegistry) Get(id string) (*market.Household, error) {
	lock, record, ok := r.lockFor(id)
	if !ok {
		return nil, market.ErrHouseholdNotFound
	}
	lock.Lock()
	defer lock.Unlock()
	return record.Clone(), nil
}

// Update mutates a household under its record lock and returns a copy.
func (r *HouseholdRegistry) Update(id string, fn func(*market.Household) error) (*market.Household, error) {
	lock, record, ok := r.lockFor(id)
	if !ok {
		return nil, market.ErrHouseholdNotFound
	}
	lock.Lock()
	defer lock.Unlock()
	if err := fn(record); err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// WithRecords locks the given households in sorted id order and runs fn
// against the live records. Records never escape the callback.
func (r *HouseholdRegistry) WithRecords(ids []string, fn func(map[string]*market.Household) error) error {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	locked := make([]*sync.Mutex, 0, len(sorted))
	records := make(map[string]*market.Household, len(sorted))
	unlock := func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}

	for i, id := range sorted {
		if i > 0 && sorted[i-1] == id {
			continue
		}
		lock, record, ok := r.lockFor(id)
		if !ok {
			unlock()
			return market.ErrHouseholdNotFound
		}
		lock.Lock()
		locked = append(locked, lock)
		records[id] = record
	}
	defer unlock()
	return fn(records)
}

// List returns copies of all households sorted by id.
func (r *HouseholdRegistry) List() []*market.Household {
	r.mu.RLock()
	ids := make([]string, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)

	out := make([]*market.Household, 0, len(ids))
	for _, id := range ids {
		if h, err := r.Get(id); err == nil {
			out = append(out, h)
		}
	}
	return out
}

// Aggregates sums load and supply over online households. Supply counts
// generation plus the configured fraction of stored energy.
func (r *HouseholdRegistry) Aggregates(storedSupplyFraction float64) (loadKW, supplyKW float64) {
	for _, h := range r.List() {
		if !h.Online {
			continue
		}
		loadKW += h.ConsumptionKW
		supplyKW += h.GenerationKW + h.StoredEnergyKWh*storedSupplyFraction
	}
	return loadKW, supplyKW
}
