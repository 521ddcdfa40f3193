package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"microgrid-market/internal/eventing"
	market "microgrid-market/internal/market/domain"
	"microgrid-market/internal/observability/metrics"
	"microgrid-market/internal/registry"
	"microgrid-market/internal/sched"
)

const (
	defaultDischargeFraction = 0.1
	defaultStorageConversion = 10.0
	defaultTradeValidity     = 5 * time.Minute
	defaultHistoryLimit      = 50
)

// Engine matches and executes trades against the household registry and
// owns the active-trade set, the grid status and the pricing state.
type Engine struct {
	households *registry.HouseholdRegistry
	history    market.HistoryRepository
	bus        eventing.Bus
	logger     *log.Logger
	clock      sched.Clock
	newID      func() string

	dischargeFraction float64
	storageConversion float64
	tradeValidity     time.Duration
	historyLimit      int

	// mu guards the active set, grid status and pricing state. Household
	// records are guarded by the registry's per-record locks instead, so
	// ticks and submissions for disjoint households run concurrently.
	mu      sync.Mutex
	active  map[string]*market.Trade
	grid    market.GridStatus
	pricing market.PricingState
}

// Option configures the engine.
type Option func(*Engine)

// WithClock overrides the default system clock.
func WithClock(clock sched.Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithIDFactory overrides trade id generation.
func WithIDFactory(factory func() string) Option {
	return func(e *Engine) {
		if factory != nil {
			e.newID = factory
		}
	}
}

// WithDischargeFraction sets the fraction of stored energy counted as
// available supply per cycle.
func WithDischargeFraction(fraction float64) Option {
	return func(e *Engine) {
		if fraction > 0 {
			e.dischargeFraction = fraction
		}
	}
}

// WithStorageConversion sets the energy-to-storage-unit conversion used
// when a trade draws from or charges a battery.
func WithStorageConversion(conversion float64) Option {
	return func(e *Engine) {
		if conversion > 0 {
			e.storageConversion = conversion
		}
	}
}

// WithTradeValidity sets the validity window for new trades.
func WithTradeValidity(validity time.Duration) Option {
	return func(e *Engine) {
		if validity > 0 {
			e.tradeValidity = validity
		}
	}
}

// WithHistoryLimit sets how many recent trades a snapshot carries.
func WithHistoryLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.historyLimit = limit
		}
	}
}

// NewEngine constructs the market engine.
func NewEngine(households *registry.HouseholdRegistry, history market.HistoryRepository, bus eventing.Bus, logger *log.Logger, basePrice float64, opts ...Option) (*Engine, error) {
	if households == nil {
		return nil, errors.New("market engine: nil household registry")
	}
	if history == nil {
		return nil, errors.New("market engine: nil history repository")
	}
	if bus == nil {
		return nil, errors.New("market engine: nil event bus")
	}
	if basePrice <= 0 {
		return nil, errors.New("market engine: base price must be positive")
	}
	e := &Engine{
		households:        households,
		history:           history,
		bus:               bus,
		logger:            logger,
		clock:             sched.SystemClock{},
		newID:             uuid.NewString,
		dischargeFraction: defaultDischargeFraction,
		storageConversion: defaultStorageConversion,
		tradeValidity:     defaultTradeValidity,
		historyLimit:      defaultHistoryLimit,
		active:            make(map[string]*market.Trade),
	}
	for _, opt := range opts {
		opt(e)
	}
	now := e.clock.Now()
	e.pricing = market.NewPricingState(basePrice, now)
	e.grid = market.GridStatus{Stability: market.StabilityStable, Timestamp: now}
	return e, nil
}

// CurrentPrice returns the published unit price.
func (e *Engine) CurrentPrice() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pricing.CurrentPrice
}

// GridStatus returns the latest grid snapshot.
func (e *Engine) GridStatus() market.GridStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid
}

// Stability returns the latest stability classification.
func (e *Engine) Stability() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid.Stability
}

// priceFor derives the unit price for an accepted request: market price,
// priority premium, volume discount, clamped to the buyer's stated max.
func (e *Engine) priceFor(req market.TradeRequest) float64 {
	price := e.CurrentPrice()
	switch req.Priority {
	case market.PriorityCritical:
		price *= 1.5
	case market.PriorityHigh:
		price *= 1.2
	}
	if req.EnergyAmountKWh > 5 {
		price *= 0.95
	}
	if price > req.MaxPriceKWh {
		price = req.MaxPriceKWh
	}
	return price
}

// sellerAccepts applies the seller's trading policy. A trade the policy
// does not auto-accept stays pending until the seller confirms it.
func sellerAccepts(seller *market.Household, pricePerKWh float64, hour int) bool {
	policy := seller.Policy
	if !policy.AutoTrading {
		return false
	}
	if policy.MinPriceKWh > 0 && pricePerKWh < policy.MinPriceKWh {
		return false
	}
	if policy.ActiveFromHour != policy.ActiveToHour {
		if policy.ActiveFromHour < policy.ActiveToHour {
			if hour < policy.ActiveFromHour || hour >= policy.ActiveToHour {
				return false
			}
		} else if hour < policy.ActiveFromHour && hour >= policy.ActiveToHour {
			return false
		}
	}
	return true
}

// Submit validates a trade request, checks seller availability and
// creates the trade. When the seller's policy auto-accepts, the trade
// executes immediately; otherwise it stays pending in the active set
// until confirmed, cancelled or expired.
//
// The availability check and the execution run under the buyer's and
// seller's record locks, so concurrent submissions can never both pass
// the check against the same unconsumed energy.
func (e *Engine) Submit(ctx context.Context, req market.TradeRequest) (*market.Trade, error) {
	req, err := req.Normalize()
	if err != nil {
		metrics.IncTradeSubmitted(metrics.ResultRejected)
		return nil, err
	}

	now := e.clock.Now()
	var trade *market.Trade
	err = e.households.WithRecords([]string{req.BuyerID, req.SellerID}, func(records map[string]*market.Household) error {
		seller := records[req.SellerID]
		available := seller.GenerationKW + seller.StoredEnergyKWh*e.dischargeFraction
		if available < req.EnergyAmountKWh {
			return &market.InsufficientEnergyError{
				SellerID:     seller.ID,
				AvailableKWh: available,
				RequestedKWh: req.EnergyAmountKWh,
			}
		}

		price := e.priceFor(req)
		trade = market.NewTrade(e.newID(), req, price, now, e.tradeValidity)
		e.registerActive(trade)

		if !sellerAccepts(seller, price, now.Hour()) {
			return nil
		}
		return e.executeLocked(trade, records, now)
	})
	if err != nil {
		metrics.IncTradeSubmitted(metrics.ResultRejected)
		var execErr *market.ExecutionError
		if errors.As(err, &execErr) {
			e.finishTrade(ctx, trade, eventing.TypeTradeFailed)
		}
		return nil, err
	}

	metrics.IncTradeSubmitted(metrics.ResultAccepted)
	e.mu.Lock()
	completed := trade.Status == market.StatusCompleted
	e.mu.Unlock()
	if completed {
		e.finishTrade(ctx, trade, eventing.TypeTradeCompleted)
	} else if e.logger != nil {
		e.logger.Printf("trade pending confirmation: id=%s seller=%s amount=%.3f", trade.ID, trade.SellerID, trade.EnergyAmountKWh)
	}

	e.mu.Lock()
	out := trade.Clone()
	e.mu.Unlock()
	return out, nil
}

// Confirm lets the seller accept a pending trade, which then executes.
func (e *Engine) Confirm(ctx context.Context, tradeID, actorID string) (*market.Trade, error) {
	now := e.clock.Now()

	e.mu.Lock()
	trade, ok := e.active[tradeID]
	if !ok {
		e.mu.Unlock()
		return nil, market.ErrTradeNotFound
	}
	if actorID != trade.SellerID {
		e.mu.Unlock()
		return nil, market.ErrForbidden
	}
	if trade.Status != market.StatusPending {
		e.mu.Unlock()
		return nil, market.ErrInvalidTransition
	}
	if err := trade.TransitionTo(market.StatusConfirmed, now); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()
	err := e.households.WithRecords([]string{trade.BuyerID, trade.SellerID}, func(records map[string]*market.Household) error {
		return e.executeLocked(trade, records, now)
	})
	if err != nil {
		e.finishTrade(ctx, trade, eventing.TypeTradeFailed)
		return nil, err
	}
	e.finishTrade(ctx, trade, eventing.TypeTradeCompleted)
	return trade.Clone(), nil
}

// executeLocked mutates the buyer and seller records for a trade. Callers
// hold both record locks; e.mu is taken here for the trade itself. On
// failure the trade is marked failed; it never stays silently active.
func (e *Engine) executeLocked(trade *market.Trade, records map[string]*market.Household, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fail := func(cause error) error {
		trade.Error = cause.Error()
		trade.Status = market.StatusFailed
		trade.UpdatedAt = now
		return &market.ExecutionError{TradeID: trade.ID, Err: cause}
	}

	buyer, seller := records[trade.BuyerID], records[trade.SellerID]
	if buyer == nil || seller == nil {
		return fail(market.ErrHouseholdNotFound)
	}

	if trade.Status == market.StatusPending || trade.Status == market.StatusConfirmed {
		if err := trade.TransitionTo(market.StatusInProgress, now); err != nil {
			return fail(err)
		}
	}
	trade.StartedAt = now

	// Capacity may have moved since submission; recheck under the locks.
	amount := trade.EnergyAmountKWh
	available := seller.GenerationKW + seller.StoredEnergyKWh*e.dischargeFraction
	if available < amount {
		return fail(&market.InsufficientEnergyError{
			SellerID:     seller.ID,
			AvailableKWh: available,
			RequestedKWh: amount,
		})
	}

	fromGeneration := amount
	if fromGeneration > seller.GenerationKW {
		fromGeneration = seller.GenerationKW
	}
	seller.GenerationKW -= fromGeneration
	if remainder := amount - fromGeneration; remainder > 0 {
		seller.StoredEnergyKWh -= remainder * e.storageConversion
		if seller.StoredEnergyKWh < 0 {
			seller.StoredEnergyKWh = 0
		}
	}
	seller.UpdatedAt = now

	buyer.ConsumptionKW -= amount
	if buyer.ConsumptionKW < 0 {
		buyer.ConsumptionKW = 0
	}
	buyer.StoredEnergyKWh += amount * e.storageConversion
	if buyer.StoredEnergyKWh > buyer.BatteryCapacityKWh {
		buyer.StoredEnergyKWh = buyer.BatteryCapacityKWh
	}
	buyer.UpdatedAt = now

	if err := trade.TransitionTo(market.StatusCompleted, now); err != nil {
		return fail(err)
	}
	trade.CompletedAt = now
	trade.DeliveredKWh = amount
	trade.PaidPrice = trade.TotalPrice
	return nil
}

// Cancel cancels a pending or confirmed trade. Only the buyer or seller
// household may cancel.
func (e *Engine) Cancel(ctx context.Context, tradeID, actorID, reason string) (*market.Trade, error) {
	now := e.clock.Now()

	e.mu.Lock()
	trade, ok := e.active[tradeID]
	if !ok {
		e.mu.Unlock()
		return nil, market.ErrTradeNotFound
	}
	if actorID != trade.BuyerID && actorID != trade.SellerID {
		e.mu.Unlock()
		return nil, market.ErrForbidden
	}
	if trade.Status != market.StatusPending && trade.Status != market.StatusConfirmed {
		e.mu.Unlock()
		return nil, market.ErrInvalidTransition
	}
	if err := trade.TransitionTo(market.StatusCancelled, now); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	trade.CancelledBy = actorID
	trade.CancelledAt = now
	trade.CancelReason = reason
	e.mu.Unlock()

	e.finishTrade(ctx, trade, eventing.TypeTradeCancelled)
	return trade.Clone(), nil
}

// SweepExpired evicts active trades whose validity window has passed.
// It runs on every market tick.
func (e *Engine) SweepExpired(ctx context.Context, now time.Time) int {
	e.mu.Lock()
	var expired []*market.Trade
	for _, trade := range e.active {
		if !trade.ExpiredAt(now) {
			continue
		}
		if trade.Status != market.StatusPending && trade.Status != market.StatusConfirmed {
			continue
		}
		if err := trade.TransitionTo(market.StatusExpired, now); err != nil {
			continue
		}
		expired = append(expired, trade)
	}
	e.mu.Unlock()

	for _, trade := range expired {
		e.finishTrade(ctx, trade, eventing.TypeTradeExpired)
		metrics.IncTradeExpired()
	}
	return len(expired)
}

// RecomputeGrid refreshes aggregates, the peak-load high-water mark and
// the stability classification from online households.
func (e *Engine) RecomputeGrid(ctx context.Context, now time.Time) market.GridStatus {
	loadKW, supplyKW := e.households.Aggregates(e.dischargeFraction)
	stability := market.EvaluateStability(loadKW, supplyKW)

	e.mu.Lock()
	changed := e.grid.Stability != stability
	e.grid.LoadKW = loadKW
	e.grid.SupplyKW = supplyKW
	if loadKW > e.grid.PeakLoadKW {
		e.grid.PeakLoadKW = loadKW
	}
	e.grid.Stability = stability
	e.grid.Timestamp = now
	status := e.grid
	e.mu.Unlock()

	metrics.SetGridAggregates(loadKW, supplyKW, status.PeakLoadKW)
	metrics.SetGridStability(stability)
	if changed {
		if err := e.bus.Publish(ctx, eventing.GridStatusChanged{Status: status}); err != nil && e.logger != nil {
			e.logger.Printf("grid status publish error: %v", err)
		}
	}
	return status
}

// RecomputePrice refreshes the published price from the latest aggregates
// and the current hour.
func (e *Engine) RecomputePrice(now time.Time) market.PricingState {
	e.mu.Lock()
	inputs := market.PriceInputs{
		Hour:     now.Hour(),
		GridLoad: e.grid.LoadKW,
		DemandKW: e.grid.LoadKW,
		SupplyKW: e.grid.SupplyKW,
	}
	e.pricing.CurrentPrice = market.ComputePrice(e.pricing.BasePrice, inputs)
	e.pricing.UpdatedAt = now
	state := e.pricing
	e.mu.Unlock()

	metrics.SetCurrentPrice(state.CurrentPrice)
	if e.logger != nil {
		e.logger.Printf("pricing tick: price=%.4f load=%.2f supply=%.2f hour=%d", state.CurrentPrice, inputs.GridLoad, inputs.SupplyKW, inputs.Hour)
	}
	return state
}

// GetTrade returns an active or archived trade by id.
func (e *Engine) GetTrade(ctx context.Context, id string) (*market.Trade, error) {
	e.mu.Lock()
	if trade, ok := e.active[id]; ok {
		out := trade.Clone()
		e.mu.Unlock()
		return out, nil
	}
	e.mu.Unlock()
	archived, err := e.history.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if archived == nil {
		return nil, market.ErrTradeNotFound
	}
	return archived, nil
}

// ActiveTrades returns copies of the active-trade set.
func (e *Engine) ActiveTrades() []*market.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*market.Trade, 0, len(e.active))
	for _, trade := range e.active {
		out = append(out, trade.Clone())
	}
	return out
}

func (e *Engine) registerActive(trade *market.Trade) {
	e.mu.Lock()
	e.active[trade.ID] = trade
	metrics.SetActiveTrades(len(e.active))
	e.mu.Unlock()
}

// finishTrade removes a terminal trade from the active set, archives it
// and publishes its terminal event.
func (e *Engine) finishTrade(ctx context.Context, trade *market.Trade, eventType string) {
	if trade == nil {
		return
	}
	e.mu.Lock()
	delete(e.active, trade.ID)
	metrics.SetActiveTrades(len(e.active))
	e.mu.Unlock()

	if err := e.history.Append(ctx, trade.Clone()); err != nil && e.logger != nil {
		e.logger.Printf("trade history append error: id=%s err=%v", trade.ID, err)
	}
	metrics.IncTradeFinished(trade.Status)
	if err := e.bus.Publish(ctx, eventing.TradeEvent{Type: eventType, Trade: *trade.Clone()}); err != nil && e.logger != nil {
		e.logger.Printf("trade event publish error: id=%s err=%v", trade.ID, err)
	}
	if e.logger != nil {
		e.logger.Printf("trade %s: id=%s buyer=%s seller=%s amount=%.3f price=%.4f", trade.Status, trade.ID, trade.BuyerID, trade.SellerID, trade.EnergyAmountKWh, trade.PricePerKWh)
	}
}

// GetHousehold returns a household by id.
func (e *Engine) GetHousehold(id string) (*market.Household, error) {
	return e.households.Get(id)
}

// UpdateHousehold applies a patch to a household record.
func (e *Engine) UpdateHousehold(id string, patch market.HouseholdPatch) (*market.Household, error) {
	now := e.clock.Now()
	return e.households.Update(id, func(h *market.Household) error {
		return patch.Apply(h, now)
	})
}

// Households returns all registered households.
func (e *Engine) Households() []*market.Household {
	return e.households.List()
}

func (e *Engine) String() string {
	return fmt.Sprintf("market.Engine(active=%d)", len(e.ActiveTrades()))
}
