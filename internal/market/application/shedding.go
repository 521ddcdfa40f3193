package application

import (
	"context"
	"errors"
	"log"
	"sort"

	"microgrid-market/internal/eventing"
	market "microgrid-market/internal/market/domain"
	"microgrid-market/internal/observability/metrics"
	"microgrid-market/internal/registry"
	"microgrid-market/internal/sched"
)

// sheddingFactor is the consumption multiplier applied per invocation:
// a 30% cut for every shed household.
const sheddingFactor = 0.7

// StabilityReader reports the latest stability classification.
type StabilityReader interface {
	Stability() string
}

// SheddingController reduces non-critical household load when grid
// stability is critical. Invoked on demand by an external caller.
type SheddingController struct {
	households *registry.HouseholdRegistry
	stability  StabilityReader
	bus        eventing.Bus
	clock      sched.Clock
	logger     *log.Logger
}

// NewSheddingController constructs a SheddingController.
func NewSheddingController(households *registry.HouseholdRegistry, stability StabilityReader, bus eventing.Bus, logger *log.Logger) (*SheddingController, error) {
	if households == nil {
		return nil, errors.New("shedding: nil household registry")
	}
	if stability == nil {
		return nil, errors.New("shedding: nil stability reader")
	}
	if bus == nil {
		return nil, errors.New("shedding: nil event bus")
	}
	return &SheddingController{
		households: households,
		stability:  stability,
		bus:        bus,
		clock:      sched.SystemClock{},
		logger:     logger,
	}, nil
}

// WithSheddingClock overrides the controller clock.
func (c *SheddingController) WithSheddingClock(clock sched.Clock) *SheddingController {
	if clock != nil {
		c.clock = clock
	}
	return c
}

// Trigger sheds 30% of consumption from every online non-critical
// household while stability is critical. High-priority households are
// shed last; critical ones are never touched. Returns the updated set of
// affected households for external notification.
func (c *SheddingController) Trigger(ctx context.Context) ([]market.Household, error) {
	stability := c.stability.Stability()
	if stability != market.StabilityCritical {
		return nil, nil
	}

	candidates := make([]*market.Household, 0)
	for _, h := range c.households.List() {
		if h.Sheddable() {
			candidates = append(candidates, h)
		}
	}
	// normal/low first, high last; stable order within a tier.
	sort.SliceStable(candidates, func(i, j int) bool {
		return sheddingOrder(candidates[i].Priority) < sheddingOrder(candidates[j].Priority)
	})

	now := c.clock.Now()
	affected := make([]market.Household, 0, len(candidates))
	for _, candidate := range candidates {
		if c.stability.Stability() != market.StabilityCritical {
			break
		}
		updated, err := c.households.Update(candidate.ID, func(h *market.Household) error {
			h.ConsumptionKW *= sheddingFactor
			h.UpdatedAt = now
			return nil
		})
		if err != nil {
			if c.logger != nil {
				c.logger.Printf("shedding update error: household=%s err=%v", candidate.ID, err)
			}
			continue
		}
		affected = append(affected, *updated)
	}

	metrics.ObserveShedding(len(affected))
	if len(affected) > 0 {
		event := eventing.SheddingApplied{Affected: affected, Stability: stability, At: now}
		if err := c.bus.Publish(ctx, event); err != nil && c.logger != nil {
			c.logger.Printf("shedding publish error: %v", err)
		}
		if c.logger != nil {
			c.logger.Printf("emergency shedding applied: affected=%d", len(affected))
		}
	}
	return affected, nil
}

func sheddingOrder(priority string) int {
	switch priority {
	case market.PriorityHigh:
		return 1
	default:
		return 0
	}
}
