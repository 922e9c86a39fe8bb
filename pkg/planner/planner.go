package planner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/harrowd/harrow/pkg/config"
	"github.com/harrowd/harrow/pkg/provider"
	"github.com/harrowd/harrow/pkg/types"
)

// ErrInvalidPlan marks a batch whose thread counts came out non-positive
// or non-finite. Callers skip the batch instead of dispatching it.
var ErrInvalidPlan = errors.New("invalid batch plan")

// Planner computes one HWGW cycle's thread counts and timing for a
// saturated target
type Planner struct {
	cfg      *config.Config
	analysis provider.Analysis
}

// NewPlanner creates a planner using the given balance constants and
// host analysis formulas
func NewPlanner(cfg *config.Config, analysis provider.Analysis) *Planner {
	return &Planner{
		cfg:      cfg,
		analysis: analysis,
	}
}

// Plan computes the four thread counts and absolute start times for one
// batch landing its hack at landTime. The target snapshot supplies the
// operation durations; they are load-dependent, so plans must be made
// fresh from a current snapshot.
func (p *Planner) Plan(ctx context.Context, target *types.Target, landTime time.Time) (*types.Batch, error) {
	if target.MaxMoney <= 0 {
		return nil, fmt.Errorf("%w: target %s has zero money ceiling", ErrInvalidPlan, target.ID)
	}

	drainPerThread, err := p.analysis.HackDrainFraction(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze hack drain for %s: %w", target.ID, err)
	}
	if !isFinitePositive(drainPerThread) || drainPerThread >= 1 {
		return nil, fmt.Errorf("%w: degenerate drain fraction %v for %s", ErrInvalidPlan, drainPerThread, target.ID)
	}

	// Floor so the cumulative drain never exceeds the configured fraction
	hackThreads := int(math.Floor(p.cfg.HackFraction / drainPerThread))
	if hackThreads <= 0 {
		return nil, fmt.Errorf("%w: one hack thread drains more than the %v target fraction", ErrInvalidPlan, p.cfg.HackFraction)
	}

	drained := target.Money * drainPerThread * float64(hackThreads)
	if drained >= target.MaxMoney {
		return nil, fmt.Errorf("%w: planned drain %v exceeds ceiling of %s", ErrInvalidPlan, drained, target.ID)
	}

	weaken1 := int(math.Ceil(float64(hackThreads) / p.cfg.HackThreadsPerWeaken()))

	// Grow back to the ceiling from whatever the hack leaves behind
	multiplier := target.MaxMoney / (target.MaxMoney - drained)
	if !isFinitePositive(multiplier) {
		return nil, fmt.Errorf("%w: degenerate growth multiplier %v for %s", ErrInvalidPlan, multiplier, target.ID)
	}

	growThreads, err := p.analysis.GrowthThreads(ctx, target.ID, multiplier)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze growth for %s: %w", target.ID, err)
	}

	weaken2 := int(math.Ceil(float64(growThreads) / p.cfg.GrowThreadsPerWeaken()))

	threads := [types.SlotCount]int{hackThreads, weaken1, growThreads, weaken2}
	for slot, n := range threads {
		if n <= 0 {
			return nil, fmt.Errorf("%w: %s requires %d threads", ErrInvalidPlan, types.Slot(slot), n)
		}
	}

	batch := &types.Batch{
		ID:        uuid.New().String(),
		TargetID:  target.ID,
		Threads:   threads,
		LandTime:  landTime,
		Spacing:   p.cfg.Spacing,
		CreatedAt: time.Now(),
	}

	for slot := types.SlotHack; slot < types.SlotCount; slot++ {
		duration := slot.Op().Duration(target)
		batch.StartTimes[slot] = batch.LandTimeFor(slot).Add(-duration).Add(p.cfg.DispatchSlack)
	}

	return batch, nil
}

// PrepThreads computes the thread counts for the three preparation steps
// from the current drift: weaken to the floor, grow to the ceiling, then
// weaken off the security the grow added. Steps whose drift is already
// gone come back zero.
func (p *Planner) PrepThreads(ctx context.Context, target *types.Target) (weaken1, grow, weaken2 int, err error) {
	excess := target.Security - target.MinSecurity
	if excess > 0 {
		weaken1 = int(math.Ceil(excess / p.cfg.WeakenPotency))
	}

	if target.MaxMoney > 0 && target.Money < target.MaxMoney {
		multiplier := target.MaxMoney / math.Max(target.Money, 1)
		grow, err = p.analysis.GrowthThreads(ctx, target.ID, multiplier)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("failed to analyze growth for %s: %w", target.ID, err)
		}
		if grow > 0 {
			weaken2 = int(math.Ceil(float64(grow) / p.cfg.GrowThreadsPerWeaken()))
		}
	}

	return weaken1, grow, weaken2, nil
}

// RAMForSlot returns the per-thread RAM cost of the given batch slot
func (p *Planner) RAMForSlot(slot types.Slot) float64 {
	return p.cfg.RAMForOp(string(slot.Op()))
}

func isFinitePositive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
