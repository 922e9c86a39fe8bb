package prep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harrowd/harrow/pkg/alloc"
	"github.com/harrowd/harrow/pkg/config"
	"github.com/harrowd/harrow/pkg/dispatch"
	"github.com/harrowd/harrow/pkg/events"
	"github.com/harrowd/harrow/pkg/log"
	"github.com/harrowd/harrow/pkg/metrics"
	"github.com/harrowd/harrow/pkg/planner"
	"github.com/harrowd/harrow/pkg/pool"
	"github.com/harrowd/harrow/pkg/provider"
	"github.com/harrowd/harrow/pkg/target"
	"github.com/harrowd/harrow/pkg/types"
)

// Stage is the preparation state machine's position. Transitions only
// move forward within a cycle; MEASURE re-evaluates at the top of every
// cycle.
type Stage string

const (
	StageMeasure   Stage = "measure"
	StageWeaken    Stage = "weaken"
	StageGrow      Stage = "grow"
	StageWeaken2   Stage = "weaken2"
	StageConverged Stage = "converged"
)

// Engine drives a target from arbitrary drift to the saturated state:
// security at minimum, money at ceiling. Each cycle runs up to three
// sequential single-purpose batches (weaken, grow, weaken again), each
// fully drained before the next, because each step's thread count is
// only valid against the state the previous step produced.
type Engine struct {
	cfg        *config.Config
	pool       *pool.Pool
	planner    *planner.Planner
	alloc      *alloc.Allocator
	dispatcher *dispatch.Dispatcher
	state      provider.State
	broker     *events.Broker

	mu         sync.Mutex
	stage      Stage
	dispatches int
}

// NewEngine creates a preparation engine
func NewEngine(cfg *config.Config, p *pool.Pool, pl *planner.Planner, a *alloc.Allocator, d *dispatch.Dispatcher, state provider.State, broker *events.Broker) *Engine {
	return &Engine{
		cfg:        cfg,
		pool:       p,
		planner:    pl,
		alloc:      a,
		dispatcher: d,
		state:      state,
		broker:     broker,
		stage:      StageMeasure,
	}
}

// Stage returns the engine's current position for liveness reporting
func (e *Engine) Stage() Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stage
}

// Dispatches returns how many preparation batches the engine has issued
func (e *Engine) Dispatches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatches
}

func (e *Engine) setStage(s Stage) {
	e.mu.Lock()
	e.stage = s
	e.mu.Unlock()
}

// Run converges the target, looping cycles until NeedsPreparation is
// false. There is no terminal failure: insufficient capacity just means
// more cycles, visible through the Stage and metrics, until the context
// is cancelled. An already-saturated target returns immediately with
// zero dispatches.
func (e *Engine) Run(ctx context.Context, targetID string) error {
	logger := log.WithComponent("prep")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.setStage(StageMeasure)
		snap, err := target.Snapshot(ctx, e.state, targetID)
		if err != nil {
			return err
		}

		if !snap.NeedsPreparation() {
			e.setStage(StageConverged)
			e.broker.Publish(&events.Event{
				Type:     events.EventTargetPrepared,
				TargetID: targetID,
			})
			logger.Info().
				Str("target", targetID).
				Float64("money", snap.Money).
				Float64("security", snap.Security).
				Msg("Target converged")
			return nil
		}

		e.broker.Publish(&events.Event{
			Type:     events.EventTargetPreparing,
			TargetID: targetID,
			Message:  fmt.Sprintf("security +%.2f, money %.0f%%", target.SecurityExcess(snap), target.MoneyRatio(snap)*100),
		})
		logger.Info().
			Str("target", targetID).
			Float64("security_excess", target.SecurityExcess(snap)).
			Float64("money_ratio", target.MoneyRatio(snap)).
			Msg("Preparing target")

		if err := e.cycle(ctx, targetID, snap); err != nil {
			return err
		}
		metrics.PrepCycles.Inc()
	}
}

// cycle runs one weaken/grow/weaken pass. Steps whose drift is already
// gone are skipped; each dispatched step drains fully before the next
// starts.
func (e *Engine) cycle(ctx context.Context, targetID string, snap *types.Target) error {
	// Weaken down to the floor, sized from the measured excess
	e.setStage(StageWeaken)
	if excess := target.SecurityExcess(snap); excess > 0 {
		threads := ceilDiv(excess, e.cfg.WeakenPotency)
		if err := e.step(ctx, snap, types.SlotWeakenAfterHack, threads); err != nil {
			return err
		}
	}

	// Grow back to the ceiling, sized from post-weaken state
	e.setStage(StageGrow)
	snap, err := target.Snapshot(ctx, e.state, targetID)
	if err != nil {
		return err
	}
	_, grow, weaken2, err := e.planner.PrepThreads(ctx, snap)
	if err != nil {
		return err
	}
	if grow > 0 {
		if err := e.step(ctx, snap, types.SlotGrow, grow); err != nil {
			return err
		}

		// Weaken off the security the grow added
		e.setStage(StageWeaken2)
		snap, err = target.Snapshot(ctx, e.state, targetID)
		if err != nil {
			return err
		}
		if err := e.step(ctx, snap, types.SlotWeakenAfterGrow, weaken2); err != nil {
			return err
		}
	}

	return nil
}

// step dispatches one single-purpose batch and waits for it to drain.
// Partial allocation dispatches what fits; the next MEASURE sees the
// leftover drift.
func (e *Engine) step(ctx context.Context, snap *types.Target, slot types.Slot, threads int) error {
	if threads <= 0 {
		return nil
	}

	if err := e.pool.Refresh(ctx); err != nil {
		return err
	}
	workers := e.pool.Eligible()
	if len(workers) == 0 {
		// Nothing to run on; let the outer loop re-measure and retry
		time.Sleep(e.cfg.TickRetryDelay)
		return nil
	}

	duration := slot.Op().Duration(snap)
	batch := &types.Batch{
		ID:        uuid.New().String(),
		TargetID:  snap.ID,
		LandTime:  time.Now().Add(duration).Add(e.cfg.DispatchSlack),
		Spacing:   e.cfg.Spacing,
		CreatedAt: time.Now(),
	}
	batch.Threads[slot] = threads
	batch.StartTimes[slot] = batch.LandTime.Add(-duration).Add(e.cfg.DispatchSlack)

	scratch := alloc.NewScratch(workers)
	e.alloc.Allocate(batch, workers, scratch)

	if err := e.dispatcher.Prepare(ctx, workers); err != nil {
		return err
	}
	e.dispatcher.Dispatch(ctx, batch)

	e.mu.Lock()
	e.dispatches++
	e.mu.Unlock()

	logger := log.WithComponent("prep")
	logger.Debug().
		Str("target", snap.ID).
		Str("slot", slot.String()).
		Int("threads", threads).
		Int("shortfall", batch.TotalShortfall()).
		Time("land", batch.LandTime).
		Msg("Dispatched preparation step")

	return e.waitDrain(ctx, workers, batch.LandTime)
}

// waitDrain polls until no operation processes remain, force-terminating
// past the landing TTL
func (e *Engine) waitDrain(ctx context.Context, workers []*types.Worker, land time.Time) error {
	ids := workerIDs(workers)
	deadline := land.Add(e.cfg.TTLMargin)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = e.dispatcher.Terminate(context.Background(), ids)
			e.dispatcher.Reset()
			return ctx.Err()
		case <-ticker.C:
			drained, err := e.dispatcher.Drained(ctx, ids)
			if err != nil {
				return err
			}
			if drained {
				e.dispatcher.Reset()
				return nil
			}
			if time.Now().After(deadline) {
				logger := log.WithComponent("prep")
				logger.Warn().
					Time("deadline", deadline).
					Msg("Preparation step missed its landing TTL, terminating")
				if err := e.dispatcher.Terminate(ctx, ids); err != nil {
					return err
				}
				e.dispatcher.Reset()
				return nil
			}
		}
	}
}

func workerIDs(workers []*types.Worker) []string {
	ids := make([]string, len(workers))
	for i, w := range workers {
		ids[i] = w.ID
	}
	return ids
}

func ceilDiv(amount, per float64) int {
	if per <= 0 {
		return 0
	}
	n := int(amount / per)
	if float64(n)*per < amount {
		n++
	}
	return n
}
