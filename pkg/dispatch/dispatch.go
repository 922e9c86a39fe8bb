package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harrowd/harrow/pkg/config"
	"github.com/harrowd/harrow/pkg/log"
	"github.com/harrowd/harrow/pkg/provider"
	"github.com/harrowd/harrow/pkg/types"
)

// Dispatcher turns allocated batches into remote process launches and
// tracks what is in flight until the tick drains
type Dispatcher struct {
	cfg    *config.Config
	exec   provider.Executor
	deploy provider.Deployer

	mu       sync.Mutex
	inflight []*types.Batch
	lastLand time.Time
}

// NewDispatcher creates a dispatcher over the given executor and deployer
func NewDispatcher(cfg *config.Config, exec provider.Executor, deploy provider.Deployer) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		exec:   exec,
		deploy: deploy,
	}
}

// Prepare pushes the operation script to every worker. Idempotent; run
// once per tick before any dispatch.
func (d *Dispatcher) Prepare(ctx context.Context, workers []*types.Worker) error {
	for _, w := range workers {
		if err := d.deploy.EnsureScriptPresent(ctx, w.ID, d.cfg.ScriptID); err != nil {
			return fmt.Errorf("failed to deploy script to %s: %w", w.ID, err)
		}
	}
	return nil
}

// Dispatch issues one remote execution per (worker, slot, threads)
// assignment, passing the target, operation and landing instant. The
// launched processes self-time; nothing here blocks on completion.
//
// Individual launch failures are logged and skipped: a missing slice of a
// batch degrades the target state, which the next preparation pass
// corrects. The batch is tracked as in flight either way.
func (d *Dispatcher) Dispatch(ctx context.Context, batch *types.Batch) {
	logger := log.WithComponent("dispatch")

	for slot := types.SlotHack; slot < types.SlotCount; slot++ {
		landTime := batch.LandTimeFor(slot)
		for _, as := range batch.Assignments[slot] {
			_, err := d.exec.Dispatch(ctx, provider.ExecRequest{
				ScriptID: d.cfg.ScriptID,
				WorkerID: as.WorkerID,
				Threads:  as.Threads,
				TargetID: batch.TargetID,
				Op:       slot.Op(),
				LandTime: landTime,
			})
			if err != nil {
				logger.Warn().
					Err(err).
					Str("batch_id", batch.ID).
					Str("worker", as.WorkerID).
					Str("slot", slot.String()).
					Int("threads", as.Threads).
					Msg("Failed to launch operation")
				continue
			}

			logger.Debug().
				Str("batch_id", batch.ID).
				Str("worker", as.WorkerID).
				Str("slot", slot.String()).
				Int("threads", as.Threads).
				Time("land", landTime).
				Msg("Launched operation")
		}
	}

	d.mu.Lock()
	d.inflight = append(d.inflight, batch)
	if last := batch.LandTimeFor(types.SlotWeakenAfterGrow); last.After(d.lastLand) {
		d.lastLand = last
	}
	d.mu.Unlock()
}

// Drained reports whether no processes of the operation script remain on
// any of the given workers
func (d *Dispatcher) Drained(ctx context.Context, workerIDs []string) (bool, error) {
	for _, id := range workerIDs {
		procs, err := d.exec.ListProcesses(ctx, id, d.cfg.ScriptID)
		if err != nil {
			return false, fmt.Errorf("failed to list processes on %s: %w", id, err)
		}
		if len(procs) > 0 {
			return false, nil
		}
	}
	return true, nil
}

// Terminate force-kills the operation script across all given workers.
// Blunt and idempotent; there is no partial-completion bookkeeping to
// unwind.
func (d *Dispatcher) Terminate(ctx context.Context, workerIDs []string) error {
	var firstErr error
	for _, id := range workerIDs {
		if err := d.exec.Terminate(ctx, id, d.cfg.ScriptID); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to terminate on %s: %w", id, err)
		}
	}
	return firstErr
}

// InFlight returns the number of batches dispatched since the last Reset
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

// LastLandTime returns the latest landing instant across in-flight
// batches; zero when nothing is in flight
func (d *Dispatcher) LastLandTime() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastLand
}

// Reset clears in-flight tracking at the end of a tick
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	d.inflight = nil
	d.lastLand = time.Time{}
	d.mu.Unlock()
}
