package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harrowd/harrow/pkg/alloc"
	"github.com/harrowd/harrow/pkg/config"
	"github.com/harrowd/harrow/pkg/dispatch"
	"github.com/harrowd/harrow/pkg/events"
	"github.com/harrowd/harrow/pkg/log"
	"github.com/harrowd/harrow/pkg/metrics"
	"github.com/harrowd/harrow/pkg/planner"
	"github.com/harrowd/harrow/pkg/pool"
	"github.com/harrowd/harrow/pkg/prep"
	"github.com/harrowd/harrow/pkg/provider"
	"github.com/harrowd/harrow/pkg/storage"
	"github.com/harrowd/harrow/pkg/target"
	"github.com/harrowd/harrow/pkg/types"
)

// Loop is the top-level scheduling loop for one target: refresh state,
// prepare if drifted, otherwise plan, allocate and dispatch as many
// staggered batches as capacity supports, then wait for the tick to
// drain before repeating.
type Loop struct {
	cfg        *config.Config
	targetID   string
	pool       *pool.Pool
	planner    *planner.Planner
	alloc      *alloc.Allocator
	dispatcher *dispatch.Dispatcher
	prep       *prep.Engine
	state      provider.State
	broker     *events.Broker
	store      storage.Store // optional journal; nil disables recording
}

// NewLoop creates a scheduling loop for the given target
func NewLoop(cfg *config.Config, targetID string, p *pool.Pool, pl *planner.Planner, a *alloc.Allocator, d *dispatch.Dispatcher, pe *prep.Engine, state provider.State, broker *events.Broker, store storage.Store) *Loop {
	return &Loop{
		cfg:        cfg,
		targetID:   targetID,
		pool:       p,
		planner:    pl,
		alloc:      a,
		dispatcher: d,
		prep:       pe,
		state:      state,
		broker:     broker,
		store:      store,
	}
}

// Run ticks until the context is cancelled. Collaborator errors abandon
// the tick and retry after a short delay; nothing escalates out of the
// loop except cancellation.
func (l *Loop) Run(ctx context.Context) error {
	logger := log.WithComponent("sched")
	logger.Info().Str("target", l.targetID).Msg("Scheduling loop started")

	for {
		if err := ctx.Err(); err != nil {
			l.shutdown()
			return err
		}

		record, err := l.Tick(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				l.shutdown()
				return err
			}

			logger.Warn().Err(err).Msg("Tick abandoned")
			l.broker.Publish(&events.Event{
				Type:     events.EventTickAbandoned,
				TargetID: l.targetID,
				Message:  err.Error(),
			})

			select {
			case <-time.After(l.cfg.TickRetryDelay):
			case <-ctx.Done():
			}
			continue
		}

		logger.Info().
			Str("target", l.targetID).
			Str("phase", string(record.Phase)).
			Int("batches", record.BatchCount).
			Int("threads", record.Threads).
			Int("shortfall", record.Shortfall).
			Bool("expired", record.Expired).
			Msg("Tick completed")
	}
}

// shutdown force-terminates everything running for this target's script.
// Blunt and idempotent; the next run's preparation pass absorbs whatever
// state the kill left behind.
func (l *Loop) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	workers := l.pool.Eligible()
	if len(workers) == 0 {
		return
	}
	if err := l.dispatcher.Terminate(ctx, workerIDs(workers)); err != nil {
		logger := log.WithComponent("sched")
		logger.Warn().Err(err).Msg("Shutdown termination failed")
	}
	l.dispatcher.Reset()
}

// Tick runs one scheduling cycle and returns its journal record
func (l *Loop) Tick(ctx context.Context) (*types.TickRecord, error) {
	timer := metrics.NewTimer()
	record := &types.TickRecord{
		TargetID:  l.targetID,
		StartedAt: time.Now(),
	}

	defer func() {
		record.CompletedAt = time.Now()
		timer.ObserveDuration(metrics.TickDuration)
		if record.Phase != "" {
			metrics.TicksTotal.WithLabelValues(string(record.Phase)).Inc()
		}
	}()

	if err := l.pool.Refresh(ctx); err != nil {
		return nil, err
	}
	snap, err := target.Snapshot(ctx, l.state, l.targetID)
	if err != nil {
		return nil, err
	}
	l.observe(snap)

	if snap.NeedsPreparation() {
		record.Phase = types.PhasePreparing
		if err := l.prep.Run(ctx, l.targetID); err != nil {
			return nil, err
		}
		l.record(record)
		return record, nil
	}

	record.Phase = types.PhaseBatching
	if err := l.batch(ctx, snap, record); err != nil {
		return nil, err
	}
	l.record(record)
	return record, nil
}

// batch plans, allocates and dispatches one tick's worth of staggered
// batches, then waits for the aggregate drain
func (l *Loop) batch(ctx context.Context, snap *types.Target, record *types.TickRecord) error {
	logger := log.WithComponent("sched")

	// Weaken is the longest operation, so anchoring the first landing one
	// weaken-duration out guarantees every slot's start time is still in
	// the future
	anchor := time.Now().Add(snap.WeakenTime).Add(l.cfg.DispatchSlack)

	probe, err := l.planner.Plan(ctx, snap, anchor)
	if err != nil {
		if errors.Is(err, planner.ErrInvalidPlan) {
			logger.Warn().Err(err).Msg("Skipping tick, target not batchable")
			metrics.BatchesSkipped.Inc()
			record.Phase = types.PhaseIdle
			return nil
		}
		return err
	}

	batchCount := l.pool.TotalThreadCapacity(l.cfg.MaxOpRAM()) / probe.TotalThreads()
	if batchCount < 1 {
		// Degraded single batch; the shortfall dispatch drifts the target
		// and the next preparation pass corrects it
		batchCount = 1
	}

	workers := l.pool.Eligible()
	if len(workers) == 0 {
		return fmt.Errorf("no eligible workers")
	}
	if err := l.dispatcher.Prepare(ctx, workers); err != nil {
		return err
	}

	scratch := alloc.NewScratch(workers)
	dispatched := 0

	for i := 0; i < batchCount; i++ {
		land := anchor.Add(time.Duration(i) * l.cfg.InterBatchGap)

		batch := probe
		if i > 0 {
			batch, err = l.planner.Plan(ctx, snap, land)
			if err != nil {
				metrics.BatchesSkipped.Inc()
				continue
			}
		}

		l.broker.Publish(&events.Event{
			Type:     events.EventBatchPlanned,
			TargetID: l.targetID,
			BatchID:  batch.ID,
			Message:  fmt.Sprintf("%d threads, landing %s", batch.TotalThreads(), batch.LandTime.Format(time.RFC3339)),
		})

		l.alloc.Allocate(batch, workers, scratch)
		if batch.AllocatedThreads() == 0 {
			// Scratch capacity exhausted; later batches cannot do better
			break
		}

		l.dispatcher.Dispatch(ctx, batch)
		dispatched++
		record.Threads += batch.AllocatedThreads()
		record.Shortfall += batch.TotalShortfall()

		metrics.BatchesDispatched.Inc()
		metrics.ThreadShortfall.Add(float64(batch.TotalShortfall()))
		for slot := types.SlotHack; slot < types.SlotCount; slot++ {
			metrics.ThreadsDispatched.WithLabelValues(slot.String()).Add(float64(batch.Threads[slot] - batch.Shortfall[slot]))
		}

		l.broker.Publish(&events.Event{
			Type:     events.EventBatchDispatched,
			TargetID: l.targetID,
			BatchID:  batch.ID,
			Message:  fmt.Sprintf("%d threads, landing %s", batch.AllocatedThreads(), batch.LandTime.Format(time.RFC3339)),
		})

		if l.store != nil {
			if err := l.store.SaveBatch(batch); err != nil {
				logger.Warn().Err(err).Str("batch_id", batch.ID).Msg("Failed to journal batch")
			}
		}
	}

	record.BatchCount = dispatched
	if dispatched == 0 {
		record.Phase = types.PhaseIdle
		return nil
	}

	expired, err := l.waitDrain(ctx, workers)
	if err != nil {
		return err
	}
	record.Expired = expired
	return nil
}

// waitDrain polls the process tables until this tick's batches are gone,
// force-terminating past the last landing plus the TTL margin
func (l *Loop) waitDrain(ctx context.Context, workers []*types.Worker) (bool, error) {
	ids := workerIDs(workers)
	deadline := l.dispatcher.LastLandTime().Add(l.cfg.TTLMargin)

	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
			drained, err := l.dispatcher.Drained(ctx, ids)
			if err != nil {
				return false, err
			}
			if drained {
				l.dispatcher.Reset()
				l.broker.Publish(&events.Event{
					Type:     events.EventBatchDrained,
					TargetID: l.targetID,
				})
				return false, nil
			}

			if time.Now().After(deadline) {
				logger := log.WithComponent("sched")
				logger.Warn().
					Str("target", l.targetID).
					Time("deadline", deadline).
					Msg("Landing TTL exceeded, terminating stragglers")
				if err := l.dispatcher.Terminate(ctx, ids); err != nil {
					return false, err
				}
				l.dispatcher.Reset()
				metrics.BatchesExpired.Inc()
				l.broker.Publish(&events.Event{
					Type:     events.EventBatchExpired,
					TargetID: l.targetID,
				})
				return true, nil
			}
		}
	}
}

// observe refreshes the fleet and target gauges
func (l *Loop) observe(snap *types.Target) {
	metrics.WorkersTotal.Set(float64(l.pool.Size()))
	metrics.WorkersEligible.Set(float64(len(l.pool.Eligible())))
	metrics.ThreadCapacity.Set(float64(l.pool.TotalThreadCapacity(l.cfg.WeakenRAM)))
	metrics.TargetMoneyRatio.WithLabelValues(snap.ID).Set(target.MoneyRatio(snap))
	metrics.TargetSecurityExcess.WithLabelValues(snap.ID).Set(target.SecurityExcess(snap))
}

// record persists the tick to the journal and announces it
func (l *Loop) record(record *types.TickRecord) {
	if l.store != nil {
		if err := l.store.SaveTick(record); err != nil {
			logger := log.WithComponent("sched")
			logger.Warn().Err(err).Msg("Failed to journal tick")
		}
	}

	l.broker.Publish(&events.Event{
		Type:     events.EventTickCompleted,
		TargetID: l.targetID,
		Message:  string(record.Phase),
	})
}

func workerIDs(workers []*types.Worker) []string {
	ids := make([]string, len(workers))
	for i, w := range workers {
		ids[i] = w.ID
	}
	return ids
}
