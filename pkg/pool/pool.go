package pool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/harrowd/harrow/pkg/provider"
	"github.com/harrowd/harrow/pkg/types"
)

// Pool tracks the worker fleet's capacity. Its contents are replaced
// wholesale by Refresh each scheduling tick; nothing here survives a tick,
// so bookkeeping can never drift out of sync with the host for longer
// than one cycle.
type Pool struct {
	topology provider.Topology
	state    provider.State

	mu      sync.RWMutex
	workers []*types.Worker
}

// NewPool creates a pool over the given topology and state providers
func NewPool(topology provider.Topology, state provider.State) *Pool {
	return &Pool{
		topology: topology,
		state:    state,
	}
}

// Refresh re-queries every worker's capacity from the host. The previous
// snapshot is discarded even on partial failure; a worker whose state
// query fails is skipped for this tick rather than served stale.
func (p *Pool) Refresh(ctx context.Context) error {
	ids, err := p.topology.ListWorkers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workers: %w", err)
	}

	workers := make([]*types.Worker, 0, len(ids))
	for _, id := range ids {
		w, err := p.state.WorkerState(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to query worker %s: %w", id, err)
		}
		workers = append(workers, w)
	}

	p.mu.Lock()
	p.workers = workers
	p.mu.Unlock()
	return nil
}

// Eligible returns admin-capable workers with free capacity, sorted
// descending by available RAM. Ties break on ID so allocation stays
// deterministic for identical snapshots.
func (p *Pool) Eligible() []*types.Worker {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var eligible []*types.Worker
	for _, w := range p.workers {
		if w.Admin && w.AvailableRAM() > 0 {
			eligible = append(eligible, w)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		ai, aj := eligible[i].AvailableRAM(), eligible[j].AvailableRAM()
		if ai != aj {
			return ai > aj
		}
		return eligible[i].ID < eligible[j].ID
	})

	return eligible
}

// TotalThreadCapacity sums each eligible worker's thread ceiling at the
// given per-thread RAM cost. Flooring happens per worker: fragments too
// small to host a whole thread contribute nothing.
func (p *Pool) TotalThreadCapacity(perThreadRAM float64) int {
	total := 0
	for _, w := range p.Eligible() {
		total += w.ThreadCapacity(perThreadRAM)
	}
	return total
}

// Size returns the number of workers in the current snapshot
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}
