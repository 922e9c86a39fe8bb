package alloc

import (
	"github.com/harrowd/harrow/pkg/config"
	"github.com/harrowd/harrow/pkg/types"
)

// Scratch tracks each worker's unreserved RAM for the duration of one
// planning pass. It is built fresh from the pool snapshot every tick and
// thrown away after dispatch; reservations are never persisted.
type Scratch map[string]float64

// NewScratch seeds a scratch map from the given worker snapshot
func NewScratch(workers []*types.Worker) Scratch {
	s := make(Scratch, len(workers))
	for _, w := range workers {
		s[w.ID] = w.AvailableRAM()
	}
	return s
}

// Remaining returns the unreserved RAM left on a worker
func (s Scratch) Remaining(workerID string) float64 {
	return s[workerID]
}

// Allocator packs batch thread requirements onto workers
type Allocator struct {
	cfg *config.Config
}

// NewAllocator creates an allocator using the configured per-thread RAM
// costs
func NewAllocator(cfg *config.Config) *Allocator {
	return &Allocator{cfg: cfg}
}

// Allocate fills the batch's assignments from the workers' scratch
// capacity. Slots are served in batch order (hack, weaken1, grow,
// weaken2) and workers in the order given, which the pool sorts
// largest-available-first. Purely deterministic: identical snapshots and
// requirements produce identical assignments.
//
// Partial allocation is legal. Whatever cannot be placed is recorded in
// the batch's Shortfall; the dispatch policy for degraded batches belongs
// to the caller.
func (a *Allocator) Allocate(batch *types.Batch, workers []*types.Worker, scratch Scratch) {
	for slot := types.SlotHack; slot < types.SlotCount; slot++ {
		need := batch.Threads[slot]
		if need <= 0 {
			continue
		}

		cost := a.cfg.RAMForOp(string(slot.Op()))
		for _, w := range workers {
			if need == 0 {
				break
			}

			fit := int(scratch[w.ID] / cost)
			if fit <= 0 {
				continue
			}
			if fit > need {
				fit = need
			}

			batch.Assignments[slot] = append(batch.Assignments[slot], types.Assignment{
				WorkerID: w.ID,
				Threads:  fit,
			})
			scratch[w.ID] -= float64(fit) * cost
			need -= fit
		}

		batch.Shortfall[slot] = need
	}
}
