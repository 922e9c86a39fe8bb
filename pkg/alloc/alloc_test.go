package alloc

import (
	"testing"
	"time"

	"github.com/harrowd/harrow/pkg/config"
	"github.com/harrowd/harrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBatch(hack, w1, grow, w2 int) *types.Batch {
	return &types.Batch{
		ID:       "batch-1",
		TargetID: "megacorp",
		Threads:  [types.SlotCount]int{hack, w1, grow, w2},
		LandTime: time.Now(),
	}
}

func workerList(workers ...*types.Worker) []*types.Worker {
	return workers
}

func TestAllocateFullFit(t *testing.T) {
	cfg := config.Default()
	a := NewAllocator(cfg)

	// 10+1+8+1 = 20 threads at <=1.75 GB fits comfortably in 64 GB
	batch := testBatch(10, 1, 8, 1)
	workers := workerList(&types.Worker{ID: "big", TotalRAM: 64, Admin: true})
	scratch := NewScratch(workers)

	a.Allocate(batch, workers, scratch)

	assert.Zero(t, batch.TotalShortfall())
	assert.Equal(t, batch.TotalThreads(), batch.AllocatedThreads())
	for slot := types.SlotHack; slot < types.SlotCount; slot++ {
		require.Len(t, batch.Assignments[slot], 1)
		assert.Equal(t, "big", batch.Assignments[slot][0].WorkerID)
		assert.Equal(t, batch.Threads[slot], batch.Assignments[slot][0].Threads)
	}
}

func TestAllocateSpillsToNextWorker(t *testing.T) {
	cfg := config.Default()
	a := NewAllocator(cfg)

	// 10 hack threads at 1.7 GB = 17 GB; first worker fits 5 (8.5 GB)
	batch := testBatch(10, 0, 0, 0)
	workers := workerList(
		&types.Worker{ID: "first", TotalRAM: 8.5, Admin: true},
		&types.Worker{ID: "second", TotalRAM: 40, Admin: true},
	)
	scratch := NewScratch(workers)

	a.Allocate(batch, workers, scratch)

	require.Len(t, batch.Assignments[types.SlotHack], 2)
	assert.Equal(t, types.Assignment{WorkerID: "first", Threads: 5}, batch.Assignments[types.SlotHack][0])
	assert.Equal(t, types.Assignment{WorkerID: "second", Threads: 5}, batch.Assignments[types.SlotHack][1])
	assert.Zero(t, batch.Shortfall[types.SlotHack])
}

func TestAllocateShortfall(t *testing.T) {
	cfg := config.Default()
	a := NewAllocator(cfg)

	batch := testBatch(4, 0, 4, 0)
	// 7 GB: 4 hack threads (6.8 GB) leave 0.2 GB, no grow thread fits
	workers := workerList(&types.Worker{ID: "tiny", TotalRAM: 7, Admin: true})
	scratch := NewScratch(workers)

	a.Allocate(batch, workers, scratch)

	assert.Zero(t, batch.Shortfall[types.SlotHack])
	assert.Equal(t, 4, batch.Shortfall[types.SlotGrow])
	assert.Equal(t, 4, batch.AllocatedThreads())
}

func TestAllocatePriorityOrder(t *testing.T) {
	cfg := config.Default()
	a := NewAllocator(cfg)

	// Capacity for roughly half the batch: hack and weaken1 must win
	batch := testBatch(2, 1, 2, 1)
	workers := workerList(&types.Worker{ID: "w", TotalRAM: 5.25, Admin: true})
	scratch := NewScratch(workers)

	a.Allocate(batch, workers, scratch)

	assert.Zero(t, batch.Shortfall[types.SlotHack], "hack is highest priority")
	assert.Zero(t, batch.Shortfall[types.SlotWeakenAfterHack])
	assert.Greater(t, batch.Shortfall[types.SlotGrow]+batch.Shortfall[types.SlotWeakenAfterGrow], 0)
}

func TestAllocateDeterminism(t *testing.T) {
	cfg := config.Default()
	a := NewAllocator(cfg)

	workers := func() []*types.Worker {
		return workerList(
			&types.Worker{ID: "a", TotalRAM: 30, Admin: true},
			&types.Worker{ID: "b", TotalRAM: 20, Admin: true},
			&types.Worker{ID: "c", TotalRAM: 10, Admin: true},
		)
	}

	first := testBatch(12, 3, 15, 4)
	second := testBatch(12, 3, 15, 4)

	w1 := workers()
	a.Allocate(first, w1, NewScratch(w1))
	w2 := workers()
	a.Allocate(second, w2, NewScratch(w2))

	assert.Equal(t, first.Assignments, second.Assignments)
	assert.Equal(t, first.Shortfall, second.Shortfall)
}

func TestAllocateConservation(t *testing.T) {
	cfg := config.Default()
	a := NewAllocator(cfg)

	batch := testBatch(50, 10, 60, 12)
	workers := workerList(
		&types.Worker{ID: "a", TotalRAM: 16, Admin: true},
		&types.Worker{ID: "b", TotalRAM: 8, Admin: true},
	)
	scratch := NewScratch(workers)

	a.Allocate(batch, workers, scratch)

	// Per-slot totals never exceed the request
	for slot := types.SlotHack; slot < types.SlotCount; slot++ {
		placed := 0
		for _, as := range batch.Assignments[slot] {
			placed += as.Threads
		}
		assert.LessOrEqual(t, placed, batch.Threads[slot])
		assert.Equal(t, batch.Threads[slot], placed+batch.Shortfall[slot])
	}

	// No worker is packed past its RAM
	used := map[string]float64{}
	for slot := types.SlotHack; slot < types.SlotCount; slot++ {
		cost := cfg.RAMForOp(string(slot.Op()))
		for _, as := range batch.Assignments[slot] {
			used[as.WorkerID] += float64(as.Threads) * cost
		}
	}
	for _, w := range workers {
		assert.LessOrEqual(t, used[w.ID], w.AvailableRAM()+1e-9, "worker %s", w.ID)
	}
}

func TestScratchSharedAcrossBatches(t *testing.T) {
	cfg := config.Default()
	a := NewAllocator(cfg)

	workers := workerList(&types.Worker{ID: "w", TotalRAM: 17, Admin: true})
	scratch := NewScratch(workers)

	// First batch consumes 10 hack threads (17 GB)
	first := testBatch(10, 0, 0, 0)
	a.Allocate(first, workers, scratch)
	assert.Zero(t, first.TotalShortfall())

	// Second batch in the same pass finds nothing left
	second := testBatch(1, 0, 0, 0)
	a.Allocate(second, workers, scratch)
	assert.Equal(t, 1, second.TotalShortfall())

	// A fresh pass starts from the snapshot again
	fresh := NewScratch(workers)
	assert.Equal(t, 17.0, fresh.Remaining("w"))
}
