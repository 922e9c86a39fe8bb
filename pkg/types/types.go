package types

import (
	"time"
)

// Worker represents a remote node contributing execution capacity
type Worker struct {
	ID       string
	TotalRAM float64 // Total script RAM in GB
	UsedRAM  float64 // RAM consumed by running processes
	Cores    int
	Admin    bool // Whether we hold admin rights (required to run scripts)
}

// AvailableRAM returns the RAM not consumed by running processes
func (w *Worker) AvailableRAM() float64 {
	avail := w.TotalRAM - w.UsedRAM
	if avail < 0 {
		return 0
	}
	return avail
}

// ThreadCapacity returns how many threads of the given per-thread cost fit
// in the worker's free RAM
func (w *Worker) ThreadCapacity(perThreadRAM float64) int {
	if perThreadRAM <= 0 {
		return 0
	}
	return int(w.AvailableRAM() / perThreadRAM)
}

// Target represents a remote node whose money/security state is driven by
// hack, grow and weaken operations
type Target struct {
	ID          string
	Money       float64
	MaxMoney    float64
	Security    float64
	MinSecurity float64

	// Operation durations at the current security level
	HackTime   time.Duration
	GrowTime   time.Duration
	WeakenTime time.Duration

	TakenAt time.Time
}

// NeedsPreparation reports whether the target has drifted from the
// saturated state (security at minimum, money at ceiling)
func (t *Target) NeedsPreparation() bool {
	return t.Security > t.MinSecurity || t.Money < t.MaxMoney
}

// OpType identifies one of the three remote operations
type OpType string

const (
	OpHack   OpType = "hack"
	OpGrow   OpType = "grow"
	OpWeaken OpType = "weaken"
)

// Duration returns the operation's run time on the given target snapshot
func (op OpType) Duration(t *Target) time.Duration {
	switch op {
	case OpHack:
		return t.HackTime
	case OpGrow:
		return t.GrowTime
	default:
		return t.WeakenTime
	}
}

// Slot identifies one of the four positions in an HWGW batch. The slot
// order is also the completion order the batch is timed to produce.
type Slot int

const (
	SlotHack Slot = iota
	SlotWeakenAfterHack
	SlotGrow
	SlotWeakenAfterGrow
	SlotCount
)

// Op returns the operation executed in this slot
func (s Slot) Op() OpType {
	switch s {
	case SlotHack:
		return OpHack
	case SlotGrow:
		return OpGrow
	default:
		return OpWeaken
	}
}

// String returns a stable name for logs and journal entries
func (s Slot) String() string {
	switch s {
	case SlotHack:
		return "hack"
	case SlotWeakenAfterHack:
		return "weaken1"
	case SlotGrow:
		return "grow"
	case SlotWeakenAfterGrow:
		return "weaken2"
	default:
		return "unknown"
	}
}

// Assignment places a slice of one slot's threads on a specific worker
type Assignment struct {
	WorkerID string
	Threads  int
}

// Batch is one planned HWGW cycle: thread counts per slot, the worker
// assignments that satisfy them, and the absolute timing
type Batch struct {
	ID       string
	TargetID string

	// Threads required per slot, in slot order
	Threads [SlotCount]int

	// Assignments per slot, filled in by the allocator
	Assignments [SlotCount][]Assignment

	// Shortfall per slot: requested threads the allocator could not place
	Shortfall [SlotCount]int

	// LandTime is the instant the hack completes; the other three slots
	// complete at fixed increments of Spacing after it
	LandTime time.Time
	Spacing  time.Duration

	// StartTimes per slot, derived from LandTime and each operation's
	// duration at plan time
	StartTimes [SlotCount]time.Time

	CreatedAt time.Time
}

// TotalThreads returns the sum of all four slot requirements
func (b *Batch) TotalThreads() int {
	total := 0
	for _, n := range b.Threads {
		total += n
	}
	return total
}

// AllocatedThreads returns the sum of threads actually placed on workers
func (b *Batch) AllocatedThreads() int {
	total := 0
	for _, as := range b.Assignments {
		for _, a := range as {
			total += a.Threads
		}
	}
	return total
}

// TotalShortfall returns the number of requested threads left unplaced
func (b *Batch) TotalShortfall() int {
	total := 0
	for _, n := range b.Shortfall {
		total += n
	}
	return total
}

// LandTimeFor returns the instant the given slot is timed to complete
func (b *Batch) LandTimeFor(slot Slot) time.Time {
	return b.LandTime.Add(time.Duration(slot) * b.Spacing)
}

// TickRecord summarizes one scheduling cycle for the journal
type TickRecord struct {
	Seq         uint64
	TargetID    string
	Phase       Phase
	BatchCount  int
	Threads     int
	Shortfall   int
	Expired     bool
	StartedAt   time.Time
	CompletedAt time.Time
}

// Phase reports what the scheduling loop spent a tick doing
type Phase string

const (
	PhasePreparing Phase = "preparing"
	PhaseBatching  Phase = "batching"
	PhaseIdle      Phase = "idle"
)
