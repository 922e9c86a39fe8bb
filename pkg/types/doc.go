/*
Package types defines the core data structures used throughout Harrow.

This package contains the domain model shared by every other package:
workers (remote nodes contributing execution-thread capacity), targets
(remote nodes whose money/security state is farmed), batches (one timed
hack/weaken/grow/weaken cycle), and the journal records the scheduler
writes each tick.

# Core Types

Worker:
  - TotalRAM/UsedRAM track the scalar capacity consumed per thread
  - ThreadCapacity derives how many threads of a given cost fit
  - Admin gates eligibility; workers without admin rights never host work

Target:
  - Money/MaxMoney and Security/MinSecurity describe the farmed state
  - NeedsPreparation is true whenever the target has drifted from the
    saturated state (security at minimum, money at ceiling)
  - Operation durations are captured at snapshot time; they change with
    the security level, so snapshots are never cached across ticks

Batch:
  - Four slots (hack, weaken1, grow, weaken2) in completion order
  - LandTime anchors the hack completion; each later slot completes one
    Spacing increment after the previous
  - Assignments and Shortfall are filled in by the allocator

All enums use typed string constants:

	type OpType string
	const (
	    OpHack   OpType = "hack"
	    OpGrow   OpType = "grow"
	    OpWeaken OpType = "weaken"
	)

# Thread Safety

Types here carry no locks. The scheduling loop is single-threaded per
tick; anything persisted goes through pkg/storage, which owns its own
synchronization.
*/
package types
