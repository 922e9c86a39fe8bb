/*
Package planner computes HWGW batch plans.

Given a saturated target, Plan produces the four thread counts of one
hack/weaken/grow/weaken cycle and the absolute start time of each slot,
so that completions land in slot order with a fixed spacing between them:

	hack      lands at T
	weaken1   lands at T + Δ      (offsets hack's security increase)
	grow      lands at T + 2Δ     (restores the drained money)
	weaken2   lands at T + 3Δ     (offsets grow's security increase)

Each slot's start time is its landing time minus the operation's duration
at the current security level, plus a small dispatch slack.

# Thread Arithmetic

Hack threads are floor-rounded so the cumulative drain never exceeds the
configured fraction of current money; over-draining would push the grow
side past what one batch can restore. Weaken counts are ceil-rounded so
the security added by hack and grow is always fully offset:

	weaken1 = ceil(hackThreads / hackThreadsPerWeaken)
	weaken2 = ceil(growThreads / growThreadsPerWeaken)

Grow threads come from the host's growth formula, targeting the
multiplier that returns the post-hack balance to the ceiling.

Plans with any non-positive or non-finite thread count fail with
ErrInvalidPlan; the scheduling loop skips those batches rather than
dispatching malformed work.

PrepThreads serves the preparation engine: it sizes the three single-op
convergence steps (weaken to the floor, grow to the ceiling, weaken off
the grow) from the target's current drift.
*/
package planner
