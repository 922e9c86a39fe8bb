/*
Package alloc maps a batch's thread requirements onto specific workers.

Allocation is a greedy bin-packing pass: slots are served in completion
order (hack, weaken1, grow, weaken2) and workers largest-available-first,
so big hosts absorb the bulk of a batch and small fragments stay usable
for later batches.

All mutable state lives in a Scratch map owned by the calling pass. The
scratch is seeded from the pool snapshot at the start of a tick, shared
across every batch allocated that tick, and discarded after dispatch.
The persistent pool is never written, so a crash or a skipped batch can
never leak reservations.

Allocation is deterministic: the same snapshot and the same requirements
always produce the same assignments. When capacity runs out mid-slot the
remainder is recorded as shortfall rather than failing the batch; whether
a degraded batch still dispatches is the scheduling loop's policy, not
the allocator's.
*/
package alloc
