/*
Package pool tracks the worker fleet's execution capacity.

The pool holds a per-tick snapshot of every worker node: total RAM, RAM in
use, core count and admin eligibility. Refresh replaces the snapshot
wholesale by re-querying the host, so capacity numbers are never cached
across ticks and cannot drift permanently.

Eligible filters to admin-capable workers with free capacity and sorts
them largest-available-first, the order the allocator consumes them in.
Sorting ties break on worker ID, keeping allocation deterministic for
identical snapshots.

The pool itself is read-only during a planning pass. Temporary reservation
of capacity while packing a batch is the allocator's scratch state, never
written back here.
*/
package pool
