// Package sched implements the top-level scheduling loop that drives one
// target from whatever state it is in to a steady stream of batches.
//
// # Tick Anatomy
//
// Every tick follows the same shape:
//
//	refresh pool ──▶ snapshot target ──▶ drifted? ──▶ prepare to convergence
//	                                        │
//	                                        ▼
//	                                  plan batches ──▶ allocate ──▶ dispatch
//	                                        │
//	                                        ▼
//	                                  wait for drain (or TTL expiry)
//
// A collaborator failure anywhere in the tick abandons it wholesale; the
// loop sleeps briefly and retries with fresh state. Partial ticks are
// never committed, so the journal only ever records ticks that ran to
// completion.
//
// # Batch Count
//
// The number of batches per tick is derived from fleet capacity: total
// thread capacity at the most expensive per-thread cost divided by one
// batch's thread requirement. The count is clamped to a minimum of one
// so a starved fleet still makes degraded progress instead of stalling.
// Landings are staggered by the configured inter-batch gap, anchored one
// weaken-duration in the future so every operation's start time is
// reachable.
//
// # Drain Discipline
//
// A tick does not overlap the next: the loop polls worker process tables
// until everything it launched has finished. If stragglers outlive the
// last landing by more than the TTL margin they are force-terminated and
// the tick is recorded as expired.
package sched
