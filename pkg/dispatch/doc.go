/*
Package dispatch issues remote executions for allocated batches and
tracks the in-flight set.

Coordination with the remote side is entirely temporal: each launch
carries the target, the operation and an absolute landing instant, and
the remote process sleeps until its own start time before acting. The
dispatcher never receives an acknowledgment that an operation landed on
schedule; the scheduling loop observes the aftermath in the next target
snapshot.

Drained answers the only completion signal the system has: whether any
processes of the operation script remain on the workers. Terminate is
the matching safety valve, a blunt idempotent kill of the script across
the fleet used on expiry or shutdown.
*/
package dispatch
