/*
Package metrics exposes Prometheus metrics for the scheduler.

Metric families cover the three things an unattended farm operator
watches: fleet capacity (workers, eligible workers, thread capacity),
target convergence (money ratio, security excess per target), and loop
liveness (ticks by phase, tick duration, batches dispatched/skipped/
expired, thread shortfall, preparation cycles).

The preparation engine has no terminal failure state; a target that
never converges because capacity is insufficient shows up here as
harrow_prep_cycles_total climbing while the target's gauges stay flat.

All metrics are registered at package init. Handler returns the promhttp
handler the run command serves.
*/
package metrics
