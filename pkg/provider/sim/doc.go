/*
Package sim provides an in-memory simulation of the host environment.

Grid implements every provider interface: its targets carry live
money/security state with the same balance dynamics the scheduler plans
against, its workers enforce RAM limits, and dispatched operations run
as goroutines that sleep until their landing instant, apply their effect
atomically and exit.

The grid backs the end-to-end tests and the run command's --sim mode.
It is intentionally literal rather than fast: completion is observed the
same way as against a real host, by polling the process table.
*/
package sim
