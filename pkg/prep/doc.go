/*
Package prep converges a target to the saturated state before batching.

Batches assume security at its minimum and money at its ceiling; any
drift makes thread arithmetic wrong and timing worse. The preparation
engine removes drift with a forward-only state machine:

	MEASURE ──► WEAKEN ──► GROW ──► WEAKEN2 ──┐
	   ▲                                       │
	   └───────────────────────────────────────┘
	         (re-measure, until CONVERGED)

Each cycle's steps run as sequential single-purpose batches, each fully
drained before the next, because each step's thread count is only valid
against the state the previous step produced: the weaken count comes
from the measured security excess, the grow count from the post-weaken
balance, and the second weaken count from the grow count itself.

The engine has no terminal failure. Insufficient capacity just yields
partial steps and more cycles; liveness is reported through Stage and
the harrow_prep_cycles_total metric rather than an error. Running the
engine on an already-saturated target performs zero dispatches.
*/
package prep
