/*
Package events provides a lightweight publish/subscribe broker for
scheduler lifecycle events.

The scheduling loop and preparation engine publish events as they work
(target.prepared, batch.dispatched, batch.drained, batch.expired,
tick.completed, ...); the CLI subscribes to render the continuous
per-tick progress lines an unattended run emits.

Delivery is best-effort: each subscriber owns a buffered channel, and a
full buffer drops the event for that subscriber rather than blocking the
scheduler. Events are operator telemetry, not control flow.
*/
package events
