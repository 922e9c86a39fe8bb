/*
Package storage persists the scheduler's local journal using BoltDB.

The journal records what was dispatched (batches) and what each tick did
(tick records keyed on a monotonic sequence). It exists for the status
command and post-hoc debugging; the scheduler never reads it to make
decisions, so a lost or deleted journal only loses history.

The Store interface keeps the rest of the codebase independent of
BoltDB. Everything is stored as JSON for debuggability:

	store, err := storage.NewBoltStore("/var/lib/harrow")
	if err != nil { ... }
	defer store.Close()

	records, _ := store.ListTicks(20) // newest first
*/
package storage
