/*
Package log provides structured logging for Harrow using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable levels, and helper functions
for common patterns. All logs include timestamps and support filtering by
severity for unattended operation.

# Usage

Initialize once at startup:

	log.Init(log.Config{
	    Level:      log.InfoLevel,
	    JSONOutput: false, // console output for interactive runs
	})

Create component loggers for context:

	logger := log.WithComponent("sched")
	logger.Info().
	    Str("target", "megacorp").
	    Int("batches", 3).
	    Msg("Dispatched batches")

Field conventions:

  - component: which package emitted the line (sched, prep, dispatch, ...)
  - target: target node identity
  - worker: worker node identity
  - batch_id: batch UUID

# Output Formats

JSON output (production, machine-parseable):

	{"level":"info","component":"sched","target":"megacorp","time":"2026-01-12T10:30:00Z","message":"Dispatched batches"}

Console output (interactive, human-readable):

	2026-01-12T10:30:00Z INF Dispatched batches component=sched target=megacorp

# Thread Safety

The global logger and all child loggers are safe for concurrent use.
*/
package log
