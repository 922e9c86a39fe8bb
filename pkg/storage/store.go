package storage

import (
	"github.com/harrowd/harrow/pkg/types"
)

// Store defines the interface for the scheduler's local journal.
// Implemented by BoltDB-backed storage.
type Store interface {
	// Batches
	SaveBatch(batch *types.Batch) error
	GetBatch(id string) (*types.Batch, error)
	ListBatches() ([]*types.Batch, error)
	ListBatchesByTarget(targetID string) ([]*types.Batch, error)

	// Tick records
	SaveTick(record *types.TickRecord) error
	ListTicks(limit int) ([]*types.TickRecord, error)
	LastTick() (*types.TickRecord, error)

	// Utility
	Close() error
}
