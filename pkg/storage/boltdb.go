package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrowd/harrow/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketBatches = []byte("batches")
	bucketTicks   = []byte("ticks")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "harrow.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketBatches,
			bucketTicks,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Batch operations
func (s *BoltStore) SaveBatch(batch *types.Batch) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBatches)
		data, err := json.Marshal(batch)
		if err != nil {
			return err
		}
		return b.Put([]byte(batch.ID), data)
	})
}

func (s *BoltStore) GetBatch(id string) (*types.Batch, error) {
	var batch types.Batch
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBatches)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("batch not found: %s", id)
		}
		return json.Unmarshal(data, &batch)
	})
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (s *BoltStore) ListBatches() ([]*types.Batch, error) {
	var batches []*types.Batch
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBatches)
		return b.ForEach(func(k, v []byte) error {
			var batch types.Batch
			if err := json.Unmarshal(v, &batch); err != nil {
				return err
			}
			batches = append(batches, &batch)
			return nil
		})
	})
	return batches, err
}

func (s *BoltStore) ListBatchesByTarget(targetID string) ([]*types.Batch, error) {
	all, err := s.ListBatches()
	if err != nil {
		return nil, err
	}
	var batches []*types.Batch
	for _, batch := range all {
		if batch.TargetID == targetID {
			batches = append(batches, batch)
		}
	}
	return batches, nil
}

// Tick operations. Records key on a monotonic sequence so iteration order
// is dispatch order.
func (s *BoltStore) SaveTick(record *types.TickRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTicks)

		if record.Seq == 0 {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			record.Seq = seq
		}

		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put(tickKey(record.Seq), data)
	})
}

func (s *BoltStore) ListTicks(limit int) ([]*types.TickRecord, error) {
	var records []*types.TickRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTicks).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var record types.TickRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
		}
		return nil
	})
	return records, err
}

func (s *BoltStore) LastTick() (*types.TickRecord, error) {
	records, err := s.ListTicks(1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no ticks recorded")
	}
	return records[0], nil
}

func tickKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
