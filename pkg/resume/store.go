package resume

import (
	"context"
	"errors"
)

// Store is the durable resume store contract: put/get/delete/list a Task
// Record, keyed by task ID. Implementations must make Put atomic — a
// crash mid-write must never leave a record partially updated.
type Store interface {
	// Put persists record, replacing any existing record with the same
	// TaskID. Must be atomic.
	Put(ctx context.Context, record Record) error

	// Get returns the record for taskID, or ErrNotFound if none exists.
	Get(ctx context.Context, taskID string) (Record, error)

	// Delete removes the record for taskID. Deleting a missing record is
	// not an error.
	Delete(ctx context.Context, taskID string) error

	// List returns every persisted record, in no particular order.
	List(ctx context.Context) ([]Record, error)

	// Close releases any resources (file handles, background compaction)
	// held by the store.
	Close() error
}

// ErrNotFound is returned by Get when no record exists for the given task ID.
var ErrNotFound = errors.New("resume: record not found")
