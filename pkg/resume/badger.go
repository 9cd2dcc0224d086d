package resume

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/chunkflow/pkg/metrics"
)

// keyPrefix namespaces task records in case the same Badger database is
// ever shared with other key families.
const keyPrefix = "task:"

func keyTask(taskID string) []byte {
	return []byte(keyPrefix + taskID)
}

// BadgerStore is a Store backed by an embedded BadgerDB database, for
// durability across browser-host-process restarts (e.g. an Electron or
// native-messaging host fronting the in-browser engine).
type BadgerStore struct {
	db *badgerdb.DB
	m  metrics.ResumeMetrics
}

// OpenBadgerStore opens (creating if absent) a BadgerDB database at dir,
// with metrics collection disabled.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	return OpenBadgerStoreWithMetrics(dir, nil)
}

// OpenBadgerStoreWithMetrics opens a BadgerStore that reports every
// operation's duration and outcome to m. A nil m disables collection.
func OpenBadgerStoreWithMetrics(dir string, m metrics.ResumeMetrics) (*BadgerStore, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("resume: open badger store: %w", err)
	}
	return &BadgerStore{db: db, m: m}, nil
}

func (s *BadgerStore) Put(ctx context.Context, record Record) error {
	start := time.Now()
	err := s.put(ctx, record)
	metrics.ObserveOp(s.m, "put", time.Since(start), err != nil)
	return err
}

func (s *BadgerStore) put(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("resume: encode record: %w", err)
	}

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keyTask(record.TaskID), data)
	})
	if err != nil {
		return fmt.Errorf("resume: put %s: %w", record.TaskID, err)
	}
	return nil
}

func (s *BadgerStore) Get(ctx context.Context, taskID string) (Record, error) {
	start := time.Now()
	record, err := s.get(ctx, taskID)
	// ErrNotFound is an expected outcome, not an operational error.
	metrics.ObserveOp(s.m, "get", time.Since(start), err != nil && err != ErrNotFound)
	return record, err
}

func (s *BadgerStore) get(ctx context.Context, taskID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	var record Record
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyTask(taskID))
		if err == badgerdb.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		if err == ErrNotFound {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("resume: get %s: %w", taskID, err)
	}
	return record, nil
}

func (s *BadgerStore) Delete(ctx context.Context, taskID string) error {
	start := time.Now()
	err := s.delete(ctx, taskID)
	metrics.ObserveOp(s.m, "delete", time.Since(start), err != nil)
	return err
}

func (s *BadgerStore) delete(ctx context.Context, taskID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		err := txn.Delete(keyTask(taskID))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("resume: delete %s: %w", taskID, err)
	}
	return nil
}

func (s *BadgerStore) List(ctx context.Context) ([]Record, error) {
	start := time.Now()
	out, err := s.list(ctx)
	metrics.ObserveOp(s.m, "list", time.Since(start), err != nil)
	return out, err
}

func (s *BadgerStore) list(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Record
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var record Record
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				out = append(out, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resume: list: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("resume: close: %w", err)
	}
	return nil
}

var _ Store = (*BadgerStore)(nil)
