// ABOUTME: bbolt implementation of the storage backend
// ABOUTME: Each partition is a top-level bucket; batches are bolt read-write transactions

package boltdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/nainya/graphstore/pkg/storage"
)

// Name is reported by Backend.Name
const Name = "bolt"

// Backend stores partitions as bolt buckets in a single file
type Backend struct {
	db *bolt.DB
}

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Sizer   = (*Backend)(nil)
)

// Open opens (or creates) the database file at opts.Path
func Open(opts storage.Options) (*Backend, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("boltdb: empty path")
	}

	_, statErr := os.Stat(opts.Path)
	exists := statErr == nil
	switch {
	case exists && opts.ErrorIfExists:
		return nil, fmt.Errorf("%w: %s", storage.ErrExists, opts.Path)
	case !exists && !errors.Is(statErr, os.ErrNotExist):
		return nil, fmt.Errorf("boltdb: stat %q: %w", opts.Path, statErr)
	case !exists && !opts.CreateIfMissing:
		return nil, fmt.Errorf("%w: %s", storage.ErrNotExist, opts.Path)
	}

	if dir := filepath.Dir(opts.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("boltdb: create directory %q: %w", dir, err)
		}
	}

	db, err := bolt.Open(opts.Path, 0o600, &bolt.Options{Timeout: opts.Timeout})
	if errors.Is(err, bolt.ErrTimeout) {
		return nil, fmt.Errorf("%w: %s", storage.ErrLocked, opts.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("boltdb: open %q: %w", opts.Path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, p := range storage.Partitions {
			if tx.Bucket([]byte(p)) != nil {
				continue
			}
			if !opts.CreateMissingPartitions {
				return fmt.Errorf("%w: %s", storage.ErrMissingPartition, p)
			}
			if _, err := tx.CreateBucket([]byte(p)); err != nil {
				return fmt.Errorf("boltdb: create bucket %q: %w", p, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Backend{db: db}, nil
}

// Name returns "bolt"
func (b *Backend) Name() string { return Name }

// Path returns the database file path
func (b *Backend) Path() string { return b.db.Path() }

// Size returns the database size in bytes as seen by a read transaction
func (b *Backend) Size() (int64, error) {
	var size int64
	err := b.db.View(func(tx *bolt.Tx) error {
		size = tx.Size()
		return nil
	})
	return size, translate(err)
}

// Close closes the database file
func (b *Backend) Close() error {
	return b.db.Close()
}

// View runs fn inside a bolt read-only transaction
func (b *Backend) View(ctx context.Context, fn func(storage.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translate(b.db.View(func(tx *bolt.Tx) error {
		return fn(&txn{tx: tx})
	}))
}

// Update runs fn inside a bolt read-write transaction
func (b *Backend) Update(ctx context.Context, fn func(storage.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translate(b.db.Update(func(tx *bolt.Tx) error {
		if err := fn(&txn{tx: tx}); err != nil {
			return err
		}
		// A batch cancelled mid-way is rolled back
		return ctx.Err()
	}))
}

func translate(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return fmt.Errorf("%w: %v", storage.ErrClosed, err)
	}
	return err
}

type txn struct {
	tx *bolt.Tx
}

func (t *txn) bucket(p storage.Partition) (*bolt.Bucket, error) {
	if !storage.Known(p) {
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownPartition, p)
	}
	bkt := t.tx.Bucket([]byte(p))
	if bkt == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrMissingPartition, p)
	}
	return bkt, nil
}

func (t *txn) Get(p storage.Partition, key string) ([]byte, error) {
	bkt, err := t.bucket(p)
	if err != nil {
		return nil, err
	}
	v := bkt.Get([]byte(key))
	if v == nil {
		return nil, nil
	}
	// bolt values are only valid for the life of the transaction
	return bytes.Clone(v), nil
}

func (t *txn) Scan(p storage.Partition, prefix string, fn func(string, []byte) bool) error {
	bkt, err := t.bucket(p)
	if err != nil {
		return err
	}
	pfx := []byte(prefix)
	c := bkt.Cursor()
	for k, v := c.Seek(pfx); k != nil && bytes.HasPrefix(k, pfx); k, v = c.Next() {
		if !fn(string(k), bytes.Clone(v)) {
			return nil
		}
	}
	return nil
}

func (t *txn) Put(p storage.Partition, key string, value []byte) error {
	bkt, err := t.bucket(p)
	if err != nil {
		return err
	}
	return bkt.Put([]byte(key), value)
}

func (t *txn) Delete(p storage.Partition, key string) error {
	bkt, err := t.bucket(p)
	if err != nil {
		return err
	}
	return bkt.Delete([]byte(key))
}
