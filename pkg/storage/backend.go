// ABOUTME: Ordered key-value backend contract consumed by the graph store
// ABOUTME: Backends expose named partitions, read views and atomic write batches

package storage

import (
	"context"
	"time"
)

// Partition names a keyspace inside a backend
type Partition string

const (
	Nodes    Partition = "nodes"
	Edges    Partition = "edges"
	Entities Partition = "entities"
)

// Partitions lists every partition the graph store uses
var Partitions = []Partition{Nodes, Edges, Entities}

// Reader is a consistent read view
type Reader interface {
	// Get returns nil, nil when the key is absent. The returned slice is
	// owned by the caller.
	Get(p Partition, key string) ([]byte, error)

	// Scan visits keys with the given prefix in ascending order until fn
	// returns false.
	Scan(p Partition, prefix string, fn func(key string, value []byte) bool) error
}

// Writer is a batch. Nothing it does is visible until the batch commits.
type Writer interface {
	Reader
	Put(p Partition, key string, value []byte) error
	Delete(p Partition, key string) error
}

// Backend is an ordered KV engine with atomic batches
type Backend interface {
	// View runs fn against a read view
	View(ctx context.Context, fn func(Reader) error) error

	// Update runs fn in a write batch. The batch commits when fn returns
	// nil and is discarded otherwise. Batches are serialized.
	Update(ctx context.Context, fn func(Writer) error) error

	Close() error
	Name() string
}

// Sizer is implemented by backends that can report their storage footprint
type Sizer interface {
	Size() (int64, error)
}

// Options controls how a backend is opened
type Options struct {
	Path                    string
	CreateIfMissing         bool
	ErrorIfExists           bool
	CreateMissingPartitions bool
	Timeout                 time.Duration
}

// DefaultOptions creates the database and its partitions when missing
func DefaultOptions(path string) Options {
	return Options{
		Path:                    path,
		CreateIfMissing:         true,
		CreateMissingPartitions: true,
		Timeout:                 time.Second,
	}
}

// Known reports whether p is one of Partitions
func Known(p Partition) bool {
	for _, q := range Partitions {
		if p == q {
			return true
		}
	}
	return false
}
