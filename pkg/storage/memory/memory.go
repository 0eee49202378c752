// ABOUTME: In-process storage backend on copy-on-write B-trees
// ABOUTME: Batches write to cloned trees which are swapped in on commit

package memory

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/btree"

	"github.com/nainya/graphstore/pkg/storage"
)

// Name is reported by Backend.Name
const Name = "memory"

const degree = 32

type entry struct {
	key   string
	value []byte
}

func (e *entry) Less(than btree.Item) bool {
	return e.key < than.(*entry).key
}

type snapshot map[storage.Partition]*btree.BTree

// Backend keeps every partition in memory. Nothing survives Close.
type Backend struct {
	writeMu sync.Mutex

	mu     sync.RWMutex
	trees  snapshot
	closed bool
}

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Sizer   = (*Backend)(nil)
)

// New creates an empty backend with every partition
func New() *Backend {
	trees := make(snapshot, len(storage.Partitions))
	for _, p := range storage.Partitions {
		trees[p] = btree.New(degree)
	}
	return &Backend{trees: trees}
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.trees = nil
	return nil
}

func (b *Backend) current() (snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, storage.ErrClosed
	}
	return b.trees, nil
}

// View reads from the trees committed when it started
func (b *Backend) View(ctx context.Context, fn func(storage.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	trees, err := b.current()
	if err != nil {
		return err
	}
	return fn(&reader{trees: trees})
}

// Update clones the committed trees, applies fn and swaps them in when fn
// succeeds
func (b *Backend) Update(ctx context.Context, fn func(storage.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	trees, err := b.current()
	if err != nil {
		return err
	}
	next := make(snapshot, len(trees))
	for p, t := range trees {
		next[p] = t.Clone()
	}

	if err := fn(&writer{reader{trees: next}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return storage.ErrClosed
	}
	b.trees = next
	return nil
}

// Len returns the number of keys in a partition
func (b *Backend) Len(p storage.Partition) int {
	trees, err := b.current()
	if err != nil {
		return 0
	}
	if t, ok := trees[p]; ok {
		return t.Len()
	}
	return 0
}

// Size sums key and value bytes across every partition
func (b *Backend) Size() (int64, error) {
	trees, err := b.current()
	if err != nil {
		return 0, err
	}
	var size int64
	for _, t := range trees {
		t.Ascend(func(i btree.Item) bool {
			e := i.(*entry)
			size += int64(len(e.key) + len(e.value))
			return true
		})
	}
	return size, nil
}

type reader struct {
	trees snapshot
}

func (r *reader) tree(p storage.Partition) (*btree.BTree, error) {
	t, ok := r.trees[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownPartition, p)
	}
	return t, nil
}

func (r *reader) Get(p storage.Partition, key string) ([]byte, error) {
	t, err := r.tree(p)
	if err != nil {
		return nil, err
	}
	item := t.Get(&entry{key: key})
	if item == nil {
		return nil, nil
	}
	return bytes.Clone(item.(*entry).value), nil
}

func (r *reader) Scan(p storage.Partition, prefix string, fn func(string, []byte) bool) error {
	t, err := r.tree(p)
	if err != nil {
		return err
	}
	t.AscendGreaterOrEqual(&entry{key: prefix}, func(i btree.Item) bool {
		e := i.(*entry)
		if !strings.HasPrefix(e.key, prefix) {
			return false
		}
		return fn(e.key, bytes.Clone(e.value))
	})
	return nil
}

type writer struct {
	reader
}

func (w *writer) Put(p storage.Partition, key string, value []byte) error {
	t, err := w.tree(p)
	if err != nil {
		return err
	}
	t.ReplaceOrInsert(&entry{key: key, value: bytes.Clone(value)})
	return nil
}

func (w *writer) Delete(p storage.Partition, key string) error {
	t, err := w.tree(p)
	if err != nil {
		return err
	}
	t.Delete(&entry{key: key})
	return nil
}
