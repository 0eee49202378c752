// ABOUTME: Entity records and their secondary index trees
// ABOUTME: One EntityItem per node kind, keyed by its name

package graph

import (
	"slices"

	"github.com/nainya/graphstore/pkg/id"
)

// IndexTree maps property -> encoded value -> node ids in insertion order
type IndexTree map[string]map[string][]id.NodeID

// Declare makes prop an indexed property with no buckets yet. It reports
// whether prop was new.
func (t IndexTree) Declare(prop string) bool {
	if _, ok := t[prop]; ok {
		return false
	}
	t[prop] = make(map[string][]id.NodeID)
	return true
}

// Declared reports whether prop is indexed
func (t IndexTree) Declared(prop string) bool {
	_, ok := t[prop]
	return ok
}

// Add appends n to the bucket unless already present
func (t IndexTree) Add(prop, value string, n id.NodeID) bool {
	t.Declare(prop)
	bucket := t[prop][value]
	if slices.Contains(bucket, n) {
		return false
	}
	t[prop][value] = append(bucket, n)
	return true
}

// Remove drops n from one bucket, deleting the bucket once empty
func (t IndexTree) Remove(prop, value string, n id.NodeID) bool {
	bucket, ok := t[prop][value]
	if !ok {
		return false
	}
	i := slices.Index(bucket, n)
	if i < 0 {
		return false
	}
	bucket = slices.Delete(bucket, i, i+1)
	if len(bucket) == 0 {
		delete(t[prop], value)
	} else {
		t[prop][value] = bucket
	}
	return true
}

// RemoveAll drops n from every bucket
func (t IndexTree) RemoveAll(n id.NodeID) int {
	removed := 0
	for prop, values := range t {
		for value := range values {
			if t.Remove(prop, value, n) {
				removed++
			}
		}
	}
	return removed
}

// Lookup returns a copy of the bucket
func (t IndexTree) Lookup(prop, value string) []id.NodeID {
	return slices.Clone(t[prop][value])
}

// EntityItem is the durable home of one entity's indexes
type EntityItem struct {
	Name    string    `msgpack:"name"`
	Indexes IndexTree `msgpack:"indexes"`
}

// NewEntityItem creates an entity with an empty index tree
func NewEntityItem(name string) *EntityItem {
	return &EntityItem{Name: name, Indexes: make(IndexTree)}
}

// Key returns the storage key of the entity
func (e *EntityItem) Key() string {
	return e.Name
}
