// ABOUTME: Index maintenance for node writes
// ABOUTME: Keeps each entity's index tree in the same batch as the node record

package store

import (
	"fmt"

	"github.com/nainya/graphstore/pkg/graph"
	"github.com/nainya/graphstore/pkg/id"
	"github.com/nainya/graphstore/pkg/storage"
)

// writeStats collects side effects of a batch for logging after commit
type writeStats struct {
	added    int
	removed  int
	entities []string
}

// ensureEntity loads the entity or creates it with an empty index tree.
// Writer batches are serialized by every backend, so only one concurrent
// batch can observe the entity as missing.
func ensureEntity(w storage.Writer, name string, st *writeStats) (*graph.EntityItem, error) {
	e, err := getEntity(w, name)
	if err != nil {
		return nil, wrap(OpGet, ResourceEntity, name, err)
	}
	if e != nil {
		return e, nil
	}
	st.entities = append(st.entities, name)
	return graph.NewEntityItem(name), nil
}

// reindex moves nid between buckets for every prop the entity indexes.
// A prop whose value did not change keeps its position in the bucket.
func reindex(e *graph.EntityItem, nid id.NodeID, oldProps, newProps map[string]any, st *writeStats) error {
	for prop := range e.Indexes {
		// old values were validated when written
		oldKey, hadOld, _ := indexValue(oldProps, prop)
		newKey, hasNew, err := indexValue(newProps, prop)
		if err != nil {
			return fmt.Errorf("index %q of %s: %w", prop, e.Name, err)
		}

		if hadOld && (!hasNew || oldKey != newKey) {
			if e.Indexes.Remove(prop, oldKey, nid) {
				st.removed++
			}
		}
		if hasNew && e.Indexes.Add(prop, newKey, nid) {
			st.added++
		}
	}
	return nil
}

// backfill indexes prop for every node of the entity already stored,
// including nodes written earlier in the same batch. Stored values that
// cannot be encoded are left out of the index.
func backfill(w storage.Writer, e *graph.EntityItem, prop string, st *writeStats) error {
	var scanErr error
	err := w.Scan(storage.Nodes, "", func(key string, raw []byte) bool {
		env, err := graph.DecodeEnvelope(raw)
		if err != nil {
			scanErr = err
			return false
		}
		if env.Entity != e.Name {
			return true
		}
		nid, err := id.ParseNodeID(key)
		if err != nil {
			scanErr = err
			return false
		}
		props, err := env.Properties()
		if err != nil {
			scanErr = err
			return false
		}
		if k, ok, err := indexValue(props, prop); err == nil && ok {
			if e.Indexes.Add(prop, k, nid) {
				st.added++
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	return scanErr
}

// unindex drops nid from every bucket of its entity
func unindex(w storage.Writer, entity string, nid id.NodeID, st *writeStats) error {
	e, err := getEntity(w, entity)
	if err != nil {
		return wrap(OpGet, ResourceEntity, entity, err)
	}
	if e == nil {
		return nil
	}
	n := e.Indexes.RemoveAll(nid)
	if n == 0 {
		return nil
	}
	st.removed += n
	return putEntity(w, e)
}

func indexValue(props map[string]any, prop string) (string, bool, error) {
	v, ok := props[prop]
	if !ok || v == nil {
		return "", false, nil
	}
	k, err := IndexKey(v)
	if err != nil {
		return "", false, err
	}
	return k, true, nil
}
