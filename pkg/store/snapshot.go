// ABOUTME: Typed read helpers over a single backend read view
// ABOUTME: Used by the store's getters and by the query engine

package store

import (
	"context"
	"fmt"

	"github.com/nainya/graphstore/pkg/encoding"
	"github.com/nainya/graphstore/pkg/graph"
	"github.com/nainya/graphstore/pkg/id"
	"github.com/nainya/graphstore/pkg/storage"
)

// Snapshot decodes records from one read view
type Snapshot struct {
	r storage.Reader
}

// Read runs fn against a single read view
func (s *Store) Read(ctx context.Context, fn func(*Snapshot) error) error {
	return s.backend.View(ctx, func(r storage.Reader) error {
		return fn(&Snapshot{r: r})
	})
}

// Node returns the stored envelope of nid
func (sn *Snapshot) Node(nid id.NodeID) (*graph.Envelope, error) {
	key := nid.String()
	raw, err := sn.r.Get(storage.Nodes, key)
	if err != nil {
		return nil, wrap(OpGet, ResourceNode, key, err)
	}
	if raw == nil {
		return nil, wrap(OpGet, ResourceNode, key, ErrNotFound)
	}
	env, err := graph.DecodeEnvelope(raw)
	if err != nil {
		return nil, wrap(OpGet, ResourceNode, key, err)
	}
	return env, nil
}

// Edge returns the edge from -> to
func (sn *Snapshot) Edge(from, to id.NodeID) (*graph.EdgeItem, error) {
	key := graph.FormatEdgeKey(from, to)
	raw, err := sn.r.Get(storage.Edges, key)
	if err != nil {
		return nil, wrap(OpGet, ResourceEdge, key, err)
	}
	if raw == nil {
		return nil, wrap(OpGet, ResourceEdge, key, ErrNotFound)
	}
	e, err := graph.DecodeEdge(raw)
	if err != nil {
		return nil, wrap(OpGet, ResourceEdge, key, err)
	}
	return e, nil
}

// Entity returns the named entity
func (sn *Snapshot) Entity(name string) (*graph.EntityItem, error) {
	e, err := getEntity(sn.r, name)
	if err != nil {
		return nil, wrap(OpGet, ResourceEntity, name, err)
	}
	if e == nil {
		return nil, wrap(OpGet, ResourceEntity, name, ErrNotFound)
	}
	return e, nil
}

// ScanNodes visits every node in key order until fn returns false
func (sn *Snapshot) ScanNodes(fn func(id.NodeID, *graph.Envelope) bool) error {
	var inner error
	err := sn.r.Scan(storage.Nodes, "", func(k string, v []byte) bool {
		nid, err := id.ParseNodeID(k)
		if err != nil {
			inner = wrap(OpGet, ResourceNode, k, err)
			return false
		}
		env, err := graph.DecodeEnvelope(v)
		if err != nil {
			inner = wrap(OpGet, ResourceNode, k, err)
			return false
		}
		return fn(nid, env)
	})
	if err != nil {
		return wrap(OpGet, ResourceNode, "*", err)
	}
	return inner
}

// ScanEdges visits edges whose key starts with prefix until fn returns false
func (sn *Snapshot) ScanEdges(prefix string, fn func(*graph.EdgeItem) bool) error {
	var inner error
	err := sn.r.Scan(storage.Edges, prefix, func(k string, v []byte) bool {
		e, err := graph.DecodeEdge(v)
		if err != nil {
			inner = wrap(OpGet, ResourceEdge, k, err)
			return false
		}
		return fn(e)
	})
	if err != nil {
		return wrap(OpGet, ResourceEdge, prefix+"*", err)
	}
	return inner
}

// EdgesFrom returns every edge leaving from, ordered by target key
func (sn *Snapshot) EdgesFrom(from id.NodeID) ([]graph.EdgeItem, error) {
	var out []graph.EdgeItem
	err := sn.ScanEdges(graph.EdgePrefix(from), func(e *graph.EdgeItem) bool {
		out = append(out, *e)
		return true
	})
	return out, err
}

// ScanEntities visits every entity until fn returns false
func (sn *Snapshot) ScanEntities(fn func(*graph.EntityItem) bool) error {
	var inner error
	err := sn.r.Scan(storage.Entities, "", func(k string, v []byte) bool {
		e, err := graph.DecodeEntity(v)
		if err != nil {
			inner = wrap(OpGet, ResourceEntity, k, err)
			return false
		}
		return fn(e)
	})
	if err != nil {
		return wrap(OpGet, ResourceEntity, "*", err)
	}
	return inner
}

// LookupIndex returns the ids whose prop equals value, in insertion order.
// An empty entity searches every entity declaring prop. A missing entity
// yields no ids.
func (sn *Snapshot) LookupIndex(entity, prop string, value any) ([]id.NodeID, error) {
	bucket, err := IndexKey(value)
	if err != nil {
		return nil, err
	}

	if entity != "" {
		e, err := getEntity(sn.r, entity)
		if err != nil || e == nil {
			return nil, wrap(OpGet, ResourceEntity, entity, err)
		}
		return e.Indexes.Lookup(prop, bucket), nil
	}

	var out []id.NodeID
	err = sn.ScanEntities(func(e *graph.EntityItem) bool {
		out = append(out, e.Indexes.Lookup(prop, bucket)...)
		return true
	})
	return out, err
}

// Indexed reports whether any entity (or the named one) indexes prop
func (sn *Snapshot) Indexed(entity, prop string) (bool, error) {
	if entity != "" {
		e, err := getEntity(sn.r, entity)
		if err != nil || e == nil {
			return false, wrap(OpGet, ResourceEntity, entity, err)
		}
		return e.Indexes.Declared(prop), nil
	}

	found := false
	err := sn.ScanEntities(func(e *graph.EntityItem) bool {
		found = e.Indexes.Declared(prop)
		return !found
	})
	return found, err
}

// IndexKey encodes a property value into its index bucket name
func IndexKey(value any) (string, error) {
	k, err := encoding.Key(value)
	if err != nil {
		return "", fmt.Errorf("store: index value: %w", err)
	}
	return k, nil
}

func getEntity(r storage.Reader, name string) (*graph.EntityItem, error) {
	raw, err := r.Get(storage.Entities, name)
	if err != nil || raw == nil {
		return nil, err
	}
	return graph.DecodeEntity(raw)
}
