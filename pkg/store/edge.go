package store

import (
	"context"
	"time"

	"github.com/nainya/graphstore/pkg/graph"
	"github.com/nainya/graphstore/pkg/id"
	"github.com/nainya/graphstore/pkg/storage"
)

// GetEdge returns the edge from -> to or an error wrapping ErrNotFound
func (s *Store) GetEdge(ctx context.Context, from, to id.NodeID) (*graph.EdgeItem, error) {
	start := time.Now()
	var e *graph.EdgeItem
	err := s.Read(ctx, func(sn *Snapshot) error {
		var err error
		e, err = sn.Edge(from, to)
		return err
	})
	err = wrap(OpGet, ResourceEdge, graph.FormatEdgeKey(from, to), err)
	s.observe(OpGet, ResourceEdge, 1, start, err)
	return e, err
}

// InsertEdge stores e under "<from>:<to>", replacing any edge between the
// same pair
func (s *Store) InsertEdge(ctx context.Context, e graph.EdgeItem) error {
	return s.putEdges(ctx, OpInsert, []graph.EdgeItem{e})
}

// InsertEdges stores every edge in one atomic batch
func (s *Store) InsertEdges(ctx context.Context, es []graph.EdgeItem) error {
	return s.putEdges(ctx, OpInsert, es)
}

// UpdateEdge overwrites the edge between e.From and e.To
func (s *Store) UpdateEdge(ctx context.Context, e graph.EdgeItem) error {
	return s.putEdges(ctx, OpUpdate, []graph.EdgeItem{e})
}

// SaveEdge persists every item of an Edge or EdgeList in one batch
func (s *Store) SaveEdge(ctx context.Context, b graph.EdgeBuilder) error {
	return s.putEdges(ctx, OpInsert, b.EdgeItems())
}

// RemoveEdge deletes the edge from -> to. Absent edges are ignored.
func (s *Store) RemoveEdge(ctx context.Context, from, to id.NodeID) error {
	return s.removeEdges(ctx, []string{graph.FormatEdgeKey(from, to)})
}

// RemoveEdges deletes the given edges in one atomic batch
func (s *Store) RemoveEdges(ctx context.Context, es []graph.EdgeItem) error {
	keys := make([]string, len(es))
	for i, e := range es {
		keys[i] = e.Key()
	}
	return s.removeEdges(ctx, keys)
}

func (s *Store) putEdges(ctx context.Context, op Op, es []graph.EdgeItem) error {
	start := time.Now()
	keys := make([]string, len(es))
	for i, e := range es {
		keys[i] = e.Key()
	}

	err := s.backend.Update(ctx, func(w storage.Writer) error {
		for i := range es {
			raw, err := graph.EncodeEdge(&es[i])
			if err != nil {
				return wrap(op, ResourceEdge, keys[i], err)
			}
			if err := w.Put(storage.Edges, keys[i], raw); err != nil {
				return wrap(op, ResourceEdge, keys[i], err)
			}
		}
		return nil
	})
	err = wrap(op, ResourceEdge, batchKey(keys), err)
	s.observe(op, ResourceEdge, len(es), start, err)
	return err
}

func (s *Store) removeEdges(ctx context.Context, keys []string) error {
	start := time.Now()
	err := s.backend.Update(ctx, func(w storage.Writer) error {
		for _, k := range keys {
			if err := w.Delete(storage.Edges, k); err != nil {
				return wrap(OpRemove, ResourceEdge, k, err)
			}
		}
		return nil
	})
	err = wrap(OpRemove, ResourceEdge, batchKey(keys), err)
	s.observe(OpRemove, ResourceEdge, len(keys), start, err)
	return err
}
