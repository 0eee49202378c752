package store

import (
	"context"

	"github.com/nainya/graphstore/pkg/graph"
	"github.com/nainya/graphstore/pkg/id"
	"github.com/nainya/graphstore/pkg/storage"
)

// ScanNodes visits every stored node in key order
func (s *Store) ScanNodes(ctx context.Context, fn func(id.NodeID, *graph.Envelope) bool) error {
	return s.Read(ctx, func(sn *Snapshot) error { return sn.ScanNodes(fn) })
}

// ScanEdges visits edges whose key starts with prefix
func (s *Store) ScanEdges(ctx context.Context, prefix string, fn func(*graph.EdgeItem) bool) error {
	return s.Read(ctx, func(sn *Snapshot) error { return sn.ScanEdges(prefix, fn) })
}

// EdgesFrom returns the edges leaving from
func (s *Store) EdgesFrom(ctx context.Context, from id.NodeID) ([]graph.EdgeItem, error) {
	var out []graph.EdgeItem
	err := s.Read(ctx, func(sn *Snapshot) error {
		var err error
		out, err = sn.EdgesFrom(from)
		return err
	})
	return out, err
}

// ScanEntities visits every entity
func (s *Store) ScanEntities(ctx context.Context, fn func(*graph.EntityItem) bool) error {
	return s.Read(ctx, func(sn *Snapshot) error { return sn.ScanEntities(fn) })
}

// LookupIndex returns the ids of entity nodes whose prop equals value
func (s *Store) LookupIndex(ctx context.Context, entity, prop string, value any) ([]id.NodeID, error) {
	var out []id.NodeID
	err := s.Read(ctx, func(sn *Snapshot) error {
		var err error
		out, err = sn.LookupIndex(entity, prop, value)
		return err
	})
	return out, err
}

// Stats counts the records of each partition
type Stats struct {
	Nodes    int
	Edges    int
	Entities int

	// SizeBytes is zero when the backend cannot report its size
	SizeBytes int64
}

// Stats counts records in one read view
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.backend.View(ctx, func(r storage.Reader) error {
		counts := map[storage.Partition]*int{
			storage.Nodes:    &st.Nodes,
			storage.Edges:    &st.Edges,
			storage.Entities: &st.Entities,
		}
		for p, n := range counts {
			err := r.Scan(p, "", func(string, []byte) bool {
				*n++
				return true
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Stats{}, wrap(OpGet, "", s.key, err)
	}
	if sz, ok := s.backend.(storage.Sizer); ok {
		if st.SizeBytes, err = sz.Size(); err != nil {
			return Stats{}, wrap(OpGet, "", s.key, err)
		}
	}
	return st, nil
}
