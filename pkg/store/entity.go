package store

import (
	"context"
	"time"

	"github.com/nainya/graphstore/pkg/graph"
	"github.com/nainya/graphstore/pkg/storage"
)

// GetEntity returns the named entity or an error wrapping ErrNotFound
func (s *Store) GetEntity(ctx context.Context, name string) (*graph.EntityItem, error) {
	start := time.Now()
	var e *graph.EntityItem
	err := s.Read(ctx, func(sn *Snapshot) error {
		var err error
		e, err = sn.Entity(name)
		return err
	})
	err = wrap(OpGet, ResourceEntity, name, err)
	s.observe(OpGet, ResourceEntity, 1, start, err)
	return e, err
}

// InsertEntity stores e under its name, replacing any previous record
func (s *Store) InsertEntity(ctx context.Context, e *graph.EntityItem) error {
	return s.putEntities(ctx, OpInsert, []*graph.EntityItem{e})
}

// InsertEntities stores every entity in one atomic batch
func (s *Store) InsertEntities(ctx context.Context, es []*graph.EntityItem) error {
	return s.putEntities(ctx, OpInsert, es)
}

// UpdateEntity overwrites the entity record
func (s *Store) UpdateEntity(ctx context.Context, e *graph.EntityItem) error {
	return s.putEntities(ctx, OpUpdate, []*graph.EntityItem{e})
}

// RemoveEntity deletes the named entity. Nodes of the entity are kept.
func (s *Store) RemoveEntity(ctx context.Context, name string) error {
	return s.RemoveEntities(ctx, []string{name})
}

// RemoveEntities deletes entities in one atomic batch
func (s *Store) RemoveEntities(ctx context.Context, names []string) error {
	start := time.Now()
	err := s.backend.Update(ctx, func(w storage.Writer) error {
		for _, name := range names {
			if err := w.Delete(storage.Entities, name); err != nil {
				return wrap(OpRemove, ResourceEntity, name, err)
			}
		}
		return nil
	})
	err = wrap(OpRemove, ResourceEntity, batchKey(names), err)
	s.observe(OpRemove, ResourceEntity, len(names), start, err)
	return err
}

func (s *Store) putEntities(ctx context.Context, op Op, es []*graph.EntityItem) error {
	start := time.Now()
	names := make([]string, len(es))
	for i, e := range es {
		names[i] = e.Key()
	}

	err := s.backend.Update(ctx, func(w storage.Writer) error {
		for _, e := range es {
			if err := putEntity(w, e); err != nil {
				return wrap(op, ResourceEntity, e.Key(), err)
			}
		}
		return nil
	})
	err = wrap(op, ResourceEntity, batchKey(names), err)
	s.observe(op, ResourceEntity, len(es), start, err)
	return err
}

func putEntity(w storage.Writer, e *graph.EntityItem) error {
	raw, err := graph.EncodeEntity(e)
	if err != nil {
		return err
	}
	return w.Put(storage.Entities, e.Key(), raw)
}

// batchKey names a batch in errors: the key itself for one record
func batchKey(keys []string) string {
	switch len(keys) {
	case 0:
		return ""
	case 1:
		return keys[0]
	default:
		return keys[0] + ",..."
	}
}
