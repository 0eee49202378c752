package store

import (
	"context"
	"time"

	"github.com/nainya/graphstore/pkg/graph"
	"github.com/nainya/graphstore/pkg/id"
	"github.com/nainya/graphstore/pkg/storage"
)

// nodePtr is a pointer to a node record type
type nodePtr[T any] interface {
	*T
	graph.Node
}

// Get loads the node nid as a *T
func Get[T any, P nodePtr[T]](ctx context.Context, s *Store, nid id.NodeID) (*T, error) {
	var v T
	if err := s.GetNode(ctx, nid, P(&v)); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetNode decodes the node nid into dst, which must be a pointer
func (s *Store) GetNode(ctx context.Context, nid id.NodeID, dst graph.Node) error {
	start := time.Now()
	key := nid.String()
	err := s.Read(ctx, func(sn *Snapshot) error {
		env, err := sn.Node(nid)
		if err != nil {
			return err
		}
		if want := dst.Entity(); want != "" && env.Entity != want {
			return wrap(OpGet, ResourceNode, key, &wrongEntityError{want: want, got: env.Entity})
		}
		return env.Decode(dst)
	})
	err = wrap(OpGet, ResourceNode, key, err)
	s.observe(OpGet, ResourceNode, 1, start, err)
	return err
}

// InsertNode stores n, registering its entity on first use and indexing it
func (s *Store) InsertNode(ctx context.Context, n graph.Node) error {
	return s.putNodes(ctx, OpInsert, []graph.Node{n})
}

// InsertNodes stores every node in one atomic batch
func (s *Store) InsertNodes(ctx context.Context, ns []graph.Node) error {
	return s.putNodes(ctx, OpInsert, ns)
}

// UpdateNode overwrites n and moves it between index buckets
func (s *Store) UpdateNode(ctx context.Context, n graph.Node) error {
	return s.putNodes(ctx, OpUpdate, []graph.Node{n})
}

// RemoveNode deletes n and its index entries. Absent nodes are ignored.
func (s *Store) RemoveNode(ctx context.Context, n graph.Node) error {
	return s.removeNodes(ctx, []id.NodeID{n.Key()})
}

// RemoveNodeByID is RemoveNode for callers that only hold the id
func (s *Store) RemoveNodeByID(ctx context.Context, nid id.NodeID) error {
	return s.removeNodes(ctx, []id.NodeID{nid})
}

// RemoveNodes deletes nodes in one atomic batch
func (s *Store) RemoveNodes(ctx context.Context, ns []graph.Node) error {
	ids := make([]id.NodeID, len(ns))
	for i, n := range ns {
		ids[i] = n.Key()
	}
	return s.removeNodes(ctx, ids)
}

func (s *Store) putNodes(ctx context.Context, op Op, ns []graph.Node) error {
	start := time.Now()
	keys := make([]string, len(ns))
	for i, n := range ns {
		keys[i] = n.Key().String()
	}

	var st writeStats
	err := s.backend.Update(ctx, func(w storage.Writer) error {
		st = writeStats{}
		for _, n := range ns {
			if err := putNode(w, n, &st); err != nil {
				return wrap(op, ResourceNode, n.Key().String(), err)
			}
		}
		return nil
	})
	err = wrap(op, ResourceNode, batchKey(keys), err)
	s.observe(op, ResourceNode, len(ns), start, err)
	if err == nil {
		s.committed(st)
	}
	return err
}

func putNode(w storage.Writer, n graph.Node, st *writeStats) error {
	nid := n.Key()
	if nid.IsNone() {
		return ErrNoneKey
	}
	key := nid.String()

	env, err := graph.NewEnvelope(n)
	if err != nil {
		return err
	}
	props, err := env.Properties()
	if err != nil {
		return err
	}

	var oldProps map[string]any
	prev, err := w.Get(storage.Nodes, key)
	if err != nil {
		return err
	}
	if prev != nil {
		old, err := graph.DecodeEnvelope(prev)
		if err != nil {
			return err
		}
		if old.Entity != env.Entity {
			if err := unindex(w, old.Entity, nid, st); err != nil {
				return err
			}
		} else if oldProps, err = old.Properties(); err != nil {
			return err
		}
	}

	e, err := ensureEntity(w, env.Entity, st)
	if err != nil {
		return err
	}
	for _, prop := range graph.IndexedPropsOf(n) {
		if !e.Indexes.Declare(prop) {
			continue
		}
		if err := backfill(w, e, prop, st); err != nil {
			return err
		}
	}
	if err := reindex(e, nid, oldProps, props, st); err != nil {
		return err
	}
	if err := putEntity(w, e); err != nil {
		return wrap(OpInsert, ResourceEntity, e.Name, err)
	}

	raw, err := env.Encode()
	if err != nil {
		return err
	}
	return w.Put(storage.Nodes, key, raw)
}

func (s *Store) removeNodes(ctx context.Context, ids []id.NodeID) error {
	start := time.Now()
	keys := make([]string, len(ids))
	for i, nid := range ids {
		keys[i] = nid.String()
	}

	var st writeStats
	err := s.backend.Update(ctx, func(w storage.Writer) error {
		st = writeStats{}
		for _, nid := range ids {
			if err := removeNode(w, nid, &st); err != nil {
				return wrap(OpRemove, ResourceNode, nid.String(), err)
			}
		}
		return nil
	})
	err = wrap(OpRemove, ResourceNode, batchKey(keys), err)
	s.observe(OpRemove, ResourceNode, len(ids), start, err)
	if err == nil {
		s.committed(st)
	}
	return err
}

func removeNode(w storage.Writer, nid id.NodeID, st *writeStats) error {
	key := nid.String()
	prev, err := w.Get(storage.Nodes, key)
	if err != nil || prev == nil {
		return err
	}
	env, err := graph.DecodeEnvelope(prev)
	if err != nil {
		return err
	}
	if err := unindex(w, env.Entity, nid, st); err != nil {
		return err
	}
	return w.Delete(storage.Nodes, key)
}

// committed reports the side effects of a successful batch
func (s *Store) committed(st writeStats) {
	for _, name := range st.entities {
		s.log.Info("entity registered").Str("entity", name).Send()
	}
	if s.metrics != nil {
		s.metrics.RecordIndexChanges(st.added, st.removed)
		s.metrics.EntitiesCreatedTotal.Add(float64(len(st.entities)))
	}
}

type wrongEntityError struct {
	want, got string
}

func (e *wrongEntityError) Error() string {
	return "node is " + e.got + ", not " + e.want
}

func (e *wrongEntityError) Is(target error) bool {
	return target == ErrWrongEntity
}
