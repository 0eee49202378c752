package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/nainya/graphstore/internal/logger"
	"github.com/nainya/graphstore/internal/metrics"
	"github.com/nainya/graphstore/pkg/data"
	"github.com/nainya/graphstore/pkg/encoding"
	"github.com/nainya/graphstore/pkg/graph"
	"github.com/nainya/graphstore/pkg/id"
	"github.com/nainya/graphstore/pkg/storage"
	"github.com/nainya/graphstore/pkg/storage/boltdb"
	"github.com/nainya/graphstore/pkg/storage/memory"
)

type User struct {
	ID   id.NodeID `msgpack:"id"`
	Kind string    `msgpack:"kind"`
	City string    `msgpack:"city"`
	Age  int       `msgpack:"age"`
}

func (u *User) Key() id.NodeID         { return u.ID }
func (u *User) Entity() string         { return graph.EntityOf(u) }
func (u *User) IndexedProps() []string { return []string{"city", "age"} }

type Company struct {
	ID   id.NodeID `msgpack:"id"`
	Name string    `msgpack:"name"`
}

func (c *Company) Key() id.NodeID { return c.ID }
func (c *Company) Entity() string { return graph.EntityOf(c) }

func backends(t *testing.T) map[string]func() storage.Backend {
	return map[string]func() storage.Backend{
		"memory": func() storage.Backend { return memory.New() },
		"bolt": func() storage.Backend {
			b, err := boltdb.Open(storage.DefaultOptions(filepath.Join(t.TempDir(), "g.db")))
			require.NoError(t, err)
			return b
		},
	}
}

func newStore(t *testing.T, b storage.Backend, opts ...Option) *Store {
	t.Helper()
	s, err := New(context.Background(), "test", b, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func eachBackend(t *testing.T, fn func(t *testing.T, s *Store)) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, newStore(t, open()))
		})
	}
}

func TestNodeRoundTrip(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		u := &User{ID: 1, Kind: "User", City: "NY", Age: 30}
		require.NoError(t, s.InsertNode(ctx, u))

		got, err := Get[User](ctx, s, 1)
		require.NoError(t, err)
		assert.Equal(t, u, got)

		_, err = Get[User](ctx, s, 2)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))

		var se *Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, OpGet, se.Op)
		assert.Equal(t, ResourceNode, se.Resource)
		assert.Equal(t, "2", se.Key)
	})
}

func TestOperationsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(logger.Config{Level: "debug", Output: &buf})
	s := newStore(t, memory.New(), WithLogger(log))
	ctx := context.Background()

	require.NoError(t, s.InsertNode(ctx, &User{ID: 1, City: "NY"}))
	out := buf.String()
	assert.Contains(t, out, `"component":"database"`)
	assert.Contains(t, out, `"operation":"insert_node"`)
	assert.Contains(t, out, `"record_count":1`)
}

func TestDecodeFailureIsNotNotFound(t *testing.T) {
	s := newStore(t, memory.New())
	ctx := context.Background()

	require.NoError(t, s.Backend().Update(ctx, func(w storage.Writer) error {
		return w.Put(storage.Nodes, "9", []byte{0xc1})
	}))

	_, err := Get[User](ctx, s, 9)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.ErrorIs(t, err, graph.ErrDecode)
}

func TestGetWrongEntity(t *testing.T) {
	s := newStore(t, memory.New())
	ctx := context.Background()
	require.NoError(t, s.InsertNode(ctx, &Company{ID: 5, Name: "acme"}))

	_, err := Get[User](ctx, s, 5)
	assert.ErrorIs(t, err, ErrWrongEntity)

	c, err := Get[Company](ctx, s, 5)
	require.NoError(t, err)
	assert.Equal(t, "acme", c.Name)
}

func TestEntityCreatedOnce(t *testing.T) {
	m := metrics.New(nil)
	s := newStore(t, memory.New(), WithMetrics(m))
	ctx := context.Background()

	var g errgroup.Group
	for i := 1; i <= 32; i++ {
		g.Go(func() error {
			return s.InsertNode(ctx, &User{ID: id.NodeID(i), City: "NY"})
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntitiesCreatedTotal))

	var names []string
	require.NoError(t, s.ScanEntities(ctx, func(e *graph.EntityItem) bool {
		names = append(names, e.Name)
		return true
	}))
	assert.Equal(t, []string{"entity::User"}, names)

	ids, err := s.LookupIndex(ctx, "entity::User", "city", "NY")
	require.NoError(t, err)
	assert.Len(t, ids, 32)
}

func TestIndexMaintenance(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		const entity = "entity::User"

		require.NoError(t, s.InsertNodes(ctx, []graph.Node{
			&User{ID: 1, Kind: "User", City: "NY", Age: 30},
			&User{ID: 2, Kind: "User", City: "NY", Age: 41},
			&User{ID: 3, Kind: "User", City: "LA", Age: 30},
		}))

		lookup := func(prop string, v any) []id.NodeID {
			ids, err := s.LookupIndex(ctx, entity, prop, v)
			require.NoError(t, err)
			return ids
		}

		assert.Equal(t, []id.NodeID{1, 2}, lookup("city", "NY"))
		assert.Equal(t, []id.NodeID{1, 3}, lookup("age", 30))
		assert.Equal(t, []id.NodeID{1, 3}, lookup("age", int64(30)))

		// only the changed property moves
		require.NoError(t, s.UpdateNode(ctx, &User{ID: 1, Kind: "User", City: "LA", Age: 30}))
		assert.Equal(t, []id.NodeID{2}, lookup("city", "NY"))
		assert.Equal(t, []id.NodeID{3, 1}, lookup("city", "LA"))
		assert.Equal(t, []id.NodeID{1, 3}, lookup("age", 30))

		require.NoError(t, s.RemoveNodeByID(ctx, 1))
		assert.Equal(t, []id.NodeID{3}, lookup("city", "LA"))
		assert.Equal(t, []id.NodeID{3}, lookup("age", 30))

		e, err := s.GetEntity(ctx, entity)
		require.NoError(t, err)
		for _, values := range e.Indexes {
			for _, bucket := range values {
				assert.NotContains(t, bucket, id.NodeID(1))
			}
		}

		// removing again is a no-op
		require.NoError(t, s.RemoveNode(ctx, &User{ID: 1}))
		_, err = Get[User](ctx, s, 1)
		assert.True(t, IsNotFound(err))

		// entity lookups across every entity
		all, err := s.LookupIndex(ctx, "", "city", "NY")
		require.NoError(t, err)
		assert.Equal(t, []id.NodeID{2}, all)

		none, err := s.LookupIndex(ctx, "entity::Missing", "city", "NY")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

type Pet struct {
	ID    id.NodeID `msgpack:"id"`
	Name  string    `msgpack:"name"`
	Owner id.NodeID `msgpack:"owner"`

	indexed []string
}

func (p *Pet) Key() id.NodeID         { return p.ID }
func (p *Pet) Entity() string         { return graph.EntityOf(p) }
func (p *Pet) IndexedProps() []string { return p.indexed }

func TestNodeIDValuedIndex(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		owner := []string{"owner"}

		require.NoError(t, s.InsertNodes(ctx, []graph.Node{
			&Pet{ID: 5, Name: "rex", Owner: 1, indexed: owner},
			&Pet{ID: 6, Name: "tom", Owner: 2, indexed: owner},
		}))

		for _, v := range []any{id.NodeID(1), uint64(1), 1} {
			ids, err := s.LookupIndex(ctx, "entity::Pet", "owner", v)
			require.NoError(t, err)
			assert.Equal(t, []id.NodeID{5}, ids, "%T", v)
		}
	})
}

func TestNewIndexedPropBackfills(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		require.NoError(t, s.InsertNodes(ctx, []graph.Node{
			&Pet{ID: 1, Name: "rex", Owner: 100},
			&Pet{ID: 2, Name: "tom", Owner: 200},
		}))
		ids, err := s.LookupIndex(ctx, "entity::Pet", "owner", id.NodeID(100))
		require.NoError(t, err)
		assert.Empty(t, ids)

		// another entity's nodes stay out of the index
		require.NoError(t, s.InsertNode(ctx, &User{ID: 50, City: "NY"}))
		require.NoError(t, s.InsertNode(ctx, &Pet{ID: 3, Name: "kit", Owner: 100, indexed: []string{"owner"}}))

		ids, err = s.LookupIndex(ctx, "entity::Pet", "owner", id.NodeID(100))
		require.NoError(t, err)
		assert.Equal(t, []id.NodeID{1, 3}, ids)

		ids, err = s.LookupIndex(ctx, "entity::Pet", "owner", id.NodeID(200))
		require.NoError(t, err)
		assert.Equal(t, []id.NodeID{2}, ids)

		// a later update without the prop listed keeps the index current
		require.NoError(t, s.UpdateNode(ctx, &Pet{ID: 2, Name: "tom", Owner: 100}))
		ids, err = s.LookupIndex(ctx, "entity::Pet", "owner", id.NodeID(100))
		require.NoError(t, err)
		assert.Equal(t, []id.NodeID{1, 3, 2}, ids)
	})
}

func TestEntityChangeMovesIndex(t *testing.T) {
	s := newStore(t, memory.New())
	ctx := context.Background()

	require.NoError(t, s.InsertNode(ctx, &User{ID: 7, City: "NY"}))
	require.NoError(t, s.UpdateNode(ctx, &Company{ID: 7, Name: "acme"}))

	ids, err := s.LookupIndex(ctx, "entity::User", "city", "NY")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestBatchAtomicity(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		err := s.InsertNodes(ctx, []graph.Node{
			&User{ID: 1, City: "NY"},
			&User{ID: 2, City: "NY"},
			&User{ID: id.NoneNode, City: "NY"},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoneKey)

		for _, nid := range []id.NodeID{1, 2} {
			_, err := Get[User](ctx, s, nid)
			assert.True(t, IsNotFound(err), "node %d must not be visible", nid)
		}
		_, err = s.GetEntity(ctx, "entity::User")
		assert.True(t, IsNotFound(err))

		require.NoError(t, s.InsertNodes(ctx, []graph.Node{
			&User{ID: 1, City: "NY"},
			&User{ID: 2, City: "NY"},
			&User{ID: 3, City: "LA"},
		}))
		st, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, st.Nodes)
		assert.Equal(t, 0, st.Edges)
		assert.Equal(t, 1, st.Entities)
		assert.Positive(t, st.SizeBytes)

		require.NoError(t, s.RemoveNodes(ctx, []graph.Node{&User{ID: 1}, &User{ID: 3}}))
		st, err = s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, st.Nodes)
	})
}

func TestUnindexableValue(t *testing.T) {
	s := newStore(t, memory.New())
	err := s.InsertNode(context.Background(), &taggedNode{ID: 4, City: map[string]string{"a": "b"}})
	require.Error(t, err)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, OpInsert, se.Op)
	assert.Equal(t, "4", se.Key)
	assert.ErrorIs(t, err, encoding.ErrUnsupportedType)
}

type taggedNode struct {
	ID   id.NodeID         `msgpack:"id"`
	City map[string]string `msgpack:"city"`
}

func (n *taggedNode) Key() id.NodeID         { return n.ID }
func (n *taggedNode) Entity() string         { return graph.EntityOf(n) }
func (n *taggedNode) IndexedProps() []string { return []string{"city"} }

func TestEdges(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		gen := id.MustGenerator(id.Config{Instance: 1})
		a, b, c := &User{ID: 1}, &User{ID: 2}, &User{ID: 12}

		owns, err := graph.NewEdgeList(gen, "owns")
		require.NoError(t, err)
		owns.Link(a, b, data.New("2019")).Link(a, c, data.None()).Link(c, a, data.None())
		require.NoError(t, s.SaveEdge(ctx, owns))

		e, err := s.GetEdge(ctx, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, "owns", e.Label)
		since, err := graph.EdgeDataOf[string](e.Data)
		require.NoError(t, err)
		assert.Equal(t, "2019", since)

		from, err := s.EdgesFrom(ctx, 1)
		require.NoError(t, err)
		require.Len(t, from, 2)
		assert.Equal(t, "1:12", from[0].Key())
		assert.Equal(t, "1:2", from[1].Key())

		_, err = s.GetEdge(ctx, 2, 1)
		assert.True(t, IsNotFound(err))

		require.NoError(t, s.RemoveEdge(ctx, 1, 2))
		require.NoError(t, s.RemoveEdge(ctx, 1, 2))
		_, err = s.GetEdge(ctx, 1, 2)
		assert.True(t, IsNotFound(err))

		updated := graph.NewEdgeItem("likes", 12, 1, data.New(int64(3)))
		require.NoError(t, s.UpdateEdge(ctx, updated))
		e, err = s.GetEdge(ctx, 12, 1)
		require.NoError(t, err)
		assert.True(t, updated.Equal(*e))

		require.NoError(t, s.RemoveEdges(ctx, []graph.EdgeItem{updated, *e}))
		var left []string
		require.NoError(t, s.ScanEdges(ctx, "", func(e *graph.EdgeItem) bool {
			left = append(left, e.Key())
			return true
		}))
		assert.Equal(t, []string{"1:12"}, left)
	})
}

func TestEntityOperations(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		a := graph.NewEntityItem("entity::A")
		a.Indexes.Declare("name")
		require.NoError(t, s.InsertEntities(ctx, []*graph.EntityItem{a, graph.NewEntityItem("entity::B")}))

		got, err := s.GetEntity(ctx, "entity::A")
		require.NoError(t, err)
		assert.True(t, got.Indexes.Declared("name"))

		got.Indexes.Declare("age")
		require.NoError(t, s.UpdateEntity(ctx, got))
		got, err = s.GetEntity(ctx, "entity::A")
		require.NoError(t, err)
		assert.True(t, got.Indexes.Declared("age"))

		require.NoError(t, s.RemoveEntities(ctx, []string{"entity::A", "entity::B", "entity::C"}))
		_, err = s.GetEntity(ctx, "entity::B")
		assert.True(t, IsNotFound(err))
		require.NoError(t, s.RemoveEntity(ctx, "entity::B"))
	})
}

func TestConnect(t *testing.T) {
	_, err := New(context.Background(), "x", nil)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, OpConnect, se.Op)
	assert.True(t, errors.Is(err, ErrNilBackend))

	b := memory.New()
	require.NoError(t, b.Close())
	_, err = New(context.Background(), "x", b)
	assert.ErrorIs(t, err, storage.ErrClosed)
}
