package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/graphstore/pkg/data"
	"github.com/nainya/graphstore/pkg/graph"
	"github.com/nainya/graphstore/pkg/id"
	"github.com/nainya/graphstore/pkg/storage/memory"
	"github.com/nainya/graphstore/pkg/store"
)

type User struct {
	ID   id.NodeID `msgpack:"id"`
	Kind string    `msgpack:"kind"`
	City string    `msgpack:"city"`
	Age  int       `msgpack:"age"`
}

func (u *User) Key() id.NodeID         { return u.ID }
func (u *User) Entity() string         { return graph.EntityOf(u) }
func (u *User) IndexedProps() []string { return []string{"city"} }

type Company struct {
	ID   id.NodeID `msgpack:"id"`
	Name string    `msgpack:"name"`
}

func (c *Company) Key() id.NodeID { return c.ID }
func (c *Company) Entity() string { return graph.EntityOf(c) }

// fixture: users 1,2 in NY and 3 in LA; 4 is isolated; company 10.
// Edges 1->2->3->1 labelled "follows", plus 1->10 "works_at".
func fixture(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, "query", memory.New())
	require.NoError(t, err)

	require.NoError(t, s.InsertNodes(ctx, []graph.Node{
		&User{ID: 1, Kind: "User", City: "NY", Age: 30},
		&User{ID: 2, Kind: "User", City: "NY", Age: 25},
		&User{ID: 3, Kind: "User", City: "LA", Age: 30},
		&User{ID: 4, Kind: "User", City: "SF", Age: 41},
		&Company{ID: 10, Name: "acme"},
	}))
	require.NoError(t, s.InsertEdges(ctx, []graph.EdgeItem{
		graph.NewEdgeItem("follows", 1, 2, data.None()),
		graph.NewEdgeItem("follows", 2, 3, data.New("close")),
		graph.NewEdgeItem("follows", 3, 1, data.None()),
		graph.NewEdgeItem("works_at", 1, 10, data.New(int64(2019))),
	}))
	return s
}

func build(t *testing.T, b *Builder) *Executor {
	t.Helper()
	ex, err := b.Build(context.Background())
	require.NoError(t, err)
	return ex
}

func TestByIndexInsertionOrder(t *testing.T) {
	s := fixture(t)

	ex := build(t, New(s).ByIndex("city", "NY"))
	assert.Equal(t, NodeResult, ex.Kind())
	assert.Equal(t, []id.NodeID{1, 2}, ex.IDs())

	ex = build(t, New(s).ByEntityName("User").ByIndex("city", "LA"))
	assert.Equal(t, []id.NodeID{3}, ex.IDs())

	ex = build(t, New(s).ByEntityName("Ghost").ByIndex("city", "LA"))
	assert.Equal(t, 0, ex.Count())
}

func TestShortPath(t *testing.T) {
	s := fixture(t)

	ex := build(t, New(s).ShortPath(1, 3))
	assert.Equal(t, PathResult, ex.Kind())
	assert.Equal(t, []id.NodeID{1, 2, 3}, ex.Path())
	assert.Equal(t, []id.NodeID{1, 2, 3}, ex.IDs())

	// through the cycle
	ex = build(t, New(s).ShortPath(3, 2))
	assert.Equal(t, []id.NodeID{3, 1, 2}, ex.Path())

	ex = build(t, New(s).ShortPath(2, 2))
	assert.Equal(t, []id.NodeID{2}, ex.Path())

	users, err := Exec[[]User](build(t, New(s).ShortPath(2, 1)))
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "LA", users[1].City)
}

func TestShortPathNotFound(t *testing.T) {
	s := fixture(t)

	for _, pair := range [][2]id.NodeID{{1, 4}, {4, 1}, {10, 1}, {99, 98}} {
		_, err := New(s).ShortPath(pair[0], pair[1]).Build(context.Background())
		require.Error(t, err, "%v", pair)
		assert.True(t, store.IsNotFound(err))
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

func TestInvalidQueries(t *testing.T) {
	s := fixture(t)
	tests := map[string]*Builder{
		"empty":             New(s),
		"path with others":  New(s).ShortPath(1, 2).ByID(1),
		"two paths":         New(s).ShortPath(1, 2).ShortPath(2, 3),
		"unencodable value": New(s).ByIndex("city", struct{}{}),
		"not indexed":       New(s).ByIndex("age", 30),
		"nil filter":        New(s).Filter(nil),
	}
	for name, b := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := b.Build(context.Background())
			assert.ErrorIs(t, err, ErrQuery)
		})
	}
}

func TestSeedIgnoresPredicateOrder(t *testing.T) {
	ops := New(nil).
		FilterByProp("age", 30).
		ByEntityName("User").
		ByIndex("city", "NY").
		ByID(1).
		Operations()

	for i := 0; i < len(ops); i++ {
		rotated := append(append([]Operation(nil), ops[i:]...), ops[:i]...)
		p, err := compile(rotated)
		require.NoError(t, err)
		assert.Equal(t, OpByID, p.seed.Kind)
	}

	p, err := compile([]Operation{
		{Kind: OpByEntityName, Name: "entity::User"},
		{Kind: OpByIndex, Prop: "city", Value: "NY"},
	})
	require.NoError(t, err)
	assert.Equal(t, OpByIndex, p.seed.Kind)

	p, err = compile([]Operation{
		{Kind: OpByEdgeLabel, Name: "follows"},
		{Kind: OpByEdgeFrom, From: 1},
		{Kind: OpByEdge, From: 1, To: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, EdgeResult, p.kind)
	assert.Equal(t, OpByEdge, p.seed.Kind)

	s := fixture(t)
	a := build(t, New(s).FilterByProp("age", 30).ByIndex("city", "NY"))
	b := build(t, New(s).ByIndex("city", "NY").FilterByProp("age", 30))
	assert.Equal(t, a.IDs(), b.IDs())
	assert.Equal(t, []id.NodeID{1}, a.IDs())
}

func TestEdgeQueries(t *testing.T) {
	s := fixture(t)

	ex := build(t, New(s).ByEdgeFrom(1).ByEdgeLabel("follows"))
	assert.Equal(t, EdgeResult, ex.Kind())
	edges := ex.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, "1:2", edges[0].Key())

	ex = build(t, New(s).ByEdgeTo(1))
	assert.Equal(t, []string{"3:1"}, edgeKeys(ex.Edges()))

	ex = build(t, New(s).ByEdgeData(data.New("close")))
	assert.Equal(t, []string{"2:3"}, edgeKeys(ex.Edges()))

	ex = build(t, New(s).ByEdge(1, 10))
	assert.Equal(t, []string{"1:10"}, edgeKeys(ex.Edges()))

	ex = build(t, New(s).ByEdge(10, 1))
	assert.Equal(t, 0, ex.Count())

	got, err := Exec[[]graph.EdgeItem](build(t, New(s).ByEdgeLabel("works_at")))
	require.NoError(t, err)
	require.Len(t, got, 1)
	year, err := graph.EdgeDataOf[int64](got[0].Data)
	require.NoError(t, err)
	assert.Equal(t, int64(2019), year)
}

func TestNodesNarrowedByEdges(t *testing.T) {
	s := fixture(t)

	ex := build(t, New(s).ByEntityName("User").ByEdgeFrom(1))
	assert.Equal(t, []id.NodeID{2}, ex.IDs())

	ex = build(t, New(s).ByEdgeFrom(1).FilterByProp("name", "acme"))
	assert.Equal(t, []id.NodeID{10}, ex.IDs())

	ex = build(t, New(s).ByIndex("city", "NY").ByEdgeLabel("follows"))
	assert.Equal(t, []id.NodeID{1, 2}, ex.IDs())

	ex = build(t, New(s).ByIndex("city", "NY").ByEdgeTo(3))
	assert.Equal(t, 0, ex.Count())
}

func TestFilters(t *testing.T) {
	s := fixture(t)

	ex := build(t, New(s).FilterByProp("age", 30))
	assert.ElementsMatch(t, []id.NodeID{1, 3}, ex.IDs())

	ex = build(t, New(s).FilterByProp("city", data.New("SF")))
	assert.Equal(t, []id.NodeID{4}, ex.IDs())

	ex = build(t, New(s).ByEntityName("entity::User").Filter(func(r Record) bool {
		age, _ := r.Prop("age")
		var u User
		return r.Decode(&u) == nil && u.Age > 26 && age != nil
	}))
	assert.ElementsMatch(t, []id.NodeID{1, 3, 4}, ex.IDs())

	ex = build(t, New(s).ByID(3).FilterByProp("city", "NY"))
	assert.Equal(t, 0, ex.Count())

	ex = build(t, New(s).ByID(99))
	assert.Equal(t, 0, ex.Count())
}

type Color string

type Car struct {
	ID    id.NodeID `msgpack:"id"`
	Owner id.NodeID `msgpack:"owner"`
	Color Color     `msgpack:"color"`
}

func (c *Car) Key() id.NodeID         { return c.ID }
func (c *Car) Entity() string         { return graph.EntityOf(c) }
func (c *Car) IndexedProps() []string { return []string{"owner"} }

func TestNamedScalarValues(t *testing.T) {
	s := fixture(t)
	ctx := context.Background()
	require.NoError(t, s.InsertNodes(ctx, []graph.Node{
		&Car{ID: 5, Owner: 1, Color: "red"},
		&Car{ID: 6, Owner: 2, Color: "blue"},
	}))

	ex := build(t, New(s).ByIndex("owner", id.NodeID(1)))
	assert.Equal(t, []id.NodeID{5}, ex.IDs())

	ex = build(t, New(s).ByIndex("owner", uint64(1)))
	assert.Equal(t, []id.NodeID{5}, ex.IDs())

	ex = build(t, New(s).ByEntityName("Car").FilterByProp("owner", id.NodeID(2)))
	assert.Equal(t, []id.NodeID{6}, ex.IDs())

	ex = build(t, New(s).FilterByProp("color", Color("red")))
	assert.Equal(t, []id.NodeID{5}, ex.IDs())

	ex = build(t, New(s).ByEntityName("User").FilterByProp("city", Color("NY")))
	assert.Equal(t, []id.NodeID{1, 2}, ex.IDs())
}

func TestSortSkipLimit(t *testing.T) {
	s := fixture(t)

	// company 10 has no age and sorts last either way
	ex := build(t, New(s).Filter(func(Record) bool { return true }))
	assert.Equal(t, []id.NodeID{2, 1, 3, 4, 10}, ex.SortByProp("age").IDs())
	assert.Equal(t, []id.NodeID{4, 1, 3, 2, 10}, ex.SortByPropDesc("age").IDs())

	ex.SortByProp("age").Skip(1).Limit(2)
	assert.Equal(t, []id.NodeID{1, 3}, ex.IDs())
	assert.Equal(t, 2, ex.Count())

	ex.Skip(10)
	assert.Equal(t, 0, ex.Count())
	ex.Skip(0).Limit(-1)
	assert.Equal(t, 5, ex.Count())

	ex.Sort(func(a, b Record) int { return int(b.ID) - int(a.ID) })
	assert.Equal(t, []id.NodeID{10, 4, 3, 2, 1}, ex.IDs())
}

func TestExecShapes(t *testing.T) {
	s := fixture(t)
	ex := build(t, New(s).ByIndex("city", "NY"))

	users, err := Exec[[]User](ex)
	require.NoError(t, err)
	assert.Equal(t, []User{
		{ID: 1, Kind: "User", City: "NY", Age: 30},
		{ID: 2, Kind: "User", City: "NY", Age: 25},
	}, users)

	ptrs, err := Exec[[]*User](ex)
	require.NoError(t, err)
	assert.Equal(t, 25, ptrs[1].Age)

	ids, err := Exec[[]id.NodeID](ex)
	require.NoError(t, err)
	assert.Equal(t, []id.NodeID{1, 2}, ids)

	n, err := Exec[int](ex)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs, err := Exec[[]Record](ex)
	require.NoError(t, err)
	assert.Equal(t, "entity::User", recs[0].Entity)

	_, err = Exec[[]graph.EdgeItem](ex)
	assert.ErrorIs(t, err, ErrExec)

	_, err = Exec[[]Company](ex)
	assert.ErrorIs(t, err, ErrExec)

	_, err = Exec[string](ex)
	assert.ErrorIs(t, err, ErrExec)

	edges := build(t, New(s).ByEdgeFrom(1))
	_, err = Exec[[]id.NodeID](edges)
	assert.ErrorIs(t, err, ErrExec)
	_, err = Exec[[]User](edges)
	assert.True(t, errors.Is(err, ErrExec))
}

func edgeKeys(es []graph.EdgeItem) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Key()
	}
	return out
}
