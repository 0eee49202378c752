// ABOUTME: Query builder accumulating AND-combined graph predicates
// ABOUTME: Build picks the most selective seed and narrows it with every predicate

package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nainya/graphstore/pkg/data"
	"github.com/nainya/graphstore/pkg/encoding"
	"github.com/nainya/graphstore/pkg/graph"
	"github.com/nainya/graphstore/pkg/id"
	"github.com/nainya/graphstore/pkg/store"
)

// Builder collects operations against one store. It never writes.
type Builder struct {
	s   *store.Store
	ops []Operation
}

// New starts an empty query against s
func New(s *store.Store) *Builder {
	return &Builder{s: s}
}

func (b *Builder) add(op Operation) *Builder {
	b.ops = append(b.ops, op)
	return b
}

// ByID keeps the node with the given id
func (b *Builder) ByID(nid id.NodeID) *Builder {
	return b.add(Operation{Kind: OpByID, ID: nid})
}

// ByIndex keeps nodes whose indexed prop equals value
func (b *Builder) ByIndex(prop string, value any) *Builder {
	return b.add(Operation{Kind: OpByIndex, Prop: prop, Value: value})
}

// ByEntityName keeps nodes of an entity. "User" and "entity::User" are
// the same entity.
func (b *Builder) ByEntityName(name string) *Builder {
	if !strings.HasPrefix(name, graph.EntityPrefix) {
		name = graph.FormatEntity(name)
	}
	return b.add(Operation{Kind: OpByEntityName, Name: name})
}

// ByEdge keeps the edge from -> to
func (b *Builder) ByEdge(from, to id.NodeID) *Builder {
	return b.add(Operation{Kind: OpByEdge, From: from, To: to})
}

// ByEdgeLabel keeps edges with the label
func (b *Builder) ByEdgeLabel(label string) *Builder {
	return b.add(Operation{Kind: OpByEdgeLabel, Name: label})
}

// ByEdgeData keeps edges whose payload equals d
func (b *Builder) ByEdgeData(d data.Data) *Builder {
	return b.add(Operation{Kind: OpByEdgeData, Data: d})
}

// ByEdgeFrom keeps edges leaving from
func (b *Builder) ByEdgeFrom(from id.NodeID) *Builder {
	return b.add(Operation{Kind: OpByEdgeFrom, From: from})
}

// ByEdgeTo keeps edges arriving at to
func (b *Builder) ByEdgeTo(to id.NodeID) *Builder {
	return b.add(Operation{Kind: OpByEdgeTo, To: to})
}

// Filter keeps records for which fn returns true
func (b *Builder) Filter(fn func(Record) bool) *Builder {
	return b.add(Operation{Kind: OpFilter, Fn: fn})
}

// FilterByProp keeps records whose prop equals value. A data.Data value
// is compared by its payload.
func (b *Builder) FilterByProp(prop string, value any) *Builder {
	if d, ok := value.(data.Data); ok {
		value = d.Value()
	}
	return b.add(Operation{Kind: OpFilterByProp, Prop: prop, Value: value})
}

// ShortPath finds the minimum-hop path from -> to. It cannot be combined
// with other operations.
func (b *Builder) ShortPath(from, to id.NodeID) *Builder {
	return b.add(Operation{Kind: OpShortPath, From: from, To: to})
}

// Operations returns a copy of the accumulated operations
func (b *Builder) Operations() []Operation {
	return append([]Operation(nil), b.ops...)
}

// Build validates the operations and runs them against a single read view
func (b *Builder) Build(ctx context.Context) (*Executor, error) {
	start := time.Now()

	p, err := compile(b.ops)
	if err != nil {
		return nil, err
	}

	log := b.s.Logger().QueryLogger(p.kind.String())
	ex := &Executor{kind: p.kind, limit: -1}
	err = b.s.Read(ctx, func(sn *store.Snapshot) error {
		switch p.kind {
		case PathResult:
			return p.runPath(ctx, sn, ex)
		case EdgeResult:
			return p.runEdges(sn, ex)
		default:
			return p.runNodes(sn, ex)
		}
	})

	log.Debug("query executed").
		Str("seed", p.seed.String()).
		Int("ops", len(b.ops)).
		Int("results", len(ex.records)).
		Err(err).
		Send()
	if m := b.s.Metrics(); m != nil {
		m.RecordQuery(p.kind.String(), len(ex.records), err, time.Since(start))
		if err == nil && p.kind == PathResult {
			m.RecordPath(len(ex.path) - 1)
		}
	}

	if err != nil {
		return nil, err
	}
	return ex, nil
}

// ResultKind is the shape of a query's results
type ResultKind int

const (
	NodeResult ResultKind = iota
	EdgeResult
	PathResult
)

func (k ResultKind) String() string {
	switch k {
	case EdgeResult:
		return "edge"
	case PathResult:
		return "path"
	default:
		return "node"
	}
}

// plan is a validated operation set
type plan struct {
	kind     ResultKind
	seed     Operation
	edgeSeed Operation
	nodeOps  []Operation
	edgeOps  []Operation
	entity   string
	propKeys map[int]string // nodeOps index -> encoded value
}

func compile(ops []Operation) (*plan, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: no operations", ErrQuery)
	}

	p := &plan{propKeys: make(map[int]string)}
	paths := 0
	for _, op := range ops {
		switch {
		case op.Kind == OpShortPath:
			paths++
		case op.isNode():
			if op.Kind == OpFilter && op.Fn == nil {
				return nil, fmt.Errorf("%w: nil filter", ErrQuery)
			}
			if op.Kind == OpByEntityName && p.entity == "" {
				p.entity = op.Name
			}
			if op.Kind == OpByIndex || op.Kind == OpFilterByProp {
				k, err := encoding.Key(op.Value)
				if err != nil {
					return nil, fmt.Errorf("%w: %s: %v", ErrQuery, op, err)
				}
				p.propKeys[len(p.nodeOps)] = k
			}
			p.nodeOps = append(p.nodeOps, op)
		case op.isEdge():
			p.edgeOps = append(p.edgeOps, op)
		default:
			return nil, fmt.Errorf("%w: unknown operation %s", ErrQuery, op.Kind)
		}
	}

	if paths > 0 {
		if paths > 1 || len(ops) > 1 {
			return nil, fmt.Errorf("%w: ShortPath cannot be combined with other operations", ErrQuery)
		}
		p.kind = PathResult
		p.seed = ops[0]
		return p, nil
	}

	p.edgeSeed = pickSeed(p.edgeOps, OpByEdge, OpByEdgeFrom)
	if len(p.nodeOps) == 0 {
		p.kind = EdgeResult
		p.seed = p.edgeSeed
		return p, nil
	}
	p.kind = NodeResult
	p.seed = pickSeed(p.nodeOps, OpByID, OpByIndex, OpByEntityName)
	return p, nil
}

// pickSeed returns the first operation of the highest-priority kind
// present, or a zero Operation meaning a full scan
func pickSeed(ops []Operation, priority ...OpKind) Operation {
	for _, kind := range priority {
		for _, op := range ops {
			if op.Kind == kind {
				return op
			}
		}
	}
	return Operation{}
}
