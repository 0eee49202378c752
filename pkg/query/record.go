package query

import (
	"fmt"

	"github.com/nainya/graphstore/pkg/graph"
	"github.com/nainya/graphstore/pkg/id"
)

// Record is one query result: a node or an edge
type Record struct {
	// ID and Entity are set for nodes
	ID     id.NodeID
	Entity string

	// Props holds node properties, or label/from/to/data for edges
	Props map[string]any

	// Edge is set for edge results
	Edge *graph.EdgeItem

	env *graph.Envelope
}

// IsEdge reports whether the record is an edge
func (r Record) IsEdge() bool { return r.Edge != nil }

// Prop returns a property value
func (r Record) Prop(name string) (any, bool) {
	v, ok := r.Props[name]
	return v, ok
}

// Stored reports whether the record has a stored node body
func (r Record) Stored() bool { return r.env != nil }

func nodeRecord(nid id.NodeID, env *graph.Envelope) (Record, error) {
	props, err := env.Properties()
	if err != nil {
		return Record{}, err
	}
	return Record{ID: nid, Entity: env.Entity, Props: props, env: env}, nil
}

func edgeRecord(e *graph.EdgeItem) Record {
	return Record{
		Edge: e,
		Props: map[string]any{
			"label": e.Label,
			"from":  uint64(e.From),
			"to":    uint64(e.To),
			"data":  e.Data.Value(),
		},
	}
}

// Decode decodes the record into dst: a pointer to a node type for nodes
// or a *graph.EdgeItem for edges
func (r Record) Decode(dst any) error {
	if r.Edge != nil {
		e, ok := dst.(*graph.EdgeItem)
		if !ok {
			return fmt.Errorf("%w: edge %s into %T", ErrExec, r.Edge.Key(), dst)
		}
		*e = *r.Edge
		return nil
	}
	if r.env == nil {
		return fmt.Errorf("%w: node %s has no stored body", ErrExec, r.ID)
	}
	if n, ok := dst.(graph.Node); ok && n.Entity() != r.Entity {
		return fmt.Errorf("%w: node %s is %s, not %s", ErrExec, r.ID, r.Entity, n.Entity())
	}
	if err := r.env.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrExec, err)
	}
	return nil
}
