package query

import (
	"context"
	"fmt"

	"github.com/nainya/graphstore/pkg/encoding"
	"github.com/nainya/graphstore/pkg/graph"
	"github.com/nainya/graphstore/pkg/id"
	"github.com/nainya/graphstore/pkg/store"
)

func (p *plan) runPath(ctx context.Context, sn *store.Snapshot, ex *Executor) error {
	path, err := shortestPath(ctx, sn, p.seed.From, p.seed.To)
	if err != nil {
		return err
	}
	ex.path = path
	for _, nid := range path {
		env, err := sn.Node(nid)
		switch {
		case store.IsNotFound(err):
			// edges may point at nodes that were never stored
			ex.records = append(ex.records, Record{ID: nid})
			continue
		case err != nil:
			return err
		}
		rec, err := nodeRecord(nid, env)
		if err != nil {
			return err
		}
		ex.records = append(ex.records, rec)
	}
	return nil
}

func (p *plan) runEdges(sn *store.Snapshot, ex *Executor) error {
	edges, err := p.matchingEdges(sn)
	if err != nil {
		return err
	}
	for _, e := range edges {
		ex.records = append(ex.records, edgeRecord(e))
	}
	return nil
}

// matchingEdges seeds from the most selective edge operation and keeps
// edges matching every edge operation
func (p *plan) matchingEdges(sn *store.Snapshot) ([]*graph.EdgeItem, error) {
	var out []*graph.EdgeItem
	keep := func(e *graph.EdgeItem) bool {
		if p.edgeMatch(e) {
			out = append(out, e)
		}
		return true
	}

	switch p.edgeSeed.Kind {
	case OpByEdge:
		e, err := sn.Edge(p.edgeSeed.From, p.edgeSeed.To)
		if store.IsNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		keep(e)
		return out, nil
	case OpByEdgeFrom:
		return out, sn.ScanEdges(graph.EdgePrefix(p.edgeSeed.From), keep)
	default:
		return out, sn.ScanEdges("", keep)
	}
}

func (p *plan) edgeMatch(e *graph.EdgeItem) bool {
	for _, op := range p.edgeOps {
		var ok bool
		switch op.Kind {
		case OpByEdge:
			ok = e.From == op.From && e.To == op.To
		case OpByEdgeLabel:
			ok = e.Label == op.Name
		case OpByEdgeData:
			ok = e.Data.Equal(op.Data)
		case OpByEdgeFrom:
			ok = e.From == op.From
		case OpByEdgeTo:
			ok = e.To == op.To
		}
		if !ok {
			return false
		}
	}
	return true
}

func (p *plan) runNodes(sn *store.Snapshot, ex *Executor) error {
	if p.entity != "" {
		if _, err := sn.Entity(p.entity); store.IsNotFound(err) {
			return nil
		} else if err != nil {
			return err
		}
	}

	// edge operations narrow nodes to the targets of matching edges
	var targets map[id.NodeID]bool
	var targetOrder []id.NodeID
	if len(p.edgeOps) > 0 {
		edges, err := p.matchingEdges(sn)
		if err != nil {
			return err
		}
		targets = make(map[id.NodeID]bool, len(edges))
		for _, e := range edges {
			if !targets[e.To] {
				targets[e.To] = true
				targetOrder = append(targetOrder, e.To)
			}
		}
	}

	match := func(rec Record) bool {
		if targets != nil && !targets[rec.ID] {
			return false
		}
		return p.nodeMatch(rec)
	}

	var ids []id.NodeID
	switch {
	case p.seed.Kind == OpByID:
		ids = []id.NodeID{p.seed.ID}
	case p.seed.Kind == OpByIndex:
		indexed, err := sn.Indexed(p.entity, p.seed.Prop)
		if err != nil {
			return err
		}
		if !indexed {
			return fmt.Errorf("%w: property %q is not indexed", ErrQuery, p.seed.Prop)
		}
		if ids, err = sn.LookupIndex(p.entity, p.seed.Prop, p.seed.Value); err != nil {
			return err
		}
	case p.seed.Kind == 0 && targets != nil:
		ids = targetOrder
	default:
		var inner error
		err := sn.ScanNodes(func(nid id.NodeID, env *graph.Envelope) bool {
			if p.entity != "" && env.Entity != p.entity {
				return true
			}
			rec, err := nodeRecord(nid, env)
			if err != nil {
				inner = err
				return false
			}
			if match(rec) {
				ex.records = append(ex.records, rec)
			}
			return true
		})
		if err != nil {
			return err
		}
		return inner
	}

	for _, nid := range ids {
		env, err := sn.Node(nid)
		if store.IsNotFound(err) {
			continue
		}
		if err != nil {
			return err
		}
		rec, err := nodeRecord(nid, env)
		if err != nil {
			return err
		}
		if match(rec) {
			ex.records = append(ex.records, rec)
		}
	}
	return nil
}

func (p *plan) nodeMatch(rec Record) bool {
	for i, op := range p.nodeOps {
		var ok bool
		switch op.Kind {
		case OpByID:
			ok = rec.ID == op.ID
		case OpByEntityName:
			ok = rec.Entity == op.Name
		case OpByIndex, OpFilterByProp:
			ok = propEquals(rec, op.Prop, p.propKeys[i])
		case OpFilter:
			ok = op.Fn(rec)
		}
		if !ok {
			return false
		}
	}
	return true
}

func propEquals(rec Record, prop, want string) bool {
	v, ok := rec.Props[prop]
	if !ok {
		return false
	}
	k, err := encoding.Key(v)
	return err == nil && k == want
}
