package query

import (
	"context"
	"fmt"

	"github.com/nainya/graphstore/pkg/id"
	"github.com/nainya/graphstore/pkg/store"
)

// shortestPath runs a breadth-first search over edges as directed arcs.
// Each node is expanded at most once, so cycles terminate.
func shortestPath(ctx context.Context, sn *store.Snapshot, from, to id.NodeID) ([]id.NodeID, error) {
	if from == to {
		return []id.NodeID{from}, nil
	}

	parent := map[id.NodeID]id.NodeID{from: from}
	queue := []id.NodeID{from}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]

		edges, err := sn.EdgesFrom(cur)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if _, seen := parent[e.To]; seen {
				continue
			}
			parent[e.To] = cur
			if e.To == to {
				return unwind(parent, from, to), nil
			}
			queue = append(queue, e.To)
		}
	}
	return nil, fmt.Errorf("query: no path from %s to %s: %w", from, to, ErrNotFound)
}

func unwind(parent map[id.NodeID]id.NodeID, from, to id.NodeID) []id.NodeID {
	var rev []id.NodeID
	for n := to; n != from; n = parent[n] {
		rev = append(rev, n)
	}
	rev = append(rev, from)

	path := make([]id.NodeID, len(rev))
	for i, n := range rev {
		path[len(rev)-1-i] = n
	}
	return path
}
