// ABOUTME: Query operations accumulated by the builder
// ABOUTME: Node operations narrow nodes, edge operations narrow edges

package query

import (
	"fmt"

	"github.com/nainya/graphstore/pkg/data"
	"github.com/nainya/graphstore/pkg/id"
)

// OpKind identifies a query operation
type OpKind int

const (
	OpByID OpKind = iota + 1
	OpByIndex
	OpByEntityName
	OpByEdge
	OpByEdgeLabel
	OpByEdgeData
	OpByEdgeFrom
	OpByEdgeTo
	OpFilter
	OpFilterByProp
	OpShortPath
)

var opNames = map[OpKind]string{
	OpByID:         "ByID",
	OpByIndex:      "ByIndex",
	OpByEntityName: "ByEntityName",
	OpByEdge:       "ByEdge",
	OpByEdgeLabel:  "ByEdgeLabel",
	OpByEdgeData:   "ByEdgeData",
	OpByEdgeFrom:   "ByEdgeFrom",
	OpByEdgeTo:     "ByEdgeTo",
	OpFilter:       "Filter",
	OpFilterByProp: "FilterByProp",
	OpShortPath:    "ShortPath",
}

func (k OpKind) String() string {
	if s, ok := opNames[k]; ok {
		return s
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Operation is one AND-combined predicate. Only the fields of its kind
// are set.
type Operation struct {
	Kind  OpKind
	ID    id.NodeID // ByID
	From  id.NodeID // ByEdge, ByEdgeFrom, ShortPath
	To    id.NodeID // ByEdge, ByEdgeTo, ShortPath
	Name  string    // ByEntityName, ByEdgeLabel
	Prop  string    // ByIndex, FilterByProp
	Value any       // ByIndex, FilterByProp
	Data  data.Data // ByEdgeData
	Fn    func(Record) bool
}

func (o Operation) isNode() bool {
	switch o.Kind {
	case OpByID, OpByIndex, OpByEntityName, OpFilter, OpFilterByProp:
		return true
	}
	return false
}

func (o Operation) isEdge() bool {
	switch o.Kind {
	case OpByEdge, OpByEdgeLabel, OpByEdgeData, OpByEdgeFrom, OpByEdgeTo:
		return true
	}
	return false
}

func (o Operation) String() string {
	switch o.Kind {
	case OpByID:
		return fmt.Sprintf("ByID(%s)", o.ID)
	case OpByIndex, OpFilterByProp:
		return fmt.Sprintf("%s(%s=%v)", o.Kind, o.Prop, o.Value)
	case OpByEntityName, OpByEdgeLabel:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Name)
	case OpByEdge, OpShortPath:
		return fmt.Sprintf("%s(%s, %s)", o.Kind, o.From, o.To)
	case OpByEdgeFrom:
		return fmt.Sprintf("ByEdgeFrom(%s)", o.From)
	case OpByEdgeTo:
		return fmt.Sprintf("ByEdgeTo(%s)", o.To)
	case OpByEdgeData:
		return fmt.Sprintf("ByEdgeData(%s)", o.Data)
	case 0:
		return "Scan"
	default:
		return o.Kind.String()
	}
}
