// ABOUTME: Edge records and in-memory edge builders
// ABOUTME: EdgeItem is persisted under "<from>:<to>"; Edge and EdgeList build items

package graph

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/nainya/graphstore/pkg/data"
	"github.com/nainya/graphstore/pkg/id"
)

// DefaultEdgeLabel is the label of a zero EdgeItem built with NewEdgeItem("")
const DefaultEdgeLabel = "edge_item"

// EdgeItem is a directed, labeled relation between two nodes
type EdgeItem struct {
	Label string    `msgpack:"label"`
	From  id.NodeID `msgpack:"from"`
	To    id.NodeID `msgpack:"to"`
	Data  data.Data `msgpack:"data"`
}

// NewEdgeItem creates an item, using DefaultEdgeLabel for an empty label
func NewEdgeItem(label string, from, to id.NodeID, d data.Data) EdgeItem {
	if label == "" {
		label = DefaultEdgeLabel
	}
	return EdgeItem{Label: label, From: from, To: to, Data: d}
}

// Key returns the storage key of the item
func (e EdgeItem) Key() string {
	return FormatEdgeKey(e.From, e.To)
}

// Equal compares items including their payload
func (e EdgeItem) Equal(o EdgeItem) bool {
	return e.Label == o.Label && e.From == o.From && e.To == o.To && e.Data.Equal(o.Data)
}

// FormatEdgeKey renders the storage key of the pair from -> to
func FormatEdgeKey(from, to id.NodeID) string {
	return from.String() + ":" + to.String()
}

// EdgePrefix is the key prefix shared by every edge leaving from
func EdgePrefix(from id.NodeID) string {
	return from.String() + ":"
}

// ParseEdgeKey splits a key produced by FormatEdgeKey
func ParseEdgeKey(key string) (from, to id.NodeID, err error) {
	left, right, ok := strings.Cut(key, ":")
	if !ok {
		return 0, 0, fmt.Errorf("graph: malformed edge key %q", key)
	}
	if from, err = id.ParseNodeID(left); err != nil {
		return 0, 0, err
	}
	if to, err = id.ParseNodeID(right); err != nil {
		return 0, 0, err
	}
	return from, to, nil
}

// EdgeBuilder is implemented by Edge and EdgeList
type EdgeBuilder interface {
	Key() id.EdgeID
	EdgeLabel() string
	EdgeItems() []EdgeItem
}

// Edge models a single-target relation such as "owned by"
type Edge struct {
	ID    id.EdgeID `msgpack:"id"`
	Label string    `msgpack:"label"`
	Item  *EdgeItem `msgpack:"item"`
}

// NewEdge creates an empty single-target edge
func NewEdge(gen *id.Generator, label string) (*Edge, error) {
	eid, err := gen.NewEdgeID()
	if err != nil {
		return nil, err
	}
	return &Edge{ID: eid, Label: label}, nil
}

// Link sets the target, replacing any previous one
func (e *Edge) Link(from, to Node, d data.Data) *Edge {
	item := NewEdgeItem(e.Label, from.Key(), to.Key(), d)
	e.Item = &item
	return e
}

// Unlink clears the target
func (e *Edge) Unlink() *Edge {
	e.Item = nil
	return e
}

func (e *Edge) Key() id.EdgeID    { return e.ID }
func (e *Edge) EdgeLabel() string { return e.Label }

func (e *Edge) EdgeItems() []EdgeItem {
	if e.Item == nil {
		return nil
	}
	return []EdgeItem{*e.Item}
}

// EdgeList models a one-to-many relation such as "owns"
type EdgeList struct {
	ID    id.EdgeID  `msgpack:"id"`
	Label string     `msgpack:"label"`
	Items []EdgeItem `msgpack:"items"`
}

// NewEdgeList creates an empty one-to-many edge
func NewEdgeList(gen *id.Generator, label string) (*EdgeList, error) {
	eid, err := gen.NewEdgeID()
	if err != nil {
		return nil, err
	}
	return &EdgeList{ID: eid, Label: label}, nil
}

// Link appends an item
func (l *EdgeList) Link(from, to Node, d data.Data) *EdgeList {
	l.Items = append(l.Items, NewEdgeItem(l.Label, from.Key(), to.Key(), d))
	return l
}

// Unlink removes every item linking from -> to and keeps the rest
func (l *EdgeList) Unlink(from, to Node) error {
	if len(l.Items) == 0 {
		return ErrUnlinkFromEmptyList
	}

	f, t := from.Key(), to.Key()
	kept := make([]EdgeItem, 0, len(l.Items))
	for _, item := range l.Items {
		if item.From == f && item.To == t {
			continue
		}
		kept = append(kept, item)
	}
	if len(kept) == len(l.Items) {
		return &UnlinkFromInexistentNodesError{From: f, To: t}
	}

	l.Items = kept
	return nil
}

func (l *EdgeList) Key() id.EdgeID    { return l.ID }
func (l *EdgeList) EdgeLabel() string { return l.Label }

func (l *EdgeList) EdgeItems() []EdgeItem {
	return append([]EdgeItem(nil), l.Items...)
}

// EdgeRef is a non-owning pointer from a node to an edge container
type EdgeRef struct {
	ID id.EdgeID `msgpack:"id"`
}

// NewEdgeRef references the builder by id
func NewEdgeRef(b EdgeBuilder) EdgeRef {
	return EdgeRef{ID: b.Key()}
}

// NewEdgeData wraps an edge payload
func NewEdgeData[T any](v T) data.Data {
	return data.New(v)
}

// EdgeDataOf recovers a typed edge payload
func EdgeDataOf[T any](d data.Data) (T, error) {
	v, err := data.Get[T](d)
	if err != nil {
		return v, &EdgeDataMismatchError{DataType: reflect.TypeFor[T]().String()}
	}
	return v, nil
}
