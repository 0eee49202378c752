// ABOUTME: Node contract implemented by user record types
// ABOUTME: A node exposes a stable id and the name of its entity

package graph

import (
	"reflect"
	"strings"

	"github.com/nainya/graphstore/pkg/id"
)

// EntityPrefix namespaces entity names derived from Go type names
const EntityPrefix = "entity::"

// Node is a graph vertex record. Implementations are plain structs
// serialized with msgpack; field names (or msgpack tags) are the
// property names seen by indexes and queries.
type Node interface {
	Key() id.NodeID
	Entity() string
}

// Indexed is implemented by nodes whose entity declares secondary indexes
type Indexed interface {
	IndexedProps() []string
}

// FormatEntity renders the entity name for a type name
func FormatEntity(typeName string) string {
	return EntityPrefix + typeName
}

// EntityOf derives the entity name from the dynamic type of v
func EntityOf(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return FormatEntity("WeakNode")
	}
	name := t.Name()
	// Generic instantiations render as Name[pkg.Arg]
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return FormatEntity(name)
}

// IndexedPropsOf returns the declared index properties of n, if any
func IndexedPropsOf(n Node) []string {
	if ix, ok := n.(Indexed); ok {
		return ix.IndexedProps()
	}
	return nil
}
