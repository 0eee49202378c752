package graph

import (
	"errors"
	"fmt"

	"github.com/nainya/graphstore/pkg/id"
)

var (
	// ErrEncode marks record serialization failures
	ErrEncode = errors.New("graph: encode failed")

	// ErrDecode marks record deserialization failures. It is never
	// returned for absent records.
	ErrDecode = errors.New("graph: decode failed")

	// ErrUnlinkFromEmptyList is returned by EdgeList.Unlink on an empty list
	ErrUnlinkFromEmptyList = errors.New("graph: cannot unlink from an empty list")
)

// EdgeDataMismatchError is returned when edge data holds another payload type
type EdgeDataMismatchError struct {
	DataType string
}

func (e *EdgeDataMismatchError) Error() string {
	return fmt.Sprintf("graph: error when trying to get edge data: %s", e.DataType)
}

// UnlinkFromInexistentNodesError is returned when no item links from -> to
type UnlinkFromInexistentNodesError struct {
	From id.NodeID
	To   id.NodeID
}

func (e *UnlinkFromInexistentNodesError) Error() string {
	return fmt.Sprintf("graph: cannot unlink from inexistent nodes: %s -> %s", e.From, e.To)
}

// codecError carries both the marker sentinel and the wrapped cause
type codecError struct {
	marker error
	err    error
}

func (e *codecError) Error() string   { return e.err.Error() }
func (e *codecError) Unwrap() []error { return []error{e.marker, e.err} }
