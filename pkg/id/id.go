// ABOUTME: Node and edge identifiers with snowflake layout
// ABOUTME: 41-bit millisecond timestamp, 10-bit instance, 12-bit sequence

package id

import (
	"fmt"
	"strconv"
	"time"
)

const (
	TimestampBits = 41
	InstanceBits  = 10
	SequenceBits  = 12

	MaxInstance = 1<<InstanceBits - 1
	MaxSequence = 1<<SequenceBits - 1

	instanceShift  = SequenceBits
	timestampShift = SequenceBits + InstanceBits
	timestampMask  = 1<<TimestampBits - 1
)

// DefaultEpoch is the zero point of the timestamp field
var DefaultEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// NodeID identifies a node. Zero means "none".
type NodeID uint64

// EdgeID identifies an edge container. Zero means "none".
type EdgeID uint64

// NoneNode and NoneEdge are the unset sentinels
const (
	NoneNode NodeID = 0
	NoneEdge EdgeID = 0
)

func (n NodeID) String() string { return strconv.FormatUint(uint64(n), 10) }

// IsNone reports whether the id is the unset sentinel
func (n NodeID) IsNone() bool { return n == NoneNode }

// Parts decodes the id for diagnostics
func (n NodeID) Parts() Parts { return Decompose(uint64(n)) }

func (e EdgeID) String() string { return strconv.FormatUint(uint64(e), 10) }

// IsNone reports whether the id is the unset sentinel
func (e EdgeID) IsNone() bool { return e == NoneEdge }

// Parts decodes the id for diagnostics
func (e EdgeID) Parts() Parts { return Decompose(uint64(e)) }

// ParseNodeID parses the decimal rendering of a node id
func ParseNodeID(s string) (NodeID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return NoneNode, fmt.Errorf("parse node id %q: %w", s, err)
	}
	return NodeID(v), nil
}

// Parts is a decoded snowflake id
type Parts struct {
	Timestamp uint64 // milliseconds since the generator epoch
	Instance  uint64
	Sequence  uint64
}

// Compose packs the three fields into an id
func Compose(timestamp, instance, sequence uint64) uint64 {
	return (timestamp&timestampMask)<<timestampShift |
		(instance&MaxInstance)<<instanceShift |
		sequence&MaxSequence
}

// Decompose splits an id into its fields
func Decompose(v uint64) Parts {
	return Parts{
		Timestamp: v >> timestampShift & timestampMask,
		Instance:  v >> instanceShift & MaxInstance,
		Sequence:  v & MaxSequence,
	}
}

func (p Parts) String() string {
	return fmt.Sprintf("ts=%d instance=%d seq=%d", p.Timestamp, p.Instance, p.Sequence)
}
