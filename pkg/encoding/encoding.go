// ABOUTME: Order-preserving encoding for typed property values
// ABOUTME: Backs index bucket keys and property sorting in the graph store

package encoding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"
)

// Value types. The tag is written first, so values of different types
// never collide and sort by tag. Negative integers are TYPE_INT64 and
// non-negative ones TYPE_UINT64, which keeps mixed signed/unsigned
// properties in numeric order.
const (
	TYPE_BYTES   = 1
	TYPE_INT64   = 2
	TYPE_UINT64  = 3
	TYPE_FLOAT64 = 4
	TYPE_BOOL    = 5
	TYPE_TIME    = 6 // Stored as int64 Unix nanoseconds
)

var (
	// ErrUnsupportedType is returned for values without an ordered encoding
	ErrUnsupportedType = errors.New("encoding: unsupported value type")

	// ErrTruncated is returned when a value ends before its declared size
	ErrTruncated = errors.New("encoding: truncated value")
)

// Value represents a single typed scalar
type Value struct {
	Type uint8
	Str  []byte
	I64  int64
	U64  uint64
	F64  float64
	Bool bool
	Time time.Time
}

// NewBytesValue creates a bytes value
func NewBytesValue(data []byte) Value {
	return Value{Type: TYPE_BYTES, Str: data}
}

// NewInt64Value creates an integer value, normalizing non-negative
// integers to the unsigned domain
func NewInt64Value(i int64) Value {
	if i >= 0 {
		return NewUint64Value(uint64(i))
	}
	return Value{Type: TYPE_INT64, I64: i}
}

// NewUint64Value creates a uint64 value
func NewUint64Value(u uint64) Value {
	return Value{Type: TYPE_UINT64, U64: u}
}

// NewFloat64Value creates a float64 value
func NewFloat64Value(f float64) Value {
	return Value{Type: TYPE_FLOAT64, F64: f}
}

// NewBoolValue creates a bool value
func NewBoolValue(b bool) Value {
	return Value{Type: TYPE_BOOL, Bool: b}
}

// NewTimeValue creates a time value
func NewTimeValue(t time.Time) Value {
	return Value{Type: TYPE_TIME, Time: t}
}

// FromAny converts a Go scalar into a Value
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case string:
		return NewBytesValue([]byte(x)), nil
	case []byte:
		return NewBytesValue(x), nil
	case int:
		return NewInt64Value(int64(x)), nil
	case int8:
		return NewInt64Value(int64(x)), nil
	case int16:
		return NewInt64Value(int64(x)), nil
	case int32:
		return NewInt64Value(int64(x)), nil
	case int64:
		return NewInt64Value(x), nil
	case uint:
		return NewUint64Value(uint64(x)), nil
	case uint8:
		return NewUint64Value(uint64(x)), nil
	case uint16:
		return NewUint64Value(uint64(x)), nil
	case uint32:
		return NewUint64Value(uint64(x)), nil
	case uint64:
		return NewUint64Value(x), nil
	case float32:
		return NewFloat64Value(float64(x)), nil
	case float64:
		return NewFloat64Value(x), nil
	case bool:
		return NewBoolValue(x), nil
	case time.Time:
		return NewTimeValue(x), nil
	}

	// Named scalar types (id.NodeID, type City string) encode like their
	// underlying kind, matching what msgpack gives back for stored props.
	if v != nil {
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return NewInt64Value(rv.Int()), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return NewUint64Value(rv.Uint()), nil
		case reflect.Float32, reflect.Float64:
			return NewFloat64Value(rv.Float()), nil
		case reflect.Bool:
			return NewBoolValue(rv.Bool()), nil
		case reflect.String:
			return NewBytesValue([]byte(rv.String())), nil
		}
	}
	if x, ok := v.(fmt.Stringer); ok {
		return NewBytesValue([]byte(x.String())), nil
	}
	return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

// Key encodes a single Go scalar into its ordered string form
func Key(v any) (string, error) {
	val, err := FromAny(v)
	if err != nil {
		return "", err
	}
	return string(EncodeValues([]Value{val})), nil
}

// Compare orders two Go scalars by their encoded form. Values that
// cannot be encoded sort after every value that can.
func Compare(a, b any) int {
	ka, errA := Key(a)
	kb, errB := Key(b)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return 1
	case errB != nil:
		return -1
	}
	return bytes.Compare([]byte(ka), []byte(kb))
}

// EncodeValues encodes multiple values in order-preserving format
func EncodeValues(vals []Value) []byte {
	out := make([]byte, 0, 64)
	for _, v := range vals {
		out = append(out, v.Type)

		var buf [8]byte
		switch v.Type {
		case TYPE_INT64:
			// Flip sign bit for proper ordering
			binary.BigEndian.PutUint64(buf[:], uint64(v.I64)+(1<<63))
			out = append(out, buf[:]...)

		case TYPE_UINT64:
			binary.BigEndian.PutUint64(buf[:], v.U64)
			out = append(out, buf[:]...)

		case TYPE_FLOAT64:
			binary.BigEndian.PutUint64(buf[:], orderedFloat(v.F64))
			out = append(out, buf[:]...)

		case TYPE_BOOL:
			if v.Bool {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}

		case TYPE_TIME:
			binary.BigEndian.PutUint64(buf[:], uint64(v.Time.UnixNano())+(1<<63))
			out = append(out, buf[:]...)

		case TYPE_BYTES:
			out = append(out, escapeString(v.Str)...)
			out = append(out, 0)

		default:
			panic(fmt.Sprintf("unknown type: %d", v.Type))
		}
	}
	return out
}

// orderedFloat maps a float onto a uint64 with the same ordering
func orderedFloat(f float64) uint64 {
	u := math.Float64bits(f)
	if u>>63 == 1 {
		return ^u
	}
	return u | 1<<63
}

func unorderedFloat(u uint64) float64 {
	if u>>63 == 1 {
		return math.Float64frombits(u &^ (1 << 63))
	}
	return math.Float64frombits(^u)
}

// escapeString escapes 0x00 and 0x01 so that 0x00 can terminate the string
// 0x00 -> 0x01 0x01, 0x01 -> 0x01 0x02
func escapeString(s []byte) []byte {
	escapes := 0
	for _, b := range s {
		if b <= 1 {
			escapes++
		}
	}

	if escapes == 0 {
		return s
	}

	out := make([]byte, 0, len(s)+escapes)
	for _, b := range s {
		if b <= 1 {
			out = append(out, 0x01, b+1)
		} else {
			out = append(out, b)
		}
	}
	return out
}

// unescapeString reverses escapeString
func unescapeString(s []byte) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == 0x01 && i+1 < len(s) {
			out = append(out, s[i+1]-1)
			i++
		} else {
			out = append(out, s[i])
		}
	}
	return out
}

// DecodeValues decodes values from encoded format
func DecodeValues(data []byte) ([]Value, error) {
	vals := make([]Value, 0, 4)
	pos := 0

	for pos < len(data) {
		typ := data[pos]
		pos++

		switch typ {
		case TYPE_INT64, TYPE_UINT64, TYPE_FLOAT64, TYPE_TIME:
			if pos+8 > len(data) {
				return nil, fmt.Errorf("%w: type %d at pos %d", ErrTruncated, typ, pos)
			}
			u := binary.BigEndian.Uint64(data[pos : pos+8])
			pos += 8
			switch typ {
			case TYPE_INT64:
				vals = append(vals, Value{Type: TYPE_INT64, I64: int64(u - (1 << 63))})
			case TYPE_UINT64:
				vals = append(vals, NewUint64Value(u))
			case TYPE_FLOAT64:
				vals = append(vals, NewFloat64Value(unorderedFloat(u)))
			case TYPE_TIME:
				vals = append(vals, NewTimeValue(time.Unix(0, int64(u-(1<<63)))))
			}

		case TYPE_BOOL:
			if pos >= len(data) {
				return nil, fmt.Errorf("%w: bool at pos %d", ErrTruncated, pos)
			}
			vals = append(vals, NewBoolValue(data[pos] == 1))
			pos++

		case TYPE_BYTES:
			// Find terminator, skipping escaped pairs
			end := pos
			for end < len(data) && data[end] != 0 {
				if data[end] == 0x01 {
					end++
				}
				end++
			}
			if end >= len(data) {
				return nil, fmt.Errorf("%w: unterminated string at pos %d", ErrTruncated, pos)
			}
			vals = append(vals, NewBytesValue(unescapeString(data[pos:end])))
			pos = end + 1

		default:
			return nil, fmt.Errorf("unknown type: %d at pos %d", typ, pos-1)
		}
	}

	return vals, nil
}

// Any returns the Go scalar held by the value
func (v Value) Any() any {
	switch v.Type {
	case TYPE_BYTES:
		return string(v.Str)
	case TYPE_INT64:
		return v.I64
	case TYPE_UINT64:
		return v.U64
	case TYPE_FLOAT64:
		return v.F64
	case TYPE_BOOL:
		return v.Bool
	case TYPE_TIME:
		return v.Time
	}
	return nil
}
