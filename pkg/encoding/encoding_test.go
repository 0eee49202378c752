// ABOUTME: Tests for ordered value encoding
// ABOUTME: Verifies order-preserving properties and roundtrip encoding

package encoding

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func assertOrdered(t *testing.T, vals []Value) [][]byte {
	t.Helper()
	encoded := make([][]byte, len(vals))
	for i, v := range vals {
		encoded[i] = EncodeValues([]Value{v})
	}
	for i := 0; i < len(encoded)-1; i++ {
		if bytes.Compare(encoded[i], encoded[i+1]) >= 0 {
			t.Errorf("Order violated at index %d: %v should be < %v", i, vals[i].Any(), vals[i+1].Any())
		}
	}
	return encoded
}

func TestEncodeIntegers(t *testing.T) {
	vals := []Value{
		NewInt64Value(-1000),
		NewInt64Value(-1),
		NewInt64Value(0),
		NewUint64Value(1),
		NewInt64Value(1000),
		NewUint64Value(1 << 63),
	}

	encoded := assertOrdered(t, vals)

	for i, enc := range encoded {
		decoded, err := DecodeValues(enc)
		if err != nil {
			t.Fatalf("Failed to decode: %v", err)
		}
		if len(decoded) != 1 {
			t.Fatalf("Expected 1 value, got %d", len(decoded))
		}
		if decoded[0].Any() != vals[i].Any() {
			t.Errorf("Roundtrip failed: expected %v, got %v", vals[i].Any(), decoded[0].Any())
		}
	}
}

func TestSignedAndUnsignedShareBuckets(t *testing.T) {
	a, err := Key(int(5))
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	b, err := Key(uint32(5))
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	if a != b {
		t.Errorf("Expected int 5 and uint32 5 to share a key")
	}
}

type ownerID uint64

type cityName string

type label struct{ v string }

func (l label) String() string { return l.v }

func TestNamedScalarsEncodeByKind(t *testing.T) {
	tests := []struct {
		name  string
		named any
		plain any
	}{
		{"uint newtype", ownerID(1), uint64(1)},
		{"uint newtype vs int", ownerID(7), int(7)},
		{"string newtype", cityName("NY"), "NY"},
		{"stringer struct", label{"x"}, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Key(tt.named)
			if err != nil {
				t.Fatalf("Failed to encode %T: %v", tt.named, err)
			}
			b, err := Key(tt.plain)
			if err != nil {
				t.Fatalf("Failed to encode %T: %v", tt.plain, err)
			}
			if a != b {
				t.Errorf("Expected %T and %T to share a key", tt.named, tt.plain)
			}
		})
	}
}

func TestEncodeFloats(t *testing.T) {
	vals := []Value{
		NewFloat64Value(-10.5),
		NewFloat64Value(-0.25),
		NewFloat64Value(0),
		NewFloat64Value(0.25),
		NewFloat64Value(3.14),
	}

	encoded := assertOrdered(t, vals)

	for i, enc := range encoded {
		decoded, err := DecodeValues(enc)
		if err != nil {
			t.Fatalf("Failed to decode: %v", err)
		}
		if decoded[0].F64 != vals[i].F64 {
			t.Errorf("Roundtrip failed: expected %v, got %v", vals[i].F64, decoded[0].F64)
		}
	}
}

func TestEncodeBytes(t *testing.T) {
	vals := []Value{
		NewBytesValue([]byte("")),
		NewBytesValue([]byte{0x00}),
		NewBytesValue([]byte{0x01}),
		NewBytesValue([]byte("a")),
		NewBytesValue([]byte("aa")),
		NewBytesValue([]byte("ab")),
		NewBytesValue([]byte("b")),
	}

	encoded := assertOrdered(t, vals)

	for i, enc := range encoded {
		decoded, err := DecodeValues(enc)
		if err != nil {
			t.Fatalf("Failed to decode: %v", err)
		}
		if !bytes.Equal(decoded[0].Str, vals[i].Str) {
			t.Errorf("Roundtrip failed: expected %q, got %q", vals[i].Str, decoded[0].Str)
		}
	}
}

func TestEncodeComposite(t *testing.T) {
	keys := [][]Value{
		{NewBytesValue([]byte("a")), NewInt64Value(1)},
		{NewBytesValue([]byte("a")), NewInt64Value(2)},
		{NewBytesValue([]byte("b")), NewBoolValue(false)},
		{NewBytesValue([]byte("b")), NewBoolValue(true)},
	}

	encoded := make([][]byte, len(keys))
	for i, k := range keys {
		encoded[i] = EncodeValues(k)
	}

	for i := 0; i < len(encoded)-1; i++ {
		if bytes.Compare(encoded[i], encoded[i+1]) >= 0 {
			t.Errorf("Order violated at index %d", i)
		}
	}

	for i, enc := range encoded {
		decoded, err := DecodeValues(enc)
		if err != nil {
			t.Fatalf("Failed to decode: %v", err)
		}
		if len(decoded) != len(keys[i]) {
			t.Fatalf("Expected %d values, got %d", len(keys[i]), len(decoded))
		}
		for j := range decoded {
			if decoded[j].Type != keys[i][j].Type {
				t.Errorf("Type mismatch at index %d,%d", i, j)
			}
		}
	}
}

func TestEncodeTime(t *testing.T) {
	now := time.Now()
	times := []Value{
		NewTimeValue(now.Add(-time.Hour)),
		NewTimeValue(now),
		NewTimeValue(now.Add(time.Millisecond)),
	}

	encoded := assertOrdered(t, times)

	for i, enc := range encoded {
		decoded, err := DecodeValues(enc)
		if err != nil {
			t.Fatalf("Failed to decode: %v", err)
		}
		if !decoded[0].Time.Equal(times[i].Time) {
			t.Errorf("Time roundtrip failed: expected %v, got %v", times[i].Time, decoded[0].Time)
		}
	}
}

func TestEscapeString(t *testing.T) {
	tests := []struct {
		input []byte
		name  string
	}{
		{[]byte("normal"), "normal string"},
		{[]byte{0x00}, "null byte"},
		{[]byte{0x01}, "escape byte"},
		{[]byte{0x00, 0x01, 0xFF}, "mixed"},
		{[]byte("test\x00string"), "embedded null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			escaped := escapeString(tt.input)
			if bytes.IndexByte(escaped, 0) >= 0 {
				t.Errorf("Escaped form of %v still contains a terminator", tt.input)
			}
			unescaped := unescapeString(escaped)
			if !bytes.Equal(unescaped, tt.input) {
				t.Errorf("Escape/unescape failed for %v", tt.input)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	if Compare("LA", "NY") >= 0 {
		t.Error("Expected LA < NY")
	}
	if Compare(int64(-3), uint64(2)) >= 0 {
		t.Error("Expected -3 < 2")
	}
	if Compare(2, 2.0) == 0 {
		t.Error("Expected ints and floats to use distinct tags")
	}
	if Compare(struct{}{}, 1) <= 0 {
		t.Error("Expected unsupported values to sort last")
	}
}

func TestUnsupportedType(t *testing.T) {
	_, err := Key(map[string]int{})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("Expected ErrUnsupportedType, got %v", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	enc := EncodeValues([]Value{NewUint64Value(7)})
	if _, err := DecodeValues(enc[:4]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("Expected ErrTruncated, got %v", err)
	}
	if _, err := DecodeValues([]byte{TYPE_BYTES, 'a'}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("Expected ErrTruncated for unterminated string, got %v", err)
	}
}
