// ABOUTME: msgpack encoding of nodes, edges and entities
// ABOUTME: Nodes are wrapped in an envelope carrying their entity name

package graph

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Envelope is the stored form of a node
type Envelope struct {
	Entity string             `msgpack:"entity"`
	Body   msgpack.RawMessage `msgpack:"body"`
}

func encodeErr(kind string, err error) error {
	return &codecError{marker: ErrEncode, err: errors.Wrapf(err, "encode %s", kind)}
}

func decodeErr(kind string, err error) error {
	return &codecError{marker: ErrDecode, err: errors.Wrapf(err, "decode %s", kind)}
}

// NewEnvelope encodes the body of n and pairs it with its entity name
func NewEnvelope(n Node) (*Envelope, error) {
	body, err := msgpack.Marshal(n)
	if err != nil {
		return nil, encodeErr("node", err)
	}
	return &Envelope{Entity: n.Entity(), Body: body}, nil
}

// Encode serializes the envelope
func (e *Envelope) Encode() ([]byte, error) {
	out, err := msgpack.Marshal(e)
	if err != nil {
		return nil, encodeErr("node envelope", err)
	}
	return out, nil
}

// EncodeNode serializes a node with its entity name
func EncodeNode(n Node) ([]byte, error) {
	env, err := NewEnvelope(n)
	if err != nil {
		return nil, err
	}
	return env.Encode()
}

// DecodeEnvelope reads the envelope without decoding the body
func DecodeEnvelope(b []byte) (*Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return nil, decodeErr("node envelope", err)
	}
	return &env, nil
}

// DecodeNode decodes a stored node into dst, which must be a pointer
func DecodeNode(b []byte, dst any) error {
	env, err := DecodeEnvelope(b)
	if err != nil {
		return err
	}
	return env.Decode(dst)
}

// Decode decodes the body into dst, which must be a pointer
func (e *Envelope) Decode(dst any) error {
	if err := msgpack.Unmarshal(e.Body, dst); err != nil {
		return decodeErr("node", err)
	}
	return nil
}

// Properties decodes the body into a generic property map. Integers come
// back as int64/uint64 and floats as float64.
func (e *Envelope) Properties() (map[string]any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(e.Body))
	dec.UseLooseInterfaceDecoding(true)

	props := make(map[string]any)
	if err := dec.Decode(&props); err != nil {
		return nil, decodeErr("node properties", err)
	}
	return props, nil
}

// PropertiesOf returns the property map of an in-memory node
func PropertiesOf(n Node) (map[string]any, error) {
	env, err := NewEnvelope(n)
	if err != nil {
		return nil, err
	}
	return env.Properties()
}

// EncodeEdge serializes an edge item
func EncodeEdge(e *EdgeItem) ([]byte, error) {
	b, err := msgpack.Marshal(e)
	if err != nil {
		return nil, encodeErr("edge", err)
	}
	return b, nil
}

// DecodeEdge deserializes an edge item
func DecodeEdge(b []byte) (*EdgeItem, error) {
	var e EdgeItem
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return nil, decodeErr("edge", err)
	}
	return &e, nil
}

// EncodeEntity serializes an entity
func EncodeEntity(e *EntityItem) ([]byte, error) {
	b, err := msgpack.Marshal(e)
	if err != nil {
		return nil, encodeErr("entity", err)
	}
	return b, nil
}

// DecodeEntity deserializes an entity
func DecodeEntity(b []byte) (*EntityItem, error) {
	var e EntityItem
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return nil, decodeErr("entity", err)
	}
	if e.Indexes == nil {
		e.Indexes = make(IndexTree)
	}
	return &e, nil
}
