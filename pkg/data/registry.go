// ABOUTME: Payload type registry and msgpack persistence for Data
// ABOUTME: Payloads are stored as [tag, value]; only registered types round-trip

package data

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

var (
	// ErrUnregisteredType is returned when encoding a payload whose type has no tag
	ErrUnregisteredType = errors.New("data: payload type not registered")

	// ErrUnknownTag is returned when decoding a tag with no registered type
	ErrUnknownTag = errors.New("data: unknown payload tag")

	// ErrTagConflict is returned when a tag or type is registered twice
	ErrTagConflict = errors.New("data: tag already registered")
)

var registry = struct {
	sync.RWMutex
	byTag  map[string]reflect.Type
	byType map[reflect.Type]string
}{
	byTag:  make(map[string]reflect.Type),
	byType: make(map[reflect.Type]string),
}

func init() {
	MustRegister[bool]("bool")
	MustRegister[int]("int")
	MustRegister[int8]("int8")
	MustRegister[int16]("int16")
	MustRegister[int32]("int32")
	MustRegister[int64]("int64")
	MustRegister[uint]("uint")
	MustRegister[uint8]("uint8")
	MustRegister[uint16]("uint16")
	MustRegister[uint32]("uint32")
	MustRegister[uint64]("uint64")
	MustRegister[float32]("float32")
	MustRegister[float64]("float64")
	MustRegister[string]("string")
	MustRegister[[]byte]("bytes")
}

// Register binds a persistent tag to the payload type T. Registering the
// same tag for the same type again is a no-op.
func Register[T any](tag string) error {
	t := reflect.TypeFor[T]()

	registry.Lock()
	defer registry.Unlock()

	if existing, ok := registry.byTag[tag]; ok {
		if existing == t {
			return nil
		}
		return fmt.Errorf("%w: %q is bound to %s", ErrTagConflict, tag, existing)
	}
	if existing, ok := registry.byType[t]; ok {
		return fmt.Errorf("%w: %s is bound to %q", ErrTagConflict, t, existing)
	}

	registry.byTag[tag] = t
	registry.byType[t] = tag
	return nil
}

// MustRegister is Register for package initialization
func MustRegister[T any](tag string) {
	if err := Register[T](tag); err != nil {
		panic(err)
	}
}

// Tag returns the persistent tag of the payload type
func (d Data) Tag() (string, bool) {
	if d.ptr == nil {
		return "", false
	}
	registry.RLock()
	defer registry.RUnlock()
	tag, ok := registry.byType[d.Type()]
	return tag, ok
}

func lookupTag(tag string) (reflect.Type, bool) {
	registry.RLock()
	defer registry.RUnlock()
	t, ok := registry.byTag[tag]
	return t, ok
}

var (
	_ msgpack.CustomEncoder = Data{}
	_ msgpack.CustomDecoder = (*Data)(nil)
)

// EncodeMsgpack writes nil for None and [tag, payload] otherwise
func (d Data) EncodeMsgpack(enc *msgpack.Encoder) error {
	if d.ptr == nil {
		return enc.EncodeNil()
	}
	tag, ok := d.Tag()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnregisteredType, d.Type())
	}
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString(tag); err != nil {
		return err
	}
	return enc.Encode(d.ptr)
}

// DecodeMsgpack reads the form written by EncodeMsgpack
func (d *Data) DecodeMsgpack(dec *msgpack.Decoder) error {
	code, err := dec.PeekCode()
	if err != nil {
		return err
	}
	if code == msgpcode.Nil {
		d.ptr = nil
		return dec.DecodeNil()
	}

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 2 {
		return fmt.Errorf("data: expected [tag, payload], got %d elements", n)
	}
	tag, err := dec.DecodeString()
	if err != nil {
		return err
	}
	t, ok := lookupTag(tag)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}

	p := reflect.New(t)
	if err := dec.DecodeValue(p.Elem()); err != nil {
		return fmt.Errorf("data: decode %q payload: %w", tag, err)
	}
	d.ptr = p.Interface()
	return nil
}
