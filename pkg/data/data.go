// ABOUTME: Type-erased payload container attached to edges
// ABOUTME: Copy-on-write access, type-checked recovery and tagged persistence

package data

import (
	"fmt"
	"reflect"
)

// TypeMismatchError is returned when the stored payload is not the requested type
type TypeMismatchError struct {
	Expected string
	Found    string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("data: type mismatch: expected %s, found %s", e.Expected, e.Found)
}

// Data is either None (the zero value) or Some(payload).
// Payloads are deep-copied on the way in and on the way out, so a stored
// value cannot be changed through a reference held by someone else.
type Data struct {
	// ptr is a *T for the payload type T, nil for None
	ptr any
}

// None returns the empty container
func None() Data {
	return Data{}
}

// New wraps a payload. New(nil) is None.
func New(v any) Data {
	if v == nil {
		return Data{}
	}
	rv := reflect.ValueOf(v)
	p := reflect.New(rv.Type())
	p.Elem().Set(deepCopy(rv))
	return Data{ptr: p.Interface()}
}

// IsNone reports whether the container is empty
func (d Data) IsNone() bool {
	return d.ptr == nil
}

// Type returns the payload type, nil for None
func (d Data) Type() reflect.Type {
	if d.ptr == nil {
		return nil
	}
	return reflect.TypeOf(d.ptr).Elem()
}

// Value returns a copy of the payload, nil for None
func (d Data) Value() any {
	if d.ptr == nil {
		return nil
	}
	return deepCopy(reflect.ValueOf(d.ptr).Elem()).Interface()
}

func (d Data) typeName() string {
	if d.ptr == nil {
		return "None"
	}
	return d.Type().String()
}

// Get returns a copy of the payload as T
func Get[T any](d Data) (T, error) {
	var zero T
	p, ok := d.ptr.(*T)
	if !ok {
		return zero, &TypeMismatchError{Expected: reflect.TypeFor[T]().String(), Found: d.typeName()}
	}
	return deepCopy(reflect.ValueOf(*p)).Interface().(T), nil
}

// GetMut returns a pointer to the payload for in-place mutation. The
// payload is copied into a fresh box first, so other holders of the same
// Data keep seeing the old value.
func GetMut[T any](d *Data) (*T, error) {
	p, ok := d.ptr.(*T)
	if !ok {
		return nil, &TypeMismatchError{Expected: reflect.TypeFor[T]().String(), Found: d.typeName()}
	}
	fresh := new(T)
	reflect.ValueOf(fresh).Elem().Set(deepCopy(reflect.ValueOf(p).Elem()))
	d.ptr = fresh
	return fresh, nil
}

// Equal compares two containers. Payloads are equal only when their
// dynamic types are identical and their values are deeply equal.
func (d Data) Equal(other Data) bool {
	switch {
	case d.ptr == nil && other.ptr == nil:
		return true
	case d.ptr == nil || other.ptr == nil:
		return false
	case reflect.TypeOf(d.ptr) != reflect.TypeOf(other.ptr):
		return false
	}
	return reflect.DeepEqual(
		reflect.ValueOf(d.ptr).Elem().Interface(),
		reflect.ValueOf(other.ptr).Elem().Interface(),
	)
}

func (d Data) String() string {
	if d.ptr == nil {
		return "None"
	}
	return fmt.Sprintf("Some(%+v)", reflect.ValueOf(d.ptr).Elem().Interface())
}

// GoString makes %#v print the same form as %v
func (d Data) GoString() string {
	return d.String()
}

// deepCopy copies maps, slices and pointers reachable from exported fields
func deepCopy(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		p := reflect.New(v.Type().Elem())
		p.Elem().Set(deepCopy(v.Elem()))
		return p
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		s := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			s.Index(i).Set(deepCopy(v.Index(i)))
		}
		return s
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		m := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			m.SetMapIndex(deepCopy(iter.Key()), deepCopy(iter.Value()))
		}
		return m
	case reflect.Array:
		a := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			a.Index(i).Set(deepCopy(v.Index(i)))
		}
		return a
	case reflect.Struct:
		s := reflect.New(v.Type()).Elem()
		s.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if s.Field(i).CanSet() {
				s.Field(i).Set(deepCopy(v.Field(i)))
			}
		}
		return s
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		c := reflect.New(v.Type()).Elem()
		c.Set(deepCopy(v.Elem()))
		return c
	default:
		return v
	}
}
