package store

import (
	"errors"
	"fmt"
)

// Op is the storage operation that failed
type Op string

const (
	OpConnect Op = "connect"
	OpGet     Op = "get"
	OpInsert  Op = "insert"
	OpRemove  Op = "remove"
	OpUpdate  Op = "update"
)

// Resource is the kind of record an operation touched
type Resource string

const (
	ResourceEntity Resource = "entity"
	ResourceNode   Resource = "node"
	ResourceEdge   Resource = "edge"
)

var (
	// ErrNotFound is wrapped by every get of an absent record
	ErrNotFound = errors.New("store: not found")

	// ErrNoneKey is returned when writing a node whose id is None
	ErrNoneKey = errors.New("store: node id is none")

	// ErrWrongEntity is returned when decoding a node into a type of
	// another entity
	ErrWrongEntity = errors.New("store: node belongs to another entity")

	// ErrNilBackend is returned by New without a backend
	ErrNilBackend = errors.New("store: nil backend")
)

// Error describes a failed storage operation
type Error struct {
	Op       Op
	Resource Resource
	Key      string
	Err      error
}

func (e *Error) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("store: %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("store: %s %s %q: %v", e.Op, e.Resource, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a get of an absent record
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// wrap returns err unchanged if it already is an *Error
func wrap(op Op, res Resource, key string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Resource: res, Key: key, Err: err}
}
