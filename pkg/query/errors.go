package query

import (
	"errors"

	"github.com/nainya/graphstore/pkg/store"
)

var (
	// ErrQuery is returned by Build when the operations cannot be compiled
	ErrQuery = errors.New("query: invalid query")

	// ErrExec is returned by Exec when results cannot take the requested shape
	ErrExec = errors.New("query: cannot decode results")

	// ErrNotFound is wrapped when ShortPath finds no path. It is the
	// store's sentinel so store.IsNotFound works on query errors too.
	ErrNotFound = store.ErrNotFound
)
