// ABOUTME: Executor over materialized query results
// ABOUTME: Sorting, pagination and decoding into caller-chosen shapes

package query

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/nainya/graphstore/pkg/encoding"
	"github.com/nainya/graphstore/pkg/graph"
	"github.com/nainya/graphstore/pkg/id"
)

// Executor holds the results of a built query. Sorting reorders the
// results; Skip and Limit are applied when results are read.
type Executor struct {
	kind    ResultKind
	records []Record
	path    []id.NodeID
	skip    int
	limit   int
}

// Kind returns the result shape
func (ex *Executor) Kind() ResultKind { return ex.kind }

// SortByProp sorts ascending by prop. The sort is stable and records
// without prop come last.
func (ex *Executor) SortByProp(prop string) *Executor {
	return ex.sortByProp(prop, false)
}

// SortByPropDesc sorts descending by prop, records without prop last
func (ex *Executor) SortByPropDesc(prop string) *Executor {
	return ex.sortByProp(prop, true)
}

func (ex *Executor) sortByProp(prop string, desc bool) *Executor {
	slices.SortStableFunc(ex.records, func(a, b Record) int {
		va, okA := a.Props[prop]
		vb, okB := b.Props[prop]
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return 1
		case !okB:
			return -1
		}
		c := encoding.Compare(va, vb)
		if desc {
			return -c
		}
		return c
	})
	return ex
}

// Sort orders results with a caller comparison; the sort is stable
func (ex *Executor) Sort(compare func(a, b Record) int) *Executor {
	slices.SortStableFunc(ex.records, compare)
	return ex
}

// Skip drops the first n results
func (ex *Executor) Skip(n int) *Executor {
	ex.skip = max(n, 0)
	return ex
}

// Limit keeps at most n results; a negative n removes the limit
func (ex *Executor) Limit(n int) *Executor {
	ex.limit = n
	return ex
}

func (ex *Executor) results() []Record {
	recs := ex.records
	if ex.skip >= len(recs) {
		return nil
	}
	recs = recs[ex.skip:]
	if ex.limit >= 0 && ex.limit < len(recs) {
		recs = recs[:ex.limit]
	}
	return recs
}

// Count returns the number of results after Skip and Limit
func (ex *Executor) Count() int {
	return len(ex.results())
}

// Records returns a copy of the results
func (ex *Executor) Records() []Record {
	return slices.Clone(ex.results())
}

// IDs returns the node ids of the results. Edge results have none.
func (ex *Executor) IDs() []id.NodeID {
	var out []id.NodeID
	for _, r := range ex.results() {
		if !r.IsEdge() {
			out = append(out, r.ID)
		}
	}
	return out
}

// Edges returns the edge items of the results
func (ex *Executor) Edges() []graph.EdgeItem {
	var out []graph.EdgeItem
	for _, r := range ex.results() {
		if r.IsEdge() {
			out = append(out, *r.Edge)
		}
	}
	return out
}

// Path returns the node ids of a ShortPath result in path order
func (ex *Executor) Path() []id.NodeID {
	return slices.Clone(ex.path)
}

// Exec decodes the results into R. R may be []id.NodeID, []graph.EdgeItem,
// []Record, int (the count), or a slice of node types or pointers to them.
func Exec[R any](ex *Executor) (R, error) {
	var out R
	recs := ex.results()

	switch dst := any(&out).(type) {
	case *[]Record:
		*dst = slices.Clone(recs)
	case *int:
		*dst = len(recs)
	case *[]id.NodeID:
		if ex.kind == EdgeResult {
			return out, fmt.Errorf("%w: edge results have no node ids", ErrExec)
		}
		*dst = ex.IDs()
	case *[]graph.EdgeItem:
		if ex.kind != EdgeResult {
			return out, fmt.Errorf("%w: %s results are not edges", ErrExec, ex.kind)
		}
		*dst = ex.Edges()
	default:
		if err := decodeSlice(reflect.ValueOf(&out).Elem(), recs); err != nil {
			return out, err
		}
	}
	return out, nil
}

func decodeSlice(v reflect.Value, recs []Record) error {
	if v.Kind() != reflect.Slice {
		return fmt.Errorf("%w: %s is not a slice", ErrExec, v.Type())
	}
	elem := v.Type().Elem()
	base := elem
	if elem.Kind() == reflect.Pointer {
		base = elem.Elem()
	}

	out := reflect.MakeSlice(v.Type(), 0, len(recs))
	for _, r := range recs {
		p := reflect.New(base)
		if err := r.Decode(p.Interface()); err != nil {
			return err
		}
		if elem.Kind() == reflect.Pointer {
			out = reflect.Append(out, p)
		} else {
			out = reflect.Append(out, p.Elem())
		}
	}
	v.Set(out)
	return nil
}
