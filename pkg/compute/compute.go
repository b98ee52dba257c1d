// Package compute implements selection kernels over Arrow arrays and record
// batches: concatenation, take, and filter.
//
// Kernels copy ranges of their inputs with [growable.Growable], so runs of
// consecutive rows are moved as whole byte ranges regardless of the column
// type. Inputs are never modified, and results are owned by the caller.
package compute

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/growable/pkg/growable"
	gmemory "github.com/grafana/growable/pkg/memory"
)

var (
	// ErrNoInput is returned when a kernel that merges inputs is given none.
	ErrNoInput = errors.New("no input")

	// ErrLengthMismatch is returned when a selection mask does not have the
	// same length as the array it selects from.
	ErrLengthMismatch = errors.New("length mismatch")

	// ErrSchemaMismatch is returned when record batches cannot be merged
	// because they disagree on the type of a field.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// run builds an array by driving g with fill. Offset overflows and out of
// range accesses raised by g are returned as errors. g is released.
func run(g growable.Growable, fill func(g growable.Growable)) (arr arrow.Array, err error) {
	defer g.Release()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok && (errors.Is(e, growable.ErrOffsetOverflow) || errors.Is(e, growable.ErrIndex)) {
			arr, err = nil, e
			return
		}
		panic(r)
	}()

	fill(g)
	return g.NewArray(), nil
}

// Concatenate returns a new array holding the entries of arrs in order. All
// arrays must have the same data type.
func Concatenate(alloc memory.Allocator, arrs []arrow.Array) (arrow.Array, error) {
	if len(arrs) == 0 {
		return nil, fmt.Errorf("concatenate: %w", ErrNoInput)
	}

	var total int
	for _, arr := range arrs {
		total += arr.Len()
	}

	g, err := growable.New(alloc, arrs, false, total)
	if err != nil {
		return nil, fmt.Errorf("concatenate: %w", err)
	}
	return run(g, func(g growable.Growable) {
		for i, arr := range arrs {
			g.Extend(i, 0, arr.Len())
		}
	})
}

// Filter returns the entries of arr for which mask is valid and true.
func Filter(alloc memory.Allocator, arr arrow.Array, mask *array.Boolean) (arrow.Array, error) {
	if mask.Len() != arr.Len() {
		return nil, fmt.Errorf("%w: mask has %d entries, array has %d", ErrLengthMismatch, mask.Len(), arr.Len())
	}

	g, err := growable.New(alloc, []arrow.Array{arr}, false, countSelected(mask))
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return run(g, func(g growable.Growable) {
		start := -1
		for i := range mask.Len() {
			selected := mask.IsValid(i) && mask.Value(i)
			switch {
			case selected && start < 0:
				start = i
			case !selected && start >= 0:
				g.Extend(0, start, i-start)
				start = -1
			}
		}
		if start >= 0 {
			g.Extend(0, start, mask.Len()-start)
		}
	})
}

func countSelected(mask *array.Boolean) int {
	var n int
	for i := range mask.Len() {
		if mask.IsValid(i) && mask.Value(i) {
			n++
		}
	}
	return n
}

// Take returns the entries of arr at the positions listed in indices, which
// must be an integer array of type int32, int64, uint32, or uint64. Null
// indices produce null entries.
//
// Take returns an error wrapping [growable.ErrIndex] if an index is out of
// range for arr.
func Take(alloc memory.Allocator, arr arrow.Array, indices arrow.Array) (arrow.Array, error) {
	at, err := indexReader(indices)
	if err != nil {
		return nil, err
	}
	for i := range indices.Len() {
		if indices.IsNull(i) {
			continue
		}
		if idx := at(i); idx < 0 || idx >= int64(arr.Len()) {
			return nil, fmt.Errorf("take: %w: index %d out of range for array of length %d", growable.ErrIndex, idx, arr.Len())
		}
	}

	g, err := growable.New(alloc, []arrow.Array{arr}, indices.NullN() > 0, indices.Len())
	if err != nil {
		return nil, fmt.Errorf("take: %w", err)
	}
	return run(g, func(g growable.Growable) {
		// Consecutive indices coalesce into a single run.
		var start, length, nulls int
		flush := func() {
			if length > 0 {
				g.Extend(0, start, length)
				length = 0
			}
			if nulls > 0 {
				g.ExtendNulls(nulls)
				nulls = 0
			}
		}

		for i := range indices.Len() {
			if indices.IsNull(i) {
				if length > 0 {
					flush()
				}
				nulls++
				continue
			}

			idx := int(at(i))
			if nulls == 0 && length > 0 && idx == start+length {
				length++
				continue
			}
			flush()
			start, length = idx, 1
		}
		flush()
	})
}

func indexReader(indices arrow.Array) (func(i int) int64, error) {
	switch indices := indices.(type) {
	case *array.Int32:
		return func(i int) int64 { return int64(indices.Value(i)) }, nil
	case *array.Int64:
		return indices.Value, nil
	case *array.Uint32:
		return func(i int) int64 { return int64(indices.Value(i)) }, nil
	case *array.Uint64:
		return func(i int) int64 {
			// Values past MaxInt64 become negative and fail the range check.
			return int64(indices.Value(i))
		}, nil
	default:
		return nil, fmt.Errorf("take: %w: index type %s", growable.ErrNotImplemented, indices.DataType())
	}
}

// NotNullMask returns a boolean array that is true wherever arr is not null.
// The mask itself has no nulls.
func NotNullMask(alloc memory.Allocator, arr arrow.Array) *array.Boolean {
	values := gmemory.NewBitmap(alloc, arr.Len())
	defer values.Release()

	switch bits := arr.NullBitmapBytes(); {
	case arr.NullN() == 0:
		values.AppendCount(true, arr.Len())
	case bits == nil:
		values.AppendCount(false, arr.Len())
	default:
		values.AppendBits(bits, arr.Data().Offset(), arr.Len())
	}

	buf := values.Finish()
	defer buf.Release()

	data := array.NewData(arrow.FixedWidthTypes.Boolean, arr.Len(), []*memory.Buffer{nil, buf}, nil, 0, 0)
	defer data.Release()
	return array.NewBooleanData(data)
}
