// Package growable assembles new Arrow arrays by copying ranges of entries
// out of existing arrays of the same type.
//
// A [Growable] is bound at construction to a fixed list of source arrays.
// Callers then drive it with [Growable.Extend], which copies a contiguous
// range of entries from one of the sources, and [Growable.ExtendNulls],
// which appends null entries. Copied payloads are moved as raw byte ranges;
// nothing is decoded or re-validated.
//
// Source arrays are borrowed: a Growable neither retains nor modifies them,
// and they must stay alive until the Growable is finished. Finished arrays
// own their memory and never alias source buffers, with the exception of
// dictionaries which may be shared (and are retained).
//
// Growables are not goroutine-safe.
package growable

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowmemory "github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/growable/pkg/memory"
)

var (
	// ErrIndex is raised when an extend call refers to a source or a range of
	// entries that does not exist.
	ErrIndex = errors.New("index error")

	// ErrTypeMismatch is returned when source arrays do not share the same
	// data type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrNotImplemented is returned when no growable exists for a data type.
	ErrNotImplemented = errors.New("not implemented")

	// ErrNoValidity is raised by ExtendNulls on a growable that does not
	// track validity.
	ErrNoValidity = errors.New("growable does not track validity")

	// ErrOffsetOverflow is raised when the entries copied into a growable no
	// longer fit in its offset or index type.
	ErrOffsetOverflow = memory.ErrOffsetOverflow
)

// Growable builds an array out of ranges of entries of its source arrays.
type Growable interface {
	// Extend copies length entries starting at entry start of the source
	// array at index. Extend panics with [ErrIndex] if the source or the
	// range does not exist.
	Extend(index, start, length int)

	// ExtendNulls appends n null entries. ExtendNulls panics with
	// [ErrNoValidity] if the growable does not track validity.
	ExtendNulls(n int)

	// Len returns the number of entries appended since the growable was
	// created or last finished.
	Len() int

	// NewArray finishes the growable into a new array owned by the caller,
	// and resets the growable so it can be used to build another array from
	// the same sources.
	NewArray() arrow.Array

	// NewData is like NewArray but returns the finished array data.
	NewData() arrow.ArrayData

	// Release frees the memory held by the growable. It must be called once
	// the growable is no longer needed, finished or not.
	Release()
}

// New returns a Growable for arrays, choosing the implementation from the
// data type of the first array. Capacity is the number of entries the
// result is expected to hold.
//
// Validity is tracked if useValidity is set or if any of arrays has nulls;
// the decision is made once and holds for the lifetime of the Growable.
// Callers that intend to call ExtendNulls must set useValidity.
//
// New returns an error wrapping [ErrTypeMismatch] if arrays do not share a
// data type, or [ErrNotImplemented] if the type is unsupported. New panics
// if arrays is empty.
func New(alloc arrowmemory.Allocator, arrays []arrow.Array, useValidity bool, capacity int) (Growable, error) {
	if err := checkTypes(arrays); err != nil {
		return nil, err
	}

	dt := arrays[0].DataType()
	switch dt.ID() {
	case arrow.NULL:
		return newNull(arrays), nil

	case arrow.BOOL:
		return newBoolean(alloc, arrays, useValidity, capacity), nil

	case arrow.BINARY, arrow.STRING:
		return newBinary[int32](alloc, arrays, useValidity, capacity), nil
	case arrow.LARGE_BINARY, arrow.LARGE_STRING:
		return newBinary[int64](alloc, arrays, useValidity, capacity), nil

	case arrow.LIST:
		return newList[int32](alloc, arrays, useValidity, capacity)
	case arrow.LARGE_LIST:
		return newList[int64](alloc, arrays, useValidity, capacity)
	case arrow.FIXED_SIZE_LIST:
		return newFixedSizeList(alloc, arrays, useValidity, capacity)

	case arrow.MAP:
		return NewMap(alloc, castArrays[*array.Map](arrays), useValidity, capacity)

	case arrow.STRUCT:
		return newStruct(alloc, arrays, useValidity, capacity)

	case arrow.DICTIONARY:
		return newDictionary(alloc, arrays, useValidity, capacity)

	case arrow.EXTENSION:
		return newExtension(alloc, arrays, useValidity, capacity)

	case arrow.STRING_VIEW, arrow.BINARY_VIEW,
		arrow.LIST_VIEW, arrow.LARGE_LIST_VIEW,
		arrow.SPARSE_UNION, arrow.DENSE_UNION,
		arrow.RUN_END_ENCODED:
		return nil, fmt.Errorf("%w: growable for %s", ErrNotImplemented, dt)
	}

	if fw, ok := dt.(arrow.FixedWidthDataType); ok && fw.BitWidth()%8 == 0 {
		return newFixedWidth(alloc, arrays, fw.BitWidth()/8, useValidity, capacity), nil
	}
	return nil, fmt.Errorf("%w: growable for %s", ErrNotImplemented, dt)
}

func checkTypes[A arrow.Array](arrays []A) error {
	if len(arrays) == 0 {
		panic("growable: no source arrays")
	}

	dt := arrays[0].DataType()
	for i, arr := range arrays[1:] {
		if !arrow.TypeEqual(dt, arr.DataType()) {
			return fmt.Errorf("%w: source %d has type %s, expected %s", ErrTypeMismatch, i+1, arr.DataType(), dt)
		}
	}
	return nil
}

func castArrays[A arrow.Array](arrays []arrow.Array) []A {
	out := make([]A, len(arrays))
	for i, arr := range arrays {
		out[i] = arr.(A)
	}
	return out
}

// hasNulls reports whether any of arrays has at least one null.
func hasNulls[A arrow.Array](arrays []A) bool {
	for _, arr := range arrays {
		if arr.NullN() > 0 {
			return true
		}
	}
	return false
}

// source returns arrays[index] after checking that [start, start+length) is
// a valid range of its entries.
func source[A arrow.Array](arrays []A, index, start, length int) A {
	if index < 0 || index >= len(arrays) {
		panic(fmt.Errorf("%w: source %d out of range [0, %d)", ErrIndex, index, len(arrays)))
	}

	arr := arrays[index]
	if start < 0 || length < 0 || start+length > arr.Len() {
		panic(fmt.Errorf("%w: range [%d, %d) out of bounds for source %d of length %d", ErrIndex, start, start+length, index, arr.Len()))
	}
	return arr
}

func checkNulls(n int) {
	if n < 0 {
		panic(fmt.Errorf("%w: negative null count %d", ErrIndex, n))
	}
}

// rawOffsets returns the Len()+1 boundaries of a variable-length array,
// adjusted for the array's slice offset. Boundaries index directly into the
// array's child or value buffer.
func rawOffsets[T memory.Offset](arr arrow.Array) []T {
	data := arr.Data()
	if data.Len() == 0 {
		return nil
	}

	offsets := memory.View[T](data.Buffers()[1].Bytes())
	return offsets[data.Offset() : data.Offset()+data.Len()+1]
}
