package memory

import (
	"fmt"

	arrowmemory "github.com/apache/arrow-go/v18/arrow/memory"
)

// Offset is the set of types usable as boundaries of variable-length
// entries.
type Offset interface{ ~int32 | ~int64 }

// Offsets accumulates the boundaries of variable-length entries in a flat
// child array. An Offsets always holds one more boundary than it has
// entries, starting with an implicit leading zero, and its boundaries never
// decrease.
type Offsets[T Offset] struct {
	values Buffer[T]
}

// NewOffsets creates an empty Offsets with room for capacity entries.
func NewOffsets[T Offset](alloc arrowmemory.Allocator, capacity int) *Offsets[T] {
	o := &Offsets[T]{values: Buffer[T]{alloc: alloc}}
	o.values.Grow(capacity + 1)
	o.values.Append(0)
	return o
}

// Len returns the number of entries delimited by o.
func (o *Offsets[T]) Len() int { return o.values.Len() - 1 }

// Last returns the trailing boundary of o.
func (o *Offsets[T]) Last() T {
	data := o.values.Data()
	return data[len(data)-1]
}

// Data returns the boundaries of o, of length Len()+1.
func (o *Offsets[T]) Data() []T { return o.values.Data() }

// ExtendFrom appends the len(src)-1 entries delimited by the boundaries in
// src. Entry lengths are preserved while boundaries are re-based to
// continue from Last, so src may use any numbering.
//
// ExtendFrom panics with [ErrInvalidOffsets] if src decreases, and with
// [ErrOffsetOverflow] if a boundary does not fit in T.
func (o *Offsets[T]) ExtendFrom(src []T) {
	if len(src) < 2 {
		return
	}
	o.values.Grow(len(src) - 1)

	last := o.Last()
	for i := 1; i < len(src); i++ {
		length := src[i] - src[i-1]
		if length < 0 {
			panic(fmt.Errorf("%w: boundary %d follows %d", ErrInvalidOffsets, src[i], src[i-1]))
		}

		next := last + length
		if next < last {
			panic(fmt.Errorf("%w: appending an entry of length %d after boundary %d", ErrOffsetOverflow, length, last))
		}
		o.values.Append(next)
		last = next
	}
}

// ExtendConstant appends n empty entries.
func (o *Offsets[T]) ExtendConstant(n int) {
	o.values.AppendCount(o.Last(), n)
}

// Finish returns the boundaries of o as an arrow buffer owned by the caller
// and resets o to a single zero boundary.
func (o *Offsets[T]) Finish() *arrowmemory.Buffer {
	buf := o.values.Finish()
	o.values.Append(0)
	return buf
}

// Release frees the memory held by o.
func (o *Offsets[T]) Release() { o.values.Release() }
