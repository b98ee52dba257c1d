// Package memory provides append-only builders for the buffers that make up
// Arrow arrays: typed value buffers, validity bitmaps, and offset sequences.
//
// Builders allocate through an arrow-go [arrowmemory.Allocator] and hand
// their memory over as an [arrowmemory.Buffer] when finished, so the result
// can be placed directly into [github.com/apache/arrow-go/v18/arrow/array.Data]
// without copying.
//
// Builders are not goroutine-safe.
package memory

import (
	"errors"

	arrowmemory "github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/growable/pkg/memory/internal/unsafecast"
)

var (
	// ErrOffsetOverflow is raised when an offset sequence would exceed the
	// range of its offset type.
	ErrOffsetOverflow = errors.New("offset overflow")

	// ErrInvalidOffsets is raised when an offset sequence to copy from is not
	// monotonically non-decreasing.
	ErrInvalidOffsets = errors.New("invalid offsets")
)

func allocatorOrDefault(alloc arrowmemory.Allocator) arrowmemory.Allocator {
	if alloc == nil {
		return arrowmemory.DefaultAllocator
	}
	return alloc
}

// reserve grows buf so it can hold at least need bytes. Capacity is at least
// doubled to amortize reallocations across many small appends.
func reserve(buf *arrowmemory.Buffer, need int) {
	if need <= buf.Cap() {
		return
	}
	buf.Reserve(max(need, 2*buf.Cap()))
}

// View reinterprets the bytes of an Arrow buffer as a slice of T without
// copying. Trailing bytes that do not form a whole T are dropped.
func View[T any](b []byte) []T { return unsafecast.FromBytes[T](b) }
