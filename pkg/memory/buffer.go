package memory

import (
	arrowmemory "github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/growable/pkg/memory/internal/unsafecast"
)

// Buffer is an append-only sequence of fixed-size values of type T.
//
// The zero value is ready for use and allocates from
// [arrowmemory.DefaultAllocator].
type Buffer[T any] struct {
	alloc arrowmemory.Allocator
	buf   *arrowmemory.Buffer
	n     int
}

// NewBuffer creates a Buffer with room for capacity elements, allocated
// from alloc. If alloc is nil, the default allocator is used.
func NewBuffer[T any](alloc arrowmemory.Allocator, capacity int) *Buffer[T] {
	b := &Buffer[T]{alloc: alloc}
	b.Grow(capacity)
	return b
}

func (b *Buffer[T]) init() {
	if b.buf != nil {
		return
	}
	b.alloc = allocatorOrDefault(b.alloc)
	b.buf = arrowmemory.NewResizableBuffer(b.alloc)
}

// Len returns the number of elements in b.
func (b *Buffer[T]) Len() int { return b.n }

// Cap returns the number of elements b can hold before reallocating.
func (b *Buffer[T]) Cap() int {
	if b.buf == nil {
		return 0
	}
	return b.buf.Cap() / unsafecast.Sizeof[T]()
}

// Grow ensures that b has room for at least n more elements.
func (b *Buffer[T]) Grow(n int) {
	if n <= 0 {
		return
	}
	b.init()
	reserve(b.buf, (b.n+n)*unsafecast.Sizeof[T]())
}

// Data returns the elements of b. The returned slice is invalidated by the
// next append.
func (b *Buffer[T]) Data() []T {
	if b.buf == nil {
		return nil
	}
	return unsafecast.FromBytes[T](b.buf.Bytes())
}

func (b *Buffer[T]) setLen(n int) {
	b.n = n
	b.buf.ResizeNoShrink(n * unsafecast.Sizeof[T]())
}

// Append appends v to b.
func (b *Buffer[T]) Append(v T) {
	b.Grow(1)
	b.setLen(b.n + 1)
	b.Data()[b.n-1] = v
}

// AppendSlice appends all of vs to b.
func (b *Buffer[T]) AppendSlice(vs []T) {
	if len(vs) == 0 {
		return
	}
	b.Grow(len(vs))

	start := b.n
	b.setLen(b.n + len(vs))
	copy(b.Data()[start:], vs)
}

// AppendCount appends v to b count times.
func (b *Buffer[T]) AppendCount(v T, count int) {
	if count <= 0 {
		return
	}
	b.Grow(count)

	start := b.n
	b.setLen(b.n + count)

	dst := b.Data()[start:]
	for i := range dst {
		dst[i] = v
	}
}

// Finish returns the memory of b as an arrow buffer owned by the caller and
// resets b. The returned buffer is never nil.
func (b *Buffer[T]) Finish() *arrowmemory.Buffer {
	b.init()
	buf := b.buf

	b.buf = nil
	b.n = 0
	return buf
}

// Release frees the memory held by b. b may be reused afterwards.
func (b *Buffer[T]) Release() {
	if b.buf != nil {
		b.buf.Release()
	}
	b.buf = nil
	b.n = 0
}
