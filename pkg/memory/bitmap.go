package memory

import (
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	arrowmemory "github.com/apache/arrow-go/v18/arrow/memory"
)

// Bitmap is an append-only sequence of bits, stored least-significant bit
// first as required for Arrow validity and boolean buffers.
//
// The zero value is ready for use and allocates from
// [arrowmemory.DefaultAllocator].
type Bitmap struct {
	alloc arrowmemory.Allocator
	buf   *arrowmemory.Buffer
	len   int
}

// NewBitmap creates a Bitmap with room for capacity bits, allocated from
// alloc. If alloc is nil, the default allocator is used.
func NewBitmap(alloc arrowmemory.Allocator, capacity int) Bitmap {
	bmap := Bitmap{alloc: alloc}
	bmap.Grow(capacity)
	return bmap
}

func (bmap *Bitmap) init() {
	if bmap.buf != nil {
		return
	}
	bmap.alloc = allocatorOrDefault(bmap.alloc)
	bmap.buf = arrowmemory.NewResizableBuffer(bmap.alloc)
}

// Len returns the number of bits in bmap.
func (bmap *Bitmap) Len() int { return bmap.len }

// Cap returns the number of bits bmap can hold before reallocating.
func (bmap *Bitmap) Cap() int {
	if bmap.buf == nil {
		return 0
	}
	return bmap.buf.Cap() * 8
}

// Grow ensures that bmap has room for at least n more bits.
func (bmap *Bitmap) Grow(n int) {
	if n <= 0 {
		return
	}
	bmap.init()
	reserve(bmap.buf, int(bitutil.BytesForBits(int64(bmap.len+n))))
}

func (bmap *Bitmap) setLen(n int) {
	bmap.len = n
	bmap.buf.ResizeNoShrink(int(bitutil.BytesForBits(int64(n))))
}

// Bytes returns the packed bits of bmap. Bits past Len in the final byte
// are unspecified.
func (bmap *Bitmap) Bytes() []byte {
	if bmap.buf == nil {
		return nil
	}
	return bmap.buf.Bytes()
}

// Get returns the bit at index i.
func (bmap *Bitmap) Get(i int) bool { return bitutil.BitIsSet(bmap.Bytes(), i) }

// Append appends value to bmap.
func (bmap *Bitmap) Append(value bool) {
	bmap.Grow(1)
	i := bmap.len
	bmap.setLen(i + 1)
	bitutil.SetBitTo(bmap.buf.Bytes(), i, value)
}

// AppendValues appends all of values to bmap.
func (bmap *Bitmap) AppendValues(values ...bool) {
	bmap.Grow(len(values))
	for _, v := range values {
		bmap.Append(v)
	}
}

// AppendCount appends value to bmap count times.
func (bmap *Bitmap) AppendCount(value bool, count int) {
	if count <= 0 {
		return
	}
	bmap.Grow(count)

	start := bmap.len
	bmap.setLen(start + count)
	bitutil.SetBitsTo(bmap.buf.Bytes(), int64(start), int64(count), value)
}

// AppendBits appends count bits from src, starting at bit offset.
func (bmap *Bitmap) AppendBits(src []byte, offset, count int) {
	if count <= 0 {
		return
	}
	bmap.Grow(count)

	start := bmap.len
	bmap.setLen(start + count)
	bitutil.CopyBitmap(src, offset, count, bmap.buf.Bytes(), start)
}

// CountSet returns the number of set bits in bmap.
func (bmap *Bitmap) CountSet() int {
	if bmap.len == 0 {
		return 0
	}
	return bitutil.CountSetBits(bmap.Bytes(), 0, bmap.len)
}

// Finish returns the memory of bmap as an arrow buffer owned by the caller
// and resets bmap. The returned buffer is never nil.
func (bmap *Bitmap) Finish() *arrowmemory.Buffer {
	bmap.init()
	buf := bmap.buf

	bmap.buf = nil
	bmap.len = 0
	return buf
}

// Release frees the memory held by bmap. bmap may be reused afterwards.
func (bmap *Bitmap) Release() {
	if bmap.buf != nil {
		bmap.buf.Release()
	}
	bmap.buf = nil
	bmap.len = 0
}
