package growable

import (
	"github.com/apache/arrow-go/v18/arrow"
	arrowmemory "github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/growable/pkg/memory"
)

// prepareValidity returns a validity bitmap when validity is tracked, or nil
// otherwise.
func prepareValidity(alloc arrowmemory.Allocator, useValidity bool, capacity int) *memory.Bitmap {
	if !useValidity {
		return nil
	}
	validity := memory.NewBitmap(alloc, capacity)
	return &validity
}

// extendValidity appends the validity of entries [start, start+length) of
// arr to validity. Sources without a validity bitmap contribute set bits,
// or unset bits if every entry is null (as for arrays of the null type).
func extendValidity(validity *memory.Bitmap, arr arrow.Array, start, length int) {
	if validity == nil {
		return
	}

	bits := arr.NullBitmapBytes()
	if bits == nil || arr.NullN() == 0 {
		validity.AppendCount(arr.NullN() == 0, length)
		return
	}
	validity.AppendBits(bits, arr.Data().Offset()+start, length)
}

// appendNulls appends n unset bits to validity, panicking with
// [ErrNoValidity] if validity is not tracked.
func appendNulls(validity *memory.Bitmap, n int) {
	checkNulls(n)
	if validity == nil {
		if n == 0 {
			return
		}
		panic(ErrNoValidity)
	}
	validity.AppendCount(false, n)
}

// finishValidity hands over the validity buffer along with its null count.
// It returns a nil buffer if validity is not tracked.
func finishValidity(validity *memory.Bitmap) (*arrowmemory.Buffer, int) {
	if validity == nil {
		return nil, 0
	}
	nulls := validity.Len() - validity.CountSet()
	return validity.Finish(), nulls
}

func releaseBuffers(bufs ...*arrowmemory.Buffer) {
	for _, buf := range bufs {
		if buf != nil {
			buf.Release()
		}
	}
}
