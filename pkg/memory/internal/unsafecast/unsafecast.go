// Package unsafecast reinterprets the memory of Arrow buffers as typed
// slices without copying.
package unsafecast

import "unsafe"

// Sizeof returns the size of T in bytes.
func Sizeof[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Slice reinterprets in as a slice of To. The length and capacity of the
// result are scaled by the sizes of From and To; trailing bytes that do not
// form a whole To are dropped.
//
// The caller must ensure that the memory behind in is suitably aligned for
// To. Buffers handed out by arrow allocators are 64-byte aligned.
func Slice[From, To any](in []From) []To {
	if cap(in) == 0 {
		return nil
	}

	var (
		fromSize = Sizeof[From]()
		toSize   = Sizeof[To]()

		toLen = len(in) * fromSize / toSize
		toCap = cap(in) * fromSize / toSize
	)

	ptr := (*To)(unsafe.Pointer(unsafe.SliceData(in)))
	return unsafe.Slice(ptr, toCap)[:toLen]
}

// FromBytes returns the memory of in viewed as a slice of T.
func FromBytes[T any](in []byte) []T { return Slice[byte, T](in) }
