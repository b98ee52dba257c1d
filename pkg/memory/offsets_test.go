package memory_test

import (
	"math"
	"testing"

	arrowmemory "github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/grafana/growable/pkg/memory"
)

func TestOffsets_ExtendFrom(t *testing.T) {
	alloc := arrowmemory.NewCheckedAllocator(arrowmemory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	offsets := memory.NewOffsets[int32](alloc, 8)
	defer offsets.Release()

	require.Equal(t, 0, offsets.Len())
	require.Equal(t, []int32{0}, offsets.Data())

	// Source boundaries use their own numbering; only entry lengths carry
	// over.
	offsets.ExtendFrom([]int32{10, 12, 12, 15})
	require.Equal(t, []int32{0, 2, 2, 5}, offsets.Data())

	offsets.ExtendFrom([]int32{2, 2, 5})
	require.Equal(t, []int32{0, 2, 2, 5, 5, 8}, offsets.Data())
	require.Equal(t, 5, offsets.Len())
	require.Equal(t, int32(8), offsets.Last())
}

func TestOffsets_ExtendFrom_SingleBoundary(t *testing.T) {
	offsets := memory.NewOffsets[int64](nil, 0)
	defer offsets.Release()

	offsets.ExtendFrom([]int64{4, 9})
	offsets.ExtendFrom([]int64{9})
	offsets.ExtendFrom(nil)

	require.Equal(t, []int64{0, 5}, offsets.Data(), "a lone boundary delimits no entries")
}

func TestOffsets_ExtendConstant(t *testing.T) {
	offsets := memory.NewOffsets[int32](nil, 0)
	defer offsets.Release()

	offsets.ExtendFrom([]int32{0, 3})
	offsets.ExtendConstant(2)
	offsets.ExtendConstant(0)

	require.Equal(t, []int32{0, 3, 3, 3}, offsets.Data())
	require.Equal(t, 3, offsets.Len())
}

func TestOffsets_Overflow(t *testing.T) {
	offsets := memory.NewOffsets[int32](nil, 0)
	defer offsets.Release()

	offsets.ExtendFrom([]int32{0, math.MaxInt32 - 1})

	require.PanicsWithError(t, "offset overflow: appending an entry of length 2 after boundary 2147483646", func() {
		offsets.ExtendFrom([]int32{0, 2})
	})
}

func TestOffsets_Decreasing(t *testing.T) {
	offsets := memory.NewOffsets[int32](nil, 0)
	defer offsets.Release()

	require.Panics(t, func() { offsets.ExtendFrom([]int32{5, 3}) })
}

func TestOffsets_Finish(t *testing.T) {
	alloc := arrowmemory.NewCheckedAllocator(arrowmemory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	offsets := memory.NewOffsets[int32](alloc, 2)
	offsets.ExtendFrom([]int32{0, 1, 3})

	buf := offsets.Finish()
	require.Equal(t, 12, buf.Len(), "three int32 boundaries")
	buf.Release()

	require.Equal(t, []int32{0}, offsets.Data(), "finish resets to the leading zero")
	offsets.Release()
}
