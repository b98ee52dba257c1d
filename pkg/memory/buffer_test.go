package memory_test

import (
	"testing"

	arrowmemory "github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/grafana/growable/pkg/memory"
)

func TestBuffer_Append(t *testing.T) {
	alloc := arrowmemory.NewCheckedAllocator(arrowmemory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	buf := memory.NewBuffer[int64](alloc, 0)
	defer buf.Release()

	for i := range 100 {
		buf.Append(int64(i))
		require.Equal(t, i+1, buf.Len())
		require.GreaterOrEqual(t, buf.Cap(), buf.Len())
	}

	for i, v := range buf.Data() {
		require.Equal(t, int64(i), v)
	}
}

func TestBuffer_AppendSliceAndCount(t *testing.T) {
	var buf memory.Buffer[uint16]
	defer buf.Release()

	buf.AppendSlice([]uint16{1, 2, 3})
	buf.AppendCount(7, 2)
	buf.AppendSlice(nil)

	require.Equal(t, []uint16{1, 2, 3, 7, 7}, buf.Data())
}

func TestBuffer_Finish(t *testing.T) {
	alloc := arrowmemory.NewCheckedAllocator(arrowmemory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	buf := memory.NewBuffer[int32](alloc, 4)
	buf.AppendSlice([]int32{5, 6, 7})

	out := buf.Finish()
	require.Equal(t, 12, out.Len())
	require.Equal(t, 0, buf.Len())
	out.Release()

	// An empty buffer still finishes into a valid, empty arrow buffer.
	empty := buf.Finish()
	require.NotNil(t, empty)
	require.Equal(t, 0, empty.Len())
	empty.Release()
}
