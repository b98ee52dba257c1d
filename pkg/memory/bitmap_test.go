package memory_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/bitutil"
	arrowmemory "github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/grafana/growable/pkg/memory"
)

func bitsOf(bmap *memory.Bitmap) []bool {
	out := make([]bool, bmap.Len())
	for i := range out {
		out[i] = bmap.Get(i)
	}
	return out
}

func TestBitmap_ZeroValue(t *testing.T) {
	var bmap memory.Bitmap
	defer bmap.Release()

	require.Equal(t, 0, bmap.Len())
	require.Equal(t, 0, bmap.Cap())
	require.Nil(t, bmap.Bytes())

	// 20 appends cross several byte boundaries and force reallocations.
	for i := range 20 {
		bmap.Append(i%3 == 0)
		require.Equal(t, i+1, bmap.Len())
		require.GreaterOrEqual(t, bmap.Cap(), bmap.Len())
	}
	for i, bit := range bitsOf(&bmap) {
		require.Equal(t, i%3 == 0, bit, "bit %d", i)
	}
	require.Equal(t, 7, bmap.CountSet())
}

func TestBitmap_AppendCount(t *testing.T) {
	alloc := arrowmemory.NewCheckedAllocator(arrowmemory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	bmap := memory.NewBitmap(alloc, 4)
	defer bmap.Release()

	bmap.AppendCount(true, 3)
	bmap.AppendCount(false, 0)
	bmap.AppendCount(false, 2)
	bmap.AppendCount(true, 11)

	require.Equal(t, 16, bmap.Len())
	require.Equal(t, 14, bmap.CountSet())
	require.False(t, bmap.Get(3))
	require.False(t, bmap.Get(4))
	require.True(t, bmap.Get(15))
}

func TestBitmap_AppendBits(t *testing.T) {
	// LSB-first: bits 0..9 are 1,0,1,1,0,0,1,0 | 1,1.
	src := []byte{0b01001101, 0b00000011}

	tt := []struct {
		name   string
		prefix []bool
		offset int
		count  int
		expect []bool
	}{
		{
			name:   "aligned",
			offset: 0,
			count:  4,
			expect: []bool{true, false, true, true},
		},
		{
			name:   "unaligned source",
			offset: 3,
			count:  6,
			expect: []bool{true, false, false, true, false, true},
		},
		{
			name:   "unaligned destination",
			prefix: []bool{false, true, true},
			offset: 6,
			count:  4,
			expect: []bool{false, true, true, true, false, true, true},
		},
		{
			name:   "empty range",
			prefix: []bool{true},
			offset: 5,
			count:  0,
			expect: []bool{true},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			alloc := arrowmemory.NewCheckedAllocator(arrowmemory.DefaultAllocator)
			defer alloc.AssertSize(t, 0)

			bmap := memory.NewBitmap(alloc, 0)
			defer bmap.Release()

			bmap.AppendValues(tc.prefix...)
			bmap.AppendBits(src, tc.offset, tc.count)

			require.Equal(t, tc.expect, bitsOf(&bmap))
		})
	}
}

func TestBitmap_Finish(t *testing.T) {
	alloc := arrowmemory.NewCheckedAllocator(arrowmemory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	bmap := memory.NewBitmap(alloc, 16)
	defer bmap.Release()

	bmap.AppendCount(true, 10)

	buf := bmap.Finish()
	require.Equal(t, 2, buf.Len(), "10 bits are packed into 2 bytes")
	require.Equal(t, 10, bitutil.CountSetBits(buf.Bytes(), 0, 10))
	buf.Release()

	require.Equal(t, 0, bmap.Len(), "finishing resets the bitmap")

	bmap.Append(true)
	require.True(t, bmap.Get(0))

	// Finishing an empty bitmap still hands over a buffer.
	var empty memory.Bitmap
	emptyBuf := empty.Finish()
	require.NotNil(t, emptyBuf)
	require.Equal(t, 0, emptyBuf.Len())
	emptyBuf.Release()
}
