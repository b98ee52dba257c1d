package unsafecast_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grafana/growable/pkg/memory/internal/unsafecast"
)

func TestSlice(t *testing.T) {
	in := []int32{1, 2, 3, 4}

	raw := unsafecast.Slice[int32, byte](in)
	require.Len(t, raw, 16)

	back := unsafecast.FromBytes[int32](raw)
	require.Equal(t, in, back)

	wide := unsafecast.Slice[int32, int64](in)
	require.Len(t, wide, 2, "four int32s cover two int64s")
}

func TestSlice_Empty(t *testing.T) {
	require.Nil(t, unsafecast.FromBytes[int64](nil))
}

func TestSlice_TrailingBytes(t *testing.T) {
	raw := make([]byte, 10)
	require.Len(t, unsafecast.FromBytes[int32](raw), 2, "partial trailing element is dropped")
}
