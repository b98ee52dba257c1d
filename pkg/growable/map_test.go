package growable_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowmemory "github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/grafana/growable/pkg/growable"
)

var mapType = arrow.MapOf(arrow.BinaryTypes.String, arrow.PrimitiveTypes.Int64)

func newMap(t *testing.T, alloc arrowmemory.Allocator, data string) *array.Map {
	t.Helper()
	return fromJSON(t, alloc, mapType, data).(*array.Map)
}

func validityOf(arr arrow.Array) []bool {
	out := make([]bool, arr.Len())
	for i := range out {
		out[i] = arr.IsValid(i)
	}
	return out
}

func TestMap_Validity(t *testing.T) {
	alloc := arrowmemory.NewCheckedAllocator(arrowmemory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	a := newMap(t, alloc, `[[{"key": "a", "value": 1}], [], [{"key": "b", "value": 2}]]`)
	defer a.Release()
	b := newMap(t, alloc, `[null, [{"key": "c", "value": 3}]]`)
	defer b.Release()

	g, err := growable.NewMap(alloc, []*array.Map{a, b}, false, 0)
	require.NoError(t, err)
	defer g.Release()

	g.Extend(0, 0, 3)
	g.Extend(1, 0, 2)
	require.Equal(t, 5, g.Len())

	actual := g.NewMapArray()
	defer actual.Release()

	require.Equal(t, []bool{true, true, true, false, true}, validityOf(actual))
	require.Equal(t, []int32{0, 1, 1, 2, 2, 3}, actual.Offsets())
	require.Equal(t, 3, actual.Keys().Len())
}

func TestMap_Offsets(t *testing.T) {
	alloc := arrowmemory.NewCheckedAllocator(arrowmemory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	// Entry boundaries [0, 2, 2, 5].
	src := newMap(t, alloc, `[
		[{"key": "a", "value": 1}, {"key": "b", "value": 2}],
		[],
		[{"key": "c", "value": 3}, {"key": "d", "value": 4}, {"key": "e", "value": 5}]
	]`)
	defer src.Release()
	require.Equal(t, []int32{0, 2, 2, 5}, src.Offsets())

	g, err := growable.NewMap(alloc, []*array.Map{src}, false, 0)
	require.NoError(t, err)
	defer g.Release()

	g.Extend(0, 1, 2)

	actual := g.NewMapArray()
	defer actual.Release()

	// Only the key/value pairs in [2, 5) of the source are copied.
	require.Equal(t, []int32{0, 0, 3}, actual.Offsets())
	require.Equal(t, []string{"c", "d", "e"}, stringValues(actual.Keys()))
	require.Equal(t, []int64{3, 4, 5}, actual.Items().(*array.Int64).Int64Values())
}

func TestMap_SlicedSource(t *testing.T) {
	alloc := arrowmemory.NewCheckedAllocator(arrowmemory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	src := newMap(t, alloc, `[
		[{"key": "a", "value": 1}],
		[{"key": "b", "value": 2}, {"key": "c", "value": 3}],
		[{"key": "d", "value": 4}]
	]`)
	defer src.Release()

	sliced := array.NewSlice(src, 1, 3).(*array.Map)
	defer sliced.Release()

	g, err := growable.NewMap(alloc, []*array.Map{sliced}, false, 0)
	require.NoError(t, err)
	defer g.Release()

	g.Extend(0, 0, 1)

	actual := g.NewMapArray()
	defer actual.Release()

	require.Equal(t, []int32{0, 2}, actual.Offsets())
	require.Equal(t, []string{"b", "c"}, stringValues(actual.Keys()))
}

func TestMap_ExtendNulls(t *testing.T) {
	alloc := arrowmemory.NewCheckedAllocator(arrowmemory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	src := newMap(t, alloc, `[[{"key": "a", "value": 1}, {"key": "b", "value": 2}]]`)
	defer src.Release()

	g, err := growable.NewMap(alloc, []*array.Map{src}, true, 4)
	require.NoError(t, err)
	defer g.Release()

	g.Extend(0, 0, 1)
	g.ExtendNulls(2)
	g.Extend(0, 0, 1)

	actual := g.NewMapArray()
	defer actual.Release()

	require.Equal(t, []bool{true, false, false, true}, validityOf(actual))
	require.Equal(t, []int32{0, 2, 2, 2, 4}, actual.Offsets())
	require.Equal(t, 2, actual.NullN())
	require.Equal(t, 4, actual.Keys().Len())
}

func TestMap_Empty(t *testing.T) {
	alloc := arrowmemory.NewCheckedAllocator(arrowmemory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	src := newMap(t, alloc, `[[{"key": "a", "value": 1}]]`)
	defer src.Release()

	g, err := growable.NewMap(alloc, []*array.Map{src}, false, 0)
	require.NoError(t, err)
	defer g.Release()

	g.Extend(0, 0, 0)

	actual := g.NewMapArray()
	defer actual.Release()

	require.Equal(t, 0, actual.Len())
	require.Equal(t, []int32{0}, actual.Offsets())
	require.Equal(t, 0, actual.Keys().Len())
}

func TestMap_Finish(t *testing.T) {
	alloc := arrowmemory.NewCheckedAllocator(arrowmemory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	src := newMap(t, alloc, `[[{"key": "a", "value": 1}], null]`)
	defer src.Release()

	g, err := growable.NewMap(alloc, []*array.Map{src}, false, 0)
	require.NoError(t, err)
	defer g.Release()

	g.Extend(0, 0, 2)

	first := g.NewMapArray()
	defer first.Release()
	require.True(t, array.Equal(src, first))

	// Finishing resets the growable.
	require.Equal(t, 0, g.Len())
	second := g.NewMapArray()
	defer second.Release()
	require.Equal(t, 0, second.Len())
	require.Equal(t, 0, second.NullN())

	g.Extend(0, 1, 1)
	third := g.NewMapArray()
	defer third.Release()
	require.Equal(t, []bool{false}, validityOf(third))
}

func TestMap_TypeMismatch(t *testing.T) {
	alloc := arrowmemory.NewCheckedAllocator(arrowmemory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	a := newMap(t, alloc, `[[{"key": "a", "value": 1}]]`)
	defer a.Release()

	otherType := arrow.MapOf(arrow.BinaryTypes.String, arrow.BinaryTypes.String)
	b := fromJSON(t, alloc, otherType, `[[{"key": "a", "value": "x"}]]`).(*array.Map)
	defer b.Release()

	_, err := growable.NewMap(alloc, []*array.Map{a, b}, false, 0)
	require.ErrorIs(t, err, growable.ErrTypeMismatch)
}

func TestMap_ExtendOutOfBounds(t *testing.T) {
	alloc := arrowmemory.NewCheckedAllocator(arrowmemory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	src := newMap(t, alloc, `[[{"key": "a", "value": 1}]]`)
	defer src.Release()

	g, err := growable.NewMap(alloc, []*array.Map{src}, false, 0)
	require.NoError(t, err)
	defer g.Release()

	requirePanicsIs(t, growable.ErrIndex, func() { g.Extend(0, 0, 2) })
	requirePanicsIs(t, growable.ErrIndex, func() { g.Extend(1, 0, 1) })
	requirePanicsIs(t, growable.ErrNoValidity, func() { g.ExtendNulls(1) })
}
