package growable

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowmemory "github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/growable/pkg/memory"
)

// Map is a [Growable] for map arrays.
//
// A map array is a list of key/value entries: an offset sequence over a flat
// child struct array of keys and values, plus an optional validity bitmap.
// Map keeps the three in lock-step: every extend advances the offsets, the
// validity, and a child Growable over the entries of the sources, so that
// the child's length always equals the trailing offset.
type Map struct {
	arrays []*array.Map
	dtype  *arrow.MapType

	validity *memory.Bitmap // nil when validity is not tracked.
	offsets  *memory.Offsets[int32]
	entries  Growable
}

var _ Growable = (*Map)(nil)

// NewMap returns a Map growable over arrays, which must all have the same
// map type. Capacity is the number of map entries the result is expected
// to hold; the child growable sizes itself from the copied ranges.
//
// Validity is tracked if useValidity is set or if any of arrays has nulls.
//
// NewMap panics if arrays is empty.
func NewMap(alloc arrowmemory.Allocator, arrays []*array.Map, useValidity bool, capacity int) (*Map, error) {
	if err := checkTypes(arrays); err != nil {
		return nil, err
	}

	// A null from any source must be representable no matter which source
	// ends up being copied from.
	useValidity = useValidity || hasNulls(arrays)

	children := make([]arrow.Array, len(arrays))
	for i, arr := range arrays {
		children[i] = arr.ListValues()
	}
	entries, err := New(alloc, children, useValidity, 0)
	if err != nil {
		return nil, fmt.Errorf("map entries: %w", err)
	}

	return &Map{
		arrays: arrays,
		dtype:  arrays[0].DataType().(*arrow.MapType),

		validity: prepareValidity(alloc, useValidity, capacity),
		offsets:  memory.NewOffsets[int32](alloc, capacity),
		entries:  entries,
	}, nil
}

// Extend copies length map entries starting at entry start of the source at
// index, along with the key/value pairs they span.
func (g *Map) Extend(index, start, length int) {
	src := source(g.arrays, index, start, length)
	if length == 0 {
		return
	}

	extendValidity(g.validity, src, start, length)

	offsets := rawOffsets[int32](src)[start : start+length+1]
	g.offsets.ExtendFrom(offsets)

	// The source's own boundaries locate the key/value pairs within its
	// child array.
	childStart, childEnd := int(offsets[0]), int(offsets[length])
	g.entries.Extend(index, childStart, childEnd-childStart)
}

// ExtendNulls appends n null map entries, each spanning no key/value pairs.
func (g *Map) ExtendNulls(n int) {
	appendNulls(g.validity, n)
	g.offsets.ExtendConstant(n)
}

// Len returns the number of map entries in g.
func (g *Map) Len() int { return g.offsets.Len() }

// NewMapArray finishes g into a new map array and resets g.
func (g *Map) NewMapArray() *array.Map {
	data := g.NewData()
	defer data.Release()
	return array.NewMapData(data)
}

// NewArray implements [Growable].
func (g *Map) NewArray() arrow.Array { return g.NewMapArray() }

// NewData implements [Growable].
func (g *Map) NewData() arrow.ArrayData {
	entries := g.entries.NewData()
	defer entries.Release()

	length := g.offsets.Len()
	offsets := g.offsets.Finish()
	validity, nulls := finishValidity(g.validity)
	defer releaseBuffers(validity, offsets)

	return array.NewData(
		g.dtype,
		length,
		[]*arrowmemory.Buffer{validity, offsets},
		[]arrow.ArrayData{entries},
		nulls,
		0,
	)
}

// Release implements [Growable].
func (g *Map) Release() {
	if g.validity != nil {
		g.validity.Release()
	}
	g.offsets.Release()
	g.entries.Release()
}
