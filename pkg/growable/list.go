package growable

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowmemory "github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/growable/pkg/memory"
)

// list is a Growable for LIST (T = int32) and LARGE_LIST (T = int64) arrays.
type list[T memory.Offset] struct {
	arrays []array.ListLike
	dtype  arrow.DataType

	validity *memory.Bitmap
	offsets  *memory.Offsets[T]
	values   Growable
}

func newList[T memory.Offset](alloc arrowmemory.Allocator, arrays []arrow.Array, useValidity bool, capacity int) (*list[T], error) {
	useValidity = useValidity || hasNulls(arrays)

	sources := castArrays[array.ListLike](arrays)
	children := make([]arrow.Array, len(sources))
	for i, arr := range sources {
		children[i] = arr.ListValues()
	}
	values, err := New(alloc, children, useValidity, 0)
	if err != nil {
		return nil, fmt.Errorf("list values: %w", err)
	}

	return &list[T]{
		arrays: sources,
		dtype:  arrays[0].DataType(),

		validity: prepareValidity(alloc, useValidity, capacity),
		offsets:  memory.NewOffsets[T](alloc, capacity),
		values:   values,
	}, nil
}

func (g *list[T]) Extend(index, start, length int) {
	src := source(g.arrays, index, start, length)
	if length == 0 {
		return
	}

	extendValidity(g.validity, src, start, length)

	offsets := rawOffsets[T](src)[start : start+length+1]
	g.offsets.ExtendFrom(offsets)

	childStart, childEnd := int(offsets[0]), int(offsets[length])
	g.values.Extend(index, childStart, childEnd-childStart)
}

func (g *list[T]) ExtendNulls(n int) {
	appendNulls(g.validity, n)
	g.offsets.ExtendConstant(n)
}

func (g *list[T]) Len() int { return g.offsets.Len() }

func (g *list[T]) NewArray() arrow.Array {
	data := g.NewData()
	defer data.Release()
	return array.MakeFromData(data)
}

func (g *list[T]) NewData() arrow.ArrayData {
	values := g.values.NewData()
	defer values.Release()

	length := g.offsets.Len()
	offsets := g.offsets.Finish()
	validity, nulls := finishValidity(g.validity)
	defer releaseBuffers(validity, offsets)

	return array.NewData(g.dtype, length, []*arrowmemory.Buffer{validity, offsets}, []arrow.ArrayData{values}, nulls, 0)
}

func (g *list[T]) Release() {
	if g.validity != nil {
		g.validity.Release()
	}
	g.offsets.Release()
	g.values.Release()
}

// fixedSizeList is a Growable for FIXED_SIZE_LIST arrays. Entries have no
// offsets; entry i spans child values [i*size, (i+1)*size).
type fixedSizeList struct {
	arrays []*array.FixedSizeList
	dtype  *arrow.FixedSizeListType
	size   int

	validity *memory.Bitmap
	values   Growable
	length   int
}

func newFixedSizeList(alloc arrowmemory.Allocator, arrays []arrow.Array, useValidity bool, capacity int) (*fixedSizeList, error) {
	useValidity = useValidity || hasNulls(arrays)

	dtype := arrays[0].DataType().(*arrow.FixedSizeListType)
	size := int(dtype.Len())

	sources := castArrays[*array.FixedSizeList](arrays)
	children := make([]arrow.Array, len(sources))
	for i, arr := range sources {
		children[i] = arr.ListValues()
	}
	values, err := New(alloc, children, useValidity, capacity*size)
	if err != nil {
		return nil, fmt.Errorf("fixed size list values: %w", err)
	}

	return &fixedSizeList{
		arrays: sources,
		dtype:  dtype,
		size:   size,

		validity: prepareValidity(alloc, useValidity, capacity),
		values:   values,
	}, nil
}

func (g *fixedSizeList) Extend(index, start, length int) {
	src := source(g.arrays, index, start, length)
	if length == 0 {
		return
	}

	extendValidity(g.validity, src, start, length)

	// The child array is not sliced along with the list.
	childStart := (src.Data().Offset() + start) * g.size
	g.values.Extend(index, childStart, length*g.size)
	g.length += length
}

func (g *fixedSizeList) ExtendNulls(n int) {
	appendNulls(g.validity, n)
	g.values.ExtendNulls(n * g.size)
	g.length += n
}

func (g *fixedSizeList) Len() int { return g.length }

func (g *fixedSizeList) NewArray() arrow.Array {
	data := g.NewData()
	defer data.Release()
	return array.MakeFromData(data)
}

func (g *fixedSizeList) NewData() arrow.ArrayData {
	values := g.values.NewData()
	defer values.Release()

	validity, nulls := finishValidity(g.validity)
	defer releaseBuffers(validity)

	length := g.length
	g.length = 0

	return array.NewData(g.dtype, length, []*arrowmemory.Buffer{validity}, []arrow.ArrayData{values}, nulls, 0)
}

func (g *fixedSizeList) Release() {
	if g.validity != nil {
		g.validity.Release()
	}
	g.values.Release()
}
