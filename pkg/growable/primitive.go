package growable

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowmemory "github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/growable/pkg/memory"
)

// fixedWidth is a Growable for every type whose values occupy a whole number
// of bytes: integers, floats, temporal types, intervals, decimals, and
// fixed-size binary. Values are copied as raw bytes.
type fixedWidth struct {
	arrays []arrow.Array
	dtype  arrow.DataType
	width  int

	validity *memory.Bitmap
	values   *memory.Buffer[byte]
}

func newFixedWidth(alloc arrowmemory.Allocator, arrays []arrow.Array, width int, useValidity bool, capacity int) *fixedWidth {
	useValidity = useValidity || hasNulls(arrays)

	return &fixedWidth{
		arrays: arrays,
		dtype:  arrays[0].DataType(),
		width:  width,

		validity: prepareValidity(alloc, useValidity, capacity),
		values:   memory.NewBuffer[byte](alloc, capacity*width),
	}
}

func (g *fixedWidth) Extend(index, start, length int) {
	src := source(g.arrays, index, start, length)
	if length == 0 {
		return
	}

	extendValidity(g.validity, src, start, length)

	data := src.Data()
	from := (data.Offset() + start) * g.width
	g.values.AppendSlice(data.Buffers()[1].Bytes()[from : from+length*g.width])
}

func (g *fixedWidth) ExtendNulls(n int) {
	appendNulls(g.validity, n)
	g.values.AppendCount(0, n*g.width)
}

func (g *fixedWidth) Len() int { return g.values.Len() / g.width }

func (g *fixedWidth) NewArray() arrow.Array {
	data := g.NewData()
	defer data.Release()
	return array.MakeFromData(data)
}

func (g *fixedWidth) NewData() arrow.ArrayData {
	length := g.Len()
	values := g.values.Finish()
	validity, nulls := finishValidity(g.validity)
	defer releaseBuffers(validity, values)

	return array.NewData(g.dtype, length, []*arrowmemory.Buffer{validity, values}, nil, nulls, 0)
}

func (g *fixedWidth) Release() {
	if g.validity != nil {
		g.validity.Release()
	}
	g.values.Release()
}

// boolean is a Growable for BOOL arrays, whose values are bit-packed.
type boolean struct {
	arrays []arrow.Array

	validity *memory.Bitmap
	values   memory.Bitmap
}

func newBoolean(alloc arrowmemory.Allocator, arrays []arrow.Array, useValidity bool, capacity int) *boolean {
	useValidity = useValidity || hasNulls(arrays)

	return &boolean{
		arrays: arrays,

		validity: prepareValidity(alloc, useValidity, capacity),
		values:   memory.NewBitmap(alloc, capacity),
	}
}

func (g *boolean) Extend(index, start, length int) {
	src := source(g.arrays, index, start, length)
	if length == 0 {
		return
	}

	extendValidity(g.validity, src, start, length)

	data := src.Data()
	g.values.AppendBits(data.Buffers()[1].Bytes(), data.Offset()+start, length)
}

func (g *boolean) ExtendNulls(n int) {
	appendNulls(g.validity, n)
	g.values.AppendCount(false, n)
}

func (g *boolean) Len() int { return g.values.Len() }

func (g *boolean) NewArray() arrow.Array {
	data := g.NewData()
	defer data.Release()
	return array.MakeFromData(data)
}

func (g *boolean) NewData() arrow.ArrayData {
	length := g.values.Len()
	values := g.values.Finish()
	validity, nulls := finishValidity(g.validity)
	defer releaseBuffers(validity, values)

	return array.NewData(arrow.FixedWidthTypes.Boolean, length, []*arrowmemory.Buffer{validity, values}, nil, nulls, 0)
}

func (g *boolean) Release() {
	if g.validity != nil {
		g.validity.Release()
	}
	g.values.Release()
}

// null is a Growable for NULL arrays, which only have a length.
type null struct {
	arrays []arrow.Array
	length int
}

func newNull(arrays []arrow.Array) *null { return &null{arrays: arrays} }

func (g *null) Extend(index, start, length int) {
	source(g.arrays, index, start, length)
	g.length += length
}

func (g *null) ExtendNulls(n int) {
	checkNulls(n)
	g.length += n
}

func (g *null) Len() int { return g.length }

func (g *null) NewArray() arrow.Array {
	data := g.NewData()
	defer data.Release()
	return array.MakeFromData(data)
}

func (g *null) NewData() arrow.ArrayData {
	length := g.length
	g.length = 0
	return array.NewData(arrow.Null, length, []*arrowmemory.Buffer{nil}, nil, length, 0)
}

func (g *null) Release() {}
