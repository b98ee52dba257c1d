package growable

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowmemory "github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/growable/pkg/memory"
)

// binary is a Growable for variable-length binary and string arrays, with
// 32-bit (BINARY, STRING) or 64-bit (LARGE_BINARY, LARGE_STRING) offsets.
type binary[T memory.Offset] struct {
	arrays []arrow.Array
	dtype  arrow.DataType

	validity *memory.Bitmap
	offsets  *memory.Offsets[T]
	values   *memory.Buffer[byte]
}

func newBinary[T memory.Offset](alloc arrowmemory.Allocator, arrays []arrow.Array, useValidity bool, capacity int) *binary[T] {
	useValidity = useValidity || hasNulls(arrays)

	return &binary[T]{
		arrays: arrays,
		dtype:  arrays[0].DataType(),

		validity: prepareValidity(alloc, useValidity, capacity),
		offsets:  memory.NewOffsets[T](alloc, capacity),
		values:   memory.NewBuffer[byte](alloc, 0),
	}
}

func (g *binary[T]) Extend(index, start, length int) {
	src := source(g.arrays, index, start, length)
	if length == 0 {
		return
	}

	extendValidity(g.validity, src, start, length)

	offsets := rawOffsets[T](src)[start : start+length+1]
	g.offsets.ExtendFrom(offsets)

	data := src.Data().Buffers()[2].Bytes()
	g.values.AppendSlice(data[offsets[0]:offsets[length]])
}

func (g *binary[T]) ExtendNulls(n int) {
	appendNulls(g.validity, n)
	g.offsets.ExtendConstant(n)
}

func (g *binary[T]) Len() int { return g.offsets.Len() }

func (g *binary[T]) NewArray() arrow.Array {
	data := g.NewData()
	defer data.Release()
	return array.MakeFromData(data)
}

func (g *binary[T]) NewData() arrow.ArrayData {
	length := g.offsets.Len()
	offsets := g.offsets.Finish()
	values := g.values.Finish()
	validity, nulls := finishValidity(g.validity)
	defer releaseBuffers(validity, offsets, values)

	return array.NewData(g.dtype, length, []*arrowmemory.Buffer{validity, offsets, values}, nil, nulls, 0)
}

func (g *binary[T]) Release() {
	if g.validity != nil {
		g.validity.Release()
	}
	g.offsets.Release()
	g.values.Release()
}
