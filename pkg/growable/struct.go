package growable

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowmemory "github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/growable/pkg/memory"
)

// structGrowable is a Growable for STRUCT arrays, with one child Growable
// per field.
type structGrowable struct {
	arrays []*array.Struct
	dtype  *arrow.StructType

	validity *memory.Bitmap
	fields   []Growable
	length   int
}

func newStruct(alloc arrowmemory.Allocator, arrays []arrow.Array, useValidity bool, capacity int) (*structGrowable, error) {
	useValidity = useValidity || hasNulls(arrays)

	sources := castArrays[*array.Struct](arrays)
	dtype := arrays[0].DataType().(*arrow.StructType)

	g := &structGrowable{
		arrays:   sources,
		dtype:    dtype,
		validity: prepareValidity(alloc, useValidity, capacity),
		fields:   make([]Growable, 0, dtype.NumFields()),
	}

	for i := range dtype.NumFields() {
		// Field arrays are already sliced to match their struct.
		children := make([]arrow.Array, len(sources))
		for j, arr := range sources {
			children[j] = arr.Field(i)
		}

		field, err := New(alloc, children, useValidity, capacity)
		if err != nil {
			g.Release()
			return nil, fmt.Errorf("struct field %q: %w", dtype.Field(i).Name, err)
		}
		g.fields = append(g.fields, field)
	}
	return g, nil
}

func (g *structGrowable) Extend(index, start, length int) {
	src := source(g.arrays, index, start, length)
	if length == 0 {
		return
	}

	extendValidity(g.validity, src, start, length)
	for _, field := range g.fields {
		field.Extend(index, start, length)
	}
	g.length += length
}

func (g *structGrowable) ExtendNulls(n int) {
	appendNulls(g.validity, n)
	for _, field := range g.fields {
		field.ExtendNulls(n)
	}
	g.length += n
}

func (g *structGrowable) Len() int { return g.length }

func (g *structGrowable) NewArray() arrow.Array {
	data := g.NewData()
	defer data.Release()
	return array.MakeFromData(data)
}

func (g *structGrowable) NewData() arrow.ArrayData {
	children := make([]arrow.ArrayData, len(g.fields))
	for i, field := range g.fields {
		children[i] = field.NewData()
	}
	defer func() {
		for _, child := range children {
			child.Release()
		}
	}()

	validity, nulls := finishValidity(g.validity)
	defer releaseBuffers(validity)

	length := g.length
	g.length = 0

	return array.NewData(g.dtype, length, []*arrowmemory.Buffer{validity}, children, nulls, 0)
}

func (g *structGrowable) Release() {
	if g.validity != nil {
		g.validity.Release()
	}
	for _, field := range g.fields {
		field.Release()
	}
}
