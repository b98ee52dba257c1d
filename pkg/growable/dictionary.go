package growable

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowmemory "github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/growable/pkg/memory"
)

type dictIndex interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// dictionary is a Growable for DICTIONARY arrays with index type T.
//
// If every source carries an equal dictionary, that dictionary is shared by
// the result and indices are copied as-is. Otherwise the result holds the
// concatenation of the source dictionaries, and the indices of each source
// are shifted past the dictionaries that precede it.
type dictionary[T dictIndex] struct {
	arrays []*array.Dictionary
	dtype  *arrow.DictionaryType

	dict   arrow.Array
	shifts []T // nil when dict is shared.

	validity *memory.Bitmap
	indices  *memory.Buffer[T]
}

func newDictionary(alloc arrowmemory.Allocator, arrays []arrow.Array, useValidity bool, capacity int) (Growable, error) {
	dtype := arrays[0].DataType().(*arrow.DictionaryType)
	switch dtype.IndexType.ID() {
	case arrow.INT8:
		return newDictionaryOf[int8](alloc, arrays, useValidity, capacity)
	case arrow.UINT8:
		return newDictionaryOf[uint8](alloc, arrays, useValidity, capacity)
	case arrow.INT16:
		return newDictionaryOf[int16](alloc, arrays, useValidity, capacity)
	case arrow.UINT16:
		return newDictionaryOf[uint16](alloc, arrays, useValidity, capacity)
	case arrow.INT32:
		return newDictionaryOf[int32](alloc, arrays, useValidity, capacity)
	case arrow.UINT32:
		return newDictionaryOf[uint32](alloc, arrays, useValidity, capacity)
	case arrow.INT64:
		return newDictionaryOf[int64](alloc, arrays, useValidity, capacity)
	case arrow.UINT64:
		return newDictionaryOf[uint64](alloc, arrays, useValidity, capacity)
	default:
		return nil, fmt.Errorf("%w: dictionary index type %s", ErrNotImplemented, dtype.IndexType)
	}
}

func newDictionaryOf[T dictIndex](alloc arrowmemory.Allocator, arrays []arrow.Array, useValidity bool, capacity int) (*dictionary[T], error) {
	useValidity = useValidity || hasNulls(arrays)

	sources := castArrays[*array.Dictionary](arrays)
	g := &dictionary[T]{
		arrays: sources,
		dtype:  arrays[0].DataType().(*arrow.DictionaryType),

		validity: prepareValidity(alloc, useValidity, capacity),
		indices:  memory.NewBuffer[T](alloc, capacity),
	}

	if sharedDictionary(sources) {
		g.dict = sources[0].Dictionary()
		g.dict.Retain()
		return g, nil
	}

	dict, shifts, err := concatDictionaries[T](alloc, sources)
	if err != nil {
		g.Release()
		return nil, err
	}
	g.dict, g.shifts = dict, shifts
	return g, nil
}

func sharedDictionary(arrays []*array.Dictionary) bool {
	first := arrays[0].Dictionary()
	for _, arr := range arrays[1:] {
		dict := arr.Dictionary()
		if dict.Data() == first.Data() {
			continue
		}
		if !array.Equal(first, dict) {
			return false
		}
	}
	return true
}

// concatDictionaries joins the dictionaries of arrays and returns, for each
// source, the amount to add to its indices.
func concatDictionaries[T dictIndex](alloc arrowmemory.Allocator, arrays []*array.Dictionary) (arrow.Array, []T, error) {
	dicts := make([]arrow.Array, len(arrays))
	shifts := make([]T, len(arrays))

	var total int
	for i, arr := range arrays {
		dicts[i] = arr.Dictionary()
		shifts[i] = T(total)
		total += dicts[i].Len()
	}
	if total > 0 && int(T(total-1)) != total-1 {
		return nil, nil, fmt.Errorf("%w: %d dictionary values do not fit in %T indices", ErrOffsetOverflow, total, T(0))
	}

	values, err := New(alloc, dicts, false, total)
	if err != nil {
		return nil, nil, fmt.Errorf("dictionary values: %w", err)
	}
	defer values.Release()

	for i, dict := range dicts {
		values.Extend(i, 0, dict.Len())
	}
	return values.NewArray(), shifts, nil
}

func (g *dictionary[T]) Extend(index, start, length int) {
	src := source(g.arrays, index, start, length)
	if length == 0 {
		return
	}

	extendValidity(g.validity, src, start, length)

	data := src.Data()
	from := data.Offset() + start
	indices := memory.View[T](data.Buffers()[1].Bytes())[from : from+length]

	if g.shifts == nil || g.shifts[index] == 0 {
		g.indices.AppendSlice(indices)
		return
	}

	shift := g.shifts[index]
	g.indices.Grow(length)
	for _, idx := range indices {
		g.indices.Append(idx + shift)
	}
}

func (g *dictionary[T]) ExtendNulls(n int) {
	appendNulls(g.validity, n)
	g.indices.AppendCount(0, n)
}

func (g *dictionary[T]) Len() int { return g.indices.Len() }

func (g *dictionary[T]) NewArray() arrow.Array {
	data := g.NewData()
	defer data.Release()
	return array.MakeFromData(data)
}

func (g *dictionary[T]) NewData() arrow.ArrayData {
	length := g.indices.Len()
	indices := g.indices.Finish()
	validity, nulls := finishValidity(g.validity)
	defer releaseBuffers(validity, indices)

	dict := g.dict.Data().(*array.Data)
	return array.NewDataWithDictionary(g.dtype, length, []*arrowmemory.Buffer{validity, indices}, nulls, 0, dict)
}

func (g *dictionary[T]) Release() {
	if g.validity != nil {
		g.validity.Release()
	}
	g.indices.Release()
	if g.dict != nil {
		g.dict.Release()
		g.dict = nil
	}
}
