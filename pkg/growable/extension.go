package growable

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowmemory "github.com/apache/arrow-go/v18/arrow/memory"
)

// extension is a Growable for extension arrays. It grows their storage and
// restores the extension type on the result.
type extension struct {
	dtype   arrow.ExtensionType
	storage Growable
}

func newExtension(alloc arrowmemory.Allocator, arrays []arrow.Array, useValidity bool, capacity int) (*extension, error) {
	storage := make([]arrow.Array, len(arrays))
	for i, arr := range arrays {
		storage[i] = arr.(array.ExtensionArray).Storage()
	}

	g, err := New(alloc, storage, useValidity, capacity)
	if err != nil {
		return nil, err
	}
	return &extension{
		dtype:   arrays[0].DataType().(arrow.ExtensionType),
		storage: g,
	}, nil
}

func (g *extension) Extend(index, start, length int) { g.storage.Extend(index, start, length) }
func (g *extension) ExtendNulls(n int)               { g.storage.ExtendNulls(n) }
func (g *extension) Len() int                        { return g.storage.Len() }

func (g *extension) NewArray() arrow.Array {
	data := g.NewData()
	defer data.Release()
	return array.MakeFromData(data)
}

func (g *extension) NewData() arrow.ArrayData {
	storage := g.storage.NewData()
	defer storage.Release()

	var (
		buffers  = storage.Buffers()
		children = storage.Children()
	)
	if dict, ok := storage.Dictionary().(*array.Data); ok && dict != nil {
		return array.NewDataWithDictionary(g.dtype, storage.Len(), buffers, storage.NullN(), storage.Offset(), dict)
	}
	return array.NewData(g.dtype, storage.Len(), buffers, children, storage.NullN(), storage.Offset())
}

func (g *extension) Release() { g.storage.Release() }
