// Package arrowio reads and writes Arrow record batches in the Arrow IPC
// formats.
package arrowio

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// fileMagic starts every file in the Arrow IPC file format. Anything else
// is read as the IPC stream format.
var fileMagic = []byte("ARROW1")

// ReadFiles reads every record batch from the Arrow IPC files at paths,
// reading up to concurrency files at once. Both the IPC file and the IPC
// stream formats are accepted.
//
// Batches are returned in the order of paths, then in the order they appear
// in each file. The caller owns the returned batches. If any file fails to
// read, ReadFiles returns the first error and no batches.
func ReadFiles(ctx context.Context, alloc memory.Allocator, paths []string, concurrency int) ([]arrow.RecordBatch, error) {
	return ReadFilesFS(ctx, afero.NewOsFs(), alloc, paths, concurrency)
}

// ReadFilesFS is like [ReadFiles] but reads paths from fsys.
func ReadFilesFS(ctx context.Context, fsys afero.Fs, alloc memory.Allocator, paths []string, concurrency int) ([]arrow.RecordBatch, error) {
	results := make([][]arrow.RecordBatch, len(paths))
	defer func() {
		for _, batches := range results {
			releaseAll(batches)
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for i, path := range paths {
		g.Go(func() error {
			batches, err := readFile(ctx, fsys, alloc, path)
			if err != nil {
				return err
			}
			results[i] = batches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []arrow.RecordBatch
	for i, batches := range results {
		out = append(out, batches...)
		results[i] = nil
	}
	return out, nil
}

func readFile(ctx context.Context, fsys afero.Fs, alloc memory.Allocator, path string) ([]arrow.RecordBatch, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	magic := make([]byte, len(fileMagic))
	n, err := io.ReadFull(f, magic)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var batches []arrow.RecordBatch
	if n == len(fileMagic) && bytes.Equal(magic, fileMagic) {
		batches, err = readFileFormat(ctx, alloc, f)
	} else {
		batches, err = readStreamFormat(ctx, alloc, f)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return batches, nil
}

func readFileFormat(ctx context.Context, alloc memory.Allocator, f afero.File) ([]arrow.RecordBatch, error) {
	rdr, err := ipc.NewFileReader(f, ipc.WithAllocator(alloc))
	if err != nil {
		return nil, err
	}
	defer rdr.Close()

	batches := make([]arrow.RecordBatch, 0, rdr.NumRecords())
	for i := range rdr.NumRecords() {
		if err := ctx.Err(); err != nil {
			releaseAll(batches)
			return nil, err
		}

		rec, err := rdr.Record(i)
		if err != nil {
			releaseAll(batches)
			return nil, err
		}
		rec.Retain()
		batches = append(batches, rec)
	}
	return batches, nil
}

func readStreamFormat(ctx context.Context, alloc memory.Allocator, r io.Reader) ([]arrow.RecordBatch, error) {
	rdr, err := ipc.NewReader(r, ipc.WithAllocator(alloc))
	if err != nil {
		return nil, err
	}
	defer rdr.Release()

	var batches []arrow.RecordBatch
	for rdr.Next() {
		if err := ctx.Err(); err != nil {
			releaseAll(batches)
			return nil, err
		}

		rec := rdr.Record()
		rec.Retain()
		batches = append(batches, rec)
	}
	if err := rdr.Err(); err != nil {
		releaseAll(batches)
		return nil, err
	}
	return batches, nil
}

func releaseAll(batches []arrow.RecordBatch) {
	for _, batch := range batches {
		batch.Release()
	}
}

// Compression is a codec for the buffers of written record batches.
type Compression string

// Supported compression codecs.
const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// ParseCompression returns the Compression named by s. The empty string
// means no compression.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(s); c {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd, CompressionLZ4:
		return c, nil
	default:
		return "", fmt.Errorf("unsupported compression %q", s)
	}
}

func (c Compression) options() []ipc.Option {
	switch c {
	case CompressionZstd:
		return []ipc.Option{ipc.WithZstd()}
	case CompressionLZ4:
		return []ipc.Option{ipc.WithLZ4()}
	default:
		return nil
	}
}

// Writer writes record batches to an underlying writer in the Arrow IPC
// stream format.
type Writer struct {
	w   *countingWriter
	ipc *ipc.Writer

	rows int64
}

// NewWriter returns a Writer that writes batches of the given schema to w.
// Call [Writer.Close] to write the end-of-stream marker.
func NewWriter(w io.Writer, schema *arrow.Schema, alloc memory.Allocator) *Writer {
	return NewCompressedWriter(w, schema, alloc, CompressionNone)
}

// NewCompressedWriter is like [NewWriter] but compresses the buffers of
// written batches with codec.
func NewCompressedWriter(w io.Writer, schema *arrow.Schema, alloc memory.Allocator, codec Compression) *Writer {
	cw := &countingWriter{w: w}
	opts := append([]ipc.Option{ipc.WithSchema(schema), ipc.WithAllocator(alloc)}, codec.options()...)
	return &Writer{
		w:   cw,
		ipc: ipc.NewWriter(cw, opts...),
	}
}

// Write writes batch, whose schema must match the schema of the Writer.
func (w *Writer) Write(batch arrow.RecordBatch) error {
	if err := w.ipc.Write(batch); err != nil {
		return err
	}
	w.rows += batch.NumRows()
	return nil
}

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int64 { return w.rows }

// BytesWritten returns the number of bytes written to the underlying writer
// so far.
func (w *Writer) BytesWritten() int64 { return w.w.n }

// Close writes the end-of-stream marker. It does not close the underlying
// writer.
func (w *Writer) Close() error { return w.ipc.Close() }

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
