// Package batcher accumulates Arrow record batches and merges them into
// larger batches of a target size.
package batcher

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/growable/pkg/compute"
)

var (
	// ErrBatcherFull is returned by [Batcher.Append] when the batcher has
	// reached its target and must be flushed before accepting more data.
	ErrBatcherFull = errors.New("batcher full")

	// ErrBatcherEmpty is returned by [Batcher.Flush] when there is nothing to
	// flush.
	ErrBatcherEmpty = errors.New("batcher empty")
)

// A Batcher buffers record batches until they reach a configured number of
// rows or in-memory size, then merges them into one batch on
// [Batcher.Flush]. Batches with differing schemas are merged into the union
// of their schemas, with missing columns filled with nulls.
//
// Methods on Batcher are not goroutine-safe; callers are responsible for
// synchronizing calls.
type Batcher struct {
	cfg     Config
	alloc   memory.Allocator
	logger  log.Logger
	metrics *Metrics

	buffer []arrow.RecordBatch
	rows   int
	size   int
}

// New creates a new Batcher. Merged batches are allocated from alloc. If
// metrics is nil, a new unregistered set is created.
//
// New returns an error if cfg is invalid.
func New(cfg Config, alloc memory.Allocator, logger log.Logger, metrics *Metrics) (*Batcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}

	return &Batcher{
		cfg:     cfg,
		alloc:   alloc,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Append buffers batch. The batcher retains batch until it is flushed or
// reset.
//
// Append returns [ErrBatcherFull] if the batcher already holds data and
// batch would take it past its target. Once full, call [Batcher.Flush] and
// then call Append again with the same batch. A batch appended to an empty
// batcher is always accepted, however large.
func (b *Batcher) Append(batch arrow.RecordBatch) error {
	rows, size := int(batch.NumRows()), batchSize(batch)
	if len(b.buffer) > 0 && (b.rows+rows > b.cfg.MaxRows || b.size+size > int(b.cfg.TargetSize)) {
		return ErrBatcherFull
	}

	batch.Retain()
	b.buffer = append(b.buffer, batch)
	b.rows += rows
	b.size += size

	b.metrics.appendsTotal.Inc()
	b.metrics.rowsTotal.Add(float64(rows))
	b.metrics.bufferedRows.Set(float64(b.rows))
	b.metrics.bufferedBytes.Set(float64(b.size))
	return nil
}

// batchSize returns the in-memory size of the buffers referenced by batch.
func batchSize(batch arrow.RecordBatch) int {
	var size int
	for _, col := range batch.Columns() {
		size += int(col.Data().SizeInBytes())
	}
	return size
}

// Rows returns the number of buffered rows.
func (b *Batcher) Rows() int { return b.rows }

// Size returns the in-memory size of buffered batches in bytes.
func (b *Batcher) Size() int { return b.size }

// Flush merges the buffered batches into a single batch owned by the caller,
// then resets the batcher. Flush returns [ErrBatcherEmpty] if no batches are
// buffered.
//
// If merging fails, the buffered batches are kept so the caller can decide
// whether to [Batcher.Reset].
func (b *Batcher) Flush() (arrow.RecordBatch, error) {
	if len(b.buffer) == 0 {
		return nil, ErrBatcherEmpty
	}

	timer := prometheus.NewTimer(b.metrics.flushTime)
	merged, err := compute.ConcatenateRecords(b.alloc, b.buffer)
	timer.ObserveDuration()
	if err != nil {
		b.metrics.flushFailures.Inc()
		return nil, fmt.Errorf("merging batches: %w", err)
	}

	level.Debug(b.logger).Log("msg", "flushed batch", "inputs", len(b.buffer), "rows", merged.NumRows(), "columns", merged.NumCols())
	b.metrics.flushesTotal.Inc()

	b.Reset()
	return merged, nil
}

// Reset discards buffered batches.
func (b *Batcher) Reset() {
	for _, batch := range b.buffer {
		batch.Release()
	}
	clear(b.buffer)
	b.buffer = b.buffer[:0]

	b.rows = 0
	b.size = 0
	b.metrics.bufferedRows.Set(0)
	b.metrics.bufferedBytes.Set(0)
}

// Release discards buffered batches. The batcher must not be used
// afterwards.
func (b *Batcher) Release() {
	b.Reset()
	b.buffer = nil
}

// RegisterMetrics registers metrics about the batcher to report to reg.
func (b *Batcher) RegisterMetrics(reg prometheus.Registerer) error {
	return b.metrics.Register(reg)
}

// UnregisterMetrics unregisters metrics about the batcher from reg.
func (b *Batcher) UnregisterMetrics(reg prometheus.Registerer) {
	b.metrics.Unregister(reg)
}
