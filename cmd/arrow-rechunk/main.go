// Command arrow-rechunk merges the record batches of Arrow IPC files into
// batches of a target size and writes them as a single Arrow IPC stream.
//
// Batches with differing schemas are merged into the union of their
// schemas, filling missing columns with nulls.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/grafana/growable/pkg/arrowio"
	"github.com/grafana/growable/pkg/batcher"
	"github.com/grafana/growable/pkg/compute"
)

func main() {
	cfg, fs, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed parsing config: %v\n", err)
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: arrow-rechunk [flags] <file>...")
		fs.PrintDefaults()
		os.Exit(2)
	}

	logger := newLogger(os.Stderr, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	out := io.Writer(os.Stdout)
	if cfg.Output != "" && cfg.Output != "-" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			level.Error(logger).Log("msg", "failed to create output file", "err", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	reg := prometheus.NewRegistry()
	err = run(ctx, cfg, fs.Args(), out, logger, reg)
	if cfg.MetricsPrint {
		if err := printMetrics(os.Stderr, reg); err != nil {
			level.Warn(logger).Log("msg", "failed to print metrics", "err", err)
		}
	}
	if err != nil {
		level.Error(logger).Log("msg", "rechunk failed", "err", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	// lvl has already been validated.
	allow, _ := levelOption(lvl)
	return level.NewFilter(logger, allow)
}

func printMetrics(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// run reads the batches of every file in paths, merges them, and writes the
// result to out.
func run(ctx context.Context, cfg *Config, paths []string, out io.Writer, logger log.Logger, reg prometheus.Registerer) error {
	start := time.Now()
	alloc := memory.DefaultAllocator

	inputs, err := arrowio.ReadFiles(ctx, alloc, paths, cfg.Concurrency)
	if err != nil {
		return err
	}
	defer func() {
		for _, batch := range inputs {
			batch.Release()
		}
	}()
	if len(inputs) == 0 {
		return errors.New("no record batches in input files")
	}

	var inputRows int64
	for _, batch := range inputs {
		inputRows += batch.NumRows()
	}
	level.Debug(logger).Log("msg", "read input files", "files", len(paths), "batches", len(inputs), "rows", inputRows)

	schema, err := compute.UnionSchema(inputs)
	if err != nil {
		return err
	}
	if cfg.DropNulls != "" && len(schema.FieldIndices(cfg.DropNulls)) == 0 {
		return fmt.Errorf("column %q does not exist", cfg.DropNulls)
	}

	b, err := batcher.New(cfg.Batcher, alloc, logger, nil)
	if err != nil {
		return err
	}
	defer b.Release()
	if err := b.RegisterMetrics(reg); err != nil {
		return err
	}

	// Compression has already been validated.
	codec, _ := arrowio.ParseCompression(cfg.Compression)
	w := arrowio.NewCompressedWriter(out, schema, alloc, codec)
	var outputs int

	flush := func() error {
		merged, err := b.Flush()
		if err != nil {
			return err
		}
		defer merged.Release()

		if err := w.Write(merged); err != nil {
			return fmt.Errorf("writing batch: %w", err)
		}
		outputs++
		return nil
	}

	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := prepare(alloc, input, schema, cfg.DropNulls)
		if err != nil {
			return err
		}

		err = b.Append(batch)
		if errors.Is(err, batcher.ErrBatcherFull) {
			if err = flush(); err == nil {
				err = b.Append(batch)
			}
		}
		batch.Release()
		if err != nil {
			return err
		}
	}
	if b.Rows() > 0 {
		if err := flush(); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}

	level.Info(logger).Log(
		"msg", "rechunked",
		"input_batches", len(inputs),
		"input_rows", humanize.Comma(inputRows),
		"output_batches", outputs,
		"output_rows", humanize.Comma(w.Rows()),
		"output_size", humanize.Bytes(uint64(w.BytesWritten())),
		"duration", time.Since(start),
	)
	return nil
}

// prepare conforms batch to schema and drops rows with a null in the
// dropNulls column, if set.
func prepare(alloc memory.Allocator, batch arrow.RecordBatch, schema *arrow.Schema, dropNulls string) (arrow.RecordBatch, error) {
	conformed, err := compute.ConformRecord(alloc, batch, schema)
	if err != nil {
		return nil, err
	}
	if dropNulls == "" {
		return conformed, nil
	}
	defer conformed.Release()

	col := conformed.Column(schema.FieldIndices(dropNulls)[0])
	mask := compute.NotNullMask(alloc, col)
	defer mask.Release()

	return compute.FilterRecord(alloc, conformed, mask)
}
