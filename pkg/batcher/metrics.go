package batcher

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments a [Batcher].
type Metrics struct {
	appendsTotal  prometheus.Counter
	rowsTotal     prometheus.Counter
	flushesTotal  prometheus.Counter
	flushFailures prometheus.Counter
	flushTime     prometheus.Histogram

	bufferedRows  prometheus.Gauge
	bufferedBytes prometheus.Gauge
}

// NewMetrics creates a new set of unregistered metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		appendsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growable_batcher_appends_total",
			Help: "Total number of record batches appended to the batcher.",
		}),
		rowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growable_batcher_rows_total",
			Help: "Total number of rows appended to the batcher.",
		}),
		flushesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growable_batcher_flushes_total",
			Help: "Total number of batches flushed.",
		}),
		flushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "growable_batcher_flush_failures_total",
			Help: "Total number of failed flushes.",
		}),
		flushTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "growable_batcher_flush_duration_seconds",
			Help: "Time taken to merge buffered record batches.",

			Buckets:                         prometheus.DefBuckets,
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}),

		bufferedRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "growable_batcher_buffered_rows",
			Help: "Number of rows currently buffered.",
		}),
		bufferedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "growable_batcher_buffered_bytes",
			Help: "In-memory size of the record batches currently buffered.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.appendsTotal,
		m.rowsTotal,
		m.flushesTotal,
		m.flushFailures,
		m.flushTime,
		m.bufferedRows,
		m.bufferedBytes,
	}
}

// Register registers m with reg. Collectors which are already registered
// are skipped.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	var errs []error
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Unregister unregisters m from reg.
func (m *Metrics) Unregister(reg prometheus.Registerer) {
	for _, c := range m.collectors() {
		reg.Unregister(c)
	}
}
