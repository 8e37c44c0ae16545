package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// extraction run.
type Metrics struct {
	FilesRead    prometheus.Counter
	FilesMissing prometheus.Counter
	ReadErrors   prometheus.Counter

	CellsGathered     prometheus.Counter
	EntitiesWritten   prometheus.Counter
	EntityWriteErrors prometheus.Counter

	ExtractionRunning prometheus.Gauge
	MonthDuration     prometheus.Histogram
}

// NewMetrics creates and registers all extraction metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FilesRead,
		m.FilesMissing,
		m.ReadErrors,
		m.CellsGathered,
		m.EntitiesWritten,
		m.EntityWriteErrors,
		m.ExtractionRunning,
		m.MonthDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "era5_extract",
			Name:      "files_read_total",
			Help:      "Archive files opened and gathered successfully.",
		}),
		FilesMissing: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "era5_extract",
			Name:      "files_missing_total",
			Help:      "Expected archive files that were absent (data gaps).",
		}),
		ReadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "era5_extract",
			Name:      "read_errors_total",
			Help:      "Present archive files that failed to read or decode.",
		}),
		CellsGathered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "era5_extract",
			Name:      "cells_gathered_total",
			Help:      "Buffer cells filled from archive data (sentinel fills excluded).",
		}),
		EntitiesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "era5_extract",
			Name:      "entities_written_total",
			Help:      "City artifacts written successfully.",
		}),
		EntityWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "era5_extract",
			Name:      "entity_write_errors_total",
			Help:      "City artifacts that failed to process or write.",
		}),
		ExtractionRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "era5_extract",
			Name:      "extraction_running",
			Help:      "1 while an extraction run is active, 0 otherwise.",
		}),
		MonthDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "era5_extract",
			Name:      "month_duration_seconds",
			Help:      "Wall time to process one calendar month of archive files.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
	}
}
