// Package metrics provides Prometheus metrics for the lakehouse ETL.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for a pipeline run.
type Metrics struct {
	// Source metrics
	RecordsRead  *prometheus.CounterVec
	SourceErrors *prometheus.CounterVec

	// Transform metrics
	RowsBuilt         *prometheus.CounterVec
	RecordsFiltered   *prometheus.CounterVec
	CoercionsFailed   prometheus.Counter
	JoinMatches       prometheus.Counter
	JoinMisses        prometheus.Counter
	TransformDuration *prometheus.HistogramVec

	// Sink metrics
	RowsWritten   *prometheus.CounterVec
	BytesWritten  *prometheus.CounterVec
	PartsWritten  *prometheus.CounterVec
	WriteDuration *prometheus.HistogramVec
	StorageErrors *prometheus.CounterVec
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // Address for metrics HTTP server (e.g., ":9090")
}

var defaultMetrics *Metrics

// Init initializes the metrics package with global metrics.
// Call this once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "lakehouse_etl"
	}

	m := &Metrics{
		RecordsRead: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_read_total",
				Help:      "Total number of raw records read from the source",
			},
			[]string{"dataset"},
		),
		SourceErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_errors_total",
				Help:      "Total number of source read errors",
			},
			[]string{"dataset"},
		),
		RowsBuilt: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_built_total",
				Help:      "Total number of rows produced per table",
			},
			[]string{"table"},
		),
		RecordsFiltered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_filtered_total",
				Help:      "Total number of activity records discarded by the playback filter",
			},
			[]string{"reason"},
		),
		CoercionsFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "user_id_coercions_failed_total",
				Help:      "Total number of activity records dropped because user_id was not numeric",
			},
		),
		JoinMatches: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "join_matches_total",
				Help:      "Total number of (activity, item) pairs matched by creator name",
			},
		),
		JoinMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "join_misses_total",
				Help:      "Total number of activity records with no catalog match",
			},
		),
		TransformDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transform_duration_seconds",
				Help:      "Time to build a table from raw records",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"table"},
		),
		RowsWritten: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_written_total",
				Help:      "Total number of rows written per table",
			},
			[]string{"table"},
		),
		BytesWritten: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_written_total",
				Help:      "Total parquet bytes written per table",
			},
			[]string{"table"},
		),
		PartsWritten: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "part_files_written_total",
				Help:      "Total number of part files written per table",
			},
			[]string{"table"},
		),
		WriteDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "write_duration_seconds",
				Help:      "Time to write a table to storage",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"table"},
		),
		StorageErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Total number of storage write errors",
			},
			[]string{"backend"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// StartServer starts an HTTP server for Prometheus metrics scraping.
// Blocks until the server exits.
func StartServer(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}

// AddRecordsRead adds to the records read counter for a dataset.
func (m *Metrics) AddRecordsRead(dataset string, count float64) {
	m.RecordsRead.WithLabelValues(dataset).Add(count)
}

// IncSourceErrors increments the source errors counter for a dataset.
func (m *Metrics) IncSourceErrors(dataset string) {
	m.SourceErrors.WithLabelValues(dataset).Inc()
}

// AddRowsBuilt adds to the rows built counter for a table.
func (m *Metrics) AddRowsBuilt(table string, count float64) {
	m.RowsBuilt.WithLabelValues(table).Add(count)
}

// AddRecordsFiltered adds to the filtered records counter.
func (m *Metrics) AddRecordsFiltered(reason string, count float64) {
	m.RecordsFiltered.WithLabelValues(reason).Add(count)
}

// ObserveTransformDuration records the time to build a table.
func (m *Metrics) ObserveTransformDuration(table string, seconds float64) {
	m.TransformDuration.WithLabelValues(table).Observe(seconds)
}

// AddRowsWritten adds to the rows written counter for a table.
func (m *Metrics) AddRowsWritten(table string, count float64) {
	m.RowsWritten.WithLabelValues(table).Add(count)
}

// AddBytesWritten adds to the bytes written counter for a table.
func (m *Metrics) AddBytesWritten(table string, count float64) {
	m.BytesWritten.WithLabelValues(table).Add(count)
}

// AddPartsWritten adds to the part files counter for a table.
func (m *Metrics) AddPartsWritten(table string, count float64) {
	m.PartsWritten.WithLabelValues(table).Add(count)
}

// ObserveWriteDuration records the time to write a table.
func (m *Metrics) ObserveWriteDuration(table string, seconds float64) {
	m.WriteDuration.WithLabelValues(table).Observe(seconds)
}

// IncStorageErrors increments the storage errors counter for a backend.
func (m *Metrics) IncStorageErrors(backend string) {
	m.StorageErrors.WithLabelValues(backend).Inc()
}
