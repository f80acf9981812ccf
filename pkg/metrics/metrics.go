// Package metrics defines the Prometheus metrics exported by the msgset
// service. Metrics are registered with the default registry via promauto
// and served on the HTTP API's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Set engine metrics
var (
	SetOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgset_set_operations_total",
			Help: "Total number of set algebra operations performed",
		},
		[]string{"operation", "status"},
	)

	CodecOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgset_codec_operations_total",
			Help: "Total number of range encode/decode operations",
		},
		[]string{"operation", "status"},
	)

	BatchChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "msgset_batch_chunks_total",
			Help: "Total number of batch chunks handed out",
		},
	)

	BatchChunkSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "msgset_batch_chunk_size",
			Help:    "Distribution of batch chunk sizes",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)
)

// Record store metrics
var (
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgset_store_operations_total",
			Help: "Total number of record store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "msgset_store_operation_duration_seconds",
			Help:    "Duration of record store operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"backend", "operation"},
	)

	StoreRecordsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "msgset_store_records_total",
			Help: "Number of records currently held by the store",
		},
		[]string{"backend"},
	)
)

// IMAP collaborator metrics
var (
	IMAPCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgset_imap_commands_total",
			Help: "Total number of IMAP commands issued",
		},
		[]string{"command", "status"},
	)

	IMAPCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "msgset_imap_command_duration_seconds",
			Help:    "Duration of IMAP commands in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"command"},
	)

	IMAPBatchResizesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgset_imap_batch_resizes_total",
			Help: "Total number of adaptive batch size adjustments",
		},
		[]string{"direction"},
	)
)

// HTTP API metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgset_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "msgset_http_request_duration_seconds",
			Help:    "Duration of HTTP API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)
)
