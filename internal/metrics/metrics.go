package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts storage operations by name and outcome.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedb_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)
	// DocumentsRead counts document files read from disk per collection.
	DocumentsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedb_documents_read_total",
			Help: "Total number of document files read",
		},
		[]string{"collection"},
	)
	// DocumentsWritten counts document files written per collection.
	DocumentsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedb_documents_written_total",
			Help: "Total number of document files written",
		},
		[]string{"collection"},
	)
	// QueryDuration is the latency of query executions by strategy.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filedb_query_duration_seconds",
			Help:    "Query execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)
	// IndexLookups counts index consultations by result
	// (hit, bloom_reject, no_index).
	IndexLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedb_index_lookups_total",
			Help: "Total number of index lookups",
		},
		[]string{"result"},
	)
	// IndexBuilds counts index builds by outcome.
	IndexBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filedb_index_builds_total",
			Help: "Total number of index builds",
		},
		[]string{"status"},
	)
)

// Status maps an error onto the status label value.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveOperation records one storage operation.
func ObserveOperation(op string, err error) {
	OperationsTotal.WithLabelValues(op, Status(err)).Inc()
}

// ObserveQuery records one query execution.
func ObserveQuery(strategy string, started time.Time) {
	QueryDuration.WithLabelValues(strategy).Observe(time.Since(started).Seconds())
}
