// Package metrics provides Prometheus metrics for the tide table engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tide"

var (
	// MergesTotal tracks merge operations by final status.
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Total merge operations",
		},
		[]string{"table", "status"}, // status: committed/ambiguous/conflict/resolution/error
	)

	// MergeLatency tracks end-to-end merge latency.
	MergeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "merge_latency_seconds",
			Help:      "Merge operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	// MergeRowsTotal tracks classified rows by outcome.
	MergeRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_rows_total",
			Help:      "Rows processed by merge, by outcome",
		},
		[]string{"table", "outcome"}, // outcome: copy/delete/insert/skip/update
	)

	// MergeFilesTotal tracks files considered, skipped, removed and added.
	MergeFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_files_total",
			Help:      "Files handled by merge, by stage",
		},
		[]string{"table", "stage"}, // stage: candidate/skipped/removed/added
	)

	// CommitsTotal tracks transaction log commits.
	CommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_commits_total",
			Help:      "Total transaction log commits",
		},
		[]string{"status"}, // success/conflict/error
	)

	// CommitLatency tracks transaction log commit latency.
	CommitLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "log_commit_latency_seconds",
			Help:      "Transaction log commit latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// DataBytesWritten tracks bytes written to new data files.
	DataBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_bytes_written_total",
			Help:      "Total bytes written to data files",
		},
	)

	// ObjectStoreOps tracks object store operations.
	ObjectStoreOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objectstore_ops_total",
			Help:      "Total object store operations",
		},
		[]string{"operation", "status"}, // operation: get/head/put/put_if_absent/delete/list
	)

	// ObjectStoreLatency tracks object store operation latency.
	ObjectStoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "objectstore_latency_seconds",
			Help:      "Object store operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// ObserveObjectStoreOp records one object store operation.
func ObserveObjectStoreOp(operation string, seconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ObjectStoreOps.WithLabelValues(operation, status).Inc()
	ObjectStoreLatency.WithLabelValues(operation).Observe(seconds)
}
