package merge

import (
	"sync/atomic"

	"github.com/tidelake/tide/internal/metrics"
)

// Stats carries the operation's counters. The row counters are bumped
// concurrently during classification; the file counters are set once by
// the single-threaded stages. A snapshot is taken at commit time and
// recorded in the log entry.
type Stats struct {
	SourceRows   atomic.Int64
	RowsCopied   atomic.Int64
	RowsUpdated  atomic.Int64
	RowsInserted atomic.Int64
	RowsDeleted  atomic.Int64

	FilesBefore      int64
	FilesAfter       int64
	BytesBefore      int64
	BytesAfter       int64
	PartitionsBefore int64
	PartitionsAfter  int64

	FilesRemoved int64
	FilesAdded   int64
}

// Snapshot returns an immutable view of the counters for the commit info.
func (s *Stats) Snapshot() map[string]int64 {
	return map[string]int64{
		"sourceRows":             s.SourceRows.Load(),
		"rowsCopied":             s.RowsCopied.Load(),
		"rowsUpdated":            s.RowsUpdated.Load(),
		"rowsInserted":           s.RowsInserted.Load(),
		"rowsDeleted":            s.RowsDeleted.Load(),
		"filesBeforeSkipping":    s.FilesBefore,
		"filesAfterSkipping":     s.FilesAfter,
		"bytesBeforeSkipping":    s.BytesBefore,
		"bytesAfterSkipping":     s.BytesAfter,
		"partitionsBeforeSkipping": s.PartitionsBefore,
		"partitionsAfterSkipping":  s.PartitionsAfter,
		"filesRemoved":           s.FilesRemoved,
		"filesAdded":             s.FilesAdded,
	}
}

// flush publishes the counters to Prometheus once, at the end of the
// operation.
func (s *Stats) flush(tableName string) {
	metrics.MergeRowsTotal.WithLabelValues(tableName, "copy").Add(float64(s.RowsCopied.Load()))
	metrics.MergeRowsTotal.WithLabelValues(tableName, "update").Add(float64(s.RowsUpdated.Load()))
	metrics.MergeRowsTotal.WithLabelValues(tableName, "insert").Add(float64(s.RowsInserted.Load()))
	metrics.MergeRowsTotal.WithLabelValues(tableName, "delete").Add(float64(s.RowsDeleted.Load()))

	metrics.MergeFilesTotal.WithLabelValues(tableName, "candidate").Add(float64(s.FilesBefore))
	metrics.MergeFilesTotal.WithLabelValues(tableName, "skipped").Add(float64(s.FilesBefore - s.FilesAfter))
	metrics.MergeFilesTotal.WithLabelValues(tableName, "removed").Add(float64(s.FilesRemoved))
	metrics.MergeFilesTotal.WithLabelValues(tableName, "added").Add(float64(s.FilesAdded))
}
