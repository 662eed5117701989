// Package table implements the versioned, file-based table: snapshots,
// the JSON transaction log with optimistic commits, statistics-based
// file skipping and the columnar data file codec.
package table

import (
	"time"

	"github.com/tidelake/tide/internal/rows"
)

// Metadata describes the table itself. It is written as the first log
// action at version 0 and replaced by any later metadata action.
type Metadata struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Schema           *rows.Schema `json:"schema"`
	PartitionColumns []string     `json:"partition_columns,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

// FileStats holds per-column statistics used by the data skipping gate.
// Values for timestamp columns are stored as RFC3339 strings.
type FileStats struct {
	MinValues  map[string]any   `json:"min,omitempty"`
	MaxValues  map[string]any   `json:"max,omitempty"`
	NullCounts map[string]int64 `json:"null_counts,omitempty"`
}

// AddFile records a data file joining the table's current file set.
type AddFile struct {
	ID              string            `json:"id"`
	Path            string            `json:"path"`
	Size            int64             `json:"size"`
	Rows            int64             `json:"rows"`
	PartitionValues map[string]string `json:"partition_values,omitempty"`
	Stats           *FileStats        `json:"stats,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// RemoveFile records a data file leaving the file set. AsOfVersion is
// the snapshot version the removal was computed against.
type RemoveFile struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	AsOfVersion int64     `json:"as_of_version"`
	DeletedAt   time.Time `json:"deleted_at"`
}

// CommitInfo describes the operation that produced a log entry, for
// history and observability. Exactly one per entry, written first.
type CommitInfo struct {
	Operation  string            `json:"operation"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Metrics    map[string]int64  `json:"metrics,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Action is one line of a log entry. Exactly one field is set.
type Action struct {
	Metadata *Metadata   `json:"metaData,omitempty"`
	Add      *AddFile    `json:"add,omitempty"`
	Remove   *RemoveFile `json:"remove,omitempty"`
	Commit   *CommitInfo `json:"commitInfo,omitempty"`
}
