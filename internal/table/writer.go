package table

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tidelake/tide/internal/expr"
	"github.com/tidelake/tide/internal/metrics"
	"github.com/tidelake/tide/internal/rows"
	"github.com/tidelake/tide/pkg/objectstore"
)

// WriteConfig bounds how new data files are produced.
type WriteConfig struct {
	// TargetFileRows is the preferred row count per data file.
	TargetFileRows int

	// MaxFiles caps the number of files one write may produce; rows per
	// file grow past TargetFileRows rather than exceeding the cap.
	MaxFiles int
}

// DefaultWriteConfig returns the write bounds used when none are given.
func DefaultWriteConfig() WriteConfig {
	return WriteConfig{TargetFileRows: 100_000, MaxFiles: 50}
}

// WriteFiles partitions the batch by the table's partition columns,
// chunks each partition into files and uploads them, returning the Add
// actions for the commit. It never touches the log.
func WriteFiles(ctx context.Context, store objectstore.Store, dataPrefix string, batch *rows.Batch, partitionBy []string, cfg WriteConfig) ([]AddFile, error) {
	if cfg.TargetFileRows <= 0 {
		cfg.TargetFileRows = DefaultWriteConfig().TargetFileRows
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = DefaultWriteConfig().MaxFiles
	}
	if batch.Len() == 0 {
		return nil, nil
	}

	groups, err := groupByPartition(batch, partitionBy)
	if err != nil {
		return nil, err
	}

	rowsPerFile := cfg.TargetFileRows
	if total := batch.Len(); (total+rowsPerFile-1)/rowsPerFile > cfg.MaxFiles {
		rowsPerFile = (total + cfg.MaxFiles - 1) / cfg.MaxFiles
	}

	var adds []AddFile
	for _, g := range groups {
		for start := 0; start < g.batch.Len(); start += rowsPerFile {
			end := start + rowsPerFile
			if end > g.batch.Len() {
				end = g.batch.Len()
			}
			chunk := &rows.Batch{Schema: g.batch.Schema, Rows: g.batch.Rows[start:end]}

			add, err := writeOneFile(ctx, store, dataPrefix, chunk, g.values)
			if err != nil {
				return nil, err
			}
			adds = append(adds, add)
		}
	}
	return adds, nil
}

func writeOneFile(ctx context.Context, store objectstore.Store, dataPrefix string, chunk *rows.Batch, partValues map[string]string) (AddFile, error) {
	data, err := EncodeBatch(chunk)
	if err != nil {
		return AddFile{}, fmt.Errorf("failed to encode data file: %w", err)
	}

	id := uuid.NewString()
	key := fmt.Sprintf("%s/%s.tide.zst", strings.TrimSuffix(dataPrefix, "/"), id)
	if _, err := store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), nil); err != nil {
		return AddFile{}, fmt.Errorf("failed to upload data file: %w", err)
	}
	metrics.DataBytesWritten.Add(float64(len(data)))

	return AddFile{
		ID:              id,
		Path:            key,
		Size:            int64(len(data)),
		Rows:            int64(chunk.Len()),
		PartitionValues: partValues,
		Stats:           collectStats(chunk),
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// ReadFile downloads and decodes one data file.
func ReadFile(ctx context.Context, store objectstore.Store, path string) (*rows.Batch, error) {
	rc, _, err := store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file %s: %w", path, err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, fmt.Errorf("failed to read data file %s: %w", path, err)
	}
	batch, err := DecodeBatch(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("data file %s: %w", path, err)
	}
	return batch, nil
}

type partitionGroup struct {
	values map[string]string
	batch  *rows.Batch
}

func groupByPartition(batch *rows.Batch, partitionBy []string) ([]partitionGroup, error) {
	if len(partitionBy) == 0 {
		return []partitionGroup{{batch: batch}}, nil
	}

	idx := make([]int, len(partitionBy))
	for i, name := range partitionBy {
		j, ok := batch.Schema.Index(name)
		if !ok {
			return nil, fmt.Errorf("partition column %q not in schema", name)
		}
		idx[i] = j
	}

	byKey := make(map[string]*partitionGroup)
	var order []string
	for _, row := range batch.Rows {
		values := make(map[string]string, len(partitionBy))
		for i, name := range partitionBy {
			values[name] = FormatPartitionValue(row[idx[i]])
		}
		key := partitionKey(values)
		g, ok := byKey[key]
		if !ok {
			g = &partitionGroup{values: values, batch: rows.NewBatch(batch.Schema)}
			byKey[key] = g
			order = append(order, key)
		}
		g.batch.Append(row)
	}

	sort.Strings(order)
	out := make([]partitionGroup, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out, nil
}

func partitionKey(values map[string]string) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+values[k])
	}
	return strings.Join(parts, "/")
}

// FormatPartitionValue renders a partition value for file metadata.
func FormatPartitionValue(v any) string {
	switch n := v.(type) {
	case nil:
		return "__NULL__"
	case string:
		return n
	case time.Time:
		return n.UTC().Format(time.RFC3339Nano)
	case bool:
		return strconv.FormatBool(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", n)
	}
}

// ParsePartitionValue parses a stored partition value back to its typed
// form.
func ParsePartitionValue(t rows.Type, s string) (any, error) {
	if s == "__NULL__" {
		return nil, nil
	}
	switch t {
	case rows.TypeString:
		return s, nil
	case rows.TypeBool:
		return strconv.ParseBool(s)
	case rows.TypeInt64:
		return strconv.ParseInt(s, 10, 64)
	case rows.TypeFloat64:
		return strconv.ParseFloat(s, 64)
	case rows.TypeTimestamp:
		return time.Parse(time.RFC3339Nano, s)
	}
	return nil, fmt.Errorf("unknown column type %v", t)
}

func collectStats(b *rows.Batch) *FileStats {
	stats := &FileStats{
		MinValues:  make(map[string]any),
		MaxValues:  make(map[string]any),
		NullCounts: make(map[string]int64),
	}
	for ci, col := range b.Schema.Columns {
		var min, max any
		var nulls int64
		for _, row := range b.Rows {
			v := row[ci]
			if v == nil {
				nulls++
				continue
			}
			v = statValue(v)
			if min == nil {
				min, max = v, v
				continue
			}
			if cmp, ok := expr.CompareValues(v, min); ok && cmp < 0 {
				min = v
			}
			if cmp, ok := expr.CompareValues(v, max); ok && cmp > 0 {
				max = v
			}
		}
		if min != nil {
			stats.MinValues[col.Name] = min
			stats.MaxValues[col.Name] = max
		}
		stats.NullCounts[col.Name] = nulls
	}
	return stats
}

// statValue keeps stats JSON-roundtrippable: timestamps become RFC3339
// strings, which CompareValues still orders correctly against time values.
func statValue(v any) any {
	if ts, ok := v.(time.Time); ok {
		return ts.UTC().Format(time.RFC3339Nano)
	}
	return v
}
