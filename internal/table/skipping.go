package table

import (
	"github.com/tidelake/tide/internal/expr"
	"github.com/tidelake/tide/internal/rows"
)

// SkipStats reports the effect of the data skipping gate.
type SkipStats struct {
	FilesBefore      int
	FilesAfter       int
	BytesBefore      int64
	BytesAfter       int64
	PartitionsBefore int
	PartitionsAfter  int
}

// FilterFiles narrows the snapshot's file set to those that could hold
// rows satisfying every predicate. The filter is conservative: a file is
// dropped only when a predicate provably matches no row in it, using
// partition values and per-column min/max stats. No eligible predicates
// means the full file set.
func FilterFiles(snap *Snapshot, predicates []expr.Expr) ([]AddFile, SkipStats) {
	all := snap.FileList()

	stats := SkipStats{
		FilesBefore:      len(all),
		BytesBefore:      snap.TotalBytes(),
		PartitionsBefore: NumPartitions(all),
	}

	partitionCols := make(map[string]bool, len(snap.Metadata.PartitionColumns))
	for _, name := range snap.Metadata.PartitionColumns {
		partitionCols[name] = true
	}

	candidates := make([]AddFile, 0, len(all))
	for _, f := range all {
		excluded := false
		for _, p := range predicates {
			if canExclude(p, f, snap.Metadata.Schema, partitionCols) {
				excluded = true
				break
			}
		}
		if !excluded {
			candidates = append(candidates, f)
			stats.BytesAfter += f.Size
		}
	}

	stats.FilesAfter = len(candidates)
	stats.PartitionsAfter = NumPartitions(candidates)
	return candidates, stats
}

// canExclude reports whether the predicate provably matches no row of
// the file. Unknown shapes and missing stats always answer false.
func canExclude(e expr.Expr, f AddFile, schema *rows.Schema, partitionCols map[string]bool) bool {
	if l, r, ok := expr.AsAnd(e); ok {
		return canExclude(l, f, schema, partitionCols) || canExclude(r, f, schema, partitionCols)
	}
	if l, r, ok := expr.AsOr(e); ok {
		return canExclude(l, f, schema, partitionCols) && canExclude(r, f, schema, partitionCols)
	}

	cmp, ok := expr.AsColumnCompare(e)
	if !ok {
		return false
	}
	// A NULL literal satisfies no comparison.
	if cmp.Value == nil {
		return true
	}

	if partitionCols[cmp.Col.Name] {
		return excludeByPartition(cmp, f, schema)
	}
	return excludeByStats(cmp, f)
}

func excludeByPartition(cmp expr.Comparison, f AddFile, schema *rows.Schema) bool {
	raw, ok := f.PartitionValues[cmp.Col.Name]
	if !ok {
		return false
	}
	idx, ok := schema.Index(cmp.Col.Name)
	if !ok {
		return false
	}
	v, err := ParsePartitionValue(schema.Columns[idx].Type, raw)
	if err != nil {
		return false
	}
	// Every row in the file carries this exact partition value, so the
	// comparison decides for the whole file.
	if v == nil {
		return true
	}

	switch cmp.Op {
	case expr.OpEq:
		return !expr.ValuesEqual(v, cmp.Value)
	case expr.OpNe:
		return expr.ValuesEqual(v, cmp.Value)
	}
	ord, ok := expr.CompareValues(v, cmp.Value)
	if !ok {
		return false
	}
	switch cmp.Op {
	case expr.OpLt:
		return ord >= 0
	case expr.OpLe:
		return ord > 0
	case expr.OpGt:
		return ord <= 0
	case expr.OpGe:
		return ord < 0
	}
	return false
}

func excludeByStats(cmp expr.Comparison, f AddFile) bool {
	if f.Stats == nil {
		return false
	}
	min, okMin := f.Stats.MinValues[cmp.Col.Name]
	max, okMax := f.Stats.MaxValues[cmp.Col.Name]
	if !okMin || !okMax {
		// No stats can still exclude when every value is NULL.
		if nulls, ok := f.Stats.NullCounts[cmp.Col.Name]; ok && nulls == f.Rows {
			return true
		}
		return false
	}

	switch cmp.Op {
	case expr.OpEq:
		if ord, ok := expr.CompareValues(cmp.Value, min); ok && ord < 0 {
			return true
		}
		if ord, ok := expr.CompareValues(cmp.Value, max); ok && ord > 0 {
			return true
		}
		return false
	case expr.OpNe:
		return expr.ValuesEqual(min, cmp.Value) && expr.ValuesEqual(max, cmp.Value)
	case expr.OpLt:
		ord, ok := expr.CompareValues(min, cmp.Value)
		return ok && ord >= 0
	case expr.OpLe:
		ord, ok := expr.CompareValues(min, cmp.Value)
		return ok && ord > 0
	case expr.OpGt:
		ord, ok := expr.CompareValues(max, cmp.Value)
		return ok && ord <= 0
	case expr.OpGe:
		ord, ok := expr.CompareValues(max, cmp.Value)
		return ok && ord < 0
	}
	return false
}
