package engine

import (
	"github.com/tidelake/tide/internal/expr"
	"github.com/tidelake/tide/internal/rows"
)

// Filter returns the rows for which the bound predicate holds.
// NULL predicate results drop the row.
func Filter(b *rows.Batch, pred expr.Bound) (*rows.Batch, error) {
	out := rows.NewBatch(b.Schema)
	for _, row := range b.Rows {
		keep, err := expr.EvalPredicate(pred, row)
		if err != nil {
			return nil, err
		}
		if keep {
			out.Append(row)
		}
	}
	return out, nil
}

// Project evaluates the bound output expressions against every row,
// producing a batch with the given output schema.
func Project(b *rows.Batch, outSchema *rows.Schema, outputs []expr.Bound) (*rows.Batch, error) {
	out := rows.NewBatch(outSchema)
	for _, row := range b.Rows {
		projected := make(rows.Row, len(outputs))
		for i, e := range outputs {
			v, err := e.Eval(row)
			if err != nil {
				return nil, err
			}
			projected[i] = v
		}
		out.Append(projected)
	}
	return out, nil
}

// PartitionBatch buckets rows by the hash of their key columns into n
// batches. Rows with NULL keys all land in bucket 0; bucketing only
// spreads work, it carries no semantics.
func PartitionBatch(b *rows.Batch, keys []int, n int) []*rows.Batch {
	if n <= 1 {
		return []*rows.Batch{b}
	}
	out := make([]*rows.Batch, n)
	for i := range out {
		out[i] = rows.NewBatch(b.Schema)
	}
	for _, row := range b.Rows {
		bucket := 0
		if !hasNullKey(row, keys) {
			bucket = int(hashKey(row, keys) % uint64(n))
		}
		out[bucket].Append(row)
	}
	return out
}

// CountByKey counts occurrences of each key. Used to report how many
// duplicate matches an ambiguous merge produced.
func CountByKey(keys []int64) map[int64]int64 {
	counts := make(map[int64]int64)
	for _, k := range keys {
		counts[k]++
	}
	return counts
}
