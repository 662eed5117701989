package merge

import (
	"context"

	"github.com/tidelake/tide/internal/engine"
	"github.com/tidelake/tide/internal/expr"
	"github.com/tidelake/tide/internal/rows"
	"github.com/tidelake/tide/internal/table"
)

// runInsertOnly is the fast path for merges with exactly one insert
// clause and nothing else. It anti-joins the source against the skipped
// target scan and appends the projected rows as new files: no outer
// join, no touched files, no removes, and no ambiguity check (anti-join
// semantics emit each source row at most once).
func (p *plan) runInsertOnly(ctx context.Context, scan *targetScan, stats *Stats) (*rows.Batch, error) {
	clause := &p.notMatched[0]

	unmatched, err := p.antiJoin(scan)
	if err != nil {
		return nil, err
	}

	out := rows.NewBatch(p.snap.Metadata.Schema)
	for _, si := range unmatched {
		row := p.joinedRow(p.source.Rows[si], nil)
		ok, err := clause.matches(row)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		projected, err := clause.project(row)
		if err != nil {
			return nil, err
		}
		out.Append(projected)
		stats.RowsInserted.Add(1)
	}
	return out, nil
}

// antiJoin returns the indexes of source rows with no match in the scan
// under the full merge condition.
func (p *plan) antiJoin(scan *targetScan) ([]int, error) {
	if len(p.equiSrc) > 0 && p.residual == nil {
		return engine.LeftAntiJoin(p.source, scan.batch, p.equiSrc, p.equiTgt)
	}

	// Residual or non-equi conditions: find matches first, then take
	// the complement.
	matched := make([]bool, p.source.Len())
	if len(p.equiSrc) > 0 {
		inner, err := engine.HashJoin(p.source, scan.batch, p.equiSrc, p.equiTgt, engine.InnerJoin)
		if err != nil {
			return nil, err
		}
		for _, pair := range inner {
			if matched[pair.Left] {
				continue
			}
			ok, err := expr.EvalPredicate(p.residual, p.joinedRow(p.source.Rows[pair.Left], scan.batch.Rows[pair.Right]))
			if err != nil {
				return nil, err
			}
			if ok {
				matched[pair.Left] = true
			}
		}
	} else {
		for si, srow := range p.source.Rows {
			for _, trow := range scan.batch.Rows {
				ok, err := expr.EvalPredicate(p.residual, p.joinedRow(srow, trow))
				if err != nil {
					return nil, err
				}
				if ok {
					matched[si] = true
					break
				}
			}
		}
	}

	var out []int
	for si := range p.source.Rows {
		if !matched[si] {
			out = append(out, si)
		}
	}
	return out, nil
}

// candidates runs the data skipping gate against the plan's snapshot,
// recording before/after stats. Both execution paths share it, so they
// always scan a file set derived from the same snapshot.
func (p *plan) candidates(stats *Stats) []table.AddFile {
	predicates := p.skipPredicates
	if len(p.bySource) > 0 {
		// Rows failing the condition are themselves actionable when
		// not-matched-by-source clauses exist, so no file can be skipped.
		predicates = nil
	}

	files, skip := table.FilterFiles(p.snap, predicates)
	stats.FilesBefore = int64(skip.FilesBefore)
	stats.FilesAfter = int64(skip.FilesAfter)
	stats.BytesBefore = skip.BytesBefore
	stats.BytesAfter = skip.BytesAfter
	stats.PartitionsBefore = int64(skip.PartitionsBefore)
	stats.PartitionsAfter = int64(skip.PartitionsAfter)
	return files
}
