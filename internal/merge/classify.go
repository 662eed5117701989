package merge

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/tidelake/tide/internal/engine"
	"github.com/tidelake/tide/internal/expr"
	"github.com/tidelake/tide/internal/rows"
	"github.com/tidelake/tide/internal/table"
)

// Outcome is the classification assigned to every joined row. Exactly
// one outcome applies per row; Delete and Skip rows are dropped before
// the final write.
type Outcome uint8

const (
	// OutcomeCopy retains the target row verbatim; it is written out only
	// if its file ends up touched by some other row.
	OutcomeCopy Outcome = iota

	// OutcomeDelete drops the target row and marks its file touched.
	OutcomeDelete

	// OutcomeInsert emits a new row from a source-only match.
	OutcomeInsert

	// OutcomeSkip drops a source row that matched no clause.
	OutcomeSkip

	// OutcomeUpdate rewrites the target row and marks its file touched.
	OutcomeUpdate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCopy:
		return "copy"
	case OutcomeDelete:
		return "delete"
	case OutcomeInsert:
		return "insert"
	case OutcomeSkip:
		return "skip"
	case OutcomeUpdate:
		return "update"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// classifiedRow is one materialized result of the classification pass.
// The pass runs once; the ambiguity guard and the reconciler both read
// this materialization instead of re-evaluating clauses.
type classifiedRow struct {
	outcome Outcome
	output  rows.Row // projected target-schema row; nil for Delete/Skip
	fileID  string   // originating target file, "" for source-only rows
	rowID   int64    // target row identifier, -1 for source-only rows
	matched bool     // both sides present
}

// targetScan is the tagged scan of the candidate files: every target row
// carries its originating file and an operation-scoped row identifier.
// Row identifiers combine the file's scan index with the row's ordinal
// inside the file; they exist only to detect duplicate matches and are
// never persisted.
type targetScan struct {
	batch   *rows.Batch
	fileIDs []string
	rowIDs  []int64
}

// scanCandidates reads the candidate files in parallel and concatenates
// them into one tagged batch.
func scanCandidates(ctx context.Context, log *table.Log, snap *table.Snapshot, candidates []table.AddFile, workers int) (*targetScan, error) {
	batches := make([]*rows.Batch, len(candidates))
	err := engine.ParallelMap(ctx, len(candidates), workers, func(ctx context.Context, i int) error {
		b, err := table.ReadFile(ctx, log.Store(), candidates[i].Path)
		if err != nil {
			return err
		}
		batches[i] = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	scan := &targetScan{batch: rows.NewBatch(snap.Metadata.Schema)}
	for fi, b := range batches {
		for ri, row := range b.Rows {
			scan.batch.Append(row)
			scan.fileIDs = append(scan.fileIDs, candidates[fi].ID)
			scan.rowIDs = append(scan.rowIDs, int64(fi)<<32|int64(ri))
		}
	}
	return scan, nil
}

// joinPairs computes the outer join between source and the target scan.
// Equi keys drive a hash join; residual conjuncts demote failing pairs
// to non-matches before outer rows are emitted, so outer semantics hold
// for the full condition rather than just its equi part.
func (p *plan) joinPairs(scan *targetScan) ([]engine.JoinedPair, error) {
	joinType := engine.FullOuterJoin
	if p.matchedOnly() {
		// Matched-only merges never act on unmatched source rows; the
		// target-preserving join avoids carrying them.
		joinType = engine.RightOuterJoin
	}

	if len(p.equiSrc) == 0 {
		return p.nestedLoopPairs(scan, joinType)
	}

	inner, err := engine.HashJoin(p.source, scan.batch, p.equiSrc, p.equiTgt, engine.InnerJoin)
	if err != nil {
		return nil, err
	}

	srcMatched := make([]bool, p.source.Len())
	tgtMatched := make([]bool, scan.batch.Len())
	pairs := make([]engine.JoinedPair, 0, len(inner))
	for _, pair := range inner {
		if p.residual != nil {
			row := p.joinedRow(p.source.Rows[pair.Left], scan.batch.Rows[pair.Right])
			ok, err := expr.EvalPredicate(p.residual, row)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		srcMatched[pair.Left] = true
		tgtMatched[pair.Right] = true
		pairs = append(pairs, pair)
	}

	if joinType == engine.FullOuterJoin {
		for si := range p.source.Rows {
			if !srcMatched[si] {
				pairs = append(pairs, engine.JoinedPair{Left: si, Right: -1})
			}
		}
	}
	for ti := range scan.batch.Rows {
		if !tgtMatched[ti] {
			pairs = append(pairs, engine.JoinedPair{Left: -1, Right: ti})
		}
	}
	return pairs, nil
}

// nestedLoopPairs handles conditions with no equi conjunct.
func (p *plan) nestedLoopPairs(scan *targetScan, joinType engine.JoinType) ([]engine.JoinedPair, error) {
	srcMatched := make([]bool, p.source.Len())
	tgtMatched := make([]bool, scan.batch.Len())

	var pairs []engine.JoinedPair
	for si, srow := range p.source.Rows {
		for ti, trow := range scan.batch.Rows {
			ok := true
			if p.residual != nil {
				var err error
				ok, err = expr.EvalPredicate(p.residual, p.joinedRow(srow, trow))
				if err != nil {
					return nil, err
				}
			}
			if ok {
				srcMatched[si] = true
				tgtMatched[ti] = true
				pairs = append(pairs, engine.JoinedPair{Left: si, Right: ti})
			}
		}
	}

	if joinType == engine.FullOuterJoin {
		for si := range p.source.Rows {
			if !srcMatched[si] {
				pairs = append(pairs, engine.JoinedPair{Left: si, Right: -1})
			}
		}
	}
	for ti := range scan.batch.Rows {
		if !tgtMatched[ti] {
			pairs = append(pairs, engine.JoinedPair{Left: -1, Right: ti})
		}
	}
	return pairs, nil
}

// classification is the materialized output of the pass plus the
// per-worker match bitmaps the ambiguity guard consumes.
type classification struct {
	rows []classifiedRow
	seen []*roaring64.Bitmap // per worker: target row ids matched at least once
	dups []*roaring64.Bitmap // per worker: target row ids matched more than once within the worker
}

// classify runs the three-branch classification over every joined pair,
// in parallel across index chunks. Each worker owns its chunk of the
// output slice, its TouchedFileSet shard and its bitmaps; no locks are
// taken during the pass.
func (p *plan) classify(ctx context.Context, scan *targetScan, pairs []engine.JoinedPair, touched *TouchedFileSet, stats *Stats, workers int) (*classification, error) {
	chunks := engine.Chunks(len(pairs), workers)

	out := &classification{
		rows: make([]classifiedRow, len(pairs)),
		seen: make([]*roaring64.Bitmap, len(chunks)),
		dups: make([]*roaring64.Bitmap, len(chunks)),
	}
	for i := range chunks {
		out.seen[i] = roaring64.New()
		out.dups[i] = roaring64.New()
	}

	err := engine.ParallelMap(ctx, len(chunks), workers, func(ctx context.Context, w int) error {
		shard := touched.Shard(w)
		seen, dups := out.seen[w], out.dups[w]

		for i := chunks[w][0]; i < chunks[w][1]; i++ {
			cr, err := p.classifyPair(scan, pairs[i], shard, stats)
			if err != nil {
				return err
			}
			if cr.matched {
				id := uint64(cr.rowID)
				if seen.Contains(id) {
					dups.Add(id)
				} else {
					seen.Add(id)
				}
			}
			out.rows[i] = cr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// classifyPair assigns the outcome for one joined row. The branch order
// is fixed: target-without-source, then source-without-target, then a
// true match.
func (p *plan) classifyPair(scan *targetScan, pair engine.JoinedPair, shard Shard, stats *Stats) (classifiedRow, error) {
	switch {
	case pair.Left < 0:
		// Target row with no source match.
		trow := scan.batch.Rows[pair.Right]
		cr := classifiedRow{fileID: scan.fileIDs[pair.Right], rowID: scan.rowIDs[pair.Right]}

		clause, err := firstMatch(p.bySource, p.joinedRow(nil, trow))
		if err != nil {
			return classifiedRow{}, err
		}
		if clause != nil { // only deletes are legal in this category
			cr.outcome = OutcomeDelete
			shard.Add(cr.fileID)
			stats.RowsDeleted.Add(1)
			return cr, nil
		}
		// Retained provisionally: the row's file may still be rewritten
		// because of its neighbors.
		cr.outcome = OutcomeCopy
		cr.output = trow
		return cr, nil

	case pair.Right < 0:
		// Source row with no target match.
		srow := p.source.Rows[pair.Left]
		row := p.joinedRow(srow, nil)

		clause, err := firstMatch(p.notMatched, row)
		if err != nil {
			return classifiedRow{}, err
		}
		cr := classifiedRow{rowID: -1}
		if clause == nil {
			cr.outcome = OutcomeSkip
			return cr, nil
		}
		output, err := clause.project(row)
		if err != nil {
			return classifiedRow{}, err
		}
		cr.outcome = OutcomeInsert
		cr.output = output
		stats.RowsInserted.Add(1)
		return cr, nil

	default:
		// A true match.
		srow := p.source.Rows[pair.Left]
		trow := scan.batch.Rows[pair.Right]
		row := p.joinedRow(srow, trow)
		cr := classifiedRow{
			fileID:  scan.fileIDs[pair.Right],
			rowID:   scan.rowIDs[pair.Right],
			matched: true,
		}

		clause, err := firstMatch(p.matched, row)
		if err != nil {
			return classifiedRow{}, err
		}
		switch {
		case clause == nil:
			// No clause applies: copy-forward without touching the file.
			cr.outcome = OutcomeCopy
			cr.output = trow
		case clause.kind == ActionUpdate:
			output, err := clause.project(row)
			if err != nil {
				return classifiedRow{}, err
			}
			cr.outcome = OutcomeUpdate
			cr.output = output
			shard.Add(cr.fileID)
			stats.RowsUpdated.Add(1)
		case clause.kind == ActionDelete:
			cr.outcome = OutcomeDelete
			shard.Add(cr.fileID)
			stats.RowsDeleted.Add(1)
		}
		return cr, nil
	}
}
