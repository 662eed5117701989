package merge

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/tidelake/tide/internal/expr"
	"github.com/tidelake/tide/internal/logging"
	"github.com/tidelake/tide/internal/metrics"
	"github.com/tidelake/tide/internal/rows"
	"github.com/tidelake/tide/internal/table"
)

// Params describes one merge operation.
type Params struct {
	// Log is the target table's transaction log.
	Log *table.Log

	// Source is the row set merged into the target.
	Source *rows.Batch

	// Condition is the join condition between source and target.
	Condition expr.Expr

	// Matched clauses apply to rows present on both sides, NotMatched to
	// source-only rows, NotMatchedBySource to target-only rows. Order is
	// evaluation order.
	Matched            []Clause
	NotMatched         []Clause
	NotMatchedBySource []Clause

	// ExpectedSchemaHash, when set, asserts the schema the clauses were
	// analyzed against; a different snapshot schema aborts before any
	// scan.
	ExpectedSchemaHash string

	// Workers bounds parallelism for the scan and classification passes.
	// Zero means GOMAXPROCS.
	Workers int

	// Write bounds the output files.
	Write table.WriteConfig

	Logger *logging.Logger
}

// Result is the outcome of a committed merge.
type Result struct {
	// Snapshot is the newly committed table version.
	Snapshot *table.Snapshot

	// Metrics is the counter snapshot recorded in the commit.
	Metrics map[string]int64
}

// Merge reconciles the source into the table under the clause list and
// commits the file delta atomically. Any failure, at any stage, leaves
// the table exactly as it was: files are written before the commit but
// become visible only through it.
func Merge(ctx context.Context, p Params) (*Result, error) {
	start := time.Now()
	logger := p.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	if err := validateClauses(p.Matched, p.NotMatched, p.NotMatchedBySource); err != nil {
		return nil, err
	}

	snap, err := p.Log.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	tableName := snap.Metadata.Name
	logger = logger.WithTable(tableName).WithOperation("merge")

	status := "error"
	defer func() {
		metrics.MergesTotal.WithLabelValues(tableName, status).Inc()
		metrics.MergeLatency.WithLabelValues(tableName).Observe(time.Since(start).Seconds())
	}()

	if p.ExpectedSchemaHash != "" && p.ExpectedSchemaHash != snap.SchemaHash() {
		status = "drift"
		return nil, fmt.Errorf("%w: expected %s, snapshot has %s",
			ErrSchemaDrift, p.ExpectedSchemaHash, snap.SchemaHash())
	}

	plan, err := buildPlan(p.Source, snap, p.Condition, p.Matched, p.NotMatched, p.NotMatchedBySource)
	if err != nil {
		if errors.Is(err, ErrResolution) {
			status = "resolution"
		}
		return nil, err
	}

	stats := &Stats{}
	stats.SourceRows.Store(int64(p.Source.Len()))

	candidates := plan.candidates(stats)
	logger.Info("data skipping complete",
		"files_before", stats.FilesBefore,
		"files_after", stats.FilesAfter,
		"bytes_after", stats.BytesAfter)

	scan, err := scanCandidates(ctx, p.Log, snap, candidates, workers)
	if err != nil {
		return nil, err
	}

	var output *rows.Batch
	var removes []table.Action

	if plan.insertOnly() {
		output, err = plan.runInsertOnly(ctx, scan, stats)
		if err != nil {
			return nil, err
		}
	} else {
		output, removes, err = plan.runGeneral(ctx, scan, candidates, stats, workers)
		if err != nil {
			if errors.Is(err, ErrAmbiguousMatch) {
				status = "ambiguous"
			}
			return nil, err
		}
	}

	adds, err := table.WriteFiles(ctx, p.Log.Store(), p.Log.DataPrefix(), output,
		snap.Metadata.PartitionColumns, p.Write)
	if err != nil {
		return nil, err
	}

	actions := make([]table.Action, 0, len(removes)+len(adds))
	actions = append(actions, removes...)
	for i := range adds {
		actions = append(actions, table.Action{Add: &adds[i]})
	}
	stats.FilesRemoved = int64(len(removes))
	stats.FilesAdded = int64(len(adds))

	info := table.CommitInfo{
		Operation:  "MERGE",
		Parameters: p.describeOperation(plan),
		Metrics:    stats.Snapshot(),
	}
	newSnap, err := p.Log.Commit(ctx, snap, actions, info)
	if err != nil {
		if errors.Is(err, table.ErrCommitConflict) {
			status = "conflict"
		}
		return nil, err
	}

	status = "committed"
	stats.flush(tableName)
	logger.Info("merge committed",
		"version", newSnap.Version,
		"rows_updated", stats.RowsUpdated.Load(),
		"rows_inserted", stats.RowsInserted.Load(),
		"rows_deleted", stats.RowsDeleted.Load(),
		"rows_copied", stats.RowsCopied.Load(),
		"files_removed", stats.FilesRemoved,
		"files_added", stats.FilesAdded)

	return &Result{Snapshot: newSnap, Metrics: info.Metrics}, nil
}

// runGeneral executes the outer-join classification path: join, classify
// once, check ambiguity over the materialized result, then reconcile the
// touched file set into the final output rows and remove actions.
func (p *plan) runGeneral(ctx context.Context, scan *targetScan, candidates []table.AddFile, stats *Stats, workers int) (*rows.Batch, []table.Action, error) {
	pairs, err := p.joinPairs(scan)
	if err != nil {
		return nil, nil, err
	}

	touched := NewTouchedFileSet(workers)
	classified, err := p.classify(ctx, scan, pairs, touched, stats, workers)
	if err != nil {
		return nil, nil, err
	}

	if err := p.checkAmbiguity(classified); err != nil {
		return nil, nil, err
	}

	touchedIDs, err := touched.Drain()
	if err != nil {
		return nil, nil, err
	}

	// Touched files are always a subset of the candidates the gate
	// produced from this same snapshot.
	byID := make(map[string]table.AddFile, len(candidates))
	for _, f := range candidates {
		byID[f.ID] = f
	}
	touchedSet := make(map[string]struct{}, len(touchedIDs))
	removes := make([]table.Action, 0, len(touchedIDs))
	now := time.Now().UTC()
	for _, id := range touchedIDs {
		f, ok := byID[id]
		if !ok {
			return nil, nil, fmt.Errorf("touched file %s not among candidates", id)
		}
		touchedSet[id] = struct{}{}
		removes = append(removes, table.Action{Remove: &table.RemoveFile{
			ID:          f.ID,
			Path:        f.Path,
			AsOfVersion: p.snap.Version,
			DeletedAt:   now,
		}})
	}

	// Second scan of the materialization: keep updates and inserts,
	// keep copies only when their file is being rewritten anyway, drop
	// deletes and skips.
	output := rows.NewBatch(p.snap.Metadata.Schema)
	for _, cr := range classified.rows {
		switch cr.outcome {
		case OutcomeUpdate, OutcomeInsert:
			output.Append(cr.output)
		case OutcomeCopy:
			if _, ok := touchedSet[cr.fileID]; ok {
				output.Append(cr.output)
				stats.RowsCopied.Add(1)
			}
		}
	}
	return output, removes, nil
}

// describeOperation renders the operation descriptor stored in the
// commit info.
func (p Params) describeOperation(pl *plan) map[string]string {
	params := map[string]string{"predicate": pl.condText}
	if desc := describeClauses(p.Matched); desc != "" {
		params["matchedPredicates"] = desc
	}
	if desc := describeClauses(p.NotMatched); desc != "" {
		params["notMatchedPredicates"] = desc
	}
	if desc := describeClauses(p.NotMatchedBySource); desc != "" {
		params["notMatchedBySourcePredicates"] = desc
	}
	return params
}

func describeClauses(clauses []Clause) string {
	if len(clauses) == 0 {
		return ""
	}
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		parts = append(parts, c.describe())
	}
	return strings.Join(parts, "; ")
}
