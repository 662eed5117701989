package merge

import (
	"errors"
	"fmt"

	"github.com/tidelake/tide/internal/expr"
	"github.com/tidelake/tide/internal/rows"
	"github.com/tidelake/tide/internal/table"
)

// Qualifiers accepted in merge expressions. Unqualified references
// resolve against whichever side defines the name and are rejected when
// both do.
const (
	SourceQualifier = "source"
	TargetQualifier = "target"
)

// joinResolver resolves column references against the flat joined row:
// source columns first, then target columns.
type joinResolver struct {
	source *rows.Schema
	target *rows.Schema
}

func (r joinResolver) ResolveColumn(c expr.ColumnRef) (int, error) {
	switch c.Qualifier {
	case SourceQualifier:
		idx, ok := r.source.Index(c.Name)
		if !ok {
			return 0, fmt.Errorf("%w: %s", expr.ErrUnresolved, c)
		}
		return idx, nil
	case TargetQualifier:
		idx, ok := r.target.Index(c.Name)
		if !ok {
			return 0, fmt.Errorf("%w: %s", expr.ErrUnresolved, c)
		}
		return r.source.Len() + idx, nil
	case "":
		srcIdx, inSrc := r.source.Index(c.Name)
		tgtIdx, inTgt := r.target.Index(c.Name)
		switch {
		case inSrc && inTgt:
			return 0, fmt.Errorf("%w: %s is ambiguous between source and target", expr.ErrUnresolved, c)
		case inSrc:
			return srcIdx, nil
		case inTgt:
			return r.source.Len() + tgtIdx, nil
		}
		return 0, fmt.Errorf("%w: %s", expr.ErrUnresolved, c)
	}
	return 0, fmt.Errorf("%w: unknown qualifier %q", expr.ErrUnresolved, c.Qualifier)
}

// side reports which relation a reference belongs to without binding it.
func (r joinResolver) side(c expr.ColumnRef) (onSource, onTarget bool) {
	switch c.Qualifier {
	case SourceQualifier:
		_, ok := r.source.Index(c.Name)
		return ok, false
	case TargetQualifier:
		_, ok := r.target.Index(c.Name)
		return false, ok
	case "":
		_, inSrc := r.source.Index(c.Name)
		_, inTgt := r.target.Index(c.Name)
		return inSrc && !inTgt, inTgt && !inSrc
	}
	return false, false
}

// plan is the bound form of one merge operation against one snapshot.
type plan struct {
	source *rows.Batch
	snap   *table.Snapshot

	// equi-join keys as positions into the source and target schemas
	equiSrc []int
	equiTgt []int

	// residual holds the non-equi conjuncts of the condition, bound
	// against the joined row; nil when the condition is purely equi.
	residual expr.Bound

	matched    []boundClause
	notMatched []boundClause
	bySource   []boundClause

	// skipPredicates are the target-only conjuncts handed to the data
	// skipping gate.
	skipPredicates []expr.Expr

	condText string
}

// buildPlan binds the condition and every clause. Any unresolved
// reference fails here, before a single row is scanned.
func buildPlan(source *rows.Batch, snap *table.Snapshot, condition expr.Expr, matched, notMatched, bySource []Clause) (*plan, error) {
	if condition == nil {
		return nil, fmt.Errorf("%w: merge condition is required", ErrResolution)
	}
	resolver := joinResolver{source: source.Schema, target: snap.Metadata.Schema}

	p := &plan{source: source, snap: snap, condText: condition.String()}

	var residuals []expr.Expr
	for _, conjunct := range expr.SplitConjuncts(condition) {
		if l, r, ok := expr.AsColumnEquality(conjunct); ok {
			lSrc, lTgt := resolver.side(l)
			rSrc, rTgt := resolver.side(r)
			switch {
			case lSrc && rTgt:
				si, _ := source.Schema.Index(l.Name)
				ti, _ := snap.Metadata.Schema.Index(r.Name)
				p.equiSrc = append(p.equiSrc, si)
				p.equiTgt = append(p.equiTgt, ti)
				continue
			case lTgt && rSrc:
				si, _ := source.Schema.Index(r.Name)
				ti, _ := snap.Metadata.Schema.Index(l.Name)
				p.equiSrc = append(p.equiSrc, si)
				p.equiTgt = append(p.equiTgt, ti)
				continue
			}
		}
		residuals = append(residuals, conjunct)

		if targetOnly(conjunct, resolver) {
			p.skipPredicates = append(p.skipPredicates, conjunct)
		}
	}

	if len(residuals) > 0 {
		combined := residuals[0]
		for _, e := range residuals[1:] {
			combined = expr.And(combined, e)
		}
		bound, err := expr.Bind(combined, resolver)
		if err != nil {
			return nil, resolutionError(err)
		}
		p.residual = bound
	}

	var err error
	if p.matched, err = bindClauses(matched, resolver, snap.Metadata.Schema, true); err != nil {
		return nil, err
	}
	if p.notMatched, err = bindClauses(notMatched, resolver, snap.Metadata.Schema, false); err != nil {
		return nil, err
	}
	if p.bySource, err = bindClauses(bySource, resolver, snap.Metadata.Schema, true); err != nil {
		return nil, err
	}
	return p, nil
}

// bindClauses binds conditions and builds the full-width output list.
// Update outputs default unassigned columns to the current target value;
// insert outputs default them to NULL.
func bindClauses(clauses []Clause, resolver joinResolver, target *rows.Schema, fromTarget bool) ([]boundClause, error) {
	out := make([]boundClause, 0, len(clauses))
	for _, c := range clauses {
		bc := boundClause{kind: c.Kind}

		if c.Condition != nil {
			cond, err := expr.Bind(c.Condition, resolver)
			if err != nil {
				return nil, resolutionError(err)
			}
			bc.cond = cond
		}

		if c.Kind == ActionUpdate || c.Kind == ActionInsert {
			assigned := make(map[string]expr.Expr, len(c.Assignments))
			for _, a := range c.Assignments {
				if _, ok := target.Index(a.Column); !ok {
					return nil, fmt.Errorf("%w: assignment target %q not in table schema", ErrResolution, a.Column)
				}
				assigned[a.Column] = a.Value
			}

			bc.outputs = make([]expr.Bound, target.Len())
			for i, col := range target.Columns {
				var e expr.Expr
				if v, ok := assigned[col.Name]; ok {
					e = v
				} else if fromTarget {
					e = expr.Col(TargetQualifier, col.Name)
				} else {
					e = expr.Lit(nil)
				}
				bound, err := expr.Bind(e, resolver)
				if err != nil {
					return nil, resolutionError(err)
				}
				bc.outputs[i] = bound
			}
		}
		out = append(out, bc)
	}
	return out, nil
}

// targetOnly reports whether every column the conjunct references lives
// on the target side, making it usable for data skipping.
func targetOnly(e expr.Expr, resolver joinResolver) bool {
	cols := expr.Columns(e)
	if len(cols) == 0 {
		return false
	}
	for _, c := range cols {
		if _, onTarget := resolver.side(c); !onTarget {
			return false
		}
	}
	return true
}

// matchedOnly reports whether the right-outer join optimization applies:
// matched clauses exist and neither not-matched category does.
func (p *plan) matchedOnly() bool {
	return len(p.matched) > 0 && len(p.notMatched) == 0 && len(p.bySource) == 0
}

// insertOnly reports whether the anti-join fast path applies: exactly
// one insert clause and nothing else.
func (p *plan) insertOnly() bool {
	return len(p.matched) == 0 && len(p.bySource) == 0 &&
		len(p.notMatched) == 1 && p.notMatched[0].kind == ActionInsert
}

// joinedRow builds the flat evaluation row for a source/target pair;
// either side may be nil.
func (p *plan) joinedRow(src, tgt rows.Row) rows.Row {
	srcLen := p.source.Schema.Len()
	row := make(rows.Row, srcLen+p.snap.Metadata.Schema.Len())
	if src != nil {
		copy(row[:srcLen], src)
	}
	if tgt != nil {
		copy(row[srcLen:], tgt)
	}
	return row
}

func resolutionError(err error) error {
	if errors.Is(err, expr.ErrUnresolved) {
		return fmt.Errorf("%w: %v", ErrResolution, err)
	}
	return err
}
