// Package merge implements MERGE over a tide table: an ordered clause
// list reconciles a source row set into a target snapshot, and the
// resulting file delta is committed atomically to the transaction log.
package merge

import (
	"fmt"
	"strings"

	"github.com/tidelake/tide/internal/expr"
	"github.com/tidelake/tide/internal/rows"
)

// ActionKind identifies what a clause does to rows it matches.
type ActionKind int

const (
	// ActionUpdate rewrites a matched target row through its assignments.
	ActionUpdate ActionKind = iota

	// ActionDelete drops a matched target row.
	ActionDelete

	// ActionInsert emits a new row for a source row with no target match.
	ActionInsert

	// ActionDeleteTarget drops a target row with no source match.
	ActionDeleteTarget
)

func (k ActionKind) String() string {
	switch k {
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	case ActionInsert:
		return "insert"
	case ActionDeleteTarget:
		return "delete"
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// Assignment sets one target column from an expression over the joined
// row.
type Assignment struct {
	Column string
	Value  expr.Expr
}

// Clause is one element of a clause list. Clause lists keep declaration
// order; within its category the first clause whose condition holds for
// a joined row decides the row's outcome. A nil condition always holds.
type Clause struct {
	Kind        ActionKind
	Condition   expr.Expr
	Assignments []Assignment
}

// WhenMatchedUpdate builds an update clause for matched rows.
func WhenMatchedUpdate(cond expr.Expr, assignments ...Assignment) Clause {
	return Clause{Kind: ActionUpdate, Condition: cond, Assignments: assignments}
}

// WhenMatchedDelete builds a delete clause for matched rows.
func WhenMatchedDelete(cond expr.Expr) Clause {
	return Clause{Kind: ActionDelete, Condition: cond}
}

// WhenNotMatchedInsert builds an insert clause for source rows without a
// target match.
func WhenNotMatchedInsert(cond expr.Expr, assignments ...Assignment) Clause {
	return Clause{Kind: ActionInsert, Condition: cond, Assignments: assignments}
}

// WhenNotMatchedBySourceDelete builds a delete clause for target rows
// without a source match.
func WhenNotMatchedBySourceDelete(cond expr.Expr) Clause {
	return Clause{Kind: ActionDeleteTarget, Condition: cond}
}

// Set pairs a column with its value expression.
func Set(column string, value expr.Expr) Assignment {
	return Assignment{Column: column, Value: value}
}

func (c Clause) describe() string {
	var b strings.Builder
	b.WriteString(c.Kind.String())
	if c.Condition != nil {
		fmt.Fprintf(&b, " if %s", c.Condition)
	}
	if len(c.Assignments) > 0 {
		parts := make([]string, 0, len(c.Assignments))
		for _, a := range c.Assignments {
			parts = append(parts, fmt.Sprintf("%s = %s", a.Column, a.Value))
		}
		fmt.Fprintf(&b, " set %s", strings.Join(parts, ", "))
	}
	return b.String()
}

func validateClauses(matched, notMatched, bySource []Clause) error {
	if len(matched)+len(notMatched)+len(bySource) == 0 {
		return ErrNoClauses
	}
	for _, c := range matched {
		if c.Kind != ActionUpdate && c.Kind != ActionDelete {
			return fmt.Errorf("%w: matched clause must update or delete, got %s", ErrInvalidClause, c.Kind)
		}
	}
	for _, c := range notMatched {
		if c.Kind != ActionInsert {
			return fmt.Errorf("%w: not-matched clause must insert, got %s", ErrInvalidClause, c.Kind)
		}
	}
	for _, c := range bySource {
		if c.Kind != ActionDeleteTarget {
			return fmt.Errorf("%w: not-matched-by-source clause must delete, got %s", ErrInvalidClause, c.Kind)
		}
	}
	return nil
}

// boundClause is a clause bound against the joined row schema. outputs
// covers the full target schema for update/insert clauses and is nil
// for deletes.
type boundClause struct {
	kind    ActionKind
	cond    expr.Bound
	outputs []expr.Bound
}

// matches evaluates the clause condition against a joined row; a nil
// condition is an unconditional catch-all.
func (c *boundClause) matches(row rows.Row) (bool, error) {
	if c.cond == nil {
		return true, nil
	}
	return expr.EvalPredicate(c.cond, row)
}

// firstMatch returns the first clause (in declaration order) whose
// condition holds, or nil when no clause applies.
func firstMatch(clauses []boundClause, row rows.Row) (*boundClause, error) {
	for i := range clauses {
		ok, err := clauses[i].matches(row)
		if err != nil {
			return nil, err
		}
		if ok {
			return &clauses[i], nil
		}
	}
	return nil, nil
}

// project evaluates the clause outputs, producing a target-schema row.
func (c *boundClause) project(row rows.Row) (rows.Row, error) {
	out := make(rows.Row, len(c.outputs))
	for i, e := range c.outputs {
		v, err := e.Eval(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
