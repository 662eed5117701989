// Package expr provides the expression model used by merge conditions,
// clause guards and output projections. Expressions are built as an AST,
// bound against a row schema into positional form, then evaluated per row.
//
// Predicates use three-valued logic: a comparison with a NULL operand is
// NULL, and a NULL guard result is treated as not matching.
package expr

import (
	"fmt"
	"strings"
)

// Expr is an unbound expression node.
type Expr interface {
	// String renders the expression for operation descriptors and logs.
	String() string
}

// ColumnRef names a column, optionally qualified by a relation side
// ("source" or "target"). Unqualified references resolve against
// whichever side defines the name, and are rejected when ambiguous.
type ColumnRef struct {
	Qualifier string
	Name      string
}

func (c ColumnRef) String() string {
	if c.Qualifier == "" {
		return c.Name
	}
	return c.Qualifier + "." + c.Name
}

type literal struct {
	value any
}

func (l literal) String() string {
	if s, ok := l.value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	if l.value == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", l.value)
}

// CompareOp is a binary comparison operator.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var compareNames = map[CompareOp]string{
	OpEq: "=", OpNe: "<>", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
}

type compare struct {
	op   CompareOp
	l, r Expr
}

func (c compare) String() string {
	return fmt.Sprintf("%s %s %s", c.l, compareNames[c.op], c.r)
}

// ArithOp is a binary arithmetic operator.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
)

var arithNames = map[ArithOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/",
}

type arith struct {
	op   ArithOp
	l, r Expr
}

func (a arith) String() string {
	return fmt.Sprintf("(%s %s %s)", a.l, arithNames[a.op], a.r)
}

type and struct{ l, r Expr }

func (a and) String() string { return fmt.Sprintf("(%s AND %s)", a.l, a.r) }

type or struct{ l, r Expr }

func (o or) String() string { return fmt.Sprintf("(%s OR %s)", o.l, o.r) }

type not struct{ e Expr }

func (n not) String() string { return fmt.Sprintf("NOT (%s)", n.e) }

type isNull struct {
	e      Expr
	negate bool
}

func (i isNull) String() string {
	if i.negate {
		return fmt.Sprintf("%s IS NOT NULL", i.e)
	}
	return fmt.Sprintf("%s IS NULL", i.e)
}

// Col references a qualified column.
func Col(qualifier, name string) Expr { return ColumnRef{Qualifier: qualifier, Name: name} }

// Lit wraps a literal value.
func Lit(v any) Expr { return literal{value: v} }

// Eq builds l = r.
func Eq(l, r Expr) Expr { return compare{op: OpEq, l: l, r: r} }

// Ne builds l <> r.
func Ne(l, r Expr) Expr { return compare{op: OpNe, l: l, r: r} }

// Lt builds l < r.
func Lt(l, r Expr) Expr { return compare{op: OpLt, l: l, r: r} }

// Le builds l <= r.
func Le(l, r Expr) Expr { return compare{op: OpLe, l: l, r: r} }

// Gt builds l > r.
func Gt(l, r Expr) Expr { return compare{op: OpGt, l: l, r: r} }

// Ge builds l >= r.
func Ge(l, r Expr) Expr { return compare{op: OpGe, l: l, r: r} }

// And builds l AND r.
func And(l, r Expr) Expr { return and{l: l, r: r} }

// Or builds l OR r.
func Or(l, r Expr) Expr { return or{l: l, r: r} }

// Not builds NOT e.
func Not(e Expr) Expr { return not{e: e} }

// IsNull builds e IS NULL.
func IsNull(e Expr) Expr { return isNull{e: e} }

// IsNotNull builds e IS NOT NULL.
func IsNotNull(e Expr) Expr { return isNull{e: e, negate: true} }

// Add builds l + r.
func Add(l, r Expr) Expr { return arith{op: OpAdd, l: l, r: r} }

// Sub builds l - r.
func Sub(l, r Expr) Expr { return arith{op: OpSub, l: l, r: r} }

// Mul builds l * r.
func Mul(l, r Expr) Expr { return arith{op: OpMul, l: l, r: r} }

// Div builds l / r.
func Div(l, r Expr) Expr { return arith{op: OpDiv, l: l, r: r} }

// SplitConjuncts flattens nested ANDs into the list of top-level conjuncts.
func SplitConjuncts(e Expr) []Expr {
	if e == nil {
		return nil
	}
	if a, ok := e.(and); ok {
		return append(SplitConjuncts(a.l), SplitConjuncts(a.r)...)
	}
	return []Expr{e}
}

// Columns returns every column referenced by the expression, in first
// appearance order, deduplicated.
func Columns(e Expr) []ColumnRef {
	var out []ColumnRef
	seen := make(map[ColumnRef]struct{})
	walkColumns(e, func(c ColumnRef) {
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	})
	return out
}

func walkColumns(e Expr, fn func(ColumnRef)) {
	switch v := e.(type) {
	case nil:
	case ColumnRef:
		fn(v)
	case literal:
	case compare:
		walkColumns(v.l, fn)
		walkColumns(v.r, fn)
	case arith:
		walkColumns(v.l, fn)
		walkColumns(v.r, fn)
	case and:
		walkColumns(v.l, fn)
		walkColumns(v.r, fn)
	case or:
		walkColumns(v.l, fn)
		walkColumns(v.r, fn)
	case not:
		walkColumns(v.e, fn)
	case isNull:
		walkColumns(v.e, fn)
	}
}

// Render joins expression strings for descriptors, "" for nil.
func Render(exprs []Expr) string {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, ", ")
}
