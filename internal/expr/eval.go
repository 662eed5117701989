package expr

import (
	"errors"
	"fmt"

	"github.com/tidelake/tide/internal/rows"
)

var (
	// ErrUnresolved is returned when a column reference cannot be resolved
	// against the row schema at bind time.
	ErrUnresolved = errors.New("unresolved column reference")

	// ErrType is returned when an operator receives values it cannot
	// combine, e.g. arithmetic over strings.
	ErrType = errors.New("type mismatch")

	// ErrDivisionByZero is returned by integer division by zero.
	ErrDivisionByZero = errors.New("division by zero")
)

// Resolver maps a column reference to its slot in the flat row the bound
// expression will be evaluated against.
type Resolver interface {
	ResolveColumn(c ColumnRef) (int, error)
}

// Bound is an expression bound to positional row slots, ready to evaluate.
// Eval returns nil for NULL results.
type Bound interface {
	Eval(row rows.Row) (any, error)
}

type boundColumn struct{ idx int }

func (b boundColumn) Eval(row rows.Row) (any, error) { return row[b.idx], nil }

type boundLiteral struct{ value any }

func (b boundLiteral) Eval(rows.Row) (any, error) { return b.value, nil }

type boundCompare struct {
	op   CompareOp
	l, r Bound
}

func (b boundCompare) Eval(row rows.Row) (any, error) {
	lv, err := b.l.Eval(row)
	if err != nil {
		return nil, err
	}
	rv, err := b.r.Eval(row)
	if err != nil {
		return nil, err
	}
	if lv == nil || rv == nil {
		return nil, nil
	}

	switch b.op {
	case OpEq:
		return ValuesEqual(lv, rv), nil
	case OpNe:
		return !ValuesEqual(lv, rv), nil
	}

	cmp, ok := CompareValues(lv, rv)
	if !ok {
		return nil, fmt.Errorf("%w: cannot compare %T with %T", ErrType, lv, rv)
	}
	switch b.op {
	case OpLt:
		return cmp < 0, nil
	case OpLe:
		return cmp <= 0, nil
	case OpGt:
		return cmp > 0, nil
	case OpGe:
		return cmp >= 0, nil
	}
	return nil, fmt.Errorf("unknown comparison operator %d", b.op)
}

type boundArith struct {
	op   ArithOp
	l, r Bound
}

func (b boundArith) Eval(row rows.Row) (any, error) {
	lv, err := b.l.Eval(row)
	if err != nil {
		return nil, err
	}
	rv, err := b.r.Eval(row)
	if err != nil {
		return nil, err
	}
	if lv == nil || rv == nil {
		return nil, nil
	}

	// Integer arithmetic stays integer; anything involving a float
	// promotes to float.
	li, lInt := toInt64(lv)
	ri, rInt := toInt64(rv)
	if lInt && rInt {
		switch b.op {
		case OpAdd:
			return li + ri, nil
		case OpSub:
			return li - ri, nil
		case OpMul:
			return li * ri, nil
		case OpDiv:
			if ri == 0 {
				return nil, ErrDivisionByZero
			}
			return li / ri, nil
		}
	}

	lf, lOk := toFloat64(lv)
	rf, rOk := toFloat64(rv)
	if !lOk || !rOk {
		return nil, fmt.Errorf("%w: arithmetic over %T and %T", ErrType, lv, rv)
	}
	switch b.op {
	case OpAdd:
		return lf + rf, nil
	case OpSub:
		return lf - rf, nil
	case OpMul:
		return lf * rf, nil
	case OpDiv:
		return lf / rf, nil
	}
	return nil, fmt.Errorf("unknown arithmetic operator %d", b.op)
}

type boundAnd struct{ l, r Bound }

func (b boundAnd) Eval(row rows.Row) (any, error) {
	lv, err := evalBool(b.l, row)
	if err != nil {
		return nil, err
	}
	if lv != nil && !*lv {
		return false, nil
	}
	rv, err := evalBool(b.r, row)
	if err != nil {
		return nil, err
	}
	if rv != nil && !*rv {
		return false, nil
	}
	if lv == nil || rv == nil {
		return nil, nil
	}
	return true, nil
}

type boundOr struct{ l, r Bound }

func (b boundOr) Eval(row rows.Row) (any, error) {
	lv, err := evalBool(b.l, row)
	if err != nil {
		return nil, err
	}
	if lv != nil && *lv {
		return true, nil
	}
	rv, err := evalBool(b.r, row)
	if err != nil {
		return nil, err
	}
	if rv != nil && *rv {
		return true, nil
	}
	if lv == nil || rv == nil {
		return nil, nil
	}
	return false, nil
}

type boundNot struct{ e Bound }

func (b boundNot) Eval(row rows.Row) (any, error) {
	v, err := evalBool(b.e, row)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return !*v, nil
}

type boundIsNull struct {
	e      Bound
	negate bool
}

func (b boundIsNull) Eval(row rows.Row) (any, error) {
	v, err := b.e.Eval(row)
	if err != nil {
		return nil, err
	}
	return (v == nil) != b.negate, nil
}

func evalBool(b Bound, row rows.Row) (*bool, error) {
	v, err := b.Eval(row)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	bv, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: expected boolean, got %T", ErrType, v)
	}
	return &bv, nil
}

// Bind resolves every column reference through the resolver and returns a
// positional form of the expression. Resolution failures surface here,
// before any row is evaluated.
func Bind(e Expr, r Resolver) (Bound, error) {
	switch v := e.(type) {
	case ColumnRef:
		idx, err := r.ResolveColumn(v)
		if err != nil {
			return nil, err
		}
		return boundColumn{idx: idx}, nil
	case literal:
		return boundLiteral{value: v.value}, nil
	case compare:
		l, err := Bind(v.l, r)
		if err != nil {
			return nil, err
		}
		rt, err := Bind(v.r, r)
		if err != nil {
			return nil, err
		}
		return boundCompare{op: v.op, l: l, r: rt}, nil
	case arith:
		l, err := Bind(v.l, r)
		if err != nil {
			return nil, err
		}
		rt, err := Bind(v.r, r)
		if err != nil {
			return nil, err
		}
		return boundArith{op: v.op, l: l, r: rt}, nil
	case and:
		l, err := Bind(v.l, r)
		if err != nil {
			return nil, err
		}
		rt, err := Bind(v.r, r)
		if err != nil {
			return nil, err
		}
		return boundAnd{l: l, r: rt}, nil
	case or:
		l, err := Bind(v.l, r)
		if err != nil {
			return nil, err
		}
		rt, err := Bind(v.r, r)
		if err != nil {
			return nil, err
		}
		return boundOr{l: l, r: rt}, nil
	case not:
		inner, err := Bind(v.e, r)
		if err != nil {
			return nil, err
		}
		return boundNot{e: inner}, nil
	case isNull:
		inner, err := Bind(v.e, r)
		if err != nil {
			return nil, err
		}
		return boundIsNull{e: inner, negate: v.negate}, nil
	}
	return nil, fmt.Errorf("unknown expression node %T", e)
}

// EvalPredicate evaluates a bound predicate, mapping NULL to false.
func EvalPredicate(b Bound, row rows.Row) (bool, error) {
	v, err := b.Eval(row)
	if err != nil {
		return false, err
	}
	if v == nil {
		return false, nil
	}
	bv, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: predicate evaluated to %T", ErrType, v)
	}
	return bv, nil
}

// SchemaResolver resolves unqualified references against a single schema.
type SchemaResolver struct {
	Schema *rows.Schema
}

func (r SchemaResolver) ResolveColumn(c ColumnRef) (int, error) {
	idx, ok := r.Schema.Index(c.Name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnresolved, c)
	}
	return idx, nil
}
