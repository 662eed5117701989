package expr

// Comparison is the deconstructed form of a column-vs-literal compare,
// normalized so the column is on the left.
type Comparison struct {
	Op    CompareOp
	Col   ColumnRef
	Value any
}

// AsColumnCompare matches `col op literal` or `literal op col` (with the
// operator flipped), the only compare shape the data skipping gate can
// use file statistics against.
func AsColumnCompare(e Expr) (Comparison, bool) {
	c, ok := e.(compare)
	if !ok {
		return Comparison{}, false
	}
	if col, ok := c.l.(ColumnRef); ok {
		if lit, ok := c.r.(literal); ok {
			return Comparison{Op: c.op, Col: col, Value: lit.value}, true
		}
	}
	if col, ok := c.r.(ColumnRef); ok {
		if lit, ok := c.l.(literal); ok {
			return Comparison{Op: flipCompare(c.op), Col: col, Value: lit.value}, true
		}
	}
	return Comparison{}, false
}

// AsColumnEquality matches `col = col`, the shape join planning turns
// into hash join keys.
func AsColumnEquality(e Expr) (l, r ColumnRef, ok bool) {
	c, isCmp := e.(compare)
	if !isCmp || c.op != OpEq {
		return ColumnRef{}, ColumnRef{}, false
	}
	lc, lOk := c.l.(ColumnRef)
	rc, rOk := c.r.(ColumnRef)
	if !lOk || !rOk {
		return ColumnRef{}, ColumnRef{}, false
	}
	return lc, rc, true
}

// AsAnd deconstructs a conjunction.
func AsAnd(e Expr) (l, r Expr, ok bool) {
	a, ok := e.(and)
	if !ok {
		return nil, nil, false
	}
	return a.l, a.r, true
}

// AsOr deconstructs a disjunction.
func AsOr(e Expr) (l, r Expr, ok bool) {
	o, ok := e.(or)
	if !ok {
		return nil, nil, false
	}
	return o.l, o.r, true
}

func flipCompare(op CompareOp) CompareOp {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	}
	return op
}
