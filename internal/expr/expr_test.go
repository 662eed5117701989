package expr

import (
	"errors"
	"testing"
	"time"

	"github.com/tidelake/tide/internal/rows"
)

func testSchema() *rows.Schema {
	return rows.NewSchema(
		rows.Column{Name: "id", Type: rows.TypeInt64},
		rows.Column{Name: "name", Type: rows.TypeString},
		rows.Column{Name: "score", Type: rows.TypeFloat64},
		rows.Column{Name: "active", Type: rows.TypeBool},
	)
}

func mustBind(t *testing.T, e Expr) Bound {
	t.Helper()
	b, err := Bind(e, SchemaResolver{Schema: testSchema()})
	if err != nil {
		t.Fatalf("bind %s: %v", e, err)
	}
	return b
}

func TestEvalPredicate(t *testing.T) {
	row := rows.Row{int64(7), "alice", 2.5, true}

	tests := []struct {
		name string
		expr Expr
		want bool
	}{
		{"eq int", Eq(Col("", "id"), Lit(int64(7))), true},
		{"eq int no", Eq(Col("", "id"), Lit(int64(8))), false},
		{"eq coerces int to float", Eq(Col("", "id"), Lit(7.0)), true},
		{"lt float", Lt(Col("", "score"), Lit(3.0)), true},
		{"ge string", Ge(Col("", "name"), Lit("alice")), true},
		{"ne", Ne(Col("", "name"), Lit("bob")), true},
		{"and", And(Eq(Col("", "id"), Lit(int64(7))), Col("", "active")), true},
		{"and short circuit", And(Lit(false), Eq(Col("", "id"), Lit(int64(7)))), false},
		{"or", Or(Lit(false), Col("", "active")), true},
		{"not", Not(Col("", "active")), false},
		{"is null", IsNull(Col("", "name")), false},
		{"is not null", IsNotNull(Col("", "name")), true},
		{"arithmetic", Gt(Add(Col("", "id"), Lit(int64(1))), Lit(int64(7))), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalPredicate(mustBind(t, tt.expr), row)
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			if got != tt.want {
				t.Errorf("%s = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

// NULL comparisons are three-valued: any comparison against NULL is
// unknown, and a predicate evaluating to unknown does not match.
func TestEvalPredicateNull(t *testing.T) {
	row := rows.Row{nil, "alice", nil, true}

	tests := []struct {
		name string
		expr Expr
		want bool
	}{
		{"eq null is not a match", Eq(Col("", "id"), Lit(int64(7))), false},
		{"ne null is not a match either", Ne(Col("", "id"), Lit(int64(7))), false},
		{"null literal matches nothing", Eq(Col("", "name"), Lit(nil)), false},
		{"is null", IsNull(Col("", "id")), true},
		{"not of unknown stays unknown", Not(Eq(Col("", "id"), Lit(int64(7)))), false},
		{"unknown AND false is false", And(Eq(Col("", "id"), Lit(int64(1))), Lit(false)), false},
		{"unknown OR true is true", Or(Eq(Col("", "id"), Lit(int64(1))), Col("", "active")), true},
		{"unknown OR false is unknown", Or(Eq(Col("", "id"), Lit(int64(1))), Lit(false)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalPredicate(mustBind(t, tt.expr), row)
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			if got != tt.want {
				t.Errorf("%s = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestBindUnresolved(t *testing.T) {
	_, err := Bind(Eq(Col("", "missing"), Lit(int64(1))), SchemaResolver{Schema: testSchema()})
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}

	// Resolution failures must surface at bind time, not during a scan.
	_, err = Bind(And(Eq(Col("", "id"), Lit(int64(1))), IsNull(Col("", "nope"))), SchemaResolver{Schema: testSchema()})
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved for nested reference, got %v", err)
	}
}

func TestSplitConjuncts(t *testing.T) {
	a := Eq(Col("", "id"), Lit(int64(1)))
	b := Gt(Col("", "score"), Lit(0.0))
	c := Col("", "active")

	got := SplitConjuncts(And(And(a, b), c))
	if len(got) != 3 {
		t.Fatalf("expected 3 conjuncts, got %d", len(got))
	}

	// OR is not splittable.
	got = SplitConjuncts(Or(a, b))
	if len(got) != 1 {
		t.Fatalf("expected OR to stay whole, got %d parts", len(got))
	}
}

func TestColumns(t *testing.T) {
	e := And(Eq(Col("source", "id"), Col("target", "id")), Gt(Col("", "score"), Lit(1.0)))
	cols := Columns(e)
	if len(cols) != 3 {
		t.Fatalf("expected 3 column refs, got %d: %v", len(cols), cols)
	}
}

func TestCompareValues(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name string
		l, r any
		want int
	}{
		{"int int", int64(1), int64(2), -1},
		{"int float", int64(2), 1.5, 1},
		{"float float", 1.5, 1.5, 0},
		{"string", "a", "b", -1},
		{"time", now, now.Add(time.Second), -1},
		{"bool", false, true, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CompareValues(tt.l, tt.r)
			if !ok {
				t.Fatalf("comparable(%T, %T) = false", tt.l, tt.r)
			}
			if got != tt.want {
				t.Errorf("CompareValues(%v, %v) = %d, want %d", tt.l, tt.r, got, tt.want)
			}
		})
	}

	if _, ok := CompareValues("a", int64(1)); ok {
		t.Error("string and int should not be comparable")
	}
}

func TestAsColumnEquality(t *testing.T) {
	l, r, ok := AsColumnEquality(Eq(Col("source", "id"), Col("target", "id")))
	if !ok {
		t.Fatal("expected a column equality")
	}
	if l.Qualifier != "source" || r.Qualifier != "target" {
		t.Errorf("unexpected sides: %s, %s", l, r)
	}

	if _, _, ok := AsColumnEquality(Eq(Col("", "id"), Lit(int64(1)))); ok {
		t.Error("column-literal comparison is not a column equality")
	}
	if _, _, ok := AsColumnEquality(Ne(Col("", "a"), Col("", "b"))); ok {
		t.Error("inequality is not a column equality")
	}
}

func TestAsColumnCompare(t *testing.T) {
	cmp, ok := AsColumnCompare(Eq(Col("target", "day"), Lit("2026-08-25")))
	if !ok {
		t.Fatal("expected a column-literal comparison")
	}
	if cmp.Col.Name != "day" || cmp.Op != OpEq || cmp.Value != "2026-08-25" {
		t.Errorf("unexpected comparison: %+v", cmp)
	}

	// Literal-column order normalizes with the operator flipped.
	cmp, ok = AsColumnCompare(Lt(Lit(int64(10)), Col("", "id")))
	if !ok {
		t.Fatal("expected normalization of literal-column compare")
	}
	if cmp.Col.Name != "id" || cmp.Op != OpGt {
		t.Errorf("expected id > 10, got %+v", cmp)
	}
}
