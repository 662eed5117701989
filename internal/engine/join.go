package engine

import (
	"fmt"

	"github.com/tidelake/tide/internal/expr"
	"github.com/tidelake/tide/internal/rows"
)

// JoinType selects the join variant.
type JoinType int

const (
	// InnerJoin emits only matching pairs.
	InnerJoin JoinType = iota

	// RightOuterJoin preserves every right row; unmatched right rows get
	// Left == -1.
	RightOuterJoin

	// FullOuterJoin preserves both sides; unmatched rows get -1 on the
	// absent side.
	FullOuterJoin
)

// JoinedPair references one output row of a join by the indexes of its
// constituent input rows. An index of -1 means that side is absent.
type JoinedPair struct {
	Left  int
	Right int
}

// HashJoin joins left and right on positional key columns. NULL keys
// never match (SQL semantics): a row with any NULL key joins nothing and
// survives only through the outer variants.
func HashJoin(left, right *rows.Batch, leftKeys, rightKeys []int, typ JoinType) ([]JoinedPair, error) {
	if len(leftKeys) != len(rightKeys) {
		return nil, fmt.Errorf("join key count mismatch: %d vs %d", len(leftKeys), len(rightKeys))
	}

	table := buildHashTable(right, rightKeys)
	rightMatched := make([]bool, right.Len())

	var out []JoinedPair
	for li, lrow := range left.Rows {
		matches := table.probe(lrow, leftKeys, right, rightKeys)
		if len(matches) == 0 {
			if typ == FullOuterJoin {
				out = append(out, JoinedPair{Left: li, Right: -1})
			}
			continue
		}
		for _, ri := range matches {
			rightMatched[ri] = true
			out = append(out, JoinedPair{Left: li, Right: ri})
		}
	}

	if typ == RightOuterJoin || typ == FullOuterJoin {
		for ri := range right.Rows {
			if !rightMatched[ri] {
				out = append(out, JoinedPair{Left: -1, Right: ri})
			}
		}
	}
	return out, nil
}

// LeftAntiJoin returns the indexes of left rows with no match in right.
// A left row with a NULL key matches nothing and is therefore emitted.
func LeftAntiJoin(left, right *rows.Batch, leftKeys, rightKeys []int) ([]int, error) {
	if len(leftKeys) != len(rightKeys) {
		return nil, fmt.Errorf("join key count mismatch: %d vs %d", len(leftKeys), len(rightKeys))
	}

	table := buildHashTable(right, rightKeys)

	var out []int
	for li, lrow := range left.Rows {
		if len(table.probe(lrow, leftKeys, right, rightKeys)) == 0 {
			out = append(out, li)
		}
	}
	return out, nil
}

type hashTable struct {
	buckets map[uint64][]int
}

func buildHashTable(b *rows.Batch, keys []int) *hashTable {
	t := &hashTable{buckets: make(map[uint64][]int, b.Len())}
	for i, row := range b.Rows {
		if hasNullKey(row, keys) {
			continue
		}
		h := hashKey(row, keys)
		t.buckets[h] = append(t.buckets[h], i)
	}
	return t
}

func (t *hashTable) probe(lrow rows.Row, leftKeys []int, right *rows.Batch, rightKeys []int) []int {
	if hasNullKey(lrow, leftKeys) {
		return nil
	}
	h := hashKey(lrow, leftKeys)
	candidates := t.buckets[h]
	if len(candidates) == 0 {
		return nil
	}

	var matches []int
	for _, ri := range candidates {
		if keysEqual(lrow, leftKeys, right.Rows[ri], rightKeys) {
			matches = append(matches, ri)
		}
	}
	return matches
}

func hasNullKey(row rows.Row, keys []int) bool {
	for _, k := range keys {
		if row[k] == nil {
			return true
		}
	}
	return false
}

func keysEqual(lrow rows.Row, leftKeys []int, rrow rows.Row, rightKeys []int) bool {
	for i := range leftKeys {
		if !expr.ValuesEqual(lrow[leftKeys[i]], rrow[rightKeys[i]]) {
			return false
		}
	}
	return true
}
