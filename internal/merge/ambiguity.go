package merge

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/tidelake/tide/internal/engine"
)

// checkAmbiguity rejects merges where some target row was matched by
// more than one source row. The one safe shape is a matched-clause list
// of exactly one unconditional delete: every duplicate match deletes the
// same row, so multiplicity cannot change the result. The check runs
// over the materialized classification, before any file is written.
func (p *plan) checkAmbiguity(c *classification) error {
	dups := roaring64.New()
	global := roaring64.New()
	for w := range c.seen {
		// Duplicates within a worker were recorded directly; a row id
		// seen by two different workers is a duplicate as well.
		dups.Or(c.dups[w])
		cross := roaring64.And(global, c.seen[w])
		dups.Or(cross)
		global.Or(c.seen[w])
	}
	if dups.IsEmpty() {
		return nil
	}
	if p.safeMultiMatch() {
		return nil
	}

	// Count multiplicities for the error, reusing the materialized rows.
	var matchedIDs []int64
	for _, cr := range c.rows {
		if cr.matched && dups.Contains(uint64(cr.rowID)) {
			matchedIDs = append(matchedIDs, cr.rowID)
		}
	}
	maxCount := int64(0)
	for _, n := range engine.CountByKey(matchedIDs) {
		if n > maxCount {
			maxCount = n
		}
	}
	return fmt.Errorf("%w: %d target rows matched multiple times (worst %d matches)",
		ErrAmbiguousMatch, dups.GetCardinality(), maxCount)
}

// safeMultiMatch reports whether duplicate matches cannot affect the
// outcome: a single unconditional matched delete. A single unconditional
// update is not safe, because which source row feeds the update would
// depend on match order.
func (p *plan) safeMultiMatch() bool {
	return len(p.matched) == 1 &&
		p.matched[0].kind == ActionDelete &&
		p.matched[0].cond == nil
}
