package merge

import (
	"errors"
	"sort"
	"sync/atomic"
)

// ErrAlreadyDrained is returned when a TouchedFileSet is read twice.
var ErrAlreadyDrained = errors.New("touched file set already drained")

// TouchedFileSet accumulates the identifiers of files containing at
// least one row the merge rewrites or deletes. Each classification
// worker owns one shard and adds without coordination; the union is
// taken once, after every worker has finished. Reading twice is a bug
// in the caller and fails loudly.
type TouchedFileSet struct {
	shards  []map[string]struct{}
	drained atomic.Bool
}

// NewTouchedFileSet creates a set with one shard per worker.
func NewTouchedFileSet(workers int) *TouchedFileSet {
	if workers < 1 {
		workers = 1
	}
	shards := make([]map[string]struct{}, workers)
	for i := range shards {
		shards[i] = make(map[string]struct{})
	}
	return &TouchedFileSet{shards: shards}
}

// Shard returns worker i's private shard. Shards must not be shared
// between concurrent workers.
func (t *TouchedFileSet) Shard(i int) Shard {
	return Shard{m: t.shards[i]}
}

// Shard is one worker's view of the set.
type Shard struct {
	m map[string]struct{}
}

// Add records a file identifier. Duplicate adds are fine.
func (s Shard) Add(fileID string) {
	s.m[fileID] = struct{}{}
}

// Drain unions all shards into a sorted, deduplicated identifier list.
// It may be called exactly once, and only after the classification pass
// completed.
func (t *TouchedFileSet) Drain() ([]string, error) {
	if !t.drained.CompareAndSwap(false, true) {
		return nil, ErrAlreadyDrained
	}
	seen := make(map[string]struct{})
	for _, shard := range t.shards {
		for id := range shard {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
