package table

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tidelake/tide/internal/rows"
	"github.com/tidelake/tide/pkg/objectstore"
)

func logSchema() *rows.Schema {
	return rows.NewSchema(
		rows.Column{Name: "id", Type: rows.TypeInt64},
		rows.Column{Name: "v", Type: rows.TypeString},
	)
}

func addFileAction(id string, rowCount int64) Action {
	return Action{Add: &AddFile{
		ID:        id,
		Path:      "tbl/data/" + id + ".tide.zst",
		Size:      128,
		Rows:      rowCount,
		CreatedAt: time.Now().UTC(),
	}}
}

func TestLogCreateAndSnapshot(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()

	l, err := Create(ctx, store, "tbl", "events", logSchema(), []string{"v"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	snap, err := l.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Version != 0 {
		t.Errorf("version = %d, want 0", snap.Version)
	}
	if snap.Metadata.Name != "events" {
		t.Errorf("name = %q", snap.Metadata.Name)
	}
	if !snap.Metadata.Schema.Equal(logSchema()) {
		t.Error("schema did not survive the log")
	}
	if len(snap.Metadata.PartitionColumns) != 1 || snap.Metadata.PartitionColumns[0] != "v" {
		t.Errorf("partition columns = %v", snap.Metadata.PartitionColumns)
	}
	if snap.NumFiles() != 0 {
		t.Errorf("new table has %d files", snap.NumFiles())
	}

	if _, err := Create(ctx, store, "tbl", "events", logSchema(), nil); !errors.Is(err, ErrTableExists) {
		t.Fatalf("expected ErrTableExists, got %v", err)
	}
}

func TestLogSnapshotMissingTable(t *testing.T) {
	l := Open(objectstore.NewMemoryStore(), "nope")
	if _, err := l.Snapshot(context.Background()); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
}

func TestLogCommitAddRemove(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()
	l, err := Create(ctx, store, "tbl", "events", logSchema(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	snap, _ := l.Snapshot(ctx)

	snap, err = l.Commit(ctx, snap, []Action{addFileAction("f1", 10), addFileAction("f2", 5)},
		CommitInfo{Operation: "WRITE"})
	if err != nil {
		t.Fatalf("commit 1: %v", err)
	}
	if snap.Version != 1 || snap.NumFiles() != 2 {
		t.Fatalf("after commit 1: version=%d files=%d", snap.Version, snap.NumFiles())
	}

	snap, err = l.Commit(ctx, snap, []Action{
		{Remove: &RemoveFile{ID: "f1", Path: "tbl/data/f1.tide.zst", AsOfVersion: 1}},
		addFileAction("f3", 12),
	}, CommitInfo{Operation: "MERGE"})
	if err != nil {
		t.Fatalf("commit 2: %v", err)
	}
	if snap.Version != 2 || snap.NumFiles() != 2 {
		t.Fatalf("after commit 2: version=%d files=%d", snap.Version, snap.NumFiles())
	}
	if _, ok := snap.Files["f1"]; ok {
		t.Error("removed file still in snapshot")
	}

	// A fresh handle folds the same state from the log alone.
	fresh, err := Open(store, "tbl").Snapshot(ctx)
	if err != nil {
		t.Fatalf("fresh snapshot: %v", err)
	}
	if fresh.Version != 2 || fresh.NumFiles() != 2 {
		t.Fatalf("fresh snapshot: version=%d files=%d", fresh.Version, fresh.NumFiles())
	}
}

// Two writers committing against the same snapshot: exactly one wins.
func TestLogCommitConflict(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()
	l, err := Create(ctx, store, "tbl", "events", logSchema(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	base, _ := l.Snapshot(ctx)

	if _, err := l.Commit(ctx, base, []Action{addFileAction("w1", 1)}, CommitInfo{Operation: "WRITE"}); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	_, err = l.Commit(ctx, base, []Action{addFileAction("w2", 1)}, CommitInfo{Operation: "WRITE"})
	if !errors.Is(err, ErrCommitConflict) {
		t.Fatalf("expected ErrCommitConflict, got %v", err)
	}

	// The loser's actions never became visible.
	snap, err := l.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Version != 1 {
		t.Errorf("version = %d, want 1", snap.Version)
	}
	if _, ok := snap.Files["w2"]; ok {
		t.Error("losing commit's file is visible")
	}
}

func TestLogHistory(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()
	l, err := Create(ctx, store, "tbl", "events", logSchema(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	snap, _ := l.Snapshot(ctx)

	for i := 0; i < 3; i++ {
		snap, err = l.Commit(ctx, snap, []Action{addFileAction(fmt.Sprintf("f%d", i), 1)},
			CommitInfo{Operation: "WRITE", Parameters: map[string]string{"batch": fmt.Sprint(i)}})
		if err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}

	entries, err := l.History(ctx, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].Parameters["batch"] != "2" || entries[1].Parameters["batch"] != "1" {
		t.Errorf("unexpected order: %v then %v", entries[0].Parameters, entries[1].Parameters)
	}

	all, err := l.History(ctx, 0)
	if err != nil {
		t.Fatalf("history all: %v", err)
	}
	if len(all) != 4 { // 3 writes + CREATE TABLE
		t.Fatalf("expected 4 entries, got %d", len(all))
	}
	if all[len(all)-1].Operation != "CREATE TABLE" {
		t.Errorf("oldest entry is %q", all[len(all)-1].Operation)
	}
}

// A snapshot loaded through a checkpoint must not depend on the entries
// the checkpoint already folded.
func TestLogCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()
	l, err := Create(ctx, store, "tbl", "events", logSchema(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	l.CheckpointInterval = 2

	snap, _ := l.Snapshot(ctx)
	for i := 0; i < 5; i++ {
		snap, err = l.Commit(ctx, snap, []Action{addFileAction(fmt.Sprintf("f%d", i), 1)},
			CommitInfo{Operation: "WRITE"})
		if err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}

	// The last checkpoint covers versions <= 4; drop those entries to
	// prove the snapshot path really reads it.
	for v := int64(0); v <= 4; v++ {
		if err := store.Delete(ctx, fmt.Sprintf("tbl/_log/%020d.json", v)); err != nil {
			t.Fatalf("delete entry %d: %v", v, err)
		}
	}

	got, err := Open(store, "tbl").Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot from checkpoint: %v", err)
	}
	if got.Version != 5 || got.NumFiles() != 5 {
		t.Fatalf("checkpointed snapshot: version=%d files=%d", got.Version, got.NumFiles())
	}
	if got.Metadata.Name != "events" {
		t.Errorf("metadata lost through checkpoint: %q", got.Metadata.Name)
	}
}
