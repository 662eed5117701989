package table

import (
	"context"
	"testing"
	"time"

	"github.com/tidelake/tide/internal/rows"
	"github.com/tidelake/tide/pkg/objectstore"
)

func TestWriteFilesRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()

	batch := rows.NewBatch(codecSchema())
	batch.Append(rows.Row{int64(1), "a", 1.0, true, time.Now().UTC()})
	batch.Append(rows.Row{int64(2), "b", 2.0, false, nil})

	adds, err := WriteFiles(ctx, store, "tbl/data", batch, nil, WriteConfig{})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(adds) != 1 {
		t.Fatalf("expected 1 file, got %d", len(adds))
	}
	add := adds[0]
	if add.Rows != 2 {
		t.Errorf("rows = %d, want 2", add.Rows)
	}
	if add.Stats == nil {
		t.Fatal("expected stats on the written file")
	}
	if min := add.Stats.MinValues["id"]; min != int64(1) {
		t.Errorf("min(id) = %v, want 1", min)
	}
	if max := add.Stats.MaxValues["id"]; max != int64(2) {
		t.Errorf("max(id) = %v, want 2", max)
	}
	if nulls := add.Stats.NullCounts["seen_at"]; nulls != 1 {
		t.Errorf("nulls(seen_at) = %d, want 1", nulls)
	}

	got, err := ReadFile(ctx, store, add.Path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("read %d rows, want 2", got.Len())
	}
}

func TestWriteFilesPartitioned(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()

	schema := rows.NewSchema(
		rows.Column{Name: "region", Type: rows.TypeString},
		rows.Column{Name: "n", Type: rows.TypeInt64},
	)
	batch := rows.NewBatch(schema)
	batch.Append(rows.Row{"eu", int64(1)})
	batch.Append(rows.Row{"us", int64(2)})
	batch.Append(rows.Row{"eu", int64(3)})
	batch.Append(rows.Row{nil, int64(4)})

	adds, err := WriteFiles(ctx, store, "tbl/data", batch, []string{"region"}, WriteConfig{})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(adds) != 3 {
		t.Fatalf("expected one file per partition, got %d", len(adds))
	}
	byRegion := make(map[string]int64)
	for _, a := range adds {
		byRegion[a.PartitionValues["region"]] = a.Rows
	}
	if byRegion["eu"] != 2 || byRegion["us"] != 1 || byRegion["__NULL__"] != 1 {
		t.Errorf("unexpected partition layout: %v", byRegion)
	}
}

func TestWriteFilesRespectsMaxFiles(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()

	schema := rows.NewSchema(rows.Column{Name: "n", Type: rows.TypeInt64})
	batch := rows.NewBatch(schema)
	for i := 0; i < 100; i++ {
		batch.Append(rows.Row{int64(i)})
	}

	adds, err := WriteFiles(ctx, store, "tbl/data", batch, nil, WriteConfig{TargetFileRows: 10, MaxFiles: 3})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(adds) > 3 {
		t.Fatalf("wrote %d files, cap is 3", len(adds))
	}
	var total int64
	for _, a := range adds {
		total += a.Rows
	}
	if total != 100 {
		t.Fatalf("rows across files = %d, want 100", total)
	}
}

func TestWriteFilesEmptyBatch(t *testing.T) {
	adds, err := WriteFiles(context.Background(), objectstore.NewMemoryStore(), "tbl/data",
		rows.NewBatch(codecSchema()), nil, WriteConfig{})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(adds) != 0 {
		t.Fatalf("expected no files for an empty batch, got %d", len(adds))
	}
}

func TestPartitionValueRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		typ rows.Type
		v   any
	}{
		{rows.TypeString, "eu-west"},
		{rows.TypeInt64, int64(-42)},
		{rows.TypeFloat64, 2.75},
		{rows.TypeBool, true},
		{rows.TypeTimestamp, ts},
		{rows.TypeString, nil},
	}
	for _, tt := range tests {
		s := FormatPartitionValue(tt.v)
		got, err := ParsePartitionValue(tt.typ, s)
		if err != nil {
			t.Fatalf("parse %q as %v: %v", s, tt.typ, err)
		}
		if ts, ok := tt.v.(time.Time); ok {
			if !ts.Equal(got.(time.Time)) {
				t.Errorf("timestamp %v != %v", got, tt.v)
			}
			continue
		}
		if got != tt.v {
			t.Errorf("%v (%T) round-tripped to %v (%T)", tt.v, tt.v, got, got)
		}
	}
}
