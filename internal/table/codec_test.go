package table

import (
	"errors"
	"testing"
	"time"

	"github.com/tidelake/tide/internal/rows"
)

func codecSchema() *rows.Schema {
	return rows.NewSchema(
		rows.Column{Name: "id", Type: rows.TypeInt64},
		rows.Column{Name: "name", Type: rows.TypeString, Nullable: true},
		rows.Column{Name: "score", Type: rows.TypeFloat64, Nullable: true},
		rows.Column{Name: "active", Type: rows.TypeBool},
		rows.Column{Name: "seen_at", Type: rows.TypeTimestamp, Nullable: true},
	)
}

func TestCodecRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	batch := rows.NewBatch(codecSchema())
	batch.Append(rows.Row{int64(1), "alice", 3.5, true, ts})
	batch.Append(rows.Row{int64(2), nil, nil, false, nil})
	batch.Append(rows.Row{int64(-9), "", 0.0, true, ts.Add(48 * time.Hour)})

	data, err := EncodeBatch(batch)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeBatch(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Schema.Equal(batch.Schema) {
		t.Fatal("schema did not survive the round trip")
	}
	if got.Len() != batch.Len() {
		t.Fatalf("row count %d, want %d", got.Len(), batch.Len())
	}
	for ri, row := range batch.Rows {
		for ci := range row {
			want, have := row[ci], got.Rows[ri][ci]
			if wt, ok := want.(time.Time); ok {
				if !wt.Equal(have.(time.Time)) {
					t.Errorf("row %d col %d: %v != %v", ri, ci, have, want)
				}
				continue
			}
			if have != want {
				t.Errorf("row %d col %d: %v (%T) != %v (%T)", ri, ci, have, have, want, want)
			}
		}
	}
}

func TestCodecEmptyBatch(t *testing.T) {
	data, err := EncodeBatch(rows.NewBatch(codecSchema()))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeBatch(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Len() != 0 {
		t.Fatalf("expected empty batch, got %d rows", got.Len())
	}
}

func TestCodecChecksum(t *testing.T) {
	batch := rows.NewBatch(codecSchema())
	batch.Append(rows.Row{int64(1), "x", 1.0, true, time.Now().UTC()})
	data, err := EncodeBatch(batch)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// Flip a payload bit; the trailer no longer matches.
	corrupted := append([]byte(nil), data...)
	corrupted[len(corrupted)/2] ^= 0x40
	if _, err := DecodeBatch(corrupted); !errors.Is(err, ErrDataFileChecksum) {
		t.Fatalf("expected ErrDataFileChecksum, got %v", err)
	}

	if _, err := DecodeBatch(data[:4]); !errors.Is(err, ErrDataFileFormat) {
		t.Fatalf("expected ErrDataFileFormat for truncated file, got %v", err)
	}
}
