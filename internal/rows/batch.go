package rows

// Row is one record. Values are positional per the batch schema;
// nil means NULL.
type Row []any

// Clone returns a copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Batch is a schema plus a set of rows. Batches are the unit the bulk
// engine operates on; they are never mutated once handed to an operator.
type Batch struct {
	Schema *Schema
	Rows   []Row
}

// NewBatch creates an empty batch for the schema.
func NewBatch(schema *Schema) *Batch {
	return &Batch{Schema: schema}
}

// Append adds a row. The caller is responsible for matching the schema.
func (b *Batch) Append(r Row) {
	b.Rows = append(b.Rows, r)
}

// Len returns the number of rows.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}
