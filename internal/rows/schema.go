// Package rows defines the in-memory row and schema model shared by the
// expression evaluator, the bulk engine and the table file codec.
package rows

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Type identifies the storage type of a column value.
type Type int

const (
	TypeBool Type = iota
	TypeInt64
	TypeFloat64
	TypeString
	TypeTimestamp
)

var typeNames = map[Type]string{
	TypeBool:      "bool",
	TypeInt64:     "int64",
	TypeFloat64:   "float64",
	TypeString:    "string",
	TypeTimestamp: "timestamp",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// MarshalJSON encodes the type as its name.
func (t Type) MarshalJSON() ([]byte, error) {
	name, ok := typeNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown column type %d", int(t))
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes a type from its name.
func (t *Type) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for typ, n := range typeNames {
		if n == name {
			*t = typ
			return nil
		}
	}
	return fmt.Errorf("unknown column type %q", name)
}

// Column describes one column of a schema.
type Column struct {
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Schema is an ordered list of columns with a name index.
type Schema struct {
	Columns []Column
	index   map[string]int
}

// NewSchema builds a schema from the given columns.
func NewSchema(cols ...Column) *Schema {
	s := &Schema{Columns: cols, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		s.index[c.Name] = i
	}
	return s
}

// Index returns the ordinal of the named column.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Len returns the number of columns.
func (s *Schema) Len() int {
	return len(s.Columns)
}

// Equal reports whether two schemas have identical columns in order.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range s.Columns {
		if other.Columns[i] != c {
			return false
		}
	}
	return true
}

// Hash returns a stable hex digest of the schema definition, used to
// detect schema drift between analysis and commit.
func (s *Schema) Hash() string {
	data, _ := json.Marshal(s.Columns)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// MarshalJSON encodes the schema as its column list.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Columns)
}

// UnmarshalJSON decodes a schema from a column list.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var cols []Column
	if err := json.Unmarshal(data, &cols); err != nil {
		return err
	}
	*s = *NewSchema(cols...)
	return nil
}
