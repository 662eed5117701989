package table

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/tidelake/tide/internal/rows"
)

// Data file layout: a zstd-compressed columnar payload followed by an
// 8-byte xxhash64 of the compressed bytes. The payload starts with the
// magic and carries the schema, so files are self-describing.
const dataFileVersion = 1

var dataFileMagic = [4]byte{'T', 'I', 'D', 'E'}

var (
	ErrDataFileFormat   = errors.New("invalid data file format")
	ErrDataFileVersion  = errors.New("unsupported data file version")
	ErrDataFileChecksum = errors.New("data file checksum mismatch")
)

// EncodeBatch serializes a batch into the data file format.
func EncodeBatch(b *rows.Batch) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(dataFileMagic[:])
	buf.WriteByte(dataFileVersion)
	buf.Write([]byte{0, 0, 0}) // flags + reserved

	writeUint32(&buf, uint32(b.Schema.Len()))
	for _, col := range b.Schema.Columns {
		if err := writeString16(&buf, col.Name); err != nil {
			return nil, err
		}
		buf.WriteByte(byte(col.Type))
		if col.Nullable {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}

	writeUint64(&buf, uint64(b.Len()))
	for ci, col := range b.Schema.Columns {
		for ri, row := range b.Rows {
			v := row[ci]
			if v == nil {
				buf.WriteByte(0)
				continue
			}
			buf.WriteByte(1)
			if err := writeTypedValue(&buf, col.Type, v); err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", col.Name, ri, err)
			}
		}
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	compressed := enc.EncodeAll(buf.Bytes(), nil)
	enc.Close()

	var trailer [8]byte
	binary.LittleEndian.PutUint64(trailer[:], xxhash.Sum64(compressed))
	return append(compressed, trailer[:]...), nil
}

// DecodeBatch parses a data file back into a batch, verifying the
// checksum trailer first.
func DecodeBatch(data []byte) (*rows.Batch, error) {
	if len(data) < 8 {
		return nil, ErrDataFileFormat
	}
	compressed, trailer := data[:len(data)-8], data[len(data)-8:]
	if xxhash.Sum64(compressed) != binary.LittleEndian.Uint64(trailer) {
		return nil, ErrDataFileChecksum
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	payload, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataFileFormat, err)
	}

	r := bytes.NewReader(payload)
	var magic [4]byte
	if _, err := r.Read(magic[:]); err != nil || magic != dataFileMagic {
		return nil, ErrDataFileFormat
	}
	header := make([]byte, 4)
	if _, err := r.Read(header); err != nil {
		return nil, ErrDataFileFormat
	}
	if header[0] != dataFileVersion {
		return nil, fmt.Errorf("%w: %d", ErrDataFileVersion, header[0])
	}

	colCount, err := readUint32(r)
	if err != nil {
		return nil, ErrDataFileFormat
	}
	cols := make([]rows.Column, colCount)
	for i := range cols {
		name, err := readString16(r)
		if err != nil {
			return nil, ErrDataFileFormat
		}
		typeAndNull := make([]byte, 2)
		if _, err := r.Read(typeAndNull); err != nil {
			return nil, ErrDataFileFormat
		}
		cols[i] = rows.Column{Name: name, Type: rows.Type(typeAndNull[0]), Nullable: typeAndNull[1] == 1}
	}
	schema := rows.NewSchema(cols...)

	rowCount, err := readUint64(r)
	if err != nil {
		return nil, ErrDataFileFormat
	}

	batch := rows.NewBatch(schema)
	batch.Rows = make([]rows.Row, rowCount)
	for i := range batch.Rows {
		batch.Rows[i] = make(rows.Row, colCount)
	}
	for ci, col := range cols {
		for ri := uint64(0); ri < rowCount; ri++ {
			present, err := r.ReadByte()
			if err != nil {
				return nil, ErrDataFileFormat
			}
			if present == 0 {
				continue
			}
			v, err := readTypedValue(r, col.Type)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", col.Name, ri, err)
			}
			batch.Rows[ri][ci] = v
		}
	}
	return batch, nil
}

func writeTypedValue(buf *bytes.Buffer, t rows.Type, v any) error {
	switch t {
	case rows.TypeBool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		if b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case rows.TypeInt64:
		n, ok := asInt64(v)
		if !ok {
			return fmt.Errorf("expected int64, got %T", v)
		}
		writeUint64(buf, uint64(n))
	case rows.TypeFloat64:
		f, ok := asFloat64(v)
		if !ok {
			return fmt.Errorf("expected float64, got %T", v)
		}
		writeUint64(buf, math.Float64bits(f))
	case rows.TypeString:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		return writeString32(buf, s)
	case rows.TypeTimestamp:
		ts, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("expected timestamp, got %T", v)
		}
		writeUint64(buf, uint64(ts.UnixNano()))
	default:
		return fmt.Errorf("unknown column type %v", t)
	}
	return nil
}

func readTypedValue(r *bytes.Reader, t rows.Type) (any, error) {
	switch t {
	case rows.TypeBool:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return b == 1, nil
	case rows.TypeInt64:
		n, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		return int64(n), nil
	case rows.TypeFloat64:
		n, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(n), nil
	case rows.TypeString:
		return readString32(r)
	case rows.TypeTimestamp:
		n, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		return time.Unix(0, int64(n)).UTC(), nil
	}
	return nil, fmt.Errorf("unknown column type %v", t)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeString16(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("string too long: %d bytes", len(s))
	}
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(len(s)))
	buf.Write(b[:])
	buf.WriteString(s)
	return nil
}

func writeString32(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint32 {
		return fmt.Errorf("string too long: %d bytes", len(s))
	}
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
	return nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readString16(r *bytes.Reader) (string, error) {
	var b [2]byte
	if _, err := r.Read(b[:]); err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint16(b[:])
	s := make([]byte, n)
	if _, err := r.Read(s); err != nil {
		return "", err
	}
	return string(s), nil
}

func readString32(r *bytes.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	s := make([]byte, n)
	if _, err := r.Read(s); err != nil {
		return "", err
	}
	return string(s), nil
}
