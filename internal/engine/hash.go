// Package engine implements the bulk row-set operators the merge path
// delegates to: hash joins, filters, projections, partitioned parallel
// map and grouped counting.
package engine

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/tidelake/tide/internal/rows"
)

// hashKey hashes the key columns of a row into one bucketable value.
// Numeric values hash by their canonical form so 1 and 1.0 land in the
// same bucket; final equality is always re-checked value by value.
func hashKey(row rows.Row, keys []int) uint64 {
	d := xxhash.New()
	var buf [9]byte
	for _, k := range keys {
		writeValue(d, buf[:], row[k])
	}
	return d.Sum64()
}

func writeValue(d *xxhash.Digest, buf []byte, v any) {
	switch n := v.(type) {
	case nil:
		buf[0] = 0x00
		d.Write(buf[:1])
	case bool:
		buf[0] = 0x01
		if n {
			buf[1] = 1
		} else {
			buf[1] = 0
		}
		d.Write(buf[:2])
	case string:
		buf[0] = 0x02
		d.Write(buf[:1])
		d.WriteString(n)
	case time.Time:
		buf[0] = 0x03
		binary.LittleEndian.PutUint64(buf[1:9], uint64(n.UnixNano()))
		d.Write(buf[:9])
	default:
		if i, ok := toCanonicalInt(v); ok {
			buf[0] = 0x04
			binary.LittleEndian.PutUint64(buf[1:9], uint64(i))
			d.Write(buf[:9])
			return
		}
		if f, ok := toFloat(v); ok {
			buf[0] = 0x05
			binary.LittleEndian.PutUint64(buf[1:9], math.Float64bits(f))
			d.Write(buf[:9])
			return
		}
		buf[0] = 0xff
		d.Write(buf[:1])
	}
}

// toCanonicalInt maps any integral numeric value, including integral
// floats, onto int64 so equal keys hash equally across numeric types.
func toCanonicalInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt64 && n <= math.MaxInt64 {
			return int64(n), true
		}
	case float32:
		f := float64(n)
		if f == math.Trunc(f) && f >= math.MinInt64 && f <= math.MaxInt64 {
			return int64(f), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
