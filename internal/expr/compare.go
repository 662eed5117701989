package expr

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ValuesEqual compares two non-nil values for equality with numeric
// type coercion.
func ValuesEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return av == bv
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return av == bv
		}
	case uuid.UUID:
		switch bv := b.(type) {
		case uuid.UUID:
			return av == bv
		case string:
			parsed, err := uuid.Parse(bv)
			return err == nil && av == parsed
		}
	case time.Time:
		switch bv := b.(type) {
		case time.Time:
			return av.Equal(bv)
		case string:
			parsed, err := parseTime(bv)
			return err == nil && av.Equal(parsed)
		}
	}

	aNum, aOk := toFloat64(a)
	bNum, bOk := toFloat64(b)
	if aOk && bOk {
		return aNum == bNum
	}

	if aStr, ok := a.(string); ok {
		if bv, ok := b.(uuid.UUID); ok {
			return aStr == bv.String()
		}
	}

	return false
}

// CompareValues orders two values: -1 if a < b, 0 if equal, 1 if a > b.
// ok is false when the values are not comparable. Strings compare
// lexicographically, timestamps chronologically, numerics with coercion.
func CompareValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}

	if aStr, ok := a.(string); ok {
		if bStr, ok := b.(string); ok {
			return strings.Compare(aStr, bStr), true
		}
	}

	if aTime, ok := a.(time.Time); ok {
		switch bv := b.(type) {
		case time.Time:
			return aTime.Compare(bv), true
		case string:
			parsed, err := parseTime(bv)
			if err != nil {
				return 0, false
			}
			return aTime.Compare(parsed), true
		}
	}
	if aStr, ok := a.(string); ok {
		if bTime, ok := b.(time.Time); ok {
			parsed, err := parseTime(aStr)
			if err != nil {
				return 0, false
			}
			return parsed.Compare(bTime), true
		}
	}

	aNum, aOk := toFloat64(a)
	bNum, bOk := toFloat64(b)
	if aOk && bOk {
		switch {
		case aNum < bNum:
			return -1, true
		case aNum > bNum:
			return 1, true
		default:
			return 0, true
		}
	}

	if aBool, ok := a.(bool); ok {
		if bBool, ok := b.(bool); ok {
			switch {
			case aBool == bBool:
				return 0, true
			case !aBool:
				return -1, true
			default:
				return 1, true
			}
		}
	}

	return 0, false
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
	}
	return t, err
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	}
	return 0, false
}
