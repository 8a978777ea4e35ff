package typeutils

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Compare orders two cursor values, returning -1, 0 or 1. Nil sorts first.
// Values of mixed or unknown types fall back to string ordering so chunk
// bounds and bookmarks always have a total order.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if aTime, ok := asTime(a); ok {
		if bTime, ok := asTime(b); ok {
			return aTime.Compare(bTime)
		}
	}

	if aNum, ok := asFloat(a); ok {
		if bNum, ok := asFloat(b); ok {
			return compareFloats(aNum, bNum)
		}
	}

	if aBool, ok := a.(bool); ok {
		if bBool, ok := b.(bool); ok {
			switch {
			case aBool == bBool:
				return 0
			case bBool:
				return -1
			default:
				return 1
			}
		}
	}

	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func compareFloats(a, b float64) int {
	if math.IsNaN(a) || math.IsNaN(b) {
		switch {
		case math.IsNaN(a) && math.IsNaN(b):
			return 0
		case math.IsNaN(a):
			return -1
		default:
			return 1
		}
	}
	// bookmark values survive a json round trip, so equality is fuzzy
	const eps = 1e-6
	switch diff := a - b; {
	case math.Abs(diff) < eps:
		return 0
	case diff < 0:
		return -1
	default:
		return 1
	}
}

func asTime(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case time.Time:
		return typed, true
	case Time:
		return typed.Time, true
	case string:
		// bookmarks arrive as RFC3339 strings from the API but as
		// time.Time once the state file round trips
		if parsed, err := parseStringTimestamp(typed); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func asFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int8:
		return float64(typed), true
	case int16:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint8:
		return float64(typed), true
	case uint16:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	}
	return 0, false
}
