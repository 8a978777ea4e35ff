package typeutils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/streamhouse/tap-shopify/types"
)

func getFirstNotNullType(datatypes []types.DataType) types.DataType {
	for _, datatype := range datatypes {
		if datatype != types.Null {
			return datatype
		}
	}

	return types.Null
}

// ReformatValue casts a value to the resolved column datatype
func ReformatValue(datatype types.DataType, value any) (any, error) {
	if datatype == types.Null {
		return nil, fmt.Errorf("null value datatype")
	}
	if value == nil {
		return nil, nil
	}

	switch datatype {
	case types.Bool:
		return ReformatBool(value)
	case types.Int64:
		return ReformatInt64(value)
	case types.Float64:
		return ReformatFloat64(value)
	case types.Timestamp, types.TimestampMilli, types.TimestampMicro:
		return ReformatDate(value, true)
	case types.String:
		switch v := value.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case time.Time:
			return v.UTC().Format(time.RFC3339Nano), nil
		default:
			return fmt.Sprintf("%v", value), nil
		}
	case types.Object, types.Array:
		return value, nil
	default:
		return value, nil
	}
}

func ReformatBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		i, err := ReformatInt64(v)
		if err != nil {
			return false, err
		}
		return i != 0, nil
	case string:
		return strconv.ParseBool(strings.ToLower(v))
	default:
		return false, fmt.Errorf("failed to cast %v of type %T to bool", value, value)
	}
}

func ReformatInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		return v.Int64()
	case []uint8:
		if len(v) == 1 {
			return int64(v[0]), nil
		}
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	default:
		return 0, fmt.Errorf("failed to cast %v of type %T to int64", value, value)
	}
}

func ReformatFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		i, err := ReformatInt64(v)
		if err != nil {
			return 0, err
		}
		return float64(i), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("failed to cast %v of type %T to float64", value, value)
	}
}

// FormatCursorValue normalizes a cursor value for state storage so the
// state file stays JSON friendly
func FormatCursorValue(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.UTC().Format(time.RFC3339Nano)
	case Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return value
	}
}

// ReformatDate normalizes a value into time.Time; strict controls whether
// epoch numbers are accepted
func ReformatDate(value any, strict bool) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("nil time pointer")
		}
		return *v, nil
	case Time:
		return v.Time, nil
	case string:
		return parseStringTimestamp(v)
	case int, int32, int64:
		if !strict {
			return time.Time{}, fmt.Errorf("refusing to treat integer %v as timestamp", v)
		}
		epoch, err := ReformatInt64(v)
		if err != nil {
			return time.Time{}, err
		}
		if epoch > 1e12 {
			return time.UnixMilli(epoch).UTC(), nil
		}
		return time.Unix(epoch, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("failed to cast %v of type %T to time.Time", value, value)
	}
}
