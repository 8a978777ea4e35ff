package typeutils

import (
	"fmt"
	"reflect"
	"time"

	"github.com/goccy/go-json"

	"github.com/streamhouse/tap-shopify/types"
	"github.com/streamhouse/tap-shopify/utils"
)

var timeType = reflect.TypeOf(time.Time{})

func TypeFromValue(v interface{}) types.DataType {
	if v == nil {
		return types.Null
	}

	switch val := v.(type) {
	case bool:
		return types.Bool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return types.Int64
	case float32, float64:
		return types.Float64
	case string:
		t, err := ReformatDate(v, false)
		if err == nil {
			return detectTimestampPrecision(t)
		}
		return types.String
	case []byte:
		return types.String
	case time.Time:
		return detectTimestampPrecision(val)
	case []any:
		return types.Array
	case map[string]any:
		return types.Object
	}

	return typeFromValueReflect(v)
}

// typeFromValueReflect handles types that require reflection
func typeFromValueReflect(v interface{}) types.DataType {
	valType := reflect.TypeOf(v)
	if valType == nil {
		return types.Null
	}
	if valType.Kind() == reflect.Pointer {
		val := reflect.ValueOf(v)
		if val.IsNil() {
			return types.Null
		}
		return TypeFromValue(val.Elem().Interface())
	}

	// json.Number is detected as string by reflection, handle first
	if num, ok := v.(json.Number); ok {
		if _, err := num.Int64(); err == nil {
			return types.Int64
		}
		return types.Float64
	}

	switch valType.Kind() {
	case reflect.Invalid:
		return types.Null
	case reflect.Bool:
		return types.Bool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return types.Int64
	case reflect.Float32, reflect.Float64:
		return types.Float64
	case reflect.String:
		// strings in a valid datetime format get detected as timestamps
		t, err := ReformatDate(v, false)
		if err == nil {
			return detectTimestampPrecision(t)
		}
		return types.String
	case reflect.Slice, reflect.Array:
		return types.Array
	case reflect.Map:
		return types.Object
	default:
		if valType == timeType {
			return detectTimestampPrecision(v.(time.Time))
		}
		return types.Unknown
	}
}

func MaximumOnDataType[T any](typ types.DataType, a, b T) (T, error) {
	switch {
	case typ.IsTimestamp():
		adate, err := ReformatDate(a, true)
		if err != nil {
			return a, fmt.Errorf("failed to reformat[%v] while comparing: %s", a, err)
		}
		bdate, err := ReformatDate(b, true)
		if err != nil {
			return a, fmt.Errorf("failed to reformat[%v] while comparing: %s", b, err)
		}

		if utils.MaxDate(adate, bdate) == adate {
			return a, nil
		}

		return b, nil
	case typ == types.Int64:
		aint, err := ReformatInt64(a)
		if err != nil {
			return a, fmt.Errorf("failed to reformat[%v] while comparing: %s", a, err)
		}

		bint, err := ReformatInt64(b)
		if err != nil {
			return a, fmt.Errorf("failed to reformat[%v] while comparing: %s", b, err)
		}

		if aint > bint {
			return a, nil
		}

		return b, nil
	case typ == types.String:
		if Compare(a, b) >= 0 {
			return a, nil
		}
		return b, nil
	default:
		return a, fmt.Errorf("comparison not available for data type %v", typ)
	}
}

// Detect timestamp precision depending on time value
func detectTimestampPrecision(t time.Time) types.DataType {
	nanos := t.Nanosecond()
	if nanos == 0 {
		return types.Timestamp
	}
	if nanos%int(time.Millisecond) == 0 {
		return types.TimestampMilli
	}
	return types.TimestampMicro
}
