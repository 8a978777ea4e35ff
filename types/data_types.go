package types

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/xitongsys/parquet-go/parquet"
)

type DataType string

const (
	Null           DataType = "null"
	Int64          DataType = "integer"
	Float64        DataType = "number"
	String         DataType = "string"
	Bool           DataType = "boolean"
	Object         DataType = "object"
	Array          DataType = "array"
	Unknown        DataType = "unknown"
	Timestamp      DataType = "timestamp"
	TimestampMilli DataType = "timestamp_milli"
	TimestampMicro DataType = "timestamp_micro"
)

type Record map[string]any

func (r Record) GetStringifiedJSONValue(key string) (string, error) {
	value := r[key]
	switch value.(type) {
	case struct{}, map[string]any, []any:
		s, err := json.Marshal(value)
		return string(s), err
	default:
		return fmt.Sprintf("%v", r[key]), nil
	}
}

// returns parquet physical type & converted type for the datatype
func (d DataType) getParquetEquivalent() (parquet.Type, parquet.ConvertedType) {
	switch d {
	case Int64:
		return parquet.Type_INT64, parquet.ConvertedType_INT_64
	case Float64:
		return parquet.Type_DOUBLE, -1
	case String:
		return parquet.Type_BYTE_ARRAY, parquet.ConvertedType_UTF8
	case Bool:
		return parquet.Type_BOOLEAN, -1
	case Timestamp, TimestampMilli:
		return parquet.Type_INT64, parquet.ConvertedType_TIMESTAMP_MILLIS
	case TimestampMicro:
		return parquet.Type_INT64, parquet.ConvertedType_TIMESTAMP_MICROS
	default:
		return parquet.Type_BYTE_ARRAY, parquet.ConvertedType_JSON
	}
}

func (d DataType) IsTimestamp() bool {
	switch d {
	case Timestamp, TimestampMilli, TimestampMicro:
		return true
	default:
		return false
	}
}
