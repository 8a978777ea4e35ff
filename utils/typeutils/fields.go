package typeutils

import (
	"github.com/streamhouse/tap-shopify/types"
)

// Field carries the datatypes observed for a column across records
type Field struct {
	datatypes *types.Set[types.DataType]
	nullable  bool
}

func NewField(datatype types.DataType) *Field {
	field := &Field{
		datatypes: types.NewSet[types.DataType](),
	}
	if datatype == types.Null {
		field.nullable = true
		return field
	}

	field.datatypes.Insert(datatype)
	return field
}

func (f *Field) setNullable() {
	f.nullable = true
}

func (f *Field) isNullable() bool {
	return f.nullable
}

// getType picks the widest datatype observed for the column
func (f *Field) getType() types.DataType {
	observed := f.datatypes.Array()
	if len(observed) == 0 {
		return types.Null
	}
	if len(observed) == 1 {
		return observed[0]
	}

	resolved := observed[0]
	for _, next := range observed[1:] {
		resolved = widen(resolved, next)
	}
	return resolved
}

// widen resolves the common type of two observed datatypes
func widen(a, b types.DataType) types.DataType {
	if a == b {
		return a
	}

	switch {
	case a == types.Int64 && b == types.Float64, a == types.Float64 && b == types.Int64:
		return types.Float64
	case a.IsTimestamp() && b.IsTimestamp():
		// mixed precision widens to the finer one
		if a == types.TimestampMicro || b == types.TimestampMicro {
			return types.TimestampMicro
		}
		return types.TimestampMilli
	case a.IsTimestamp() && b == types.String, a == types.String && b.IsTimestamp():
		return types.String
	default:
		return types.String
	}
}

type Fields map[string]*Field

// Merge combines observed fields of one record into the accumulated set
func (f Fields) Merge(other Fields) {
	for column, field := range other {
		existing, found := f[column]
		if !found {
			f[column] = field
			continue
		}

		existing.datatypes.Insert(field.datatypes.Array()...)
		if field.nullable {
			existing.setNullable()
		}
	}
}

// Resolve types the stream schema from sample records
func Resolve(stream *types.Stream, objects ...map[string]interface{}) error {
	allfields := Fields{}

	for _, object := range objects {
		fields := Fields{}
		for k, v := range object {
			fields[k] = NewField(TypeFromValue(v))
		}

		// columns absent from this record become nullable
		for fieldName, field := range allfields {
			if _, found := object[fieldName]; !found {
				field.setNullable()
			}
		}

		allfields.Merge(fields)
	}

	for column, field := range allfields {
		stream.UpsertField(column, field.getType(), field.isNullable())
	}

	return nil
}

// ResolveFields types a record into schema properties without touching a
// stream; used for per-batch schema evolution checks
func ResolveFields(record map[string]any) map[string]*types.Property {
	properties := make(map[string]*types.Property)
	for column, value := range record {
		datatype := TypeFromValue(value)
		property := &types.Property{Type: types.NewSet(datatype)}
		if datatype == types.Null {
			property.Type = types.NewSet(types.String, types.Null)
		}
		properties[column] = property
	}

	return properties
}
