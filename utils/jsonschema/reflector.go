package jsonschema

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Reflect builds a JSON schema for a configuration struct. Field names come
// from json tags and required fields from the validate tag.
func Reflect(config any) (map[string]any, error) {
	typ := reflect.TypeOf(config)
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("config spec must be a struct, got %v", typ)
	}

	schema := reflectType(typ)
	schema["$schema"] = "http://json-schema.org/draft-07/schema#"
	return schema, nil
}

func reflectType(typ reflect.Type) map[string]any {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	switch typ.Kind() {
	case reflect.Struct:
		if typ == reflect.TypeOf(time.Time{}) {
			return map[string]any{"type": "string", "format": "date-time"}
		}
		return reflectStruct(typ)
	case reflect.String:
		return map[string]any{"type": "string"}
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.Slice, reflect.Array:
		return map[string]any{
			"type":  "array",
			"items": reflectType(typ.Elem()),
		}
	case reflect.Map:
		return map[string]any{"type": "object"}
	default:
		// interfaces and anything else accept arbitrary JSON
		return map[string]any{}
	}
}

func reflectStruct(typ reflect.Type) map[string]any {
	properties := map[string]any{}
	var required []string

	for idx := range typ.NumField() {
		field := typ.Field(idx)
		if !field.IsExported() {
			continue
		}

		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}

		properties[name] = reflectType(field.Type)
		if strings.Contains(field.Tag.Get("validate"), "required") {
			required = append(required, name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
