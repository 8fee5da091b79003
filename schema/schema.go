// Package schema provides flat JSON Schema shapes generated from Go types.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Schema type constants.
const (
	typeObject  = "object"
	typeArray   = "array"
	typeString  = "string"
	typeInteger = "integer"
	typeNumber  = "number"
	typeBoolean = "boolean"
)

// ErrNotObject is returned when a shape is generated from a non-struct type.
var ErrNotObject = errors.New("schema: argument shape must be a struct")

// Schema represents a JSON Schema.
//
// Argument shapes are flat: the top level is an object and each property is
// a primitive, an array or an untyped object. Nested properties are checked
// for type only.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Description string             `json:"description,omitempty"`
	Default     any                `json:"default,omitempty"`
	Enum        []any              `json:"enum,omitempty"`

	// Order lists property names in declaration order.
	Order []string `json:"-"`
}

// IsRequired reports whether the named property is required.
func (s *Schema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// Generate creates a JSON Schema from a Go struct value.
func Generate(v any) (*Schema, error) {
	return GenerateFromType(reflect.TypeOf(v))
}

// GenerateFromType creates a JSON Schema from a struct reflect.Type.
func GenerateFromType(t reflect.Type) (*Schema, error) {
	if t == nil {
		return nil, ErrNotObject
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: got %s", ErrNotObject, t.Kind())
	}
	return generateStructSchema(t)
}

func typeOf(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return typeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return typeInteger
	case reflect.Float32, reflect.Float64:
		return typeNumber
	case reflect.Bool:
		return typeBoolean
	case reflect.Slice, reflect.Array:
		return typeArray
	case reflect.Map, reflect.Struct:
		return typeObject
	default:
		return ""
	}
}

func generateStructSchema(t reflect.Type) (*Schema, error) {
	schema := &Schema{
		Type:       typeObject,
		Properties: make(map[string]*Schema),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		// Skip unexported fields
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		fieldName := field.Name
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				fieldName = parts[0]
			}
		}

		fieldSchema := &Schema{Type: typeOf(field.Type)}
		required, err := parseJSONSchemaTag(field.Tag.Get("jsonschema"), fieldSchema)
		if err != nil {
			return nil, fmt.Errorf("schema: field %s: %w", fieldName, err)
		}
		if required {
			schema.Required = append(schema.Required, fieldName)
		}

		schema.Properties[fieldName] = fieldSchema
		schema.Order = append(schema.Order, fieldName)
	}

	return schema, nil
}

var tagKeys = []string{"required", "description=", "default=", "enum="}

// splitTag splits a jsonschema tag on commas that start a known key, so
// descriptions may contain commas.
func splitTag(tag string) []string {
	var parts []string
	for _, raw := range strings.Split(tag, ",") {
		trimmed := strings.TrimSpace(raw)
		known := false
		for _, k := range tagKeys {
			if trimmed == k || (strings.HasSuffix(k, "=") && strings.HasPrefix(trimmed, k)) {
				known = true
				break
			}
		}
		if known || len(parts) == 0 {
			parts = append(parts, trimmed)
			continue
		}
		parts[len(parts)-1] += "," + raw
	}
	return parts
}

func parseJSONSchemaTag(tag string, schema *Schema) (bool, error) {
	if tag == "" {
		return false, nil
	}

	var required bool
	for _, part := range splitTag(tag) {
		switch {
		case part == "required":
			required = true
		case strings.HasPrefix(part, "description="):
			schema.Description = strings.TrimPrefix(part, "description=")
		case strings.HasPrefix(part, "enum="):
			for _, v := range strings.Split(strings.TrimPrefix(part, "enum="), "|") {
				schema.Enum = append(schema.Enum, v)
			}
		case strings.HasPrefix(part, "default="):
			def, err := parseDefault(schema.Type, strings.TrimPrefix(part, "default="))
			if err != nil {
				return false, err
			}
			schema.Default = def
		}
	}
	return required, nil
}

func parseDefault(typ, raw string) (any, error) {
	switch typ {
	case typeString:
		return raw, nil
	case typeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer default %q", raw)
		}
		return n, nil
	case typeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number default %q", raw)
		}
		return f, nil
	case typeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean default %q", raw)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("default not supported for %s fields", typ)
	}
}
