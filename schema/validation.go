package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Kind classifies a validation failure.
type Kind string

// Validation failure kinds.
const (
	KindRequired Kind = "required"
	KindType     Kind = "type"
	KindEnum     Kind = "enum"
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Path    string `json:"field"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range e {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Fields returns the failing field names in report order.
func (e ValidationErrors) Fields() []string {
	fields := make([]string, len(e))
	for i, err := range e {
		fields[i] = err.Path
	}
	return fields
}

// Validate checks args against the shape and returns a copy with declared
// defaults applied to absent fields. Unknown fields are carried through.
// Every failing field is reported as a ValidationErrors.
func (s *Schema) Validate(args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(args)+len(s.Properties))
	for k, v := range args {
		out[k] = v
	}

	var errs ValidationErrors
	for _, name := range s.propertyNames() {
		prop := s.Properties[name]
		val, ok := args[name]
		if !ok || val == nil {
			switch {
			case s.IsRequired(name):
				errs = append(errs, &ValidationError{
					Path:    name,
					Kind:    KindRequired,
					Message: "required field is missing",
				})
			case prop.Default != nil:
				out[name] = prop.Default
			}
			continue
		}
		if err := prop.check(name, val); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// ValidateJSON decodes raw JSON arguments and validates them.
// Empty input is treated as an empty object.
func (s *Schema) ValidateJSON(data json.RawMessage) (map[string]any, error) {
	var args map[string]any
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &args); err != nil {
			return nil, ValidationErrors{{
				Kind:    KindType,
				Message: fmt.Sprintf("arguments must be an object: %s", err),
			}}
		}
	}
	return s.Validate(args)
}

// propertyNames returns Order when set, falling back to Required followed
// by the remaining properties for hand-built shapes.
func (s *Schema) propertyNames() []string {
	if len(s.Order) > 0 {
		return s.Order
	}
	names := make([]string, 0, len(s.Properties))
	seen := make(map[string]bool, len(s.Properties))
	for _, r := range s.Required {
		if !seen[r] {
			names = append(names, r)
			seen[r] = true
		}
	}
	var rest []string
	for name := range s.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

func (s *Schema) check(path string, value any) *ValidationError {
	if !matchesType(s.Type, value) {
		return &ValidationError{
			Path:    path,
			Kind:    KindType,
			Message: fmt.Sprintf("expected %s, got %s", s.Type, jsonType(value)),
		}
	}

	if len(s.Enum) > 0 {
		for _, e := range s.Enum {
			if e == value {
				return nil
			}
		}
		return &ValidationError{
			Path:    path,
			Kind:    KindEnum,
			Message: fmt.Sprintf("value must be one of: %s", enumList(s.Enum)),
		}
	}
	return nil
}

func matchesType(typ string, value any) bool {
	switch typ {
	case "":
		return true
	case typeString:
		_, ok := value.(string)
		return ok
	case typeBoolean:
		_, ok := value.(bool)
		return ok
	case typeNumber:
		switch value.(type) {
		case float64, float32, int, int64, json.Number:
			return true
		}
		return false
	case typeInteger:
		switch v := value.(type) {
		case int, int64:
			return true
		case float64:
			return v == math.Trunc(v) && !math.IsInf(v, 0)
		case json.Number:
			_, err := v.Int64()
			return err == nil
		}
		return false
	case typeArray:
		_, ok := value.([]any)
		return ok
	case typeObject:
		_, ok := value.(map[string]any)
		return ok
	default:
		return false
	}
}

func jsonType(value any) string {
	switch value.(type) {
	case string:
		return typeString
	case bool:
		return typeBoolean
	case float64, float32, int, int64, json.Number:
		return typeNumber
	case []any:
		return typeArray
	case map[string]any:
		return typeObject
	default:
		return fmt.Sprintf("%T", value)
	}
}

func enumList(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
