package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const shapeURL = "https://mcp.schemas.local/shape.schema.json"

// Compile checks that the shape is a well-formed Draft 2020-12 schema and
// that every declared default satisfies its own property. It is meant to run
// once at registration time.
func (s *Schema) Compile() error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("schema: marshal shape: %w", err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(shapeURL, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("schema: load shape: %w", err)
	}
	if _, err := c.Compile(shapeURL); err != nil {
		return fmt.Errorf("schema: compile shape: %w", err)
	}

	for _, name := range s.propertyNames() {
		prop := s.Properties[name]
		if prop == nil {
			return fmt.Errorf("schema: property %q has no shape", name)
		}
		if prop.Default == nil {
			continue
		}
		if err := checkDefault(c, name, prop.Default); err != nil {
			return err
		}
	}
	return nil
}

func checkDefault(c *jsonschema.Compiler, name string, def any) error {
	ptr := shapeURL + "#/properties/" + escapePointer(name)
	prop, err := c.Compile(ptr)
	if err != nil {
		return fmt.Errorf("schema: compile property %q: %w", name, err)
	}

	// Round-trip through JSON so numeric defaults reach the validator as
	// json.Number, the form it expects.
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("schema: marshal default for %q: %w", name, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("schema: decode default for %q: %w", name, err)
	}

	if err := prop.Validate(v); err != nil {
		return fmt.Errorf("schema: default for %q does not satisfy its shape: %w", name, err)
	}
	return nil
}

func escapePointer(s string) string {
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(s)
}
