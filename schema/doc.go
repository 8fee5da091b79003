// Package schema provides flat argument shapes for tools and prompts.
//
// Shapes are generated from Go structs and used to validate incoming
// arguments before a handler runs.
//
// # Basic Usage
//
//	type ReviewArgs struct {
//	    Code     string `json:"code" jsonschema:"required,description=Code to review"`
//	    Language string `json:"language" jsonschema:"default=unknown"`
//	    Focus    string `json:"focus" jsonschema:"enum=security|performance|all,default=all"`
//	}
//
//	shape, err := schema.Generate(ReviewArgs{})
//	args, err := shape.Validate(map[string]any{"code": "x := 1"})
//	// args["language"] == "unknown", args["focus"] == "all"
//
//	typed, err := schema.Decode[ReviewArgs](shape, raw)
//
// # Struct Tags
//
// The jsonschema tag accepts:
//
//	required            the field must be present and non-null
//	description=...     free text, commas allowed
//	default=...         applied when the field is absent
//	enum=a|b|c          allowed string values
//
// # Validation
//
// Validation is one level deep. Each failing field yields a ValidationError
// with a Kind of required, type or enum; all failures are collected into a
// ValidationErrors. Unknown fields are passed through untouched.
//
// Compile checks a shape against the Draft 2020-12 meta-schema and verifies
// declared defaults, so broken shapes fail at registration instead of on the
// first call.
package schema
