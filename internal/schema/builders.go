package schema

import "github.com/google/jsonschema-go/jsonschema"

// String is a non-nullable string property.
func String() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string"}
}

// Number is a non-nullable number property.
func Number() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number"}
}

// Boolean is a non-nullable boolean property.
func Boolean() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean"}
}

// NonEmptyString is a string with at least one character.
func NonEmptyString() *jsonschema.Schema {
	one := 1
	return &jsonschema.Schema{Type: "string", MinLength: &one}
}

// ArrayOf is an array whose items all match items.
func ArrayOf(items *jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Items: items}
}

// Object is a closed object: properties not declared in props are rejected.
func Object(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}

// Nullable additionally admits null for s.
func Nullable(s *jsonschema.Schema) *jsonschema.Schema {
	out := *s
	if out.Type != "" {
		out.Types = []string{out.Type, "null"}
		out.Type = ""
	}
	return &out
}
