// Package schema compiles declarative JSON Schemas and checks candidate
// payloads against them. Validation is pure: the same candidate always gets
// the same verdict.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// RootLocation marks errors that apply to the whole candidate.
const RootLocation = "(root)"

// FieldError is one validation failure.
type FieldError struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

// Result is the verdict for one candidate.
type Result struct {
	Valid  bool
	Errors []FieldError
}

// Validator is a compiled schema.
type Validator struct {
	name     string
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
	raw      string
}

// Compile resolves s so that it can be used for validation.
func Compile(name string, s *jsonschema.Schema) (*Validator, error) {
	if s == nil {
		return nil, fmt.Errorf("schema %s: nil schema", name)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema %s: %w", name, err)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", name, err)
	}
	return &Validator{name: name, schema: s, resolved: resolved, raw: string(raw)}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(name string, s *jsonschema.Schema) *Validator {
	v, err := Compile(name, s)
	if err != nil {
		panic(err)
	}
	return v
}

// Name returns the schema name given at compile time.
func (v *Validator) Name() string { return v.name }

// Schema returns the declarative definition.
func (v *Validator) Schema() *jsonschema.Schema { return v.schema }

// JSON returns the compact JSON form of the schema, as shown to the model.
func (v *Validator) JSON() string { return v.raw }

// Validate checks candidate. Candidates that are not already decoded JSON
// values are normalized through encoding/json first.
func (v *Validator) Validate(candidate any) Result {
	instance, err := normalize(candidate)
	if err != nil {
		return Result{Errors: []FieldError{{Location: RootLocation, Message: err.Error()}}}
	}
	if err := v.resolved.Validate(instance); err != nil {
		return Result{Errors: splitErrors(err)}
	}
	return Result{Valid: true}
}

func normalize(candidate any) (any, error) {
	switch candidate.(type) {
	case map[string]any, []any, string, float64, bool, nil:
		return candidate, nil
	}
	raw, err := json.Marshal(candidate)
	if err != nil {
		return nil, fmt.Errorf("candidate is not JSON-encodable: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("candidate is not JSON-decodable: %w", err)
	}
	return out, nil
}

// splitErrors turns the validator's error chain into located field errors.
// Joined errors produce one entry per line.
func splitErrors(err error) []FieldError {
	lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
	out := make([]FieldError, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, locate(line))
	}
	if len(out) == 0 {
		out = append(out, FieldError{Location: RootLocation, Message: err.Error()})
	}
	return out
}

// locate takes the innermost "validating <where>" segment as the location.
func locate(line string) FieldError {
	fe := FieldError{Location: RootLocation, Message: line}
	rest := line
	for {
		head, tail, ok := strings.Cut(rest, ": ")
		if !ok || !strings.HasPrefix(head, "validating ") {
			break
		}
		if where := strings.TrimSpace(strings.TrimPrefix(head, "validating ")); where != "" && where != "root" {
			fe.Location = where
		}
		rest = tail
	}
	if rest != "" {
		fe.Message = rest
	}
	return fe
}

// ErrorsJSON renders errors the way they are shown back to the model.
func ErrorsJSON(errs []FieldError) string {
	b, err := json.MarshalIndent(errs, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", errs)
	}
	return string(b)
}
