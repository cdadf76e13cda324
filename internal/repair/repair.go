// Package repair implements the parse/validate/re-prompt protocol applied to
// every structured payload the model produces.
//
// Flow:
//
//	generate -> strip fences -> parse -> validate
//	  valid:   done
//	  invalid: prompt += (previous output, errors, schema) -> generate -> parse -> validate
//	  invalid again: *ExhaustedError
package repair

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/schema"
)

// DefaultMaxRepairRounds is the number of corrective re-prompts after the first generation.
const DefaultMaxRepairRounds = 1

// GenerateFunc runs one model round over turns and returns its raw text.
type GenerateFunc func(ctx context.Context, turns []domain.Turn) (string, error)

// Payload is a model output that passed validation.
type Payload struct {
	Value  map[string]any
	Raw    string
	Schema string
	Calls  int
}

// ExhaustedError is returned when the output never validated.
type ExhaustedError struct {
	Schema string
	Raw    string
	Errors []schema.FieldError
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: JSON still invalid after repair (%d errors)", e.Schema, len(e.Errors))
}

// Is reports the error as domain.ErrSchemaRepairExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == domain.ErrSchemaRepairExhausted
}

// ErrorDetails exposes the last error list to domain.DetailsOf.
func (e *ExhaustedError) ErrorDetails() any {
	return e.Errors
}

type options struct {
	maxRounds int
	logger    *slog.Logger
}

// Option tunes Attempt.
type Option func(*options)

// WithMaxRepairRounds overrides DefaultMaxRepairRounds. Negative values are treated as zero.
func WithMaxRepairRounds(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.maxRounds = n
	}
}

// WithLogger reports repair rounds at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Attempt runs generate over turns and returns the first output that
// validates against v, re-prompting at most maxRepairRounds times.
// Generation errors are returned as-is and never repaired.
func Attempt(ctx context.Context, generate GenerateFunc, turns []domain.Turn, v *schema.Validator, opts ...Option) (Payload, error) {
	o := options{maxRounds: DefaultMaxRepairRounds}
	for _, opt := range opts {
		opt(&o)
	}

	history := append([]domain.Turn(nil), turns...)
	calls := 0
	for round := 0; ; round++ {
		raw, err := generate(ctx, history)
		calls++
		if err != nil {
			return Payload{}, fmt.Errorf("generate %s: %w", v.Name(), err)
		}

		value, errs := check(raw, v)
		if len(errs) == 0 {
			return Payload{Value: value, Raw: raw, Schema: v.Name(), Calls: calls}, nil
		}
		if round >= o.maxRounds {
			return Payload{}, &ExhaustedError{Schema: v.Name(), Raw: raw, Errors: errs}
		}

		if o.logger != nil {
			o.logger.Debug("repairing model output", "schema", v.Name(), "round", round+1, "errors", len(errs))
		}
		history = append(history,
			domain.Turn{Role: domain.RoleModel, Parts: []domain.Part{domain.TextPart(nonEmpty(raw))}},
			domain.UserText(Instruction(errs, v)),
		)
	}
}

// Instruction is the corrective prompt sent after an invalid output.
func Instruction(errs []schema.FieldError, v *schema.Validator) string {
	var b strings.Builder
	b.WriteString("Your previous output did not validate against the schema. Validation errors:\n")
	b.WriteString(schema.ErrorsJSON(errs))
	b.WriteString("\nReturn corrected JSON ONLY (no prose, no markdown). Schema again:\n")
	b.WriteString(v.JSON())
	return b.String()
}

func check(raw string, v *schema.Validator) (map[string]any, []schema.FieldError) {
	value, err := Parse(raw)
	if err != nil {
		return nil, []schema.FieldError{{Location: schema.RootLocation, Message: "not JSON: " + err.Error()}}
	}
	res := v.Validate(value)
	if !res.Valid {
		return nil, res.Errors
	}
	return value, nil
}

var (
	leadingFence  = regexp.MustCompile("(?i)^```[a-z]*\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")
)

// StripFences removes a Markdown code fence wrapped around s.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Parse decodes a fenced or bare JSON object.
func Parse(raw string) (map[string]any, error) {
	cleaned := StripFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty output")
	}
	var value map[string]any
	if err := json.Unmarshal([]byte(cleaned), &value); err != nil {
		return nil, err
	}
	if value == nil {
		return nil, fmt.Errorf("output is not a JSON object")
	}
	return value, nil
}

func nonEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(empty response)"
	}
	return s
}
