// Package tools declares the functions the model may call and dispatches
// its invocations to the use cases.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/ports"
)

// Handler executes one tool invocation with raw JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage, tc ports.ToolContext) (any, error)

// Definition is a registered tool: its declaration plus its handler.
type Definition struct {
	Name        string
	Description string
	Properties  any
	Required    []string
	Run         Handler
}

// Declaration is the model-facing part of the definition.
func (d Definition) Declaration() domain.ToolDeclaration {
	return domain.ToolDeclaration{
		Name:        d.Name,
		Description: d.Description,
		Properties:  d.Properties,
		Required:    d.Required,
	}
}

// Registry keeps a mapping from tool names to their definitions.
type Registry struct {
	tools map[string]Definition
	order []string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]Definition{}}
}

// Register adds or replaces a tool. Declarations keep first-registration order.
func (r *Registry) Register(def Definition) {
	if r.tools == nil {
		r.tools = map[string]Definition{}
	}
	if _, ok := r.tools[def.Name]; !ok {
		r.order = append(r.order, def.Name)
	}
	r.tools[def.Name] = def
}

// Lookup returns a tool by name or an error if it is absent.
func (r *Registry) Lookup(name string) (Definition, error) {
	if def, ok := r.tools[name]; ok {
		return def, nil
	}
	return Definition{}, fmt.Errorf("%w: %s", domain.ErrUnknownTool, name)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Names lists registered tools alphabetically.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Declarations lists every tool in registration order.
func (r *Registry) Declarations() []domain.ToolDeclaration {
	out := make([]domain.ToolDeclaration, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Declaration())
	}
	return out
}

// Dispatch runs the handler registered for call.Name. Missing arguments are
// passed to the handler as an empty object.
func (r *Registry) Dispatch(ctx context.Context, call domain.ToolCall, tc ports.ToolContext) (any, error) {
	def, err := r.Lookup(call.Name)
	if err != nil {
		return nil, err
	}
	args := call.Args
	if trimmed := bytes.TrimSpace(args); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		args = json.RawMessage(`{}`)
	}
	return def.Run(ctx, args, tc)
}
