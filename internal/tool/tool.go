// Package tool defines the capability contract exposed to the generative
// model and its concrete implementations. Every tool carries a fixed
// method set and a JSON schema for its arguments; execution returns a
// tagged Result rather than an (any, error) pair so callers can persist
// outcomes uniformly.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool is one capability offered to the model.
type Tool interface {
	// Name is the stable identifier recorded in tool memory.
	Name() string

	// Description is model-facing usage guidance.
	Description() string

	// Schema describes the Execute argument object.
	Schema() *jsonschema.Schema

	// Execute runs the tool. Argument decoding failures and execution
	// failures are both reported through the Result, never a panic.
	Execute(ctx context.Context, args json.RawMessage) Result
}

// Result is the tagged outcome of a tool execution: either a payload or
// an error kind with detail.
type Result struct {
	ok      bool
	payload json.RawMessage
	errKind string
	detail  string
}

// Ok builds a successful Result.
func Ok(payload json.RawMessage) Result {
	return Result{ok: true, payload: payload}
}

// Errf builds a failed Result with an error kind and formatted detail.
func Errf(kind, format string, args ...any) Result {
	return Result{errKind: kind, detail: fmt.Sprintf(format, args...)}
}

// OK reports whether the execution succeeded.
func (r Result) OK() bool {
	return r.ok
}

// Payload returns the success payload; nil on failure.
func (r Result) Payload() json.RawMessage {
	return r.payload
}

// Err returns the error kind and detail; empty strings on success.
func (r Result) Err() (kind, detail string) {
	return r.errKind, r.detail
}

// Error kinds reported by the built-in tools.
const (
	ErrKindBadArgs    = "bad_arguments"
	ErrKindGeneration = "generation_failed"
)

// Registry is a fixed name-to-tool lookup.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds a registry. Duplicate names are a programming error.
func NewRegistry(tools ...Tool) (*Registry, error) {
	m := make(map[string]Tool, len(tools))
	for _, t := range tools {
		if _, exists := m[t.Name()]; exists {
			return nil, fmt.Errorf("duplicate tool name %q", t.Name())
		}
		m[t.Name()] = t
	}
	return &Registry{tools: m}, nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names lists registered tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}
