// Package tool defines the callable-tool contract the leader agent uses
// to delegate work to members, plus the JSON schema type sent to LLM
// providers with each tool definition.
package tool

import (
	"context"
	"encoding/json"
)

// Tool is a named capability an agent can offer to its model.
// For member delegation, one Tool wraps one member agent.
type Tool interface {
	// Name returns the tool's unique identifier.
	Name() string
	// Description is sent to the LLM so it can decide when to call the
	// tool. For delegation tools this is the member's tool_description.
	Description() string
	// Schema returns the JSON Schema for the tool's input.
	Schema() Schema
	// Execute runs the tool with the given JSON input.
	Execute(ctx context.Context, input json.RawMessage) (string, error)
}

// Schema is the subset of JSON Schema used for tool parameters.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// ToRawJSON converts the Schema to a json.RawMessage for a provider
// tool definition.
func (s Schema) ToRawJSON() (json.RawMessage, error) {
	return json.Marshal(s)
}

// Func adapts a function into a Tool. Used for one-off tools and tests.
type Func struct {
	FuncName string
	Desc     string
	InSchema Schema
	Fn       func(ctx context.Context, input json.RawMessage) (string, error)
}

// Name returns the tool name.
func (f *Func) Name() string { return f.FuncName }

// Description returns the tool description.
func (f *Func) Description() string { return f.Desc }

// Schema returns the input schema.
func (f *Func) Schema() Schema { return f.InSchema }

// Execute calls the wrapped function.
func (f *Func) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	return f.Fn(ctx, input)
}
