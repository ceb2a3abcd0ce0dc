// Package llm defines the provider-neutral types MixSeek uses to talk to
// LLM backends. Concrete providers live in subpackages; the kernel only
// ever sees the Provider interface.
package llm

import (
	"context"
	"encoding/json"
)

// Provider is the capability the kernel calls to issue one completion
// request. Swapping providers is a configuration change.
type Provider interface {
	// Complete sends a completion request and returns the response.
	// Implementations classify their failures with errkind tags so the
	// retry layer and the round controller can tell transient from
	// permanent errors.
	Complete(ctx context.Context, params Params) (*Response, error)
}

// Params configures a single completion request.
type Params struct {
	// Model is the model identifier. Always explicit; there is no
	// default model anywhere in the kernel.
	Model string `json:"model"`
	// Messages is the conversation to send.
	Messages []Message `json:"messages"`
	// Tools is the set of callable tools offered to the model.
	Tools []ToolDefinition `json:"tools,omitempty"`
	// Temperature controls sampling randomness. Evaluator and judge
	// calls pin this to 0.
	Temperature *float64 `json:"temperature,omitempty"`
	// MaxTokens bounds the response length. Zero lets the provider pick.
	MaxTokens int `json:"max_tokens,omitempty"`
	// Seed requests deterministic sampling where the provider supports
	// one; providers without seed support ignore it.
	Seed *int64 `json:"seed,omitempty"`
	// StopSequences stop generation when emitted.
	StopSequences []string `json:"stop_sequences,omitempty"`
	// WebSearch asks the provider to attach its native web-search tool.
	// Providers without one must fail with a permanent capability error.
	WebSearch bool `json:"web_search,omitempty"`
	// CodeExec asks the provider to attach its native sandboxed
	// code-execution tool. Same capability contract as WebSearch.
	CodeExec bool `json:"code_exec,omitempty"`
}

// ToolDefinition describes one callable tool offered to the model.
type ToolDefinition struct {
	// Name is the tool's unique identifier within the request.
	Name string `json:"name"`
	// Description tells the model what the tool does; for member
	// delegation this is the member's tool_description verbatim.
	Description string `json:"description"`
	// Parameters is the JSON Schema for the tool's input.
	Parameters json.RawMessage `json:"parameters"`
}

// Response is the result of one completion request.
type Response struct {
	// Message is the model's reply.
	Message Message `json:"message"`
	// Usage is the token accounting for this single request.
	Usage Usage `json:"usage"`
	// Model is the model that actually served the request.
	Model string `json:"model"`
}

// Usage counts tokens and requests. All fields are non-negative; zero
// values are legal for cached or skipped calls.
type Usage struct {
	// InputTokens is the provider-reported prompt token count.
	InputTokens int `json:"input_tokens"`
	// OutputTokens is the provider-reported completion token count.
	OutputTokens int `json:"output_tokens"`
	// Requests is the number of provider round-trips accounted here.
	Requests int `json:"requests"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.Requests += other.Requests
}

// TotalTokens returns input plus output tokens.
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}
