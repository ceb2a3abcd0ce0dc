// Package agent implements the iterative tool-use loop shared by leader
// and member agents: call the model, execute any requested tools, feed
// results back, repeat until the model answers in plain text.
package agent

import (
	"time"

	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/tool"
	"github.com/mixseek/mixseek/pkg/trace"
)

// Agent runs one model with a fixed tool set and configuration.
type Agent struct {
	name         string
	instructions string
	tools        []tool.Tool
	model        string
	provider     llm.Provider
	tracer       trace.Tracer
	config       Config
}

// Config controls agent execution behavior.
type Config struct {
	// MaxTurns limits LLM round-trips per Run. 0 means no limit.
	MaxTurns int
	// MaxTokens limits the response length per turn.
	MaxTokens int
	// Temperature controls sampling randomness.
	Temperature *float64
	// Seed requests deterministic sampling where supported.
	Seed *int64
	// Timeout bounds a single Run call. Zero relies on the caller's
	// context.
	Timeout time.Duration
	// WebSearch and CodeExec request provider-native tools on every
	// turn; member agent types set these.
	WebSearch bool
	CodeExec  bool
}

// Result is the outcome of one Run.
type Result struct {
	// RunID uniquely identifies this execution.
	RunID string
	// Message is the agent's final response.
	Message llm.Message
	// History is the full conversation including tool calls and results.
	History []llm.Message
	// Usage is the aggregate token usage across all LLM calls in this run.
	Usage llm.Usage
	// Turns is the number of LLM round-trips.
	Turns int
}

// Option configures an Agent.
type Option func(*Agent)

// New creates an Agent. The name identifies it in traces and logs.
func New(name string, opts ...Option) *Agent {
	a := &Agent{
		name:   name,
		tracer: trace.Noop{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithInstructions sets the system instruction.
func WithInstructions(instructions string) Option {
	return func(a *Agent) { a.instructions = instructions }
}

// WithTools sets the tools available to the agent.
func WithTools(tools ...tool.Tool) Option {
	return func(a *Agent) { a.tools = tools }
}

// WithModel sets the model identifier.
func WithModel(model string) Option {
	return func(a *Agent) { a.model = model }
}

// WithProvider sets the LLM provider.
func WithProvider(provider llm.Provider) Option {
	return func(a *Agent) { a.provider = provider }
}

// WithTracer sets the tracer.
func WithTracer(tr trace.Tracer) Option {
	return func(a *Agent) { a.tracer = tr }
}

// WithConfig sets the execution configuration.
func WithConfig(config Config) Option {
	return func(a *Agent) { a.config = config }
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// Model returns the agent's model id.
func (a *Agent) Model() string { return a.model }
