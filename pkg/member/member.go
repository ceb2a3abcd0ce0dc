// Package member implements the member-agent side of the delegation
// protocol: the leader invokes members through tools, each member runs
// its task and returns a Submission. Variants differ only in which
// provider-native capability they request.
package member

import (
	"context"
	"time"

	"github.com/mixseek/mixseek/pkg/agent"
	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/trace"
)

// AgentType selects a member capability.
type AgentType string

const (
	// TypePlain is text in, text out.
	TypePlain AgentType = "plain"
	// TypeWebSearch adds the provider-native web search tool.
	TypeWebSearch AgentType = "web-search"
	// TypeCodeExec adds the provider-native sandboxed code execution tool.
	TypeCodeExec AgentType = "code-exec"
	// TypeCustom runs a user-supplied out-of-process plugin.
	TypeCustom AgentType = "custom"
)

// Valid reports whether t is a known agent type.
func (t AgentType) Valid() bool {
	switch t {
	case TypePlain, TypeWebSearch, TypeCodeExec, TypeCustom:
		return true
	}
	return false
}

// Status is the outcome of one member invocation.
type Status string

const (
	// StatusSuccess means the member produced content.
	StatusSuccess Status = "success"
	// StatusFailure means the member errored; Submission.Error holds
	// the kind and message.
	StatusFailure Status = "failure"
)

// Spec configures one member within a team.
type Spec struct {
	// AgentName is unique within the team.
	AgentName string
	// AgentType selects the member variant.
	AgentType AgentType
	// ToolName is the delegation tool's name. Empty defaults to
	// "delegate_to_<agent_name>".
	ToolName string
	// ToolDescription tells the leader's model what this member is good
	// at. Required.
	ToolDescription string
	// Model is the member's model id. Required for LLM-backed types.
	Model string
	// SystemInstruction is the member's system prompt.
	SystemInstruction string
	// Temperature, MaxTokens, MaxTurns tune the member's agent loop.
	Temperature *float64
	MaxTokens   int
	MaxTurns    int
	// PluginPath is the executable for custom members.
	PluginPath string
}

// EffectiveToolName returns ToolName or the delegate_to_ default.
func (s Spec) EffectiveToolName() string {
	if s.ToolName != "" {
		return s.ToolName
	}
	return "delegate_to_" + s.AgentName
}

// Validate checks the spec is complete for its agent type.
func (s Spec) Validate() error {
	if s.AgentName == "" {
		return errkind.New(errkind.Configuration, "member: agent_name is required")
	}
	if !s.AgentType.Valid() {
		return errkind.New(errkind.Configuration,
			"member %q: unknown agent_type %q", s.AgentName, s.AgentType)
	}
	if s.ToolDescription == "" {
		return errkind.New(errkind.Configuration,
			"member %q: tool_description is required", s.AgentName)
	}
	if s.AgentType == TypeCustom {
		if s.PluginPath == "" {
			return errkind.New(errkind.Configuration,
				"member %q: plugin_path is required for custom members", s.AgentName)
		}
		return nil
	}
	if s.Model == "" {
		return errkind.New(errkind.Configuration,
			"member %q: model is required", s.AgentName)
	}
	return nil
}

// Submission is one member's contribution to a round.
type Submission struct {
	// AgentName and AgentType identify the member.
	AgentName string    `json:"agent_name"`
	AgentType AgentType `json:"agent_type"`
	// Content is the text the member returned. Empty on failure.
	Content string `json:"content"`
	// Status is success or failure.
	Status Status `json:"status"`
	// ErrorKind and Error describe a failure.
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
	// Usage is the member's own token accounting for this invocation.
	Usage llm.Usage `json:"usage"`
	// Timestamp is when the invocation finished, UTC.
	Timestamp time.Time `json:"timestamp"`
}

// Member executes one delegated subtask and reports a submission.
type Member interface {
	// Name returns the member's agent name.
	Name() string
	// Type returns the member's agent type.
	Type() AgentType
	// Run executes the subtask. On error the returned submission still
	// carries the member identity and a failure status; its usage is
	// zero, as usage accumulated before the failure is not reported.
	Run(ctx context.Context, task string) (Submission, error)
}

// llmMember backs plain, web-search, and code-exec members with the
// shared agent loop.
type llmMember struct {
	spec  Spec
	inner *agent.Agent
}

// New constructs a member from its spec. provider must already be
// authenticated; tracer may be nil for no tracing.
func New(spec Spec, provider llm.Provider, tracer trace.Tracer) (Member, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if spec.AgentType == TypeCustom {
		return newPluginMember(spec)
	}
	if tracer == nil {
		tracer = trace.Noop{}
	}

	cfg := agent.Config{
		MaxTurns:    spec.MaxTurns,
		MaxTokens:   spec.MaxTokens,
		Temperature: spec.Temperature,
		WebSearch:   spec.AgentType == TypeWebSearch,
		CodeExec:    spec.AgentType == TypeCodeExec,
	}

	inner := agent.New(spec.AgentName,
		agent.WithModel(spec.Model),
		agent.WithProvider(provider),
		agent.WithInstructions(spec.SystemInstruction),
		agent.WithTracer(tracer),
		agent.WithConfig(cfg),
	)

	return &llmMember{spec: spec, inner: inner}, nil
}

// Name implements Member.
func (m *llmMember) Name() string { return m.spec.AgentName }

// Type implements Member.
func (m *llmMember) Type() AgentType { return m.spec.AgentType }

// Run implements Member.
func (m *llmMember) Run(ctx context.Context, task string) (Submission, error) {
	res, err := m.inner.Run(ctx, task)
	if err != nil {
		return Failure(m.spec.AgentName, m.spec.AgentType, err), err
	}
	return Submission{
		AgentName: m.spec.AgentName,
		AgentType: m.spec.AgentType,
		Content:   res.Message.Content,
		Status:    StatusSuccess,
		Usage:     res.Usage,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Failure builds a failure submission for a member whose execution
// errored. The round records it and continues; the leader decides
// whether to compensate.
func Failure(name string, typ AgentType, err error) Submission {
	return Submission{
		AgentName: name,
		AgentType: typ,
		Status:    StatusFailure,
		ErrorKind: errkind.Of(err).String(),
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	}
}
