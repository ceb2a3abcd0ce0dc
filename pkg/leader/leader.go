// Package leader implements the team leader agent: it analyzes the
// round prompt, delegates subtasks to members through tool calls, and
// synthesizes the team's submission from their contributions.
package leader

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mixseek/mixseek/pkg/agent"
	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/member"
	"github.com/mixseek/mixseek/pkg/tool"
	"github.com/mixseek/mixseek/pkg/trace"
)

const defaultInstruction = `You lead a team competing against other teams on the same task. You may
delegate subtasks to your team members using the tools provided; each
tool description tells you what that member is good at. Weigh their
contributions, compensate for any member failures, and produce the
team's single final submission yourself.`

// Config configures a leader agent.
type Config struct {
	// Model is the leader's model id. Required.
	Model string
	// SystemInstruction overrides the built-in leader instruction.
	SystemInstruction string
	// Temperature, MaxTokens, MaxTurns tune the leader's loop.
	Temperature *float64
	MaxTokens   int
	MaxTurns    int
}

// Output is the leader's result for one round.
type Output struct {
	// Content is the synthesized submission text.
	Content string
	// Members holds one submission per tool invocation, in order.
	Members []member.Submission
	// Usage sums the leader's own LLM usage plus every member's.
	Usage llm.Usage
	// History is the full leader conversation for persistence.
	History []llm.Message
}

// Leader drives one team's members for the duration of an execution.
type Leader struct {
	inner   *agent.Agent
	members []member.Member
}

// New builds a leader bound to its members. Each member becomes one
// delegation tool named by its spec; the tool description is what the
// model uses to choose whom to invoke. The provider must already be
// authenticated so credential failures surface before any team work.
func New(cfg Config, provider llm.Provider, specs []member.Spec, members []member.Member, tracer trace.Tracer) (*Leader, error) {
	if cfg.Model == "" {
		return nil, errkind.New(errkind.Configuration, "leader: model is required")
	}
	if provider == nil {
		return nil, errkind.New(errkind.Configuration, "leader: provider is required")
	}
	if len(specs) != len(members) {
		return nil, errkind.New(errkind.Configuration,
			"leader: %d specs for %d members", len(specs), len(members))
	}
	if tracer == nil {
		tracer = trace.Noop{}
	}

	seen := make(map[string]bool, len(specs))
	tools := make([]tool.Tool, 0, len(specs))
	for i, spec := range specs {
		name := spec.EffectiveToolName()
		if seen[name] {
			return nil, errkind.New(errkind.Configuration,
				"leader: duplicate tool name %q", name)
		}
		seen[name] = true
		tools = append(tools, &delegateTool{
			name:        name,
			description: spec.ToolDescription,
			member:      members[i],
		})
	}

	instruction := cfg.SystemInstruction
	if instruction == "" {
		instruction = defaultInstruction
	}

	inner := agent.New("leader",
		agent.WithModel(cfg.Model),
		agent.WithProvider(provider),
		agent.WithInstructions(instruction),
		agent.WithTools(tools...),
		agent.WithTracer(tracer),
		agent.WithConfig(agent.Config{
			MaxTurns:    cfg.MaxTurns,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}),
	)

	return &Leader{inner: inner, members: members}, nil
}

// Run executes one round: the leader converses with its model, invoking
// member tools as it sees fit, and returns the synthesized submission.
// If the model invoked k tools, Output.Members has exactly k entries in
// invocation order.
func (l *Leader) Run(ctx context.Context, prompt string) (*Output, error) {
	collector := NewCollector()
	ctx = WithCollector(ctx, collector)

	res, err := l.inner.Run(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if res.Message.Content == "" {
		return nil, errkind.New(errkind.ProviderPermanent,
			"leader: model produced an empty submission")
	}

	usage := res.Usage
	usage.Add(collector.Usage())

	return &Output{
		Content: res.Message.Content,
		Members: collector.Submissions(),
		Usage:   usage,
		History: res.History,
	}, nil
}

// delegateTool wraps one member as a leader tool.
type delegateTool struct {
	name        string
	description string
	member      member.Member
}

// delegateArgs is the tool-call payload the model emits.
type delegateArgs struct {
	Task string `json:"task"`
}

// Name implements tool.Tool.
func (d *delegateTool) Name() string { return d.name }

// Description implements tool.Tool.
func (d *delegateTool) Description() string { return d.description }

// Schema implements tool.Tool.
func (d *delegateTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]*tool.Schema{
			"task": {
				Type:        "string",
				Description: "The subtask to delegate to this team member.",
			},
		},
		Required: []string{"task"},
	}
}

// Execute implements tool.Tool. Every invocation records exactly one
// submission — success or failure — into the round collector before
// returning, so the k-calls/k-submissions contract holds even when the
// member errors.
func (d *delegateTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	collector := CollectorFrom(ctx)
	if collector == nil {
		return "", errkind.New(errkind.ProviderPermanent,
			"delegate %s: no round collector in context", d.name)
	}

	var args delegateArgs
	if err := json.Unmarshal(input, &args); err != nil {
		e := errkind.Wrap(errkind.ProviderPermanent, err,
			fmt.Sprintf("delegate %s: decode arguments", d.name))
		collector.Record(member.Failure(d.member.Name(), d.member.Type(), e))
		return "", e
	}

	sub, err := d.member.Run(ctx, args.Task)
	collector.Record(sub)
	if err != nil {
		return "", fmt.Errorf("member %s failed: %w", d.member.Name(), err)
	}
	return sub.Content, nil
}
