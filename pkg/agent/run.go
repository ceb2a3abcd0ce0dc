package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mixseek/mixseek/internal/id"
	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/tool"
)

// Run executes the agent with the given input.
//
// The loop:
//  1. Build messages from the system instruction and the input.
//  2. Call the LLM with messages and tool definitions.
//  3. Execute any tool calls and loop with the results appended.
//  4. Return when the LLM answers without tool calls (or a bound hits).
func (a *Agent) Run(ctx context.Context, input string) (*Result, error) {
	if a.provider == nil {
		return nil, errkind.New(errkind.Configuration, "agent %q: provider is required", a.name)
	}
	if a.model == "" {
		return nil, errkind.New(errkind.Configuration, "agent %q: model is required", a.name)
	}

	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	runID := id.New()

	ctx, runSpan := a.tracer.StartSpan(ctx, "agent.run")
	runSpan.SetAttribute("agent.name", a.name)
	runSpan.SetAttribute("agent.run_id", runID)
	runSpan.SetAttribute("agent.model", a.model)
	defer a.tracer.EndSpan(runSpan)

	var messages []llm.Message
	if a.instructions != "" {
		messages = append(messages, llm.NewSystemMessage(a.instructions))
	}
	messages = append(messages, llm.NewUserMessage(input))

	toolDefs, err := toolsToDefinitions(a.tools)
	if err != nil {
		runSpan.SetError(err)
		return nil, fmt.Errorf("agent: %w", err)
	}

	toolMap := make(map[string]tool.Tool, len(a.tools))
	for _, t := range a.tools {
		toolMap[t.Name()] = t
	}

	var usage llm.Usage
	turns := 0

	for {
		if a.config.MaxTurns > 0 && turns >= a.config.MaxTurns {
			break
		}
		if err := ctx.Err(); err != nil {
			runSpan.SetError(err)
			return nil, fmt.Errorf("agent: %w", err)
		}

		params := llm.Params{
			Model:     a.model,
			Messages:  messages,
			Tools:     toolDefs,
			WebSearch: a.config.WebSearch,
			CodeExec:  a.config.CodeExec,
		}
		if a.config.Temperature != nil {
			params.Temperature = a.config.Temperature
		}
		if a.config.Seed != nil {
			params.Seed = a.config.Seed
		}
		if a.config.MaxTokens > 0 {
			params.MaxTokens = a.config.MaxTokens
		}

		_, llmSpan := a.tracer.StartSpan(ctx, "llm.complete")
		llmSpan.SetAttribute("llm.model", a.model)
		llmSpan.SetAttribute("llm.turn", strconv.Itoa(turns+1))

		resp, err := a.provider.Complete(ctx, params)
		if err != nil {
			llmSpan.SetError(err)
			a.tracer.EndSpan(llmSpan)
			runSpan.SetError(err)
			return nil, fmt.Errorf("agent: llm complete (turn %d): %w", turns+1, err)
		}

		llmSpan.SetAttribute("llm.input_tokens", strconv.Itoa(resp.Usage.InputTokens))
		llmSpan.SetAttribute("llm.output_tokens", strconv.Itoa(resp.Usage.OutputTokens))
		a.tracer.EndSpan(llmSpan)

		usage.Add(resp.Usage)
		turns++

		messages = append(messages, resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			break
		}

		// Tool calls from one assistant turn execute in emission order.
		// A failing tool feeds an error result back to the model rather
		// than aborting the run; the model decides how to compensate.
		for _, tc := range resp.Message.ToolCalls {
			_, toolSpan := a.tracer.StartSpan(ctx, "tool.execute")
			toolSpan.SetAttribute("tool.name", tc.Function)
			toolSpan.SetAttribute("tool.call_id", tc.ID)

			t, ok := toolMap[tc.Function]
			if !ok {
				errMsg := fmt.Sprintf("tool %q not found", tc.Function)
				toolSpan.SetAttribute("tool.error", errMsg)
				a.tracer.EndSpan(toolSpan)
				messages = append(messages, llm.NewToolMessage(tc.ID, "error: "+errMsg))
				continue
			}

			output, err := t.Execute(ctx, tc.Arguments)
			if err != nil {
				toolSpan.SetError(err)
				a.tracer.EndSpan(toolSpan)
				messages = append(messages, llm.NewToolMessage(tc.ID, "error: "+err.Error()))
				continue
			}

			toolSpan.SetAttribute("tool.output_len", strconv.Itoa(len(output)))
			a.tracer.EndSpan(toolSpan)
			messages = append(messages, llm.NewToolMessage(tc.ID, output))
		}
	}

	var finalMessage llm.Message
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleAssistant {
			finalMessage = messages[i]
			break
		}
	}

	runSpan.SetAttribute("agent.turns", strconv.Itoa(turns))

	return &Result{
		RunID:   runID,
		Message: finalMessage,
		History: messages,
		Usage:   usage,
		Turns:   turns,
	}, nil
}

func toolsToDefinitions(tools []tool.Tool) ([]llm.ToolDefinition, error) {
	defs := make([]llm.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		params, err := json.Marshal(t.Schema())
		if err != nil {
			return nil, fmt.Errorf("marshal schema for tool %q: %w", t.Name(), err)
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  params,
		})
	}
	return defs, nil
}
