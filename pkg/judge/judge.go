// Package judge decides whether a team should run another round based
// on its score and submission trajectory.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/eval"
	"github.com/mixseek/mixseek/pkg/llm"
)

const defaultInstruction = `You decide whether a competing team should run another improvement round.
Analyze the score trend across rounds: improvement, plateau, or
degradation. Recommend stopping when diminishing returns are evident.
Respond with a JSON object only:
{"should_continue": <true|false>, "reasoning": "<short analysis>", "confidence": <number from 0 to 1>}`

// Round is one prior round as the judge sees it.
type Round struct {
	Number     int
	Score      float64
	Feedback   []eval.MetricScore
	Submission string
}

// Verdict is the judge's structured decision. Only ShouldContinue
// drives control flow; reasoning and confidence are persisted for
// diagnostics.
type Verdict struct {
	ShouldContinue bool    `json:"should_continue"`
	Reasoning      string  `json:"reasoning"`
	Confidence     float64 `json:"confidence"`
}

// Config configures a Judge.
type Config struct {
	// Model is the judge model id. Required.
	Model string
	// Temperature defaults to 0.
	Temperature float64
	// MaxTokens bounds the response.
	MaxTokens int
	// MaxRetries is the transient-error retry budget.
	MaxRetries int
	// Timeout bounds one Decide call.
	Timeout time.Duration
	// SystemInstruction overrides the built-in default.
	SystemInstruction string
}

// ProviderSource resolves a model id to an authenticated provider.
type ProviderSource interface {
	ProviderFor(ctx context.Context, model string) (llm.Provider, error)
}

// Judge makes continuation decisions.
type Judge struct {
	cfg       Config
	providers ProviderSource
}

// New creates a Judge.
func New(cfg Config, providers ProviderSource) (*Judge, error) {
	if cfg.Model == "" {
		return nil, errkind.New(errkind.Configuration, "judge: model is required")
	}
	return &Judge{cfg: cfg, providers: providers}, nil
}

// Decide returns the continuation verdict for the given history.
// Any failure here is a Judgment error: without a verdict there is no
// well-defined stop decision, so the caller fails the team.
func (j *Judge) Decide(ctx context.Context, userPrompt string, history []Round) (*Verdict, error) {
	if j.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.cfg.Timeout)
		defer cancel()
	}

	instruction := j.cfg.SystemInstruction
	if instruction == "" {
		instruction = defaultInstruction
	}

	provider, err := j.providers.ProviderFor(ctx, j.cfg.Model)
	if err != nil {
		return nil, errkind.Wrap(errkind.Judgment, err, "judge")
	}
	provider = llm.WithRetry(provider, j.cfg.MaxRetries)

	seed := int64(0)
	temperature := j.cfg.Temperature
	resp, err := provider.Complete(ctx, llm.Params{
		Model: j.cfg.Model,
		Messages: []llm.Message{
			llm.NewSystemMessage(instruction),
			llm.NewUserMessage(historyPrompt(userPrompt, history)),
		},
		Temperature: &temperature,
		Seed:        &seed,
		MaxTokens:   j.cfg.MaxTokens,
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.Judgment, err, "judge")
	}

	verdict, err := parseVerdict(resp.Message.Content)
	if err != nil {
		return nil, errkind.Wrap(errkind.Judgment, err, "judge")
	}
	return verdict, nil
}

// historyPrompt renders the full round history for the judge.
func historyPrompt(userPrompt string, history []Round) string {
	var b strings.Builder
	b.WriteString("Task:\n")
	b.WriteString(userPrompt)
	b.WriteString("\n\nRound history:\n")

	for _, r := range history {
		fmt.Fprintf(&b, "\nRound %d — score %.2f\n", r.Number, r.Score)
		for _, m := range r.Feedback {
			fmt.Fprintf(&b, "  %s: %.2f — %s\n", m.Name, m.Score, m.Comment)
		}
		b.WriteString("Submission:\n")
		b.WriteString(r.Submission)
		b.WriteString("\n")
	}

	b.WriteString("\nShould this team run another round? Reply with the JSON object.")
	return b.String()
}

// parseVerdict decodes the judge's JSON object, tolerating code fences
// and preamble text around it.
func parseVerdict(content string) (*Verdict, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in judge response: %q", content)
	}

	var v Verdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
		return nil, fmt.Errorf("decode judge response: %w", err)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return nil, fmt.Errorf("judge confidence %v out of range [0, 1]", v.Confidence)
	}
	return &v, nil
}
