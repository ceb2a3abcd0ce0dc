package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/llm"
)

const defaultJudgeInstruction = `You are a rigorous evaluation judge. Score the submission on the single
metric you are given. Think through the submission step by step against
the metric before scoring. Respond with a JSON object only:
{"score": <number from 0 to 100>, "comment": "<one or two sentences>"}`

// metricPrompt builds the judging prompt for one metric.
func metricPrompt(metric, userQuery, submission, teamID string) string {
	var b strings.Builder
	b.WriteString("Metric: ")
	b.WriteString(metric)
	b.WriteString("\n\nOriginal task:\n")
	b.WriteString(userQuery)
	b.WriteString("\n\nSubmission (team ")
	b.WriteString(teamID)
	b.WriteString("):\n")
	b.WriteString(submission)
	b.WriteString("\n\nEvaluate the submission on this metric and reply with the JSON object.")
	return b.String()
}

// judgeVerdict is the structured object the judge model must return.
type judgeVerdict struct {
	Score   float64 `json:"score"`
	Comment string  `json:"comment"`
}

// judgeMetric runs one judge call for one metric and validates the
// returned score.
func (e *Evaluator) judgeMetric(ctx context.Context, spec MetricSpec, userQuery, submission, teamID string) (MetricScore, llm.Usage, error) {
	model := spec.Model
	if model == "" {
		model = e.cfg.DefaultModel
	}
	instruction := spec.SystemInstruction
	if instruction == "" {
		instruction = defaultJudgeInstruction
	}
	temperature := e.cfg.Temperature
	if spec.Temperature != nil {
		temperature = *spec.Temperature
	}
	maxTokens := e.cfg.MaxTokens
	if spec.MaxTokens > 0 {
		maxTokens = spec.MaxTokens
	}

	provider, err := e.providers.ProviderFor(ctx, model)
	if err != nil {
		return MetricScore{}, llm.Usage{}, err
	}
	provider = llm.WithRetry(provider, e.cfg.MaxRetries)

	seed := int64(0)
	resp, err := provider.Complete(ctx, llm.Params{
		Model: model,
		Messages: []llm.Message{
			llm.NewSystemMessage(instruction),
			llm.NewUserMessage(metricPrompt(spec.Name, userQuery, submission, teamID)),
		},
		Temperature: &temperature,
		Seed:        &seed,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return MetricScore{}, llm.Usage{}, errkind.Wrap(errkind.Evaluation, err,
			fmt.Sprintf("evaluator: metric %q", spec.Name))
	}

	verdict, err := parseVerdict(resp.Message.Content)
	if err != nil {
		return MetricScore{}, llm.Usage{}, errkind.Wrap(errkind.Evaluation, err,
			fmt.Sprintf("evaluator: metric %q", spec.Name))
	}

	return MetricScore{
		Name:    spec.Name,
		Score:   verdict.Score,
		Comment: verdict.Comment,
	}, resp.Usage, nil
}

// parseVerdict extracts the judge's JSON object. Models sometimes wrap
// the object in a code fence or preamble text; the parser accepts the
// first balanced object in the content.
func parseVerdict(content string) (judgeVerdict, error) {
	raw := extractObject(content)
	if raw == "" {
		return judgeVerdict{}, fmt.Errorf("no JSON object in judge response: %q", content)
	}

	var v judgeVerdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return judgeVerdict{}, fmt.Errorf("decode judge response: %w", err)
	}
	if math.IsNaN(v.Score) || math.IsInf(v.Score, 0) {
		return judgeVerdict{}, fmt.Errorf("judge score is not finite")
	}
	if v.Score < 0 || v.Score > 100 {
		return judgeVerdict{}, fmt.Errorf("judge score %v out of range [0, 100]", v.Score)
	}
	return v, nil
}

// extractObject returns the first balanced {...} in s, or "".
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
