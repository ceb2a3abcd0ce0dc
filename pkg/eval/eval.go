// Package eval scores a team submission with an LLM judge across a set
// of weighted metrics and aggregates the per-metric scores into an
// overall score on the 0-100 scale.
package eval

import (
	"context"
	"math"
	"time"

	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/llm"
)

// weightTolerance is the allowed deviation when explicit metric weights
// must sum to 1.
const weightTolerance = 0.001

// MetricSpec configures one evaluation metric. Unset fields fall back
// to the evaluator defaults.
type MetricSpec struct {
	// Name identifies the metric in feedback rows.
	Name string
	// Weight is the metric's share of the overall score. Either every
	// metric sets one (summing to 1) or none does (uniform weights).
	Weight *float64
	// Model overrides the evaluator's default judge model.
	Model string
	// SystemInstruction overrides the default judge instruction.
	SystemInstruction string
	// Temperature overrides the default 0.
	Temperature *float64
	// MaxTokens overrides the default response budget.
	MaxTokens int
}

// Config configures an Evaluator.
type Config struct {
	// DefaultModel is the judge model used by metrics without overrides.
	DefaultModel string
	// Temperature defaults to 0 for deterministic judging.
	Temperature float64
	// MaxTokens is the per-call response budget.
	MaxTokens int
	// MaxRetries is the transient-error retry budget per judge call.
	MaxRetries int
	// Timeout bounds one full Evaluate call. Zero relies on the caller.
	Timeout time.Duration
	// Metrics is the metric set. Empty uses DefaultMetrics.
	Metrics []MetricSpec
}

// DefaultMetrics is the metric set used when the configuration does not
// define one.
func DefaultMetrics() []MetricSpec {
	return []MetricSpec{
		{Name: "ClarityCoherence"},
		{Name: "Coverage"},
		{Name: "Relevance"},
	}
}

// MetricScore is one metric's judged score and comment.
type MetricScore struct {
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Comment string  `json:"comment"`
}

// Result is the outcome of evaluating one submission.
type Result struct {
	// OverallScore is the weighted aggregate in [0, 100].
	OverallScore float64 `json:"overall_score"`
	// Metrics holds the per-metric scores in configuration order.
	Metrics []MetricScore `json:"metrics"`
	// Usage is the judge's own token accounting. It is diagnostic only
	// and never counted into round usage.
	Usage llm.Usage `json:"usage"`
}

// ProviderSource resolves a model id to an authenticated provider.
// *factory.Factory satisfies it.
type ProviderSource interface {
	ProviderFor(ctx context.Context, model string) (llm.Provider, error)
}

// Evaluator scores submissions against the configured metrics.
type Evaluator struct {
	cfg       Config
	providers ProviderSource
	weights   []float64
}

// New creates an Evaluator. The config's weights are validated here:
// explicit weights must sum to 1 within tolerance, and mixing weighted
// and unweighted metrics is an error.
func New(cfg Config, providers ProviderSource) (*Evaluator, error) {
	if cfg.DefaultModel == "" {
		return nil, errkind.New(errkind.Configuration, "evaluator: default_model is required")
	}
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = DefaultMetrics()
	}

	weights, err := resolveWeights(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Evaluator{cfg: cfg, providers: providers, weights: weights}, nil
}

// resolveWeights returns one weight per metric: the explicit weights
// when all are present, uniform weights when none are.
func resolveWeights(metrics []MetricSpec) ([]float64, error) {
	withWeight := 0
	for _, m := range metrics {
		if m.Name == "" {
			return nil, errkind.New(errkind.Configuration, "evaluator: metric name is required")
		}
		if m.Weight != nil {
			withWeight++
		}
	}

	switch withWeight {
	case 0:
		uniform := 1.0 / float64(len(metrics))
		weights := make([]float64, len(metrics))
		for i := range weights {
			weights[i] = uniform
		}
		return weights, nil

	case len(metrics):
		sum := 0.0
		weights := make([]float64, len(metrics))
		for i, m := range metrics {
			if *m.Weight < 0 {
				return nil, errkind.New(errkind.Configuration,
					"evaluator: metric %q has negative weight", m.Name)
			}
			weights[i] = *m.Weight
			sum += *m.Weight
		}
		if math.Abs(sum-1.0) > weightTolerance {
			return nil, errkind.New(errkind.Configuration,
				"evaluator: metric weights sum to %v, want 1±%v", sum, weightTolerance)
		}
		return weights, nil

	default:
		return nil, errkind.New(errkind.Configuration,
			"evaluator: either all metrics set a weight or none do (%d of %d set)",
			withWeight, len(metrics))
	}
}

// Evaluate scores submission against the user's original query.
func (e *Evaluator) Evaluate(ctx context.Context, userQuery, submission, teamID string) (*Result, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	result := &Result{Metrics: make([]MetricScore, 0, len(e.cfg.Metrics))}

	for i, spec := range e.cfg.Metrics {
		score, usage, err := e.judgeMetric(ctx, spec, userQuery, submission, teamID)
		if err != nil {
			return nil, err
		}
		result.Metrics = append(result.Metrics, score)
		result.OverallScore += score.Score * e.weights[i]
		result.Usage.Add(usage)
	}

	// Weighted sums of in-range scores stay in range; the clamp only
	// guards float accumulation at the boundaries.
	result.OverallScore = math.Min(100, math.Max(0, result.OverallScore))
	return result, nil
}
