// Package round runs one team through its rounds: build the prompt,
// invoke the leader, evaluate the submission, persist the round, and
// answer the continuation question. A Controller owns one team's round
// history and one store session for the life of an execution.
package round

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/eval"
	"github.com/mixseek/mixseek/pkg/judge"
	"github.com/mixseek/mixseek/pkg/leader"
	"github.com/mixseek/mixseek/pkg/promptbuilder"
	"github.com/mixseek/mixseek/pkg/store"
	"github.com/mixseek/mixseek/pkg/trace"
	"github.com/mixseek/mixseek/pkg/trace/log"
)

// Config identifies the team and sets the per-phase budgets.
type Config struct {
	ExecutionID string
	TeamID      string
	TeamName    string
	// SubmissionTimeout bounds the leader phase of each round.
	SubmissionTimeout time.Duration
	// JudgmentTimeout bounds the evaluation phase of each round.
	JudgmentTimeout time.Duration
}

// Controller executes rounds for a single team. Not safe for concurrent
// use; the orchestrator gives each team worker its own.
type Controller struct {
	cfg       Config
	builder   *promptbuilder.Builder
	leader    *leader.Leader
	evaluator *eval.Evaluator
	judge     *judge.Judge
	session   *store.Session
	tracer    trace.Tracer
	logger    *log.Logger

	history []*store.RoundState
}

// New creates a Controller. The session must be dedicated to this
// controller's goroutine.
func New(cfg Config, builder *promptbuilder.Builder, ldr *leader.Leader,
	evaluator *eval.Evaluator, jdg *judge.Judge, session *store.Session,
	tracer trace.Tracer, logger *log.Logger) *Controller {
	if tracer == nil {
		tracer = trace.Noop{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Controller{
		cfg:       cfg,
		builder:   builder,
		leader:    ldr,
		evaluator: evaluator,
		judge:     jdg,
		session:   session,
		tracer:    tracer,
		logger:    logger,
	}
}

// History returns the completed rounds so far, in round order.
func (c *Controller) History() []*store.RoundState {
	return c.history
}

// RunRound executes the next round for this team. On success the round
// is persisted and appended to the in-memory history. A round whose
// computation succeeds but whose store write fails does not count and
// returns the store error.
func (c *Controller) RunRound(ctx context.Context, userPrompt string) (*store.RoundState, error) {
	roundNumber := len(c.history) + 1
	start := time.Now()

	ctx, span := c.tracer.StartSpan(ctx, "round.run")
	span.SetAttribute("round.team_id", c.cfg.TeamID)
	span.SetAttribute("round.number", strconv.Itoa(roundNumber))
	defer c.tracer.EndSpan(span)

	prompt, err := c.builder.Build(ctx, promptbuilder.Input{
		UserPrompt:  userPrompt,
		RoundNumber: roundNumber,
		ExecutionID: c.cfg.ExecutionID,
		TeamID:      c.cfg.TeamID,
		TeamName:    c.cfg.TeamName,
		History:     c.history,
		Ranking:     c.session,
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	output, err := c.runLeader(ctx, prompt)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	result, err := c.runEvaluation(ctx, userPrompt, output.Content)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	messageHistory, err := store.WrapMessageHistory(output.History)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	rs := &store.RoundState{
		ExecutionID:        c.cfg.ExecutionID,
		TeamID:             c.cfg.TeamID,
		TeamName:           c.cfg.TeamName,
		RoundNumber:        roundNumber,
		SubmissionContent:  output.Content,
		MemberSubmissions:  output.Members,
		MessageHistory:     messageHistory,
		EvaluationScore:    result.OverallScore,
		EvaluationFeedback: result.Metrics,
		Usage:              output.Usage,
		ExecutionTime:      time.Since(start),
		CompletedAt:        time.Now().UTC(),
	}

	if err := c.session.SaveRound(ctx, rs); err != nil {
		span.SetError(err)
		c.logger.ErrorCtx(ctx, "round persist failed",
			"team_id", c.cfg.TeamID,
			"round", strconv.Itoa(roundNumber),
			"error", err.Error())
		return nil, err
	}

	c.history = append(c.history, rs)
	c.logger.InfoCtx(ctx, "round complete",
		"team_id", c.cfg.TeamID,
		"round", strconv.Itoa(roundNumber),
		"score", strconv.FormatFloat(rs.EvaluationScore, 'f', 2, 64))
	return rs, nil
}

// runLeader runs the leader phase under the submission timeout.
func (c *Controller) runLeader(ctx context.Context, prompt string) (*leader.Output, error) {
	leaderCtx := ctx
	var cancel context.CancelFunc
	if c.cfg.SubmissionTimeout > 0 {
		leaderCtx, cancel = context.WithTimeout(ctx, c.cfg.SubmissionTimeout)
		defer cancel()
	}

	output, err := c.leader.Run(leaderCtx, prompt)
	if err != nil {
		return nil, phaseError(ctx, leaderCtx, err, "submission phase timed out")
	}
	return output, nil
}

// runEvaluation runs the evaluator phase under the judgment timeout.
func (c *Controller) runEvaluation(ctx context.Context, userPrompt, submission string) (*eval.Result, error) {
	evalCtx := ctx
	var cancel context.CancelFunc
	if c.cfg.JudgmentTimeout > 0 {
		evalCtx, cancel = context.WithTimeout(ctx, c.cfg.JudgmentTimeout)
		defer cancel()
	}

	result, err := c.evaluator.Evaluate(evalCtx, userPrompt, submission, c.cfg.TeamID)
	if err != nil {
		return nil, phaseError(ctx, evalCtx, err, "judgment phase timed out")
	}
	return result, nil
}

// phaseError classifies a phase failure: a deadline that belongs to the
// phase (not the team context) becomes a Timeout kind.
func phaseError(parent, phase context.Context, err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) &&
		errors.Is(phase.Err(), context.DeadlineExceeded) && parent.Err() == nil {
		return errkind.Wrap(errkind.Timeout, err, msg)
	}
	return err
}

// ShouldContinue asks the continuation judge whether the team should
// run another round. Caller enforces min/max bounds before asking; a
// judge failure is fatal to the team.
func (c *Controller) ShouldContinue(ctx context.Context, userPrompt string) (*judge.Verdict, error) {
	history := make([]judge.Round, 0, len(c.history))
	for _, rs := range c.history {
		history = append(history, judge.Round{
			Number:     rs.RoundNumber,
			Score:      rs.EvaluationScore,
			Feedback:   rs.EvaluationFeedback,
			Submission: rs.SubmissionContent,
		})
	}

	verdict, err := c.judge.Decide(ctx, userPrompt, history)
	if err != nil {
		return nil, err
	}
	c.logger.InfoCtx(ctx, "continuation verdict",
		"team_id", c.cfg.TeamID,
		"should_continue", strconv.FormatBool(verdict.ShouldContinue),
		"confidence", strconv.FormatFloat(verdict.Confidence, 'f', 2, 64),
		"reasoning", verdict.Reasoning)
	return verdict, nil
}
