// Package orchestrator fans independent teams out against one user
// prompt, enforces per-team deadlines, iterates rounds under min/max
// bounds and continuation verdicts, and assembles the final summary.
package orchestrator

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/eval"
	"github.com/mixseek/mixseek/pkg/judge"
	"github.com/mixseek/mixseek/pkg/leader"
	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/member"
	"github.com/mixseek/mixseek/pkg/promptbuilder"
	"github.com/mixseek/mixseek/pkg/round"
	"github.com/mixseek/mixseek/pkg/store"
	"github.com/mixseek/mixseek/pkg/trace"
	"github.com/mixseek/mixseek/pkg/trace/log"
)

// ProviderSource resolves a model id to an authenticated provider.
// *factory.Factory satisfies it.
type ProviderSource interface {
	ProviderFor(ctx context.Context, model string) (llm.Provider, error)
}

// Orchestrator runs executions. Safe to reuse across executions; all
// mutable state is per-Execute.
type Orchestrator struct {
	store      *store.Store
	providers  ProviderSource
	evalCfg    eval.Config
	judgeCfg   judge.Config
	builderCfg promptbuilder.Config
	tracer     trace.Tracer
	logger     *log.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPromptBuilder sets the round prompt template configuration.
func WithPromptBuilder(cfg promptbuilder.Config) Option {
	return func(o *Orchestrator) { o.builderCfg = cfg }
}

// WithTracer sets the tracer.
func WithTracer(tr trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = tr }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator.
func New(st *store.Store, providers ProviderSource, evalCfg eval.Config, judgeCfg judge.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     st,
		providers: providers,
		evalCfg:   evalCfg,
		judgeCfg:  judgeCfg,
		tracer:    trace.Noop{},
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs the task to completion and returns the summary. The
// returned error covers only task validation and shared component
// construction; per-team failures are captured in the summary, never
// propagated, and never abort other teams.
func (o *Orchestrator) Execute(ctx context.Context, task ExecutionTask) (*ExecutionSummary, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	// Evaluator, judge, and prompt builder are stateless across calls;
	// one of each serves every team.
	shared, err := o.buildShared()
	if err != nil {
		return nil, err
	}

	executionID := uuid.NewString()
	start := time.Now()

	ctx, span := o.tracer.StartSpan(ctx, "orchestrator.execute")
	span.SetAttribute("execution.id", executionID)
	span.SetAttribute("execution.teams", strconv.Itoa(len(task.Teams)))
	defer o.tracer.EndSpan(span)

	o.logger.InfoCtx(ctx, "execution started",
		"execution_id", executionID,
		"teams", strconv.Itoa(len(task.Teams)))

	statuses := make(map[string]*TeamStatus, len(task.Teams))
	for _, team := range task.Teams {
		statuses[team.TeamID] = &TeamStatus{
			TeamID:   team.TeamID,
			TeamName: team.TeamName,
			Status:   StatusPending,
		}
	}

	var (
		mu        sync.Mutex
		histories = make(map[string][]*store.RoundState, len(task.Teams))
		wg        sync.WaitGroup
	)

	for _, team := range task.Teams {
		wg.Add(1)
		go func(team TeamConfig) {
			defer wg.Done()
			history := o.runTeam(ctx, executionID, task, team, shared, statuses[team.TeamID])
			mu.Lock()
			histories[team.TeamID] = history
			mu.Unlock()
		}(team)
	}
	wg.Wait()

	summary := o.summarize(executionID, task, statuses, histories, time.Since(start))
	span.SetAttribute("execution.completed_teams", strconv.Itoa(summary.CompletedTeams))
	span.SetAttribute("execution.best_team", summary.BestTeamID)
	o.logger.InfoCtx(ctx, "execution finished",
		"execution_id", executionID,
		"best_team", summary.BestTeamID,
		"completed", strconv.Itoa(summary.CompletedTeams),
		"failed", strconv.Itoa(summary.FailedTeams))
	return summary, nil
}

// sharedComponents are the stateless collaborators every team worker
// uses.
type sharedComponents struct {
	evaluator *eval.Evaluator
	judge     *judge.Judge
	builder   *promptbuilder.Builder
}

// buildShared constructs the shared components, surfacing evaluator,
// judge, and template configuration errors before any team starts.
func (o *Orchestrator) buildShared() (*sharedComponents, error) {
	evaluator, err := eval.New(o.evalCfg, o.providers)
	if err != nil {
		return nil, err
	}
	jdg, err := judge.New(o.judgeCfg, o.providers)
	if err != nil {
		return nil, err
	}
	builder, err := promptbuilder.New(o.builderCfg)
	if err != nil {
		return nil, err
	}
	return &sharedComponents{evaluator: evaluator, judge: jdg, builder: builder}, nil
}

// runTeam is one team's worker. It returns the team's completed rounds;
// the terminal outcome lands in status.
func (o *Orchestrator) runTeam(ctx context.Context, executionID string, task ExecutionTask, team TeamConfig, shared *sharedComponents, status *TeamStatus) []*store.RoundState {
	now := time.Now().UTC()
	status.Status = StatusRunning
	status.StartedAt = &now

	teamCtx, cancel := context.WithTimeout(ctx, task.PerTeamDeadline)
	defer cancel()

	teamCtx, span := o.tracer.StartSpan(teamCtx, "team.worker")
	span.SetAttribute("team.id", team.TeamID)
	defer o.tracer.EndSpan(span)

	ctrl, cleanup, err := o.buildController(teamCtx, executionID, task, team, shared)
	if err != nil {
		span.SetError(err)
		o.failTeam(ctx, teamCtx, status, err)
		return nil
	}
	defer cleanup()

	for r := 1; r <= task.MaxRounds; r++ {
		rs, err := ctrl.RunRound(teamCtx, task.UserPrompt)
		if err != nil {
			span.SetError(err)
			o.failTeam(ctx, teamCtx, status, err)
			return ctrl.History()
		}
		status.CurrentRound = rs.RoundNumber

		if r < task.MinRounds {
			continue
		}
		if r >= task.MaxRounds {
			break
		}

		verdict, err := ctrl.ShouldContinue(teamCtx, task.UserPrompt)
		if err != nil {
			span.SetError(err)
			o.failTeam(ctx, teamCtx, status, err)
			return ctrl.History()
		}
		if !verdict.ShouldContinue {
			break
		}
	}

	done := time.Now().UTC()
	status.Status = StatusCompleted
	status.CompletedAt = &done
	return ctrl.History()
}

// buildController wires one team's leader, members, session, and round
// controller. The returned cleanup releases the store session.
func (o *Orchestrator) buildController(ctx context.Context, executionID string, task ExecutionTask, team TeamConfig, shared *sharedComponents) (*round.Controller, func(), error) {
	session, err := o.store.Session(ctx)
	if err != nil {
		return nil, nil, err
	}

	members := make([]member.Member, 0, len(team.Members))
	for _, spec := range team.Members {
		var provider llm.Provider
		if spec.AgentType != member.TypeCustom {
			provider, err = o.providers.ProviderFor(ctx, spec.Model)
			if err != nil {
				_ = session.Close()
				return nil, nil, err
			}
		}
		m, err := member.New(spec, provider, o.tracer)
		if err != nil {
			_ = session.Close()
			return nil, nil, err
		}
		members = append(members, m)
	}

	leaderProvider, err := o.providers.ProviderFor(ctx, team.Leader.Model)
	if err != nil {
		_ = session.Close()
		return nil, nil, err
	}
	ldr, err := leader.New(team.Leader, leaderProvider, team.Members, members, o.tracer)
	if err != nil {
		_ = session.Close()
		return nil, nil, err
	}

	ctrl := round.New(round.Config{
		ExecutionID:       executionID,
		TeamID:            team.TeamID,
		TeamName:          team.TeamName,
		SubmissionTimeout: task.SubmissionTimeout,
		JudgmentTimeout:   task.JudgmentTimeout,
	}, shared.builder, ldr, shared.evaluator, shared.judge, session, o.tracer, o.logger)

	return ctrl, func() { _ = session.Close() }, nil
}

// failTeam records a team's terminal failure. A deadline that belongs
// to the team (not the whole execution) is a timeout; everything else
// is a failure tagged with its kind.
func (o *Orchestrator) failTeam(parent, teamCtx context.Context, status *TeamStatus, err error) {
	now := time.Now().UTC()
	status.CompletedAt = &now
	status.ErrorMessage = err.Error()

	if errors.Is(teamCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
		status.Status = StatusTimeout
		status.ErrorKind = errkind.Timeout.String()
		return
	}

	status.Status = StatusFailed
	status.ErrorKind = errkind.Of(err).String()
	o.logger.Error("team failed",
		"team_id", status.TeamID,
		"error_kind", status.ErrorKind,
		"error", status.ErrorMessage)
}

// summarize selects each team's best round and the global winner.
func (o *Orchestrator) summarize(executionID string, task ExecutionTask, statuses map[string]*TeamStatus, histories map[string][]*store.RoundState, elapsed time.Duration) *ExecutionSummary {
	summary := &ExecutionSummary{
		ExecutionID:        executionID,
		UserPrompt:         task.UserPrompt,
		TeamResults:        make(map[string]*store.RoundState),
		TeamStatuses:       statuses,
		TotalTeams:         len(task.Teams),
		TotalExecutionTime: elapsed,
	}

	for teamID, history := range histories {
		if best := bestRound(history); best != nil {
			summary.TeamResults[teamID] = best
		}
	}
	for _, status := range statuses {
		if status.Status == StatusCompleted {
			summary.CompletedTeams++
		} else {
			summary.FailedTeams++
		}
	}

	summary.BestTeamID = bestTeam(summary.TeamResults)
	return summary
}
