package orchestrator

import (
	"time"

	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/leader"
	"github.com/mixseek/mixseek/pkg/member"
)

const (
	// MaxRoundsCeiling is the hard upper bound on max_rounds.
	MaxRoundsCeiling = 10
	// MaxMembersPerTeam bounds a team's member list.
	MaxMembersPerTeam = 50
)

// TeamConfig is the fully-materialized configuration of one team.
// Config-file references are resolved before this record is built.
type TeamConfig struct {
	// TeamID and TeamName are required; TeamID must be unique within
	// the execution.
	TeamID   string
	TeamName string
	// Leader configures the team's leader agent.
	Leader leader.Config
	// Members configures the team's member agents, in order.
	Members []member.Spec
	// MaxConcurrentMembers bounds the leader's tool fan-out within a
	// round. Informational: actual concurrency follows the leader's
	// emitted plan.
	MaxConcurrentMembers int
}

// Validate checks the team configuration.
func (t TeamConfig) Validate() error {
	if t.TeamID == "" {
		return errkind.New(errkind.Configuration, "team: team_id is required")
	}
	if t.TeamName == "" {
		return errkind.New(errkind.Configuration, "team %s: team_name is required", t.TeamID)
	}
	if t.Leader.Model == "" {
		return errkind.New(errkind.Configuration, "team %s: leader model is required", t.TeamID)
	}
	if len(t.Members) > MaxMembersPerTeam {
		return errkind.New(errkind.Configuration,
			"team %s: %d members exceeds the limit of %d", t.TeamID, len(t.Members), MaxMembersPerTeam)
	}
	if t.MaxConcurrentMembers < 1 {
		return errkind.New(errkind.Configuration,
			"team %s: max_concurrent_members must be positive", t.TeamID)
	}

	names := make(map[string]bool, len(t.Members))
	for _, m := range t.Members {
		if err := m.Validate(); err != nil {
			return err
		}
		if names[m.AgentName] {
			return errkind.New(errkind.Configuration,
				"team %s: duplicate agent_name %q", t.TeamID, m.AgentName)
		}
		names[m.AgentName] = true
	}
	return nil
}

// ExecutionTask describes one orchestrator invocation. Immutable for
// the life of the execution.
type ExecutionTask struct {
	// UserPrompt is the task all teams compete on.
	UserPrompt string
	// Teams is the ordered, non-empty team list.
	Teams []TeamConfig
	// PerTeamDeadline bounds each team's entire multi-round execution.
	PerTeamDeadline time.Duration
	// MinRounds and MaxRounds bound the round loop (1..10,
	// min <= max).
	MinRounds int
	MaxRounds int
	// SubmissionTimeout bounds the leader phase of each round.
	SubmissionTimeout time.Duration
	// JudgmentTimeout bounds the evaluation phase of each round.
	JudgmentTimeout time.Duration
}

// Validate checks the task. The same bounds are re-checked when the
// configuration is resolved; validating here too keeps a bad caller
// from bypassing them.
func (t ExecutionTask) Validate() error {
	if t.UserPrompt == "" {
		return errkind.New(errkind.Configuration, "task: user prompt is required")
	}
	if len(t.Teams) == 0 {
		return errkind.New(errkind.Configuration, "task: at least one team is required")
	}
	if t.PerTeamDeadline <= 0 {
		return errkind.New(errkind.Configuration, "task: per-team deadline must be positive")
	}
	if t.SubmissionTimeout <= 0 {
		return errkind.New(errkind.Configuration, "task: submission timeout must be positive")
	}
	if t.JudgmentTimeout <= 0 {
		return errkind.New(errkind.Configuration, "task: judgment timeout must be positive")
	}
	if t.MaxRounds < 1 || t.MaxRounds > MaxRoundsCeiling {
		return errkind.New(errkind.Configuration,
			"task: max_rounds %d out of range [1, %d]", t.MaxRounds, MaxRoundsCeiling)
	}
	if t.MinRounds < 1 || t.MinRounds > t.MaxRounds {
		return errkind.New(errkind.Configuration,
			"task: min_rounds %d out of range [1, max_rounds=%d]", t.MinRounds, t.MaxRounds)
	}

	ids := make(map[string]bool, len(t.Teams))
	for _, team := range t.Teams {
		if err := team.Validate(); err != nil {
			return err
		}
		if ids[team.TeamID] {
			return errkind.New(errkind.Configuration, "task: duplicate team_id %q", team.TeamID)
		}
		ids[team.TeamID] = true
	}
	return nil
}
