package orchestrator

import (
	"sort"
	"time"

	"github.com/mixseek/mixseek/pkg/store"
)

// Status is a team's lifecycle state within one execution.
// Transitions: pending → running → {completed | failed | timeout}.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
)

// TeamStatus tracks one team's progress. Orchestrator scope only; it is
// never persisted.
type TeamStatus struct {
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
	Status   Status `json:"status"`
	// CurrentRound is 0 until the first round completes.
	CurrentRound int        `json:"current_round"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorKind    string     `json:"error_kind,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// ExecutionSummary is the final artifact of one execution.
type ExecutionSummary struct {
	ExecutionID string `json:"execution_id"`
	UserPrompt  string `json:"user_prompt"`
	// TeamResults maps team_id to that team's best persisted round.
	// Teams with no successful round are absent here and carry their
	// terminal status in TeamStatuses.
	TeamResults map[string]*store.RoundState `json:"team_results"`
	// TeamStatuses maps team_id to its terminal status.
	TeamStatuses map[string]*TeamStatus `json:"team_statuses"`
	// BestTeamID is the winning team, empty when no team completed a
	// round.
	BestTeamID string `json:"best_team_id,omitempty"`
	// Computed counters. TotalTeams == CompletedTeams + FailedTeams.
	TotalTeams         int           `json:"total_teams"`
	CompletedTeams     int           `json:"completed_teams"`
	FailedTeams        int           `json:"failed_teams"`
	TotalExecutionTime time.Duration `json:"total_execution_time"`
}

// bestRound picks a team's best round: highest score, ties broken by
// the earlier round.
func bestRound(history []*store.RoundState) *store.RoundState {
	var best *store.RoundState
	for _, rs := range history {
		if best == nil || rs.EvaluationScore > best.EvaluationScore {
			best = rs
		}
	}
	return best
}

// bestTeam picks the winner among team best-rounds: highest score, ties
// broken by the earlier round, then the lexicographically lower team_id.
func bestTeam(results map[string]*store.RoundState) string {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	bestID := ""
	for _, id := range ids {
		rs := results[id]
		if bestID == "" {
			bestID = id
			continue
		}
		cur := results[bestID]
		switch {
		case rs.EvaluationScore > cur.EvaluationScore:
			bestID = id
		case rs.EvaluationScore == cur.EvaluationScore && rs.RoundNumber < cur.RoundNumber:
			bestID = id
		}
	}
	return bestID
}
