package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/eval"
	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/member"
)

// excerptRunes bounds the leaderboard submission excerpt.
const excerptRunes = 200

// RoundState is the durable record of one completed round for one team.
// In-memory copies are snapshots; the store owns the durable row.
type RoundState struct {
	ExecutionID string `json:"execution_id"`
	TeamID      string `json:"team_id"`
	TeamName    string `json:"team_name"`
	RoundNumber int    `json:"round_number"`
	// SubmissionContent is the leader's synthesized text.
	SubmissionContent string `json:"submission_content"`
	// MemberSubmissions lists member contributions in invocation order.
	MemberSubmissions []member.Submission `json:"member_submissions"`
	// MessageHistory is the opaque, version-tagged conversation blob.
	MessageHistory json.RawMessage `json:"message_history"`
	// EvaluationScore is the overall score in [0, 100].
	EvaluationScore float64 `json:"evaluation_score"`
	// EvaluationFeedback holds the per-metric scores and comments.
	EvaluationFeedback []eval.MetricScore `json:"evaluation_feedback"`
	// Usage sums leader usage plus every member submission's usage.
	Usage llm.Usage `json:"usage"`
	// ExecutionTime is the round's wall-clock duration.
	ExecutionTime time.Duration `json:"execution_time"`
	// CompletedAt is UTC.
	CompletedAt time.Time `json:"completed_at"`
}

// Validate checks the record invariants before persistence.
func (r *RoundState) Validate() error {
	switch {
	case r.ExecutionID == "":
		return errkind.New(errkind.StorePermanent, "round state: execution_id is required")
	case r.TeamID == "":
		return errkind.New(errkind.StorePermanent, "round state: team_id is required")
	case r.RoundNumber < 1:
		return errkind.New(errkind.StorePermanent,
			"round state: round_number %d, want >= 1", r.RoundNumber)
	case r.SubmissionContent == "":
		return errkind.New(errkind.StorePermanent, "round state: submission_content is empty")
	case r.EvaluationScore < 0 || r.EvaluationScore > 100:
		return errkind.New(errkind.StorePermanent,
			"round state: evaluation_score %v out of range [0, 100]", r.EvaluationScore)
	case r.Usage.InputTokens < 0 || r.Usage.OutputTokens < 0 || r.Usage.Requests < 0:
		return errkind.New(errkind.StorePermanent, "round state: negative usage")
	}
	return nil
}

// Excerpt returns the leaderboard projection of the submission.
func (r *RoundState) Excerpt() string {
	runes := []rune(r.SubmissionContent)
	if len(runes) <= excerptRunes {
		return r.SubmissionContent
	}
	return string(runes[:excerptRunes]) + "…"
}

// LeaderboardEntry is one team's best-round projection for ranking.
type LeaderboardEntry struct {
	ExecutionID       string  `json:"execution_id"`
	TeamID            string  `json:"team_id"`
	TeamName          string  `json:"team_name"`
	RoundNumber       int     `json:"round_number"`
	Score             float64 `json:"score"`
	SubmissionExcerpt string  `json:"submission_excerpt"`
}

// messageHistoryVersion tags the history blob so a future schema change
// can bump it without breaking cold resume.
const messageHistoryVersion = 1

type historyEnvelope struct {
	V        int           `json:"v"`
	Messages []llm.Message `json:"messages"`
}

// WrapMessageHistory serializes a conversation into the version-tagged
// blob persisted with each round.
func WrapMessageHistory(messages []llm.Message) (json.RawMessage, error) {
	data, err := json.Marshal(historyEnvelope{V: messageHistoryVersion, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("store: wrap message history: %w", err)
	}
	return data, nil
}

// UnwrapMessageHistory decodes a blob produced by WrapMessageHistory.
func UnwrapMessageHistory(blob json.RawMessage) ([]llm.Message, error) {
	var env historyEnvelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("store: unwrap message history: %w", err)
	}
	if env.V != messageHistoryVersion {
		return nil, fmt.Errorf("store: unsupported message history version %d", env.V)
	}
	return env.Messages, nil
}
