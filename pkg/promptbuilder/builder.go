// Package promptbuilder assembles the per-round team prompt from the
// user task, the team's full round history, and a leaderboard snapshot
// read from the store at call time.
package promptbuilder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/store"
)

// DefaultTemplate is used when the workspace has no prompt_builder.toml.
// Placeholders are rendered as template functions so both
// "{{ user_prompt }}" and "{{user_prompt}}" spellings work.
const DefaultTemplate = `# Task

{{ user_prompt }}

# Round {{ round_number }} — {{ current_datetime }}

## Your previous rounds

{{ submission_history }}

## Current standings

{{ ranking_table }}

{{ team_position_message }}

{{ improvement_directive }}`

// DefaultImprovementDirective is appended to every non-first round.
const DefaultImprovementDirective = `Improve on your previous submission: address every piece of evaluator
feedback, keep what scored well, and aim to overtake the teams above you.`

// Config configures a Builder.
type Config struct {
	// Template is the round prompt template. Empty uses DefaultTemplate.
	Template string
	// ImprovementDirective overrides the default directive.
	ImprovementDirective string
}

// Input carries everything one Build call needs.
type Input struct {
	UserPrompt  string
	RoundNumber int
	ExecutionID string
	TeamID      string
	TeamName    string
	// History is this team's completed rounds, in round order.
	History []*store.RoundState
	// Ranking reads the leaderboard snapshot. May be nil for round 1.
	Ranking store.RankingReader
}

// Builder renders round prompts. It is stateless across calls.
type Builder struct {
	cfg Config
}

// New creates a Builder. The template is validated eagerly so a broken
// workspace template fails at startup, not mid-execution.
func New(cfg Config) (*Builder, error) {
	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}
	if cfg.ImprovementDirective == "" {
		cfg.ImprovementDirective = DefaultImprovementDirective
	}
	if _, err := parseTemplate(cfg.Template, placeholders{}); err != nil {
		return nil, errkind.Wrap(errkind.Configuration, err, "prompt builder: invalid template")
	}
	return &Builder{cfg: cfg}, nil
}

// Build returns the prompt for the given round. Round 1 is the raw
// user prompt; later rounds render the template with the full history
// and a fresh leaderboard snapshot.
func (b *Builder) Build(ctx context.Context, in Input) (string, error) {
	if in.RoundNumber <= 1 {
		return in.UserPrompt, nil
	}

	var ranking []store.LeaderboardEntry
	if in.Ranking != nil {
		var err error
		ranking, err = in.Ranking.LeaderboardRanking(ctx, in.ExecutionID)
		if err != nil {
			return "", err
		}
	}

	ph := placeholders{
		userPrompt:           in.UserPrompt,
		roundNumber:          in.RoundNumber,
		submissionHistory:    renderHistory(in.History),
		rankingTable:         renderRanking(ranking, in.TeamID),
		teamPositionMessage:  positionMessage(ranking, in.TeamID, in.TeamName),
		currentDatetime:      currentDatetime(),
		improvementDirective: b.cfg.ImprovementDirective,
	}

	tmpl, err := parseTemplate(b.cfg.Template, ph)
	if err != nil {
		return "", errkind.Wrap(errkind.Configuration, err, "prompt builder: template")
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, nil); err != nil {
		return "", errkind.Wrap(errkind.Configuration, err, "prompt builder: render")
	}
	return out.String(), nil
}

// placeholders holds the values behind the template's function-style
// placeholders.
type placeholders struct {
	userPrompt           string
	roundNumber          int
	submissionHistory    string
	rankingTable         string
	teamPositionMessage  string
	currentDatetime      string
	improvementDirective string
}

func parseTemplate(text string, ph placeholders) (*template.Template, error) {
	return template.New("round_prompt").Funcs(template.FuncMap{
		"user_prompt":           func() string { return ph.userPrompt },
		"round_number":          func() int { return ph.roundNumber },
		"submission_history":    func() string { return ph.submissionHistory },
		"ranking_table":         func() string { return ph.rankingTable },
		"team_position_message": func() string { return ph.teamPositionMessage },
		"current_datetime":      func() string { return ph.currentDatetime },
		"improvement_directive": func() string { return ph.improvementDirective },
	}).Parse(text)
}

// renderHistory renders every prior round in full; history is never
// truncated.
func renderHistory(history []*store.RoundState) string {
	if len(history) == 0 {
		return "(no previous rounds)"
	}

	var b strings.Builder
	for _, rs := range history {
		fmt.Fprintf(&b, "### Round %d — score %.2f\n\n", rs.RoundNumber, rs.EvaluationScore)
		for _, m := range rs.EvaluationFeedback {
			fmt.Fprintf(&b, "- %s: %.2f — %s\n", m.Name, m.Score, m.Comment)
		}
		b.WriteString("\nSubmission:\n\n")
		b.WriteString(rs.SubmissionContent)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderRanking renders the leaderboard snapshot, marking the current
// team's row.
func renderRanking(ranking []store.LeaderboardEntry, teamID string) string {
	if len(ranking) == 0 {
		return "(no teams on the leaderboard yet)"
	}

	var b strings.Builder
	for i, e := range ranking {
		marker := "  "
		if e.TeamID == teamID {
			marker = "→ "
		}
		fmt.Fprintf(&b, "%s%d. %s — %.2f (round %d)\n", marker, i+1, e.TeamName, e.Score, e.RoundNumber)
	}
	return strings.TrimRight(b.String(), "\n")
}

// positionMessage returns the motivational line for the team's current
// rank: congratulatory at 1st, excellent in the top 3, neutral otherwise.
func positionMessage(ranking []store.LeaderboardEntry, teamID, teamName string) string {
	rank := 0
	for i, e := range ranking {
		if e.TeamID == teamID {
			rank = i + 1
			break
		}
	}

	switch {
	case rank == 1:
		return fmt.Sprintf("Congratulations, %s — you are currently in 1st place. Defend your lead.", teamName)
	case rank >= 2 && rank <= 3:
		return fmt.Sprintf("Excellent work, %s — you are in the top 3 (currently %s).", teamName, ordinal(rank))
	case rank > 3:
		return fmt.Sprintf("%s, you are currently in %s place.", teamName, ordinal(rank))
	default:
		return fmt.Sprintf("%s, you are not on the leaderboard yet.", teamName)
	}
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 10 {
	case 1:
		if n%100 != 11 {
			suffix = "st"
		}
	case 2:
		if n%100 != 12 {
			suffix = "nd"
		}
	case 3:
		if n%100 != 13 {
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// currentDatetime formats now in the TZ env zone, defaulting to UTC.
func currentDatetime() string {
	loc := time.UTC
	if tz := os.Getenv("TZ"); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	return time.Now().In(loc).Format("2006-01-02 15:04:05 MST")
}
