package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/eval"
	"github.com/mixseek/mixseek/pkg/judge"
	"github.com/mixseek/mixseek/pkg/leader"
	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/llm/mock"
	"github.com/mixseek/mixseek/pkg/member"
	"github.com/mixseek/mixseek/pkg/store"
)

type modelSource map[string]llm.Provider

func (m modelSource) ProviderFor(_ context.Context, model string) (llm.Provider, error) {
	p, ok := m[model]
	if !ok {
		return nil, errkind.New(errkind.Authentication, "no credentials for model %q", model)
	}
	return p, nil
}

func textResp(content string) *llm.Response {
	return &llm.Response{
		Message: llm.NewAssistantMessage(content),
		Usage:   llm.Usage{InputTokens: 20, OutputTokens: 8, Requests: 1},
		Model:   "leader-model",
	}
}

func scoreResp(score float64) *llm.Response {
	return &llm.Response{
		Message: llm.NewAssistantMessage(fmt.Sprintf(`{"score": %v, "comment": "ok"}`, score)),
		Usage:   llm.Usage{Requests: 1},
		Model:   "eval-model",
	}
}

func continueResp(cont bool) *llm.Response {
	return &llm.Response{
		Message: llm.NewAssistantMessage(
			fmt.Sprintf(`{"should_continue": %v, "reasoning": "trend", "confidence": 0.9}`, cont)),
		Usage: llm.Usage{Requests: 1},
		Model: "cont-model",
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "mixseek.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func evalCfg() eval.Config {
	return eval.Config{
		DefaultModel: "eval-model",
		Metrics:      []eval.MetricSpec{{Name: "Relevance", Weight: ptr(1.0)}},
	}
}

func ptr(f float64) *float64 { return &f }

func judgeCfg() judge.Config {
	return judge.Config{Model: "cont-model"}
}

func soloTeam(id, model string) TeamConfig {
	return TeamConfig{
		TeamID:               id,
		TeamName:             "Team " + id,
		Leader:               leader.Config{Model: model},
		MaxConcurrentMembers: 1,
	}
}

func baseTask(teams ...TeamConfig) ExecutionTask {
	return ExecutionTask{
		UserPrompt:        "Summarize the word 'hello' in one sentence.",
		Teams:             teams,
		PerTeamDeadline:   10 * time.Second,
		MinRounds:         1,
		MaxRounds:         1,
		SubmissionTimeout: 5 * time.Second,
		JudgmentTimeout:   5 * time.Second,
	}
}

func TestSingleTeamSingleRound(t *testing.T) {
	judgeProvider := mock.New()
	source := modelSource{
		"leader-model": mock.New(mock.WithFallback(textResp("Hello is a greeting."))),
		"eval-model":   mock.New(mock.WithFallback(scoreResp(77))),
		"cont-model":   judgeProvider,
	}

	o := New(openStore(t), source, evalCfg(), judgeCfg())
	summary, err := o.Execute(context.Background(), baseTask(soloTeam("alpha", "leader-model")))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if summary.TotalTeams != 1 || summary.CompletedTeams != 1 || summary.FailedTeams != 0 {
		t.Errorf("counters = %d/%d/%d", summary.TotalTeams, summary.CompletedTeams, summary.FailedTeams)
	}
	if summary.BestTeamID != "alpha" {
		t.Errorf("best team = %q, want alpha", summary.BestTeamID)
	}

	best := summary.TeamResults["alpha"]
	if best == nil || best.RoundNumber != 1 {
		t.Fatalf("best round = %+v", best)
	}
	if best.EvaluationScore != 77 {
		t.Errorf("score = %v", best.EvaluationScore)
	}
	if summary.TeamStatuses["alpha"].Status != StatusCompleted {
		t.Errorf("status = %s", summary.TeamStatuses["alpha"].Status)
	}

	// min_rounds == max_rounds == 1 never consults the judge.
	if judgeProvider.Calls() != 0 {
		t.Errorf("judge calls = %d, want 0", judgeProvider.Calls())
	}
}

func TestDeadlineDisqualifiesSlowTeam(t *testing.T) {
	source := modelSource{
		"fast-model": mock.New(mock.WithFallback(textResp("quick answer"))),
		"slow-model": mock.New(mock.WithDelay(2*time.Second), mock.WithFallback(textResp("late"))),
		"eval-model": mock.New(mock.WithFallback(scoreResp(60))),
		"cont-model": mock.New(),
	}

	st := openStore(t)
	o := New(st, source, evalCfg(), judgeCfg())

	task := baseTask(soloTeam("a", "fast-model"), soloTeam("b", "slow-model"))
	task.PerTeamDeadline = 300 * time.Millisecond

	summary, err := o.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if got := summary.TeamStatuses["b"].Status; got != StatusTimeout {
		t.Errorf("team b status = %s, want timeout", got)
	}
	if _, ok := summary.TeamResults["b"]; ok {
		t.Error("timed-out team must have no result")
	}
	if summary.TeamStatuses["a"].Status != StatusCompleted {
		t.Errorf("team a status = %s", summary.TeamStatuses["a"].Status)
	}
	if summary.BestTeamID != "a" {
		t.Errorf("best team = %q, want a", summary.BestTeamID)
	}
	if summary.CompletedTeams != 1 || summary.FailedTeams != 1 {
		t.Errorf("counters = %d/%d", summary.CompletedTeams, summary.FailedTeams)
	}

	// No persisted rows for the disqualified team.
	sess, err := st.Session(context.Background())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	defer sess.Close()
	rows, err := sess.LoadRoundHistory(context.Background(), summary.ExecutionID, "b")
	if err != nil {
		t.Fatalf("LoadRoundHistory: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("team b persisted %d rounds, want 0", len(rows))
	}
}

func TestMultiRoundStopsOnJudgeVerdict(t *testing.T) {
	scores := mock.New(mock.WithResponses(
		scoreResp(50), scoreResp(65), scoreResp(80),
	))
	source := modelSource{
		"leader-model": mock.New(mock.WithFallback(textResp("an answer"))),
		"eval-model":   scores,
		"cont-model": mock.New(mock.WithResponses(
			continueResp(true),  // after round 2
			continueResp(false), // after round 3
		)),
	}

	st := openStore(t)
	o := New(st, source, evalCfg(), judgeCfg())

	task := baseTask(soloTeam("alpha", "leader-model"))
	task.MinRounds = 2
	task.MaxRounds = 5

	summary, err := o.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	sess, _ := st.Session(context.Background())
	defer sess.Close()
	rows, err := sess.LoadRoundHistory(context.Background(), summary.ExecutionID, "alpha")
	if err != nil {
		t.Fatalf("LoadRoundHistory: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("persisted rounds = %d, want 3", len(rows))
	}
	for i, rs := range rows {
		if rs.RoundNumber != i+1 {
			t.Errorf("row %d round = %d", i, rs.RoundNumber)
		}
	}

	// Best round is the argmax of the scores (round 3, score 80).
	best := summary.TeamResults["alpha"]
	if best.RoundNumber != 3 || best.EvaluationScore != 80 {
		t.Errorf("best = round %d score %v", best.RoundNumber, best.EvaluationScore)
	}
	if summary.TeamStatuses["alpha"].CurrentRound != 3 {
		t.Errorf("current round = %d", summary.TeamStatuses["alpha"].CurrentRound)
	}
}

func TestMemberFailureDoesNotAbortRound(t *testing.T) {
	team := soloTeam("alpha", "leader-model")
	team.Members = []member.Spec{
		{AgentName: "a", AgentType: member.TypePlain, ToolDescription: "works", Model: "member-a"},
		{AgentName: "b", AgentType: member.TypePlain, ToolDescription: "breaks", Model: "member-b"},
	}
	team.MaxConcurrentMembers = 2

	leaderProvider := mock.New(mock.WithResponses(
		&llm.Response{
			Message: llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
				{ID: "c1", Function: "delegate_to_a", Arguments: []byte(`{"task":"part 1"}`)},
				{ID: "c2", Function: "delegate_to_b", Arguments: []byte(`{"task":"part 2"}`)},
			}},
			Usage: llm.Usage{InputTokens: 40, OutputTokens: 16, Requests: 1},
		},
		textResp("synthesized despite b"),
	))

	source := modelSource{
		"leader-model": leaderProvider,
		"member-a":     mock.New(mock.WithFallback(textResp("part 1 done"))),
		"member-b": mock.New(mock.WithError(
			errkind.New(errkind.ProviderPermanent, "capability unsupported"))),
		"eval-model": mock.New(mock.WithFallback(scoreResp(70))),
		"cont-model": mock.New(),
	}

	o := New(openStore(t), source, evalCfg(), judgeCfg())
	summary, err := o.Execute(context.Background(), baseTask(team))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	best := summary.TeamResults["alpha"]
	if best == nil {
		t.Fatal("round should succeed despite member failure")
	}
	if len(best.MemberSubmissions) != 2 {
		t.Fatalf("member submissions = %d, want 2", len(best.MemberSubmissions))
	}
	if best.MemberSubmissions[0].Status != member.StatusSuccess ||
		best.MemberSubmissions[1].Status != member.StatusFailure {
		t.Errorf("statuses = %s, %s",
			best.MemberSubmissions[0].Status, best.MemberSubmissions[1].Status)
	}
	if best.SubmissionContent != "synthesized despite b" {
		t.Errorf("submission = %q", best.SubmissionContent)
	}
}

func TestLeaderFailureOnRoundOneFailsTeam(t *testing.T) {
	source := modelSource{
		"bad-model": mock.New(mock.WithError(
			errkind.New(errkind.ProviderPermanent, "400 schema error"))),
		"good-model": mock.New(mock.WithFallback(textResp("fine"))),
		"eval-model": mock.New(mock.WithFallback(scoreResp(55))),
		"cont-model": mock.New(),
	}

	o := New(openStore(t), source, evalCfg(), judgeCfg())
	summary, err := o.Execute(context.Background(),
		baseTask(soloTeam("bad", "bad-model"), soloTeam("good", "good-model")))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	badStatus := summary.TeamStatuses["bad"]
	if badStatus.Status != StatusFailed {
		t.Errorf("bad status = %s", badStatus.Status)
	}
	if badStatus.ErrorKind != errkind.ProviderPermanent.String() {
		t.Errorf("error kind = %q", badStatus.ErrorKind)
	}
	if _, ok := summary.TeamResults["bad"]; ok {
		t.Error("failed team must have no result")
	}
	if summary.BestTeamID != "good" {
		t.Errorf("best team = %q", summary.BestTeamID)
	}
	if summary.TotalTeams != summary.CompletedTeams+summary.FailedTeams {
		t.Error("counter invariant violated")
	}
}

func TestMissingCredentialsFailsTeamBeforeWork(t *testing.T) {
	// The source has no entry for the leader model: authentication error.
	source := modelSource{
		"eval-model": mock.New(mock.WithFallback(scoreResp(55))),
		"cont-model": mock.New(),
	}

	o := New(openStore(t), source, evalCfg(), judgeCfg())
	summary, err := o.Execute(context.Background(), baseTask(soloTeam("alpha", "leader-model")))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	status := summary.TeamStatuses["alpha"]
	if status.Status != StatusFailed || status.ErrorKind != errkind.Authentication.String() {
		t.Errorf("status = %s kind = %q", status.Status, status.ErrorKind)
	}
}

func TestZeroMemberTeamSucceeds(t *testing.T) {
	source := modelSource{
		"leader-model": mock.New(mock.WithFallback(textResp("solo leader output"))),
		"eval-model":   mock.New(mock.WithFallback(scoreResp(68))),
		"cont-model":   mock.New(),
	}

	o := New(openStore(t), source, evalCfg(), judgeCfg())
	summary, err := o.Execute(context.Background(), baseTask(soloTeam("alpha", "leader-model")))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	best := summary.TeamResults["alpha"]
	if best == nil {
		t.Fatal("expected a result")
	}
	if len(best.MemberSubmissions) != 0 {
		t.Errorf("member submissions = %d, want 0", len(best.MemberSubmissions))
	}
}

func TestTaskValidation(t *testing.T) {
	o := New(openStore(t), modelSource{}, evalCfg(), judgeCfg())

	bad := []ExecutionTask{
		{},
		baseTaskWith(func(t *ExecutionTask) { t.UserPrompt = "" }),
		baseTaskWith(func(t *ExecutionTask) { t.Teams = nil }),
		baseTaskWith(func(t *ExecutionTask) { t.MaxRounds = 11 }),
		baseTaskWith(func(t *ExecutionTask) { t.MinRounds = 2 }),
		baseTaskWith(func(t *ExecutionTask) { t.PerTeamDeadline = 0 }),
		baseTaskWith(func(t *ExecutionTask) { t.Teams[0].TeamID = "" }),
		baseTaskWith(func(t *ExecutionTask) { t.Teams[0].MaxConcurrentMembers = 0 }),
		baseTaskWith(func(t *ExecutionTask) {
			t.Teams = append(t.Teams, t.Teams[0])
		}),
	}
	for i, task := range bad {
		if _, err := o.Execute(context.Background(), task); errkind.Of(err) != errkind.Configuration {
			t.Errorf("case %d: kind = %v, want Configuration", i, errkind.Of(err))
		}
	}
}

func baseTaskWith(mutate func(*ExecutionTask)) ExecutionTask {
	task := baseTask(soloTeam("alpha", "leader-model"))
	mutate(&task)
	return task
}

func TestBestRoundTieBreaks(t *testing.T) {
	mk := func(team string, round int, score float64) *store.RoundState {
		return &store.RoundState{TeamID: team, RoundNumber: round, EvaluationScore: score}
	}

	// Earlier round wins the within-team tie.
	best := bestRound([]*store.RoundState{mk("a", 1, 90), mk("a", 2, 90), mk("a", 3, 70)})
	if best.RoundNumber != 1 {
		t.Errorf("best round = %d, want 1", best.RoundNumber)
	}

	// Lower team id wins the cross-team tie at equal score and round.
	id := bestTeam(map[string]*store.RoundState{
		"beta":  mk("beta", 1, 90),
		"alpha": mk("alpha", 1, 90),
	})
	if id != "alpha" {
		t.Errorf("best team = %q, want alpha", id)
	}

	// Earlier round wins the cross-team tie at equal score.
	id = bestTeam(map[string]*store.RoundState{
		"alpha": mk("alpha", 3, 90),
		"beta":  mk("beta", 1, 90),
	})
	if id != "beta" {
		t.Errorf("best team = %q, want beta", id)
	}

	if bestTeam(nil) != "" {
		t.Error("no results should yield no best team")
	}
}
