package store

import (
	"context"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/eval"
	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/member"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "mixseek.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRound(execID, teamID string, round int, score float64) *RoundState {
	history, _ := WrapMessageHistory([]llm.Message{
		llm.NewUserMessage("task"),
		llm.NewAssistantMessage("answer " + teamID),
	})
	return &RoundState{
		ExecutionID:       execID,
		TeamID:            teamID,
		TeamName:          "Team " + teamID,
		RoundNumber:       round,
		SubmissionContent: "submission from " + teamID,
		MemberSubmissions: []member.Submission{
			{AgentName: "analyst", AgentType: member.TypePlain, Content: "notes",
				Status: member.StatusSuccess, Usage: llm.Usage{InputTokens: 10, OutputTokens: 4, Requests: 1}},
		},
		MessageHistory:  history,
		EvaluationScore: score,
		EvaluationFeedback: []eval.MetricScore{
			{Name: "Relevance", Score: score, Comment: "fine"},
		},
		Usage:         llm.Usage{InputTokens: 110, OutputTokens: 44, Requests: 3},
		ExecutionTime: 1500 * time.Millisecond,
		CompletedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.Session(ctx)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	defer sess.Close()

	want := testRound("exec-1", "alpha", 1, 88.5)
	if err := sess.SaveRound(ctx, want); err != nil {
		t.Fatalf("SaveRound: %v", err)
	}

	got, err := sess.LoadRoundHistory(ctx, "exec-1", "alpha")
	if err != nil {
		t.Fatalf("LoadRoundHistory: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("loaded %d rounds, want 1", len(got))
	}

	rs := got[0]
	if rs.SubmissionContent != want.SubmissionContent {
		t.Errorf("submission = %q, want %q", rs.SubmissionContent, want.SubmissionContent)
	}
	if rs.EvaluationScore != want.EvaluationScore {
		t.Errorf("score = %v, want %v", rs.EvaluationScore, want.EvaluationScore)
	}
	if !reflect.DeepEqual(rs.Usage, want.Usage) {
		t.Errorf("usage = %+v, want %+v", rs.Usage, want.Usage)
	}
	if len(rs.MemberSubmissions) != 1 || rs.MemberSubmissions[0].Content != "notes" {
		t.Errorf("member submissions = %+v", rs.MemberSubmissions)
	}
	if rs.ExecutionTime != want.ExecutionTime {
		t.Errorf("execution time = %v, want %v", rs.ExecutionTime, want.ExecutionTime)
	}

	messages, err := UnwrapMessageHistory(rs.MessageHistory)
	if err != nil {
		t.Fatalf("UnwrapMessageHistory: %v", err)
	}
	if len(messages) != 2 || messages[1].Content != "answer alpha" {
		t.Errorf("messages = %+v", messages)
	}
}

func TestDuplicateRoundIsPermanent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.Session(ctx)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	defer sess.Close()

	if err := sess.SaveRound(ctx, testRound("exec-1", "alpha", 1, 70)); err != nil {
		t.Fatalf("first save: %v", err)
	}

	err = sess.SaveRound(ctx, testRound("exec-1", "alpha", 1, 80))
	if errkind.Of(err) != errkind.StorePermanent {
		t.Errorf("kind = %v, want StorePermanent for duplicate round", errkind.Of(err))
	}

	// The failed save must not leave partial rows: still exactly one round.
	got, err := sess.LoadRoundHistory(ctx, "exec-1", "alpha")
	if err != nil {
		t.Fatalf("LoadRoundHistory: %v", err)
	}
	if len(got) != 1 || got[0].EvaluationScore != 70 {
		t.Errorf("rounds after duplicate = %+v", got)
	}
}

func TestValidateRejectsBadRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sess, _ := s.Session(ctx)
	defer sess.Close()

	bad := testRound("exec-1", "alpha", 1, 70)
	bad.EvaluationScore = 140
	if err := sess.SaveRound(ctx, bad); errkind.Of(err) != errkind.StorePermanent {
		t.Errorf("out-of-range score: kind = %v, want StorePermanent", errkind.Of(err))
	}

	bad = testRound("exec-1", "alpha", 0, 70)
	if err := sess.SaveRound(ctx, bad); err == nil {
		t.Error("round_number 0 must be rejected")
	}

	bad = testRound("exec-1", "alpha", 1, 70)
	bad.SubmissionContent = ""
	if err := sess.SaveRound(ctx, bad); err == nil {
		t.Error("empty submission must be rejected")
	}
}

func TestLeaderboardRankingTieBreaks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sess, _ := s.Session(ctx)
	defer sess.Close()

	// beta peaks at round 1 with 90; alpha reaches 90 only at round 2.
	rounds := []*RoundState{
		testRound("exec-1", "alpha", 1, 75),
		testRound("exec-1", "alpha", 2, 90),
		testRound("exec-1", "beta", 1, 90),
		testRound("exec-1", "beta", 2, 60),
		testRound("exec-1", "gamma", 1, 40),
	}
	for _, r := range rounds {
		if err := sess.SaveRound(ctx, r); err != nil {
			t.Fatalf("SaveRound(%s/%d): %v", r.TeamID, r.RoundNumber, err)
		}
	}

	ranking, err := sess.LeaderboardRanking(ctx, "exec-1")
	if err != nil {
		t.Fatalf("LeaderboardRanking: %v", err)
	}
	if len(ranking) != 3 {
		t.Fatalf("ranking length = %d, want 3", len(ranking))
	}

	// Equal best scores (90): beta's came in an earlier round, so beta
	// ranks first.
	if ranking[0].TeamID != "beta" || ranking[0].RoundNumber != 1 {
		t.Errorf("ranking[0] = %+v, want beta round 1", ranking[0])
	}
	if ranking[1].TeamID != "alpha" || ranking[1].RoundNumber != 2 {
		t.Errorf("ranking[1] = %+v, want alpha round 2", ranking[1])
	}
	if ranking[2].TeamID != "gamma" {
		t.Errorf("ranking[2] = %+v, want gamma", ranking[2])
	}
}

func TestLeaderboardEmptyExecution(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sess, _ := s.Session(ctx)
	defer sess.Close()

	ranking, err := sess.LeaderboardRanking(ctx, "no-such-exec")
	if err != nil {
		t.Fatalf("LeaderboardRanking: %v", err)
	}
	if len(ranking) != 0 {
		t.Errorf("ranking = %+v, want empty", ranking)
	}
}

func TestConcurrentTeamWriters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const teams = 8
	var wg sync.WaitGroup
	errs := make(chan error, teams)

	for i := 0; i < teams; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sess, err := s.Session(ctx)
			if err != nil {
				errs <- err
				return
			}
			defer sess.Close()
			teamID := string(rune('a' + n))
			for round := 1; round <= 3; round++ {
				if err := sess.SaveRound(ctx, testRound("exec-c", teamID, round, float64(50+round))); err != nil {
					errs <- err
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent writer: %v", err)
	}

	sess, _ := s.Session(ctx)
	defer sess.Close()
	ranking, err := sess.LeaderboardRanking(ctx, "exec-c")
	if err != nil {
		t.Fatalf("LeaderboardRanking: %v", err)
	}
	if len(ranking) != teams {
		t.Errorf("ranking teams = %d, want %d", len(ranking), teams)
	}
}

func TestExcerptTruncation(t *testing.T) {
	rs := testRound("e", "t", 1, 50)
	long := make([]rune, 500)
	for i := range long {
		long[i] = 'x'
	}
	rs.SubmissionContent = string(long)
	if got := rs.Excerpt(); len([]rune(got)) != excerptRunes+1 {
		t.Errorf("excerpt runes = %d, want %d", len([]rune(got)), excerptRunes+1)
	}
}
