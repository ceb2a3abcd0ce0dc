package leader

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/llm/mock"
	"github.com/mixseek/mixseek/pkg/member"
)

func textResp(content string) *llm.Response {
	return &llm.Response{
		Message: llm.NewAssistantMessage(content),
		Usage:   llm.Usage{InputTokens: 30, OutputTokens: 10, Requests: 1},
		Model:   "leader-model",
	}
}

func delegationResp(calls ...llm.ToolCall) *llm.Response {
	return &llm.Response{
		Message: llm.Message{Role: llm.RoleAssistant, ToolCalls: calls},
		Usage:   llm.Usage{InputTokens: 50, OutputTokens: 20, Requests: 1},
		Model:   "leader-model",
	}
}

func call(id, fn string) llm.ToolCall {
	return llm.ToolCall{ID: id, Function: fn, Arguments: json.RawMessage(`{"task":"do your part"}`)}
}

func memberSpec(name string) member.Spec {
	return member.Spec{
		AgentName:       name,
		AgentType:       member.TypePlain,
		ToolDescription: name + " does analysis",
		Model:           "member-model",
	}
}

// buildMember creates a plain member backed by its own mock provider.
func buildMember(t *testing.T, spec member.Spec, provider llm.Provider) member.Member {
	t.Helper()
	m, err := member.New(spec, provider, nil)
	if err != nil {
		t.Fatalf("member.New(%s): %v", spec.AgentName, err)
	}
	return m
}

func TestRunWithoutDelegation(t *testing.T) {
	leaderProvider := mock.New(mock.WithResponses(textResp("solo answer")))

	l, err := New(Config{Model: "leader-model"}, leaderProvider, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := l.Run(context.Background(), "the prompt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Content != "solo answer" {
		t.Errorf("content = %q", out.Content)
	}
	if len(out.Members) != 0 {
		t.Errorf("members = %d, want 0 when the leader skips delegation", len(out.Members))
	}
}

func TestDelegationRecordsSubmissionsInOrder(t *testing.T) {
	specA, specB := memberSpec("a"), memberSpec("b")
	memA := buildMember(t, specA, mock.New(mock.WithResponses(textResp("from a"))))
	memB := buildMember(t, specB, mock.New(mock.WithResponses(textResp("from b"))))

	leaderProvider := mock.New(mock.WithResponses(
		delegationResp(call("c1", "delegate_to_a"), call("c2", "delegate_to_b")),
		textResp("synthesis of a and b"),
	))

	l, err := New(Config{Model: "leader-model"}, leaderProvider,
		[]member.Spec{specA, specB}, []member.Member{memA, memB}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := l.Run(context.Background(), "the prompt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Content != "synthesis of a and b" {
		t.Errorf("content = %q", out.Content)
	}
	if len(out.Members) != 2 {
		t.Fatalf("members = %d, want 2", len(out.Members))
	}
	if out.Members[0].AgentName != "a" || out.Members[1].AgentName != "b" {
		t.Errorf("order = %s, %s; want a, b", out.Members[0].AgentName, out.Members[1].AgentName)
	}
	for _, sub := range out.Members {
		if sub.Status != member.StatusSuccess {
			t.Errorf("member %s status = %s", sub.AgentName, sub.Status)
		}
	}
}

func TestMemberFailureDoesNotAbortRound(t *testing.T) {
	specA, specB := memberSpec("a"), memberSpec("b")
	memA := buildMember(t, specA, mock.New(mock.WithResponses(textResp("from a"))))
	memB := buildMember(t, specB, mock.New(mock.WithError(
		errkind.New(errkind.ProviderPermanent, "capability unsupported"))))

	leaderProvider := mock.New(mock.WithResponses(
		delegationResp(call("c1", "delegate_to_a"), call("c2", "delegate_to_b")),
		textResp("synthesized from what worked"),
	))

	l, err := New(Config{Model: "leader-model"}, leaderProvider,
		[]member.Spec{specA, specB}, []member.Member{memA, memB}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := l.Run(context.Background(), "the prompt")
	if err != nil {
		t.Fatalf("member failure must not abort the round: %v", err)
	}
	if len(out.Members) != 2 {
		t.Fatalf("members = %d, want 2 (failure still recorded)", len(out.Members))
	}
	if out.Members[0].Status != member.StatusSuccess {
		t.Errorf("members[0].Status = %s", out.Members[0].Status)
	}
	if out.Members[1].Status != member.StatusFailure {
		t.Errorf("members[1].Status = %s", out.Members[1].Status)
	}
	if out.Members[1].Error == "" {
		t.Error("failure submission must carry the error")
	}
	if out.Content != "synthesized from what worked" {
		t.Errorf("content = %q", out.Content)
	}
}

func TestUsageSumsLeaderAndMembers(t *testing.T) {
	spec := memberSpec("a")
	mem := buildMember(t, spec, mock.New(mock.WithResponses(&llm.Response{
		Message: llm.NewAssistantMessage("from a"),
		Usage:   llm.Usage{InputTokens: 7, OutputTokens: 3, Requests: 1},
		Model:   "member-model",
	})))

	leaderProvider := mock.New(mock.WithResponses(
		delegationResp(call("c1", "delegate_to_a")),
		textResp("final"),
	))

	l, err := New(Config{Model: "leader-model"}, leaderProvider,
		[]member.Spec{spec}, []member.Member{mem}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := l.Run(context.Background(), "p")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Leader: 2 calls of (50/20) and (30/10); member: 7/3.
	want := llm.Usage{InputTokens: 87, OutputTokens: 33, Requests: 3}
	if out.Usage != want {
		t.Errorf("usage = %+v, want %+v", out.Usage, want)
	}
}

func TestEmptySubmissionIsError(t *testing.T) {
	leaderProvider := mock.New(mock.WithResponses(textResp("")))

	l, err := New(Config{Model: "leader-model"}, leaderProvider, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = l.Run(context.Background(), "p")
	if errkind.Of(err) != errkind.ProviderPermanent {
		t.Errorf("kind = %v, want ProviderPermanent", errkind.Of(err))
	}
}

func TestDuplicateToolNames(t *testing.T) {
	specA := memberSpec("a")
	specB := memberSpec("b")
	specB.ToolName = "delegate_to_a"

	memA := buildMember(t, specA, mock.New())
	memB := buildMember(t, specB, mock.New())

	_, err := New(Config{Model: "leader-model"}, mock.New(),
		[]member.Spec{specA, specB}, []member.Member{memA, memB}, nil)
	if errkind.Of(err) != errkind.Configuration {
		t.Errorf("kind = %v, want Configuration", errkind.Of(err))
	}
}

func TestFreshCollectorPerRound(t *testing.T) {
	spec := memberSpec("a")
	mem := buildMember(t, spec, mock.New(mock.WithFallback(textResp("from a"))))

	leaderProvider := mock.New(mock.WithResponses(
		delegationResp(call("c1", "delegate_to_a")),
		textResp("round one"),
		delegationResp(call("c2", "delegate_to_a")),
		textResp("round two"),
	))

	l, err := New(Config{Model: "leader-model"}, leaderProvider,
		[]member.Spec{spec}, []member.Member{mem}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out1, err := l.Run(context.Background(), "round 1 prompt")
	if err != nil {
		t.Fatalf("Run 1: %v", err)
	}
	out2, err := l.Run(context.Background(), "round 2 prompt")
	if err != nil {
		t.Fatalf("Run 2: %v", err)
	}
	if len(out1.Members) != 1 || len(out2.Members) != 1 {
		t.Errorf("members per round = %d, %d; want 1, 1", len(out1.Members), len(out2.Members))
	}
}
