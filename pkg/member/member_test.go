package member

import (
	"context"
	"errors"
	"testing"

	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/llm/mock"
)

func plainSpec(name string) Spec {
	return Spec{
		AgentName:       name,
		AgentType:       TypePlain,
		ToolDescription: "analyzes text",
		Model:           "test-model",
	}
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		ok   bool
	}{
		{"valid plain", plainSpec("analyst"), true},
		{"missing name", Spec{AgentType: TypePlain, ToolDescription: "x", Model: "m"}, false},
		{"missing tool description", Spec{AgentName: "a", AgentType: TypePlain, Model: "m"}, false},
		{"missing model", Spec{AgentName: "a", AgentType: TypePlain, ToolDescription: "x"}, false},
		{"bad type", Spec{AgentName: "a", AgentType: "wizard", ToolDescription: "x", Model: "m"}, false},
		{"custom without plugin path", Spec{AgentName: "a", AgentType: TypeCustom, ToolDescription: "x"}, false},
		{"custom with plugin path", Spec{AgentName: "a", AgentType: TypeCustom, ToolDescription: "x", PluginPath: "/bin/echo-agent"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
			if err != nil && errkind.Of(err) != errkind.Configuration {
				t.Errorf("kind = %v, want Configuration", errkind.Of(err))
			}
		})
	}
}

func TestEffectiveToolName(t *testing.T) {
	s := plainSpec("analyst")
	if got := s.EffectiveToolName(); got != "delegate_to_analyst" {
		t.Errorf("tool name = %q", got)
	}
	s.ToolName = "ask_the_analyst"
	if got := s.EffectiveToolName(); got != "ask_the_analyst" {
		t.Errorf("tool name = %q", got)
	}
}

func TestRunSuccess(t *testing.T) {
	provider := mock.New(mock.WithResponses(&llm.Response{
		Message: llm.NewAssistantMessage("the analysis"),
		Usage:   llm.Usage{InputTokens: 40, OutputTokens: 12, Requests: 1},
		Model:   "test-model",
	}))

	m, err := New(plainSpec("analyst"), provider, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sub, err := m.Run(context.Background(), "summarize hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sub.Status != StatusSuccess || sub.Content != "the analysis" {
		t.Errorf("submission = %+v", sub)
	}
	if sub.AgentName != "analyst" || sub.AgentType != TypePlain {
		t.Errorf("identity = %s/%s", sub.AgentName, sub.AgentType)
	}
	if sub.Usage.Requests != 1 {
		t.Errorf("usage = %+v", sub.Usage)
	}
	if sub.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestRunFailureSubmission(t *testing.T) {
	provider := mock.New(mock.WithError(
		errkind.New(errkind.ProviderPermanent, "400 bad request")))

	m, err := New(plainSpec("analyst"), provider, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sub, err := m.Run(context.Background(), "task")
	if err == nil {
		t.Fatal("expected error")
	}
	if sub.Status != StatusFailure {
		t.Errorf("status = %s, want failure", sub.Status)
	}
	if sub.ErrorKind != errkind.ProviderPermanent.String() {
		t.Errorf("error kind = %q", sub.ErrorKind)
	}
	if sub.Error == "" {
		t.Error("failure submission must carry the error message")
	}
}

func TestCapabilityFlags(t *testing.T) {
	var got llm.Params
	provider := mock.New(
		mock.WithCallback(func(p llm.Params) { got = p }),
		mock.WithFallback(&llm.Response{Message: llm.NewAssistantMessage("ok")}),
	)

	spec := plainSpec("searcher")
	spec.AgentType = TypeWebSearch
	m, err := New(spec, provider, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.Run(context.Background(), "find it"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !got.WebSearch || got.CodeExec {
		t.Errorf("params capabilities = search:%v code:%v", got.WebSearch, got.CodeExec)
	}
}

func TestFailureHelper(t *testing.T) {
	sub := Failure("b", TypePlain, errors.New("boom"))
	if sub.Status != StatusFailure || sub.Error != "boom" {
		t.Errorf("sub = %+v", sub)
	}
	if sub.ErrorKind != "unknown" {
		t.Errorf("kind = %q, want unknown for untagged error", sub.ErrorKind)
	}
}
