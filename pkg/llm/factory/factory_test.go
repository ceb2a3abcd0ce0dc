package factory

import (
	"context"
	"testing"

	"github.com/mixseek/mixseek/pkg/errkind"
)

func envWith(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestMissingCredentialIsTypedError(t *testing.T) {
	f := New(WithEnv(envWith(nil)))

	for _, model := range []string{"claude-sonnet-4-5", "gpt-4o", "gemini-2.0-flash", "grok-3"} {
		_, err := f.ProviderFor(context.Background(), model)
		if err == nil {
			t.Fatalf("model %q: expected authentication error with no env", model)
		}
		if errkind.Of(err) != errkind.Authentication {
			t.Errorf("model %q: kind = %v, want Authentication", model, errkind.Of(err))
		}
	}
}

func TestUnknownModelPrefix(t *testing.T) {
	f := New(WithEnv(envWith(nil)))
	_, err := f.ProviderFor(context.Background(), "llama-3-70b")
	if errkind.Of(err) != errkind.Configuration {
		t.Errorf("kind = %v, want Configuration", errkind.Of(err))
	}
}

func TestEmptyModel(t *testing.T) {
	f := New(WithEnv(envWith(nil)))
	_, err := f.ProviderFor(context.Background(), "")
	if errkind.Of(err) != errkind.Configuration {
		t.Errorf("kind = %v, want Configuration", errkind.Of(err))
	}
}

func TestClientCachedPerFamily(t *testing.T) {
	f := New(WithEnv(envWith(map[string]string{"ANTHROPIC_API_KEY": "sk-test"})))

	p1, err := f.ProviderFor(context.Background(), "claude-sonnet-4-5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p2, err := f.ProviderFor(context.Background(), "claude-haiku-4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1 != p2 {
		t.Error("same family should share one client")
	}
}

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		model string
		want  family
	}{
		{"claude-opus-4", familyAnthropic},
		{"gpt-4o-mini", familyOpenAI},
		{"o3-mini", familyOpenAI},
		{"chatgpt-4o-latest", familyOpenAI},
		{"gemini-2.5-pro", familyGemini},
		{"grok-3-mini", familyGrok},
	}
	for _, tt := range tests {
		got, err := familyOf(tt.model)
		if err != nil {
			t.Errorf("familyOf(%q): unexpected error %v", tt.model, err)
			continue
		}
		if got != tt.want {
			t.Errorf("familyOf(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}
