// Package factory builds authenticated llm.Provider clients keyed by
// model id. Credentials come from provider-specific environment
// variables at construction time; a missing credential is a typed
// authentication error, never a mock or a silent substitution.
package factory

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/llm/anthropic"
	"github.com/mixseek/mixseek/pkg/llm/gemini"
	"github.com/mixseek/mixseek/pkg/llm/openai"
)

const grokBaseURL = "https://api.x.ai/v1"

// family identifies which backend serves a model id.
type family string

const (
	familyAnthropic family = "anthropic"
	familyOpenAI    family = "openai"
	familyGemini    family = "gemini"
	familyGrok      family = "grok"
)

// Factory resolves model ids to authenticated providers. Clients are
// constructed once per provider family and shared by every leader,
// member, evaluator, and judge in the process.
type Factory struct {
	mu         sync.Mutex
	clients    map[family]llm.Provider
	maxRetries int
	lookupEnv  func(string) string
}

// Option configures a Factory.
type Option func(*Factory)

// WithMaxRetries sets the transient-error retry budget applied to every
// provider the factory hands out.
func WithMaxRetries(n int) Option {
	return func(f *Factory) { f.maxRetries = n }
}

// WithEnv overrides environment lookup (for tests).
func WithEnv(lookup func(string) string) Option {
	return func(f *Factory) { f.lookupEnv = lookup }
}

// New creates a Factory.
func New(opts ...Option) *Factory {
	f := &Factory{
		clients:    make(map[family]llm.Provider),
		maxRetries: llm.DefaultMaxRetries,
		lookupEnv:  os.Getenv,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ProviderFor returns an authenticated provider for the given model id,
// wrapped with the factory's retry policy.
func (f *Factory) ProviderFor(ctx context.Context, model string) (llm.Provider, error) {
	fam, err := familyOf(model)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.clients[fam]; ok {
		return p, nil
	}

	p, err := f.build(ctx, fam)
	if err != nil {
		return nil, err
	}
	p = llm.WithRetry(p, f.maxRetries)
	f.clients[fam] = p
	return p, nil
}

// familyOf infers the backend family from the model id prefix.
func familyOf(model string) (family, error) {
	switch {
	case model == "":
		return "", errkind.New(errkind.Configuration, "model id is required")
	case strings.HasPrefix(model, "claude-"):
		return familyAnthropic, nil
	case strings.HasPrefix(model, "gemini-"):
		return familyGemini, nil
	case strings.HasPrefix(model, "grok-"):
		return familyGrok, nil
	case strings.HasPrefix(model, "gpt-"),
		strings.HasPrefix(model, "chatgpt-"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return familyOpenAI, nil
	default:
		return "", errkind.New(errkind.Configuration,
			"cannot infer provider for model %q (known prefixes: claude-, gpt-, gemini-, grok-)", model)
	}
}

func (f *Factory) build(ctx context.Context, fam family) (llm.Provider, error) {
	switch fam {
	case familyAnthropic:
		key := f.lookupEnv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, errkind.New(errkind.Authentication,
				"ANTHROPIC_API_KEY is not set (required for claude models)")
		}
		return anthropic.New(key), nil

	case familyOpenAI:
		key := f.lookupEnv("OPENAI_API_KEY")
		if key == "" {
			return nil, errkind.New(errkind.Authentication,
				"OPENAI_API_KEY is not set (required for openai models)")
		}
		return openai.New(key), nil

	case familyGrok:
		key := f.lookupEnv("GROK_API_KEY")
		if key == "" {
			return nil, errkind.New(errkind.Authentication,
				"GROK_API_KEY is not set (required for grok models)")
		}
		return openai.New(key, openai.WithBaseURL(grokBaseURL)), nil

	case familyGemini:
		var opts []gemini.Option
		if f.lookupEnv("GOOGLE_GENAI_USE_VERTEXAI") == "true" {
			if f.lookupEnv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
				return nil, errkind.New(errkind.Authentication,
					"GOOGLE_APPLICATION_CREDENTIALS is not set (required for Vertex AI)")
			}
			opts = append(opts, gemini.WithVertexAI())
		}
		key := f.lookupEnv("GOOGLE_API_KEY")
		if key == "" && len(opts) == 0 {
			return nil, errkind.New(errkind.Authentication,
				"GOOGLE_API_KEY is not set (required for gemini models)")
		}
		return gemini.New(ctx, key, opts...)

	default:
		return nil, errkind.New(errkind.Configuration, "unknown provider family %q", fam)
	}
}
