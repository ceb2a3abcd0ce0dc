// Package mock provides a scriptable llm.Provider for tests. It is never
// wired into the model client factory: missing credentials raise a typed
// authentication error, not a silent mock substitution.
package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mixseek/mixseek/pkg/errkind"
	"github.com/mixseek/mixseek/pkg/llm"
)

// Provider is a configurable mock implementation of llm.Provider.
// Safe for concurrent use.
type Provider struct {
	mu        sync.Mutex
	responses []*llm.Response
	fallback  *llm.Response
	calls     atomic.Int32
	history   []llm.Params
	err       error
	failCount int
	delay     time.Duration
	onCall    func(llm.Params)
}

// Option configures a mock Provider.
type Option func(*Provider)

// WithResponses scripts a sequence of responses, one per Complete call.
// After the sequence is exhausted the fallback is used.
func WithResponses(responses ...*llm.Response) Option {
	return func(p *Provider) { p.responses = responses }
}

// WithFallback sets the response returned once the scripted sequence is
// exhausted. Without one, an empty assistant message is returned.
func WithFallback(resp *llm.Response) Option {
	return func(p *Provider) { p.fallback = resp }
}

// WithError makes every Complete call fail with err. Combined with
// WithFailCount, only the first N calls fail.
func WithError(err error) Option {
	return func(p *Provider) { p.err = err }
}

// WithFailCount fails the first n Complete calls (with the configured
// error, or a transient injected error by default), then succeeds.
func WithFailCount(n int) Option {
	return func(p *Provider) { p.failCount = n }
}

// WithDelay adds latency to each call. The delay respects cancellation.
func WithDelay(d time.Duration) Option {
	return func(p *Provider) { p.delay = d }
}

// WithCallback invokes fn with the params of every Complete call.
func WithCallback(fn func(llm.Params)) Option {
	return func(p *Provider) { p.onCall = fn }
}

// New creates a mock Provider with the given options.
func New(opts ...Option) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Complete implements llm.Provider. It records the call, applies any
// configured delay and error injection, then returns the next scripted
// response or the fallback.
func (p *Provider) Complete(ctx context.Context, params llm.Params) (*llm.Response, error) {
	callNum := int(p.calls.Add(1))

	p.mu.Lock()
	p.history = append(p.history, params)
	onCall := p.onCall
	p.mu.Unlock()

	if onCall != nil {
		onCall(params)
	}

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if p.err != nil {
		if p.failCount == 0 || callNum <= p.failCount {
			return nil, p.err
		}
	} else if p.failCount > 0 && callNum <= p.failCount {
		return nil, errkind.New(errkind.ProviderTransient, "mock: injected error")
	}

	idx := callNum - 1
	if p.failCount > 0 {
		idx = callNum - p.failCount - 1
	}
	if idx >= 0 && idx < len(p.responses) {
		return p.responses[idx], nil
	}
	if p.fallback != nil {
		return p.fallback, nil
	}

	return &llm.Response{
		Message: llm.NewAssistantMessage(""),
		Model:   "mock",
	}, nil
}

// Calls returns the total number of Complete calls.
func (p *Provider) Calls() int {
	return int(p.calls.Load())
}

// History returns a copy of the params of every recorded call.
func (p *Provider) History() []llm.Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.Params, len(p.history))
	copy(out, p.history)
	return out
}
