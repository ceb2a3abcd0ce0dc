// Package trace provides span-based tracing for MixSeek executions.
// Spans cover orchestrator runs, team workers, rounds, agent runs, LLM
// calls, and tool dispatch; store writes open no span of their own and
// run inside the round span. Implementations: Memory, Stdout, Noop,
// and the OTLP exporter in the otel subpackage.
package trace

import (
	"context"
	"time"

	"github.com/mixseek/mixseek/internal/id"
)

// Tracer creates and records spans.
type Tracer interface {
	// StartSpan begins a span. The returned context carries it so child
	// spans can reference it as their parent.
	StartSpan(ctx context.Context, name string) (context.Context, *Span)
	// EndSpan completes and records the span.
	EndSpan(span *Span)
}

// Status indicates whether a span completed successfully.
type Status int

const (
	// StatusOK means the span completed without error.
	StatusOK Status = iota
	// StatusError means the span recorded an error.
	StatusError
)

// Span is one unit of work within a trace.
type Span struct {
	ID         string            `json:"id"`
	ParentID   string            `json:"parent_id,omitempty"`
	Name       string            `json:"name"`
	StartTime  time.Time         `json:"start_time"`
	EndTime    time.Time         `json:"end_time,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Status     Status            `json:"status"`
	Error      string            `json:"error,omitempty"`
}

// SetAttribute adds a key-value attribute.
func (s *Span) SetAttribute(key, value string) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]string)
	}
	s.Attributes[key] = value
}

// SetError marks the span failed and records the error message.
func (s *Span) SetError(err error) {
	if err == nil {
		return
	}
	s.Status = StatusError
	s.Error = err.Error()
}

// Duration returns the span's elapsed time, or zero if not yet ended.
func (s *Span) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

type spanContextKey struct{}

// SpanFromContext returns the active span carried by ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanContextKey{}).(*Span)
	return s
}

// contextWithSpan stores the span in ctx for child spans and logging.
func contextWithSpan(ctx context.Context, s *Span) context.Context {
	return context.WithValue(ctx, spanContextKey{}, s)
}

// NewSpan creates a span parented to whatever span ctx carries and
// returns a context carrying the new span. Tracer implementations
// build on this.
func NewSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{
		ID:        id.New(),
		Name:      name,
		StartTime: time.Now().UTC(),
	}
	if parent := SpanFromContext(ctx); parent != nil {
		s.ParentID = parent.ID
	}
	return contextWithSpan(ctx, s), s
}

// Noop is a Tracer that records nothing. It still threads spans through
// context so attribute calls are safe.
type Noop struct{}

// StartSpan implements Tracer.
func (Noop) StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	return NewSpan(ctx, name)
}

// EndSpan implements Tracer.
func (Noop) EndSpan(span *Span) {
	span.EndTime = time.Now().UTC()
}
