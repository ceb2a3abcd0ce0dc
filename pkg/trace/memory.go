package trace

import (
	"context"
	"sync"
	"time"
)

// Memory is a Tracer that keeps completed spans in memory. Used by
// tests to assert on traces.
type Memory struct {
	mu    sync.Mutex
	spans []*Span
}

// NewMemory creates an in-memory tracer.
func NewMemory() *Memory {
	return &Memory{}
}

// StartSpan implements Tracer.
func (m *Memory) StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	return NewSpan(ctx, name)
}

// EndSpan implements Tracer.
func (m *Memory) EndSpan(span *Span) {
	span.EndTime = time.Now().UTC()
	m.mu.Lock()
	m.spans = append(m.spans, span)
	m.mu.Unlock()
}

// Spans returns a copy of all completed spans in completion order.
func (m *Memory) Spans() []*Span {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Span, len(m.spans))
	copy(out, m.spans)
	return out
}

// Reset discards all recorded spans.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.spans = nil
	m.mu.Unlock()
}
