package trace

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Stdout is a Tracer that prints one line per completed span. Intended
// for local debugging of executions.
type Stdout struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStdout creates a tracer writing to os.Stdout.
func NewStdout() *Stdout {
	return &Stdout{out: os.Stdout}
}

// NewWriter creates a line tracer writing to w.
func NewWriter(w io.Writer) *Stdout {
	return &Stdout{out: w}
}

// StartSpan implements Tracer.
func (s *Stdout) StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	return NewSpan(ctx, name)
}

// EndSpan implements Tracer.
func (s *Stdout) EndSpan(span *Span) {
	span.EndTime = time.Now().UTC()

	status := "ok"
	if span.Status == StatusError {
		status = "error"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "[trace] %-24s %8s %s", span.Name, span.Duration().Round(time.Millisecond), status)
	if span.Error != "" {
		fmt.Fprintf(s.out, " (%s)", span.Error)
	}
	fmt.Fprintln(s.out)
}
