package leader

import (
	"context"
	"sync"

	"github.com/mixseek/mixseek/pkg/llm"
	"github.com/mixseek/mixseek/pkg/member"
)

// Collector accumulates member submissions and usage for one round.
// Delegation tool handlers find it through the round context rather
// than closure state, so one leader value can serve many rounds.
type Collector struct {
	mu          sync.Mutex
	submissions []member.Submission
	usage       llm.Usage
}

// NewCollector creates an empty round collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Record appends a submission in invocation order and accumulates its
// usage.
func (c *Collector) Record(sub member.Submission) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submissions = append(c.submissions, sub)
	c.usage.Add(sub.Usage)
}

// Submissions returns the recorded submissions in invocation order.
func (c *Collector) Submissions() []member.Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]member.Submission, len(c.submissions))
	copy(out, c.submissions)
	return out
}

// Usage returns the summed usage of every recorded submission.
func (c *Collector) Usage() llm.Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

type collectorKey struct{}

// WithCollector returns a context carrying the round collector.
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, collectorKey{}, c)
}

// CollectorFrom returns the round collector carried by ctx, or nil.
func CollectorFrom(ctx context.Context) *Collector {
	c, _ := ctx.Value(collectorKey{}).(*Collector)
	return c
}
