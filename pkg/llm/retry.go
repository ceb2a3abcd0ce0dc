package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mixseek/mixseek/pkg/errkind"
)

const (
	// DefaultMaxRetries is the provider retry budget when the
	// configuration does not set one.
	DefaultMaxRetries = 3

	retryBaseInterval = 100 * time.Millisecond
)

// RetryProvider wraps a Provider and retries transient failures with
// exponential backoff. Authentication and permanent errors pass through
// untouched, as do context cancellation and deadline expiry.
type RetryProvider struct {
	inner      Provider
	maxRetries int
}

// WithRetry wraps p so each Complete call is attempted up to
// 1+maxRetries times on transient errors. maxRetries <= 0 uses
// DefaultMaxRetries.
func WithRetry(p Provider, maxRetries int) *RetryProvider {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &RetryProvider{inner: p, maxRetries: maxRetries}
}

// Complete implements Provider.
func (r *RetryProvider) Complete(ctx context.Context, params Params) (*Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryBaseInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	var resp *Response
	op := func() error {
		var err error
		resp, err = r.inner.Complete(ctx, params)
		if err == nil {
			return nil
		}
		if errkind.IsTransient(err) && ctx.Err() == nil {
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(r.maxRetries)), ctx))
	if err != nil {
		return nil, err
	}
	return resp, nil
}
