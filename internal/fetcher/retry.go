package fetcher

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"
)

// RetryPolicy decides whether a failed fetch should be attempted again and
// how long to wait first.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// ExponentialRetryPolicy implements RetryPolicy with jittered backoff.
// Client errors (4xx) are permanent; server errors and transport failures
// are retried up to the attempt budget.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewExponentialRetryPolicy builds a policy with the given attempt budget.
// Non-positive values fall back to defaults.
func NewExponentialRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *ExponentialRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	return &ExponentialRetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// ShouldRetry reports whether the error is retryable at this attempt count.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) && fe.StatusCode >= 400 && fe.StatusCode < 500 {
		return false
	}
	return true
}

// Backoff returns the wait duration before the next attempt.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// RetryingFetcher wraps a Fetcher with a RetryPolicy. The listing walker uses
// it so that a transient page failure is never mistaken for end-of-listing;
// artifact fetches go through the bare Fetcher since row failures are
// contained anyway.
type RetryingFetcher struct {
	inner  Fetcher
	policy RetryPolicy
}

// NewRetryingFetcher decorates inner with policy.
func NewRetryingFetcher(inner Fetcher, policy RetryPolicy) *RetryingFetcher {
	return &RetryingFetcher{inner: inner, policy: policy}
}

// Fetch retries inner.Fetch per the policy, honoring ctx between attempts.
func (r *RetryingFetcher) Fetch(ctx context.Context, url string) (Response, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := r.inner.Fetch(ctx, url)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !r.policy.ShouldRetry(err, attempt) {
			return Response{}, lastErr
		}
		select {
		case <-ctx.Done():
			return Response{}, &FetchError{URL: url, Err: ctx.Err()}
		case <-time.After(r.policy.Backoff(attempt)):
		}
	}
}
