package clients

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// RetryPolicy defines retry behavior for outbound source calls. It is
// an explicit configuration object so adapters share one bounded policy
// instead of inlining repeated attempts.
type RetryPolicy struct {
	MaxAttempts    int           // Total attempts including the first
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	BackoffFactor  float64       // Multiplier for exponential backoff
	Jitter         float64       // Random jitter factor (0-1)
	RetryableCodes []int         // HTTP status codes to retry
}

// DefaultRetryPolicy returns production-ready retry configuration.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryableCodes: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// Retrier executes operations under a RetryPolicy.
type Retrier struct {
	policy *RetryPolicy
}

// NewRetrier creates a retrier; a nil policy selects the default.
func NewRetrier(policy *RetryPolicy) *Retrier {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	return &Retrier{policy: policy}
}

// ShouldRetry determines if an attempt outcome warrants another try.
// Network errors (statusCode 0) always retry.
func (r *Retrier) ShouldRetry(statusCode int, err error) bool {
	if err != nil && statusCode == 0 {
		return true
	}
	for _, code := range r.policy.RetryableCodes {
		if statusCode == code {
			return true
		}
	}
	return false
}

// backoff calculates the wait before the next attempt.
func (r *Retrier) backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}

	wait := float64(r.policy.InitialBackoff) * math.Pow(r.policy.BackoffFactor, float64(attempt))
	if r.policy.Jitter > 0 {
		wait += wait * r.policy.Jitter * (rand.Float64()*2 - 1)
	}
	if wait > float64(r.policy.MaxBackoff) {
		wait = float64(r.policy.MaxBackoff)
	}
	return time.Duration(wait)
}

// ParseRetryAfter extracts the Retry-After duration from a response.
func ParseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}
	return 0
}

// AttemptFunc is one attempt of a retryable operation. A non-zero
// retryAfter overrides the exponential backoff before the next attempt,
// typically taken from a Retry-After response header.
type AttemptFunc func(ctx context.Context) (statusCode int, retryAfter time.Duration, err error)

// Do executes fn under the policy, waiting with exponential backoff
// between attempts. It returns the last error when attempts are
// exhausted or the outcome is not retryable.
func (r *Retrier) Do(ctx context.Context, operation string, fn AttemptFunc) error {
	var lastErr error

	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		statusCode, retryAfter, err := fn(ctx)
		if err == nil && statusCode >= 200 && statusCode < 300 {
			return nil
		}
		if err == nil {
			err = fmt.Errorf("%s: unexpected status %d", operation, statusCode)
		}
		lastErr = err

		if !r.ShouldRetry(statusCode, err) {
			return lastErr
		}
		if attempt == r.policy.MaxAttempts-1 {
			return fmt.Errorf("%s: max attempts exceeded: %w", operation, lastErr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff(attempt, retryAfter)):
		}
	}

	return lastErr
}
