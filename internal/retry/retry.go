// Package retry provides a generic backoff wrapper for external calls.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"
)

// ErrRateLimited marks a provider rate-limit signal. Sources wrap throttle
// responses with this sentinel so the caller knows the call is worth retrying.
var ErrRateLimited = errors.New("provider rate limited")

// Classifier reports whether an error should trigger a retry.
type Classifier func(error) bool

// IsRateLimit is the default classifier. It recognizes the ErrRateLimited
// sentinel as well as the throttle phrasing the providers put in error bodies.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate exceeded") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "toomanyrequests") ||
		strings.Contains(msg, "status 429")
}

// Caller retries a single external call with exponential backoff and jitter.
// The zero value is not usable; construct with New.
type Caller struct {
	maxAttempts int
	baseDelay   time.Duration
	maxJitter   time.Duration
	retryable   Classifier
	sleep       func(context.Context, time.Duration) error
}

// Option configures a Caller.
type Option func(*Caller)

// WithMaxAttempts overrides the attempt budget (default 3).
func WithMaxAttempts(n int) Option {
	return func(c *Caller) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBaseDelay overrides the backoff base unit (default 1s). The delay
// before retry n is base * 2^n plus jitter.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Caller) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithMaxJitter overrides the uniform jitter ceiling (default 1s).
func WithMaxJitter(d time.Duration) Option {
	return func(c *Caller) { c.maxJitter = d }
}

// WithClassifier overrides the retryable-error classifier.
func WithClassifier(fn Classifier) Option {
	return func(c *Caller) {
		if fn != nil {
			c.retryable = fn
		}
	}
}

// New constructs a Caller with the default schedule: 3 attempts, delays of
// ~1s, ~2s, ~4s (2^attempt seconds plus up to 1s of jitter).
func New(opts ...Option) Caller {
	c := Caller{
		maxAttempts: 3,
		baseDelay:   time.Second,
		maxJitter:   time.Second,
		retryable:   IsRateLimit,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Do invokes fn, retrying on classified errors until the attempt budget is
// exhausted. Any non-retryable error propagates immediately. After the final
// attempt the last observed error is returned.
func Do[T any](ctx context.Context, c Caller, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !c.retryable(err) {
			return zero, err
		}
		lastErr = err

		if attempt == c.maxAttempts-1 {
			break
		}
		delay := c.baseDelay << uint(attempt)
		if c.maxJitter > 0 {
			delay += time.Duration(rand.Int63n(int64(c.maxJitter)))
		}
		if err := c.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
