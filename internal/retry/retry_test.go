package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// failNTimes returns a fn that fails with err exactly n times, then succeeds.
func failNTimes(n int, err error) (fn func(context.Context) (string, error), calls *int) {
	calls = new(int)
	fn = func(context.Context) (string, error) {
		*calls++
		if *calls <= n {
			return "", err
		}
		return "ok", nil
	}
	return fn, calls
}

// recordingCaller returns a Caller whose sleeps are captured instead of slept.
func recordingCaller(delays *[]time.Duration, opts ...Option) Caller {
	c := New(opts...)
	c.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return c
}

func TestDo_SucceedsAfterRateLimits(t *testing.T) {
	var delays []time.Duration
	c := recordingCaller(&delays)

	fn, calls := failNTimes(2, ErrRateLimited)
	got, err := Do(context.Background(), c, fn)
	if err != nil {
		t.Fatalf("Do returned unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("Do = %q, want %q", got, "ok")
	}
	if *calls != 3 {
		t.Errorf("fn called %d times, want 3", *calls)
	}
	if len(delays) != 2 {
		t.Fatalf("slept %d times, want 2", len(delays))
	}
	if delays[1] <= delays[0] {
		t.Errorf("delays not strictly increasing: %v", delays)
	}
}

func TestDo_BackoffSchedule(t *testing.T) {
	var delays []time.Duration
	c := recordingCaller(&delays, WithMaxAttempts(4), WithMaxJitter(0))

	fn, _ := failNTimes(10, ErrRateLimited)
	_, err := Do(context.Background(), c, fn)
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}

	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("slept %d times, want %d", len(delays), len(want))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestDo_ExhaustedReturnsLastError(t *testing.T) {
	var delays []time.Duration
	c := recordingCaller(&delays)

	lastErr := fmt.Errorf("call 3: %w", ErrRateLimited)
	calls := 0
	_, err := Do(context.Background(), c, func(context.Context) (int, error) {
		calls++
		if calls == 3 {
			return 0, lastErr
		}
		return 0, ErrRateLimited
	})
	if calls != 3 {
		t.Errorf("fn called %d times, want exactly max attempts (3)", calls)
	}
	if !errors.Is(err, lastErr) {
		t.Errorf("Do returned %v, want last observed error %v", err, lastErr)
	}
}

func TestDo_NonRetryableErrorPropagatesImmediately(t *testing.T) {
	var delays []time.Duration
	c := recordingCaller(&delays)

	boom := errors.New("credentials rejected")
	calls := 0
	_, err := Do(context.Background(), c, func(context.Context) (int, error) {
		calls++
		return 0, boom
	})
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Do returned %v, want %v", err, boom)
	}
	if len(delays) != 0 {
		t.Errorf("slept %d times, want 0", len(delays))
	}
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	c := New(WithBaseDelay(10 * time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, c, func(context.Context) (int, error) {
		return 0, ErrRateLimited
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do returned %v, want context.Canceled", err)
	}
}

func TestIsRateLimit(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrRateLimited, true},
		{fmt.Errorf("amazon SearchItems: %w", ErrRateLimited), true},
		{errors.New("TooManyRequests: request rate exceeded"), true},
		{errors.New("upstream returned status 429"), true},
		{errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := IsRateLimit(tc.err); got != tc.want {
			t.Errorf("IsRateLimit(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
