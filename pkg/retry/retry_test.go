package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

type recorder struct {
	delays []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestDoSucceedsAfterRetryableFailures(t *testing.T) {
	rec := &recorder{}
	calls := 0
	op := func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", statusErr(503)
		}
		return "ok", nil
	}

	got, err := Do(context.Background(), op, WithRetries(3), WithDelay(100*time.Millisecond), WithSleep(rec.sleep))
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if got != "ok" {
		t.Fatalf("Do = %q, want ok", got)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(rec.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", rec.delays, want)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Fatalf("delays = %v, want %v", rec.delays, want)
		}
	}
}

func TestDoNonRetryableFailsImmediately(t *testing.T) {
	rec := &recorder{}
	sentinel := statusErr(400)
	calls := 0
	op := func(context.Context) (int, error) {
		calls++
		return 0, sentinel
	}

	_, err := Do(context.Background(), op, WithSleep(rec.sleep))
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want %v", err, sentinel)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if len(rec.delays) != 0 {
		t.Fatalf("expected no sleeps, got %v", rec.delays)
	}
}

func TestDoPlainErrorIsNotRetried(t *testing.T) {
	rec := &recorder{}
	calls := 0
	_, err := Do(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("dial tcp: connection refused")
	}, WithSleep(rec.sleep))
	if err == nil || calls != 1 || len(rec.delays) != 0 {
		t.Fatalf("err=%v calls=%d delays=%v", err, calls, rec.delays)
	}
}

func TestDoExhaustsRetriesAndReturnsLastError(t *testing.T) {
	rec := &recorder{}
	calls := 0
	last := statusErr(429)
	_, err := Do(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, last
	}, WithRetries(3), WithDelay(time.Second), WithSleep(rec.sleep))

	if !errors.Is(err, last) {
		t.Fatalf("err = %v, want %v", err, last)
	}
	if calls != 4 {
		t.Fatalf("calls = %d, want 4", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Fatalf("delays = %v, want %v", rec.delays, want)
		}
	}
}

func TestDoMaxDelayCapsEachWait(t *testing.T) {
	rec := &recorder{}
	_, _ = Do(context.Background(), func(context.Context) (int, error) {
		return 0, statusErr(500)
	}, WithRetries(3), WithDelay(time.Second), WithMaxDelay(1500*time.Millisecond), WithSleep(rec.sleep))

	want := []time.Duration{time.Second, 1500 * time.Millisecond, 1500 * time.Millisecond}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Fatalf("delays = %v, want %v", rec.delays, want)
		}
	}
}

func TestDoDelayNeverOverflows(t *testing.T) {
	rec := &recorder{}
	_, _ = Do(context.Background(), func(context.Context) (int, error) {
		return 0, statusErr(503)
	}, WithRetries(80), WithDelay(time.Second), WithSleep(rec.sleep))

	if len(rec.delays) != 80 {
		t.Fatalf("sleeps = %d, want 80", len(rec.delays))
	}
	for i, d := range rec.delays {
		if d <= 0 {
			t.Fatalf("delay %d = %v, doubling overflowed", i, d)
		}
		if i > 0 && d < rec.delays[i-1] {
			t.Fatalf("delay %d = %v shrank from %v", i, d, rec.delays[i-1])
		}
	}
	if last := rec.delays[len(rec.delays)-1]; last != time.Duration(math.MaxInt64) {
		t.Fatalf("last delay = %v, want saturated", last)
	}
}

func TestNextDelay(t *testing.T) {
	cases := []struct {
		name       string
		delay, max time.Duration
		want       time.Duration
	}{
		{"doubles", time.Second, 0, 2 * time.Second},
		{"doubles below cap", time.Second, 3 * time.Second, 2 * time.Second},
		{"stays at cap", 4 * time.Second, 3 * time.Second, 3 * time.Second},
		{"saturates", time.Duration(math.MaxInt64/2 + 1), 0, time.Duration(math.MaxInt64)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := nextDelay(c.delay, c.max); got != c.want {
				t.Fatalf("nextDelay(%v, %v) = %v, want %v", c.delay, c.max, got, c.want)
			}
		})
	}
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Do(ctx, func(context.Context) (int, error) {
		calls++
		return 0, statusErr(502)
	}, WithDelay(time.Hour))
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", statusErr(429), true},
		{"server fault", statusErr(500), true},
		{"gateway", fmt.Errorf("wrapped: %w", statusErr(504)), true},
		{"bad request", statusErr(400), false},
		{"forbidden", statusErr(403), false},
		{"plain", errors.New("boom"), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsRetryable(c.err); got != c.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", c.err, got, c.want)
			}
		})
	}
}
