package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func recordingSleep(delays *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestCaller_SucceedsFirstTry(t *testing.T) {
	c := New(DefaultPolicy(), WithSleep(noSleep))
	calls := 0
	err := c.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestCaller_RetriesThenSucceeds(t *testing.T) {
	var delays []time.Duration
	c := New(DefaultPolicy(), WithSleep(recordingSleep(&delays)))
	calls := 0
	err := c.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("sleep %d: expected %v, got %v", i, want[i], delays[i])
		}
	}
}

func TestCaller_ExhaustsAndReturnsLastError(t *testing.T) {
	c := New(DefaultPolicy(), WithSleep(noSleep))
	calls := 0
	last := errors.New("third failure")
	err := c.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 3 {
			return last
		}
		return errors.New("early failure")
	})
	if calls != DefaultMaxAttempts {
		t.Fatalf("expected %d calls, got %d", DefaultMaxAttempts, calls)
	}
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %T", err)
	}
	if ex.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", ex.Attempts)
	}
	if !errors.Is(err, last) {
		t.Fatalf("expected error to unwrap to last failure, got %v", err)
	}
}

func TestCaller_PermanentStopsImmediately(t *testing.T) {
	c := New(DefaultPolicy(), WithSleep(noSleep))
	calls := 0
	notFound := errors.New("404")
	err := c.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(notFound)
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if !errors.Is(err, notFound) {
		t.Fatalf("expected wrapped 404, got %v", err)
	}
	if !IsPermanent(err) {
		t.Fatal("expected permanent marker to survive")
	}
}

func TestCaller_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := New(DefaultPolicy(), WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))
	calls := 0
	err := c.Do(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestCaller_ObserverSeesEachRetry(t *testing.T) {
	var seen []int
	c := New(DefaultPolicy(), WithSleep(noSleep), WithObserver(func(attempt int, err error) {
		seen = append(seen, attempt)
	}))
	_ = c.Do(context.Background(), func(ctx context.Context) error { return errors.New("x") })
	if len(seen) != 2 || seen[0] != 2 || seen[1] != 3 {
		t.Fatalf("expected retries at attempts [2 3], got %v", seen)
	}
}

func TestCall_ReturnsValue(t *testing.T) {
	c := New(DefaultPolicy(), WithSleep(noSleep))
	calls := 0
	got, err := Call(context.Background(), c, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("once")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestPolicy_DelayIsCapped(t *testing.T) {
	p := DefaultPolicy()
	cases := map[int]time.Duration{
		0: 0,
		1: 1 * time.Second,
		2: 2 * time.Second,
		3: 4 * time.Second,
		4: 8 * time.Second,
		7: 8 * time.Second,
	}
	for retry, want := range cases {
		if got := p.Delay(retry); got != want {
			t.Errorf("Delay(%d) = %v, want %v", retry, got, want)
		}
	}
}

func TestNew_FillsDefaults(t *testing.T) {
	c := New(Policy{})
	if c.Policy().MaxAttempts != DefaultMaxAttempts {
		t.Fatalf("expected default attempts, got %d", c.Policy().MaxAttempts)
	}
}
