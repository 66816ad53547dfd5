// Package retry wraps idempotent external calls with bounded retries and
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 8 * time.Second
)

// Policy bounds the retry loop. Delays double from BaseDelay and are capped
// at MaxDelay: 1s, 2s, 4s, 8s, 8s, ...
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy returns 3 attempts starting at 1s, capped at 8s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Delay returns the backoff before the given retry (1-based).
func (p Policy) Delay(retry int) time.Duration {
	if retry < 1 || p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < retry; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// ExhaustedError is returned once every attempt failed. It unwraps to the
// failure of the last attempt.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The caller returns it as-is.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Caller runs operations under a Policy. The zero value is not usable; use New.
type Caller struct {
	policy  Policy
	sleep   SleepFunc
	logger  *slog.Logger
	onRetry func(attempt int, err error)
}

// Option customises a Caller.
type Option func(*Caller)

// WithSleep replaces the backoff sleep (tests use a no-op).
func WithSleep(fn SleepFunc) Option {
	return func(c *Caller) { c.sleep = fn }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Caller) { c.logger = l }
}

// WithObserver registers a hook invoked before every retry.
func WithObserver(fn func(attempt int, err error)) Option {
	return func(c *Caller) { c.onRetry = fn }
}

// New creates a Caller. Non-positive policy fields fall back to defaults.
func New(p Policy, opts ...Option) *Caller {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay < 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	c := &Caller{
		policy: p,
		sleep:  sleepContext,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Policy returns the policy in effect.
func (c *Caller) Policy() Policy { return c.policy }

// Do runs op until it succeeds, returns a Permanent error, the context is
// done, or MaxAttempts is reached. The wrapped operation must be idempotent.
func (c *Caller) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.policy.Delay(attempt - 1)
			c.logger.Warn("retrying call", "attempt", attempt, "backoff", backoff, "err", lastErr)
			if c.onRetry != nil {
				c.onRetry(attempt, lastErr)
			}
			if err := c.sleep(ctx, backoff); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		lastErr = err
	}
	return &ExhaustedError{Attempts: c.policy.MaxAttempts, Last: lastErr}
}

// Call is Do for operations that produce a value.
func Call[T any](ctx context.Context, c *Caller, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := c.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
