// Package retry runs an operation under a bounded exponential backoff policy.
//
// A Policy retries only the failures its Retryable predicate accepts; every
// other failure is returned to the caller on the attempt it happened. Delays
// grow as BaseDelay * Multiplier^(attempt-1) and are slept between attempts,
// never after the last one.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Default policy constants.
const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
	defaultMultiplier  = 2.0
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy describes how an operation is retried.
type Policy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	multiplier  float64
	retryable   func(error) bool
	sleep       Sleeper
	onRetry     func(attempt int, delay time.Duration, err error)
}

// Option applies a configuration option to a Policy.
type Option func(*Policy)

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the delay before the second attempt.
func WithBaseDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d >= 0 {
			p.baseDelay = d
		}
	}
}

// WithMaxDelay caps a single delay. Zero means uncapped.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d >= 0 {
			p.maxDelay = d
		}
	}
}

// WithMultiplier sets the growth factor between consecutive delays.
func WithMultiplier(m float64) Option {
	return func(p *Policy) {
		if m >= 1 {
			p.multiplier = m
		}
	}
}

// WithRetryable sets the predicate selecting failures worth retrying.
func WithRetryable(fn func(error) bool) Option {
	return func(p *Policy) {
		if fn != nil {
			p.retryable = fn
		}
	}
}

// WithSleeper replaces the timer-based sleeper.
func WithSleeper(s Sleeper) Option {
	return func(p *Policy) {
		if s != nil {
			p.sleep = s
		}
	}
}

// WithOnRetry registers a hook called before each backoff sleep.
func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(p *Policy) {
		p.onRetry = fn
	}
}

// New creates a Policy. Without options it makes 3 attempts with 1s and 2s
// delays and retries nothing.
func New(opts ...Option) *Policy {
	p := &Policy{
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		multiplier:  defaultMultiplier,
		retryable:   func(error) bool { return false },
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxAttempts returns the configured attempt budget.
func (p *Policy) MaxAttempts() int { return p.maxAttempts }

// Delay returns the backoff slept after the given failed attempt (1-based).
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := time.Duration(float64(p.baseDelay) * math.Pow(p.multiplier, float64(attempt-1)))
	if p.maxDelay > 0 && d > p.maxDelay {
		d = p.maxDelay
	}
	return d
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. It returns the number of attempts made.
//
// A non-retryable failure is returned as is. Exhaustion returns an error
// matching ErrExhausted that also wraps the last failure.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	var last error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		err := fn(ctx)
		if err == nil {
			return attempt, nil
		}
		if !p.retryable(err) {
			return attempt, err
		}
		last = err

		if attempt == p.maxAttempts {
			break
		}
		delay := p.Delay(attempt)
		if p.onRetry != nil {
			p.onRetry(attempt, delay, err)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return attempt, err
		}
	}
	return p.maxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.maxAttempts, last)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
