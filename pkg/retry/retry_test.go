package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

var errTransient = errors.New("transient")

func recordingSleeper(delays *[]time.Duration) Sleeper {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func TestPolicyDelay(t *testing.T) {
	p := New()
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
	}
	for _, tc := range cases {
		if got := p.Delay(tc.attempt); got != tc.want {
			t.Errorf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}

	capped := New(WithMaxDelay(3 * time.Second))
	if got := capped.Delay(3); got != 3*time.Second {
		t.Errorf("capped Delay(3) = %v, want 3s", got)
	}
}

func TestPolicyDo(t *testing.T) {
	Convey("Given a policy retrying transient failures", t, func() {
		var delays []time.Duration
		p := New(WithRetryable(isTransient), WithSleeper(recordingSleeper(&delays)))
		ctx := context.Background()

		Convey("When the operation succeeds first time", func() {
			calls := 0
			attempts, err := p.Do(ctx, func(context.Context) error { calls++; return nil })

			Convey("Then it runs once without sleeping", func() {
				So(err, ShouldBeNil)
				So(attempts, ShouldEqual, 1)
				So(calls, ShouldEqual, 1)
				So(delays, ShouldBeEmpty)
			})
		})

		Convey("When the operation recovers on the third attempt", func() {
			calls := 0
			attempts, err := p.Do(ctx, func(context.Context) error {
				calls++
				if calls < 3 {
					return errTransient
				}
				return nil
			})

			Convey("Then it backs off exponentially between attempts", func() {
				So(err, ShouldBeNil)
				So(attempts, ShouldEqual, 3)
				So(delays, ShouldResemble, []time.Duration{time.Second, 2 * time.Second})
			})
		})

		Convey("When every attempt fails transiently", func() {
			calls := 0
			attempts, err := p.Do(ctx, func(context.Context) error { calls++; return errTransient })

			Convey("Then it gives up after the budget and chains the cause", func() {
				So(attempts, ShouldEqual, 3)
				So(calls, ShouldEqual, 3)
				So(errors.Is(err, ErrExhausted), ShouldBeTrue)
				So(errors.Is(err, errTransient), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "after 3 attempts")
				So(delays, ShouldHaveLength, 2)
			})
		})

		Convey("When the operation fails with a non-retryable error", func() {
			permanent := errors.New("unauthorized")
			calls := 0
			attempts, err := p.Do(ctx, func(context.Context) error { calls++; return permanent })

			Convey("Then it returns immediately without retrying", func() {
				So(attempts, ShouldEqual, 1)
				So(calls, ShouldEqual, 1)
				So(err, ShouldEqual, permanent)
				So(errors.Is(err, ErrExhausted), ShouldBeFalse)
				So(delays, ShouldBeEmpty)
			})
		})

		Convey("When a retry hook is registered", func() {
			var seen []int
			hooked := New(
				WithRetryable(isTransient),
				WithSleeper(recordingSleeper(&delays)),
				WithOnRetry(func(attempt int, _ time.Duration, _ error) { seen = append(seen, attempt) }),
			)
			_, _ = hooked.Do(ctx, func(context.Context) error { return errTransient })

			Convey("Then it fires before every sleep", func() {
				So(seen, ShouldResemble, []int{1, 2})
			})
		})
	})
}

func TestPolicyDoContextCancelled(t *testing.T) {
	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := New(WithRetryable(isTransient))

		Convey("Then Do does not call the operation", func() {
			calls := 0
			attempts, err := p.Do(ctx, func(context.Context) error { calls++; return nil })
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(attempts, ShouldEqual, 0)
			So(calls, ShouldEqual, 0)
		})
	})

	Convey("Given a context cancelled during backoff", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		p := New(WithRetryable(isTransient), WithBaseDelay(time.Hour))

		Convey("Then the real sleeper returns the context error", func() {
			attempts, err := p.Do(ctx, func(context.Context) error {
				cancel()
				return errTransient
			})
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(attempts, ShouldEqual, 1)
		})
	})
}

func TestPolicyOptionsIgnoreInvalidValues(t *testing.T) {
	p := New(WithMaxAttempts(0), WithBaseDelay(-time.Second), WithMultiplier(0.5), WithRetryable(nil), WithSleeper(nil))
	if p.MaxAttempts() != defaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", p.MaxAttempts(), defaultMaxAttempts)
	}
	if p.Delay(2) != 2*time.Second {
		t.Errorf("Delay(2) = %v, want 2s", p.Delay(2))
	}
}
