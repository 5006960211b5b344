package app

import (
	"context"
	"time"

	"github.com/okian/sessionmetrics/internal/adapters/repository"
	"github.com/okian/sessionmetrics/pkg/logger"
	"github.com/okian/sessionmetrics/pkg/metrics"
	"github.com/okian/sessionmetrics/pkg/retry"
)

// retrySettings shapes the policy shared by fetch and upsert.
type retrySettings struct {
	maxAttempts int
	baseDelay   time.Duration
	sleeper     retry.Sleeper
}

// policy builds a retry policy for op that retries only transient store
// failures, logging and counting each retry.
func (r retrySettings) policy(op string, log logger.Logger) *retry.Policy {
	return retry.New(
		retry.WithMaxAttempts(r.maxAttempts),
		retry.WithBaseDelay(r.baseDelay),
		retry.WithRetryable(repository.IsTransient),
		retry.WithSleeper(r.sleeper),
		retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			metrics.RecordRetry(op)
			log.Warn(context.Background(), "transient store failure, retrying",
				logger.String("operation", op),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", delay),
				logger.Error(err),
			)
		}),
	)
}
