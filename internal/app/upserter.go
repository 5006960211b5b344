package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okian/sessionmetrics/internal/adapters/repository"
	"github.com/okian/sessionmetrics/internal/domain/model"
	"github.com/okian/sessionmetrics/pkg/logger"
	"github.com/okian/sessionmetrics/pkg/metrics"
	"github.com/okian/sessionmetrics/pkg/retry"
)

// Upserter writes metrics records as one replace-by-key batch.
type Upserter struct {
	store       repository.Store
	collection  string
	conflictKey string
	policy      *retry.Policy
	log         logger.Logger
}

// NewUpserter creates an Upserter for collection keyed on conflictKey.
func NewUpserter(store repository.Store, collection, conflictKey string, policy *retry.Policy, log logger.Logger) *Upserter {
	return &Upserter{
		store:       store,
		collection:  collection,
		conflictKey: conflictKey,
		policy:      policy,
		log:         log,
	}
}

// Upsert writes records. An empty slice makes no store call.
func (u *Upserter) Upsert(ctx context.Context, records []model.MetricsRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", rec.EmployeeID, err)
		}
		rows = append(rows, b)
	}

	attempts, err := u.policy.Do(ctx, func(ctx context.Context) error {
		return u.store.Upsert(ctx, u.collection, rows, u.conflictKey)
	})
	if err != nil {
		metrics.RecordQueryError("upsert")
		return &QueryError{Op: "upsert", Collection: u.collection, Offset: -1, Attempts: attempts, Err: err}
	}
	metrics.RecordRecordsUpserted(len(rows))
	u.log.Debug(ctx, "upserted records",
		logger.String("collection", u.collection),
		logger.Int("records", len(rows)),
		logger.Int("attempts", attempts),
	)
	return nil
}
