package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okian/sessionmetrics/internal/adapters/repository"
	"github.com/okian/sessionmetrics/internal/domain/dedupe"
	"github.com/okian/sessionmetrics/internal/domain/model"
	"github.com/okian/sessionmetrics/pkg/logger"
	"github.com/okian/sessionmetrics/pkg/metrics"
	"github.com/okian/sessionmetrics/pkg/retry"
)

// FetchResult is the outcome of paging a whole collection.
type FetchResult struct {
	Events     []model.RawEvent
	Pages      int
	Duplicates int
}

// Fetcher reads an entire collection page by page.
type Fetcher struct {
	store      repository.Store
	collection string
	pageSize   int
	dedupe     bool
	policy     *retry.Policy
	log        logger.Logger
}

// NewFetcher creates a Fetcher for collection.
func NewFetcher(store repository.Store, collection string, pageSize int, policy *retry.Policy, log logger.Logger, dedupeIDs bool) *Fetcher {
	return &Fetcher{
		store:      store,
		collection: collection,
		pageSize:   pageSize,
		dedupe:     dedupeIDs,
		policy:     policy,
		log:        log,
	}
}

// FetchAll requests [offset, offset+pageSize) ranges until a page comes back
// short. A collection holding an exact multiple of the page size therefore
// costs one extra, empty request.
func (f *Fetcher) FetchAll(ctx context.Context) (FetchResult, error) {
	var res FetchResult
	var seen dedupe.Deduper
	if f.dedupe {
		seen = dedupe.NewInMemoryDeduper(dedupe.WithCapacityHint(f.pageSize))
	}

	for offset := 0; ; offset += f.pageSize {
		var page []json.RawMessage
		attempts, err := f.policy.Do(ctx, func(ctx context.Context) error {
			rows, err := f.store.Select(ctx, f.collection, offset, f.pageSize)
			if err != nil {
				return err
			}
			page = rows
			return nil
		})
		if err != nil {
			metrics.RecordQueryError("select")
			return res, &QueryError{Op: "select", Collection: f.collection, Offset: offset, Attempts: attempts, Err: err}
		}
		res.Pages++
		metrics.RecordPageFetched(len(page))

		for i, raw := range page {
			var ev model.RawEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				return res, &QueryError{
					Op: "select", Collection: f.collection, Offset: offset, Attempts: attempts,
					Err: fmt.Errorf("%w: row %d: %w", ErrMalformedRow, offset+i, err),
				}
			}
			if seen != nil && seen.SeenAndRecord(ctx, ev.SessionID) {
				res.Duplicates++
				metrics.RecordDuplicateEvent()
				continue
			}
			res.Events = append(res.Events, ev)
		}

		f.log.Debug(ctx, "fetched page",
			logger.Int("offset", offset),
			logger.Int("rows", len(page)),
			logger.Int("attempts", attempts),
		)
		if len(page) < f.pageSize {
			return res, nil
		}
	}
}
