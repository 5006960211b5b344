// Package aggregate folds raw session rows into one metrics record per
// employee.
package aggregate

import (
	"fmt"
	"time"

	"github.com/okian/sessionmetrics/internal/domain/model"
	"github.com/okian/sessionmetrics/internal/domain/timestamp"
)

// Stats counts how the input rows were classified.
type Stats struct {
	Completed int
	Cancelled int
	Ignored   int // statuses feeding no counter
}

type tally struct {
	completed     int
	cancelled     int
	lastCompleted time.Time
	hasCompleted  bool
}

// Aggregate computes one record per employee with at least one completed or
// cancelled session. Records come out in first-seen order and share
// computed_at derived from now.
//
// A completed session whose end_at is present but zone-less or unreadable
// aborts aggregation with a timestamp error.
func Aggregate(events []model.RawEvent, now time.Time) ([]model.MetricsRecord, error) {
	records, _, err := AggregateWithStats(events, now)
	return records, err
}

// AggregateWithStats is Aggregate that also reports row classification.
func AggregateWithStats(events []model.RawEvent, now time.Time) ([]model.MetricsRecord, Stats, error) {
	var stats Stats
	tallies := make(map[string]*tally)
	order := make([]string, 0)

	entry := func(id string) *tally {
		t, ok := tallies[id]
		if !ok {
			t = &tally{}
			tallies[id] = t
			order = append(order, id)
		}
		return t
	}

	for i := range events {
		ev := &events[i]
		switch ev.Status {
		case model.StatusCompleted:
			t := entry(ev.EmployeeID)
			t.completed++
			stats.Completed++
			if ev.EndAt == nil {
				continue
			}
			end, err := timestamp.Parse(*ev.EndAt)
			if err != nil {
				return nil, stats, fmt.Errorf("session %q end_at: %w", ev.SessionID, err)
			}
			if !t.hasCompleted || end.After(t.lastCompleted) {
				t.lastCompleted = end
				t.hasCompleted = true
			}
		case model.StatusCancelled:
			entry(ev.EmployeeID).cancelled++
			stats.Cancelled++
		default:
			stats.Ignored++
		}
	}

	computedAt := timestamp.Format(now)
	records := make([]model.MetricsRecord, 0, len(order))
	for _, id := range order {
		t := tallies[id]
		rec := model.MetricsRecord{
			EmployeeID:     id,
			CompletedCount: t.completed,
			CancelledCount: t.cancelled,
			ComputedAt:     computedAt,
		}
		if t.hasCompleted {
			days := timestamp.DaysBetween(t.lastCompleted, now)
			rec.DaysSinceLastCompleted = &days
		}
		records = append(records, rec)
	}
	return records, stats, nil
}
