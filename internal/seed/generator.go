package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/okian/sessionmetrics/internal/domain/model"
)

// statusWeights is the share of each status in generated data, in percent.
// "no_show" stands in for statuses the aggregation ignores.
var statusWeights = []struct { //nolint:gochecknoglobals // read-only table
	status model.Status
	weight int
}{
	{model.StatusCompleted, 60},
	{model.StatusCancelled, 20},
	{model.StatusScheduled, 15},
	{model.Status("no_show"), 5},
}

// zones spreads timestamps over several offsets so consumers exercise UTC
// normalization.
var zones = []*time.Location{ //nolint:gochecknoglobals // read-only table
	time.UTC,
	time.FixedZone("JST", 9*3600),
	time.FixedZone("EST", -5*3600),
	time.FixedZone("IST", 5*3600+1800),
}

// Generate builds cfg.Sessions rows. Output depends only on cfg.
func Generate(cfg Config) []model.RawEvent {
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // synthetic data

	events := make([]model.RawEvent, 0, cfg.Sessions)
	for i := 0; i < cfg.Sessions; i++ {
		events = append(events, generateOne(rng, cfg))
	}
	return events
}

func generateOne(rng *rand.Rand, cfg Config) model.RawEvent {
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		id = uuid.New()
	}
	status := pickStatus(rng)
	zone := zones[rng.Intn(len(zones))]

	var start time.Time
	if status == model.StatusScheduled {
		start = cfg.Now.Add(time.Duration(rng.Intn(futureDays*24*60)) * time.Minute)
	} else {
		start = cfg.Now.Add(-time.Duration(rng.Intn(historyDays*24*60)) * time.Minute)
	}
	created := start.Add(-time.Duration(1+rng.Intn(7*24)) * time.Hour)

	ev := model.RawEvent{
		SessionID:  id.String(),
		EmployeeID: fmt.Sprintf("EMP-%04d", 1+rng.Intn(cfg.Employees)),
		Status:     status,
		StartAt:    formatIn(start, zone),
		CreatedAt:  formatIn(created, time.UTC),
	}
	if status == model.StatusCompleted {
		d := time.Duration(minDurationMin+rng.Intn(maxDurationMin-minDurationMin+1)) * time.Minute
		end := formatIn(start.Add(d), zone)
		ev.EndAt = &end
	}
	return ev
}

func pickStatus(rng *rand.Rand) model.Status {
	n := rng.Intn(100)
	for _, w := range statusWeights {
		if n < w.weight {
			return w.status
		}
		n -= w.weight
	}
	return model.StatusCompleted
}

// formatIn renders t in loc with an explicit offset, using "Z" for UTC.
func formatIn(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.RFC3339)
}
