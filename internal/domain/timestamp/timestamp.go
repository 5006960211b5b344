// Package timestamp parses and formats the ISO 8601 strings stored in the
// session tables. Every parsed value carries an explicit offset and is
// normalized to UTC.
package timestamp

import (
	"fmt"
	"strings"
	"time"
)

const (
	layoutSeconds = "2006-01-02T15:04:05-07:00"
	layoutMicros  = "2006-01-02T15:04:05.000000-07:00"
	hoursPerDay   = 24
)

// Fractional seconds are accepted after the seconds field by time.Parse even
// when the layout omits them.
var zonedLayouts = []string{ //nolint:gochecknoglobals // read-only layout table
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02 15:04:05Z07",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04Z07:00",
}

var naiveLayouts = []string{ //nolint:gochecknoglobals // read-only layout table
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Parse reads an ISO 8601 timestamp. A trailing "Z" means UTC. Values
// without an offset fail with ErrNaive, anything unreadable with ErrInvalid.
func Parse(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if strings.HasSuffix(v, "Z") || strings.HasSuffix(v, "z") {
		v = v[:len(v)-1] + "+00:00"
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrNaive, s)
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalid, s)
}

// Format renders t in UTC as ISO 8601 with a "+00:00" offset. Microseconds
// are included only when non-zero.
func Format(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()/int(time.Microsecond) != 0 {
		return t.Format(layoutMicros)
	}
	return t.Format(layoutSeconds)
}

// DaysBetween returns the whole days elapsed from earlier to later, floored
// and clamped at zero.
func DaysBetween(earlier, later time.Time) int {
	d := later.Sub(earlier)
	if d <= 0 {
		return 0
	}
	return int(d / (hoursPerDay * time.Hour))
}
