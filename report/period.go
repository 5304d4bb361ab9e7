// Package report implements the core of the faculty hours pipeline:
// aggregation of raw attendance events into per-person monthly records,
// reconciliation of those records against the contact directory, and
// assembly of the dispatchable report document.
package report

import (
	"time"

	"github.com/campusops/facultyhours/errors"
)

// Period is one calendar month, the aggregation and reporting
// granularity. The zero Period means "all known periods".
type Period struct {
	Year  int
	Month time.Month
}

// PeriodAll spans all known periods.
var PeriodAll = Period{}

// IsAll reports whether the period spans all known periods.
func (p Period) IsAll() bool {
	return p.Year == 0 && p.Month == 0
}

// String renders the period as "YYYY-MM", or "all" for PeriodAll.
func (p Period) String() string {
	if p.IsAll() {
		return "all"
	}
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// Bounds returns the half-open [start, end) window of the period in the
// given location. Panics only via time.Date on a nil location; callers
// pass time.UTC for database windows.
func (p Period) Bounds(loc *time.Location) (time.Time, time.Time) {
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// PeriodOf derives the period containing t, read in t's own location.
// An event spanning a month boundary is attributed entirely to the
// month containing its start time; callers pass the event start in the
// event's declared timezone, never the ambient process timezone.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses "YYYY-MM" or the literal "all".
func ParsePeriod(s string) (Period, error) {
	if s == "all" {
		return PeriodAll, nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, errors.Wrapf(err, "invalid period %q (want YYYY-MM)", s)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// CurrentPeriod returns the period containing now in the given location.
func CurrentPeriod(now time.Time, loc *time.Location) Period {
	return PeriodOf(now.In(loc))
}
