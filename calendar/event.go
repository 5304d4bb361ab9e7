// Package calendar provides the event source adapter for the report
// pipeline: raw attendance events read from the operational databases,
// with recurring events expanded into individual occurrences.
package calendar

import (
	"strings"
	"time"
)

// ActivityType tags which population an event belongs to.
type ActivityType string

const (
	ActivityInstruction ActivityType = "instruction"
	ActivityTutoring    ActivityType = "tutoring"
)

// RawEvent is one attendance event as read from a source system.
// Immutable once read; the aggregator owns it transiently during a run.
type RawEvent struct {
	EventID  string
	Email    string
	Name     string
	Title    string
	Start    time.Time
	End      time.Time
	Source   string // source system tag, e.g. "campus-db"
	Activity ActivityType

	// Recurrence metadata, populated on recurring masters only.
	RecurringGroupID string
	RRule            string
	RRuleTZID        string
	RRuleUntil       *time.Time
	ExDates          []time.Time
}

// Duration returns the event length. Callers must treat negative
// durations as malformed.
func (e RawEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// PersonKey returns the identifier used to group events by person:
// the normalized email when present, otherwise the normalized name.
func (e RawEvent) PersonKey() string {
	if email := strings.ToLower(strings.TrimSpace(e.Email)); email != "" {
		return email
	}
	return strings.Join(strings.Fields(e.Name), " ")
}

// Location returns the timezone the event's schedule was declared in.
// Falls back to the start time's own location when the declared zone is
// absent or unknown, never to the process-local zone.
func (e RawEvent) Location() *time.Location {
	if e.RRuleTZID != "" {
		if loc, err := time.LoadLocation(e.RRuleTZID); err == nil {
			return loc
		}
	}
	return e.Start.Location()
}

// Filter restricts which events a source returns. Zero bounds are
// unbounded; the zero Filter requests all available periods.
type Filter struct {
	From time.Time // inclusive
	To   time.Time // exclusive
}

// IsAll reports whether the filter spans all available periods.
func (f Filter) IsAll() bool {
	return f.From.IsZero() && f.To.IsZero()
}

// Contains reports whether an event starting at t falls in the window.
func (f Filter) Contains(t time.Time) bool {
	if !f.From.IsZero() && t.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.Before(f.To) {
		return false
	}
	return true
}
