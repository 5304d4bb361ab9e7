package calendar

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/campusops/facultyhours/logger"
)

// ExpandRecurrence expands a recurring event master into its individual
// occurrences up to horizon. Non-recurring events pass through as a
// single-element slice. Each occurrence keeps the master's duration and
// metadata; excluded dates (EXDATE) are dropped by calendar date in the
// event's declared timezone.
//
// An unparseable recurrence rule degrades to the master occurrence
// alone rather than failing the fetch.
func ExpandRecurrence(ev RawEvent, horizon time.Time) []RawEvent {
	if ev.RRule == "" {
		return []RawEvent{ev}
	}

	opt, err := parseRecurrenceRule(ev.RRule)
	if err != nil {
		logger.Logger.Warnw("Unparseable recurrence rule, keeping master occurrence only",
			"event_id", ev.EventID, "rrule", ev.RRule, "error", err)
		return []RawEvent{ev}
	}

	opt.Dtstart = ev.Start

	// The effective end of the expansion is the earliest of: the rule's
	// own UNTIL, the row-level until column, and the caller's horizon.
	// COUNT, when present, is applied by the rule iterator and wins if
	// it ends the series earlier still.
	until := horizon
	if ev.RRuleUntil != nil && ev.RRuleUntil.Before(until) {
		until = *ev.RRuleUntil
	}
	if opt.Until.IsZero() || opt.Until.After(until) {
		opt.Until = until
	}

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		logger.Logger.Warnw("Invalid recurrence rule, keeping master occurrence only",
			"event_id", ev.EventID, "rrule", ev.RRule, "error", err)
		return []RawEvent{ev}
	}

	duration := ev.End.Sub(ev.Start)
	loc := ev.Location()
	excluded := make(map[string]struct{}, len(ev.ExDates))
	for _, d := range ev.ExDates {
		excluded[d.In(loc).Format("2006-01-02")] = struct{}{}
	}

	var occurrences []RawEvent
	for _, start := range rule.All() {
		if _, skip := excluded[start.In(loc).Format("2006-01-02")]; skip {
			continue
		}
		occ := ev
		occ.Start = start
		occ.End = start.Add(duration)
		occ.RRule = ""
		occ.RRuleUntil = nil
		occ.ExDates = nil
		occurrences = append(occurrences, occ)
	}
	return occurrences
}

// parseRecurrenceRule parses a stored recurrence rule string. Rows carry
// rules in several shapes: bare "FREQ=WEEKLY;...", with an "RRULE:"
// prefix, or a full "DTSTART:...\nRRULE:..." block. The DTSTART line is
// discarded; the event row's own start time is authoritative.
func parseRecurrenceRule(raw string) (*rrule.ROption, error) {
	s := strings.TrimSpace(strings.Trim(raw, `"`))

	if strings.HasPrefix(s, "DTSTART") {
		if _, rest, found := strings.Cut(s, "\n"); found {
			s = rest
		}
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "RRULE:")

	return rrule.StrToROption(s)
}
