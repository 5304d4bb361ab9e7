package report

import (
	"sort"
	"time"

	"github.com/campusops/facultyhours/calendar"
)

// PeriodKey uniquely identifies one aggregation bucket: one person in
// one calendar month.
type PeriodKey struct {
	PersonID string
	Period   Period
}

// AggregatedRecord is the rollup of one person's events in one period.
//
// Invariant: TotalMinutes equals the sum of the durations of Events and
// no event contributes to more than one record.
type AggregatedRecord struct {
	Key          PeriodKey
	TotalMinutes int64
	Sessions     int
	Events       []calendar.RawEvent
}

// TotalHours returns the aggregate duration in hours.
func (r *AggregatedRecord) TotalHours() float64 {
	return float64(r.TotalMinutes) / 60
}

// Aggregation is the result of one aggregation pass.
type Aggregation struct {
	Records map[PeriodKey]*AggregatedRecord

	// Skipped counts events excluded as malformed (missing times or
	// negative duration). Malformed events are never fatal.
	Skipped int
}

// Aggregate groups raw events into per-person monthly buckets.
//
// Pure function of its inputs. Durations are summed as whole minutes
// (rounded to nearest) so totals stay exact across large event counts.
// An event spanning a month boundary belongs to the month containing
// its start time. Zero-duration events count one session and zero
// minutes: they are evidence of attendance, not billable time, and are
// kept. Events outside a non-all period filter are ignored (neither
// aggregated nor counted as skipped).
func Aggregate(events []calendar.RawEvent, period Period) *Aggregation {
	agg := &Aggregation{Records: make(map[PeriodKey]*AggregatedRecord)}

	for _, ev := range events {
		if ev.Start.IsZero() || ev.End.IsZero() || ev.End.Before(ev.Start) {
			agg.Skipped++
			continue
		}

		evPeriod := PeriodOf(ev.Start.In(ev.Location()))
		if !period.IsAll() && evPeriod != period {
			continue
		}

		key := PeriodKey{PersonID: ev.PersonKey(), Period: evPeriod}
		rec, ok := agg.Records[key]
		if !ok {
			rec = &AggregatedRecord{Key: key}
			agg.Records[key] = rec
		}

		rec.TotalMinutes += durationMinutes(ev.Duration())
		rec.Sessions++
		rec.Events = append(rec.Events, ev)
	}

	for _, rec := range agg.Records {
		sort.Slice(rec.Events, func(i, j int) bool {
			return rec.Events[i].Start.Before(rec.Events[j].Start)
		})
	}
	return agg
}

// PersonIDs returns the distinct person identifiers present, sorted for
// deterministic downstream resolution.
func (a *Aggregation) PersonIDs() []string {
	seen := make(map[string]struct{}, len(a.Records))
	var ids []string
	for key := range a.Records {
		if _, ok := seen[key.PersonID]; !ok {
			seen[key.PersonID] = struct{}{}
			ids = append(ids, key.PersonID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Periods returns the distinct periods present, sorted ascending.
func (a *Aggregation) Periods() []Period {
	seen := make(map[Period]struct{}, len(a.Records))
	var periods []Period
	for key := range a.Records {
		if _, ok := seen[key.Period]; !ok {
			seen[key.Period] = struct{}{}
			periods = append(periods, key.Period)
		}
	}
	sort.Slice(periods, func(i, j int) bool {
		if periods[i].Year != periods[j].Year {
			return periods[i].Year < periods[j].Year
		}
		return periods[i].Month < periods[j].Month
	})
	return periods
}

// durationMinutes converts to whole minutes, rounding to nearest.
func durationMinutes(d time.Duration) int64 {
	return int64((d + 30*time.Second) / time.Minute)
}
