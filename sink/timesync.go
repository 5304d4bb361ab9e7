package sink

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/campusops/facultyhours/calendar"
	"github.com/campusops/facultyhours/errors"
	"github.com/campusops/facultyhours/report"
	"github.com/campusops/facultyhours/timetrack"
)

// TimeSyncSink reconciles a monthly report against the remote
// time-tracking service for one activity type.
//
// The sync is diff-based and therefore idempotent: entries at the
// service that are no longer backed by a report row are deleted,
// missing ones are added, and an unchanged report is a no-op. Rows are
// matched on (faculty email, date, hours, description, course name).
type TimeSyncSink struct {
	api      timetrack.API
	activity calendar.ActivityType
	log      *zap.SugaredLogger
}

// NewTimeSyncSink creates the sync sink for one activity type.
func NewTimeSyncSink(api timetrack.API, activity calendar.ActivityType, log *zap.SugaredLogger) *TimeSyncSink {
	return &TimeSyncSink{api: api, activity: activity, log: log}
}

// Name implements dispatch.Handler.
func (s *TimeSyncSink) Name() string { return "timesync" }

// Deliver implements dispatch.Handler.
func (s *TimeSyncSink) Deliver(ctx context.Context, doc *report.Document, key string) error {
	if doc.Period.IsAll() {
		return errors.New("time sync requires a single month, not an all-periods report")
	}

	existing, err := s.api.FetchEntries(ctx, key, string(s.activity))
	if err != nil {
		return errors.Wrap(err, "fetching existing time entries")
	}

	desired := s.desiredEntries(doc, key)

	existingKeys := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		existingKeys[matchKey(e)] = struct{}{}
	}
	desiredKeys := make(map[string]struct{}, len(desired))
	for _, e := range desired {
		desiredKeys[matchKey(e)] = struct{}{}
	}

	var stale []string
	for _, e := range existing {
		if _, keep := desiredKeys[matchKey(e)]; !keep {
			stale = append(stale, e.ID)
		}
	}
	var missing []timetrack.Entry
	for _, e := range desired {
		if _, have := existingKeys[matchKey(e)]; !have {
			missing = append(missing, e)
		}
	}

	for _, id := range stale {
		if err := s.api.Delete(ctx, id); err != nil {
			return errors.Wrapf(err, "deleting stale time entry %s", id)
		}
	}
	if err := s.api.BulkAdd(ctx, missing); err != nil {
		return errors.Wrap(err, "adding missing time entries")
	}

	if s.log != nil {
		s.log.Infow("Time-tracking sync completed",
			"period", key,
			"activity", s.activity,
			"deleted", len(stale),
			"added", len(missing),
		)
	}
	return nil
}

// desiredEntries converts the report rows for this sink's activity type
// into the service's entry shape. Subjects without any usable email
// cannot be synced and are skipped with a warning; they still appear in
// the document's other sinks.
func (s *TimeSyncSink) desiredEntries(doc *report.Document, month string) []timetrack.Entry {
	var entries []timetrack.Entry
	for _, entry := range doc.Entries {
		email := entry.Email()
		if email == "" {
			if s.log != nil {
				s.log.Warnw("Skipping time sync for subject without email",
					"person", entry.DisplayName())
			}
			continue
		}

		for _, ev := range entry.Record.Events {
			if ev.Activity != s.activity {
				continue
			}
			loc := ev.Location()
			entries = append(entries, timetrack.Entry{
				FacultyEmail: report.NormalizeEmail(email),
				Date:         ev.Start.In(loc).Format("2006-01-02"),
				Month:        month,
				ActivityType: string(s.activity),
				Hours:        roundHours(ev.Duration().Hours()),
				Description:  ev.Title,
			})
		}
	}
	return entries
}

// matchKey identifies an entry for diffing. Hours go through the same
// two-decimal formatting on both sides so float representation noise
// cannot break the match.
func matchKey(e timetrack.Entry) string {
	return fmt.Sprintf("%s|%s|%.2f|%s|%s",
		report.NormalizeEmail(e.FacultyEmail), e.Date, e.Hours, e.Description, e.CourseName)
}

func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}
