package calendar

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campusops/facultyhours/errors"
)

// FetchResult carries the events a source produced plus the number of
// rows that were skipped as malformed. A skipped row is never fatal.
type FetchResult struct {
	Events  []RawEvent
	Skipped int
}

// Source yields raw attendance events for a requested window.
//
// Implementations must distinguish an unreachable backing store
// (errors.ErrSourceUnavailable) from a valid empty result.
type Source interface {
	Fetch(ctx context.Context, f Filter) (*FetchResult, error)
}

// Merge concatenates fetch results from independent sources, summing
// skipped counts.
func Merge(results ...*FetchResult) *FetchResult {
	merged := &FetchResult{}
	for _, r := range results {
		merged.Events = append(merged.Events, r.Events...)
		merged.Skipped += r.Skipped
	}
	return merged
}

const instructorEventsQuery = `
SELECT e.id,
       u.email,
       u.first_name || ' ' || u.last_name AS name,
       e.title,
       e.start_time,
       e.end_time,
       e.recurring_group_id,
       e.rrule,
       e.rrule_tzid,
       e.rrule_until,
       e.rrule_ex_date
FROM ms_event e
JOIN ms_calendar c ON c.id = e.instructor_calendar_id
JOIN user_to_ms_calendar uc ON uc.ms_calendar_id = c.id
JOIN users u ON u.client_id = uc.user_client_id
WHERE e.instructor_calendar_id IS NOT NULL
  AND e.deleted_at IS NULL
ORDER BY e.start_time DESC`

const tutoringSessionsQuery = `
SELECT e.id,
       u.email,
       u.first_name || ' ' || u.last_name AS name,
       e.title,
       e.start_time,
       e.end_time,
       e.recurring_group_id,
       e.rrule,
       e.rrule_tzid,
       e.rrule_until,
       e.rrule_ex_date
FROM ms_event e
JOIN ms_calendar_to_event ce ON ce.ms_event_id = e.id
JOIN ms_calendar c ON c.id = ce.ms_calendar_id
JOIN user_to_ms_calendar uc ON uc.ms_calendar_id = c.id
JOIN users u ON u.client_id = uc.user_client_id
JOIN user_to_role r ON u.id = r.user_id
WHERE e.type = 'tutoring-session'
  AND r.role = 'tutor'
  AND e.deleted_at IS NULL
ORDER BY e.start_time DESC`

// PostgresSource reads one event population (instruction or tutoring)
// from the campus calendar database. Deleted events are filtered in the
// query; recurring masters are expanded client-side.
type PostgresSource struct {
	db       *sql.DB
	activity ActivityType
	source   string
	log      *zap.SugaredLogger
}

// NewPostgresSource creates a source for the given activity population.
func NewPostgresSource(db *sql.DB, activity ActivityType, log *zap.SugaredLogger) *PostgresSource {
	return &PostgresSource{
		db:       db,
		activity: activity,
		source:   "campus-db",
		log:      log,
	}
}

// Fetch implements Source. Recurring events are expanded up to the
// filter's upper bound (or now, for an unbounded filter), then the
// window filter is applied to occurrence start times.
func (s *PostgresSource) Fetch(ctx context.Context, f Filter) (*FetchResult, error) {
	query := instructorEventsQuery
	if s.activity == ActivityTutoring {
		query = tutoringSessionsQuery
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(errors.ErrSourceUnavailable, err.Error())
	}
	defer rows.Close()

	horizon := f.To
	if horizon.IsZero() {
		horizon = time.Now().UTC()
	}

	result := &FetchResult{}
	for rows.Next() {
		ev, ok, err := s.scanEvent(rows)
		if err != nil {
			// A row the driver cannot scan is malformed data, not a
			// source outage. Skip and count it like a row with missing
			// times; iteration-level failures surface via rows.Err.
			result.Skipped++
			if s.log != nil {
				s.log.Warnw("Skipping unscannable event row", "error", err)
			}
			continue
		}
		if !ok {
			result.Skipped++
			continue
		}

		for _, occ := range ExpandRecurrence(ev, horizon) {
			if f.Contains(occ.Start) {
				result.Events = append(result.Events, occ)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrSourceUnavailable, err.Error())
	}

	if s.log != nil {
		s.log.Infow("Fetched calendar events",
			"activity", s.activity,
			"events", len(result.Events),
			"skipped", result.Skipped,
		)
	}
	return result, nil
}

// scanEvent scans a single row. Rows with missing start or end times
// are reported as skippable (ok=false), not as errors.
func (s *PostgresSource) scanEvent(rows *sql.Rows) (RawEvent, bool, error) {
	var (
		id, email, name, title                sql.NullString
		start, end, until                     sql.NullTime
		recurringGroupID, rrule, tzid, exDate sql.NullString
	)

	if err := rows.Scan(
		&id, &email, &name, &title,
		&start, &end,
		&recurringGroupID, &rrule, &tzid, &until, &exDate,
	); err != nil {
		return RawEvent{}, false, err
	}

	if !start.Valid || !end.Valid {
		if s.log != nil {
			s.log.Debugw("Skipping event with missing times", "event_id", id.String)
		}
		return RawEvent{}, false, nil
	}

	ev := RawEvent{
		EventID:          id.String,
		Email:            email.String,
		Name:             name.String,
		Title:            title.String,
		Start:            start.Time,
		End:              end.Time,
		Source:           s.source,
		Activity:         s.activity,
		RecurringGroupID: recurringGroupID.String,
		RRule:            rrule.String,
		RRuleTZID:        tzid.String,
		ExDates:          parseExDates(exDate.String),
	}
	if until.Valid {
		t := until.Time
		ev.RRuleUntil = &t
	}
	return ev, true, nil
}

// parseExDates parses the rrule_ex_date column, which holds excluded
// occurrence dates either as a JSON array of date strings or as a
// Postgres text array literal. Unparseable entries are dropped.
func parseExDates(raw string) []time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" || raw == "{}" {
		return nil
	}

	var parts []string
	if err := json.Unmarshal([]byte(raw), &parts); err != nil {
		trimmed := strings.Trim(raw, "{}")
		if trimmed == "" {
			return nil
		}
		parts = strings.Split(trimmed, ",")
	}

	var dates []time.Time
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"`)
		if p == "" {
			continue
		}
		if t, err := parseDate(p); err == nil {
			dates = append(dates, t)
		}
	}
	return dates
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Newf("unrecognized date %q", s)
}
