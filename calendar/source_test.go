package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/facultyhours/errors"
)

var eventColumns = []string{
	"id", "email", "name", "title", "start_time", "end_time",
	"recurring_group_id", "rrule", "rrule_tzid", "rrule_until", "rrule_ex_date",
}

func TestPostgresSourceFetch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	start := time.Date(2025, 4, 7, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(eventColumns).
		AddRow("ev-1", "dana.levi@example.edu", "Dana Levi", "Intro to SQL",
			start, start.Add(time.Hour), nil, nil, nil, nil, nil).
		AddRow("ev-2", "omer.katz@example.edu", "Omer Katz", "Office Hours",
			start.Add(24*time.Hour), start.Add(25*time.Hour), nil, nil, nil, nil, nil)
	mock.ExpectQuery("FROM ms_event").WillReturnRows(rows)

	src := NewPostgresSource(db, ActivityInstruction, nil)
	result, err := src.Fetch(context.Background(), Filter{})

	require.NoError(t, err)
	assert.Len(t, result.Events, 2)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, "ev-1", result.Events[0].EventID)
	assert.Equal(t, ActivityInstruction, result.Events[0].Activity)
	assert.Equal(t, "campus-db", result.Events[0].Source)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSourceSkipsRowsMissingTimes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	start := time.Date(2025, 4, 7, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(eventColumns).
		AddRow("ev-1", "dana.levi@example.edu", "Dana Levi", "Intro to SQL",
			start, start.Add(time.Hour), nil, nil, nil, nil, nil).
		AddRow("ev-broken", "omer.katz@example.edu", "Omer Katz", "No end time",
			start, nil, nil, nil, nil, nil, nil).
		AddRow("ev-broken-2", "omer.katz@example.edu", "Omer Katz", "No start time",
			nil, start, nil, nil, nil, nil, nil)
	mock.ExpectQuery("FROM ms_event").WillReturnRows(rows)

	src := NewPostgresSource(db, ActivityInstruction, nil)
	result, err := src.Fetch(context.Background(), Filter{})

	require.NoError(t, err, "malformed rows are skipped, never fatal")
	assert.Len(t, result.Events, 1)
	assert.Equal(t, 2, result.Skipped)
}

func TestPostgresSourceSkipsUnscannableRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	start := time.Date(2025, 4, 7, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(eventColumns).
		AddRow("ev-1", "dana.levi@example.edu", "Dana Levi", "Intro to SQL",
			start, start.Add(time.Hour), nil, nil, nil, nil, nil).
		AddRow("ev-garbage", "omer.katz@example.edu", "Omer Katz", "Corrupt start",
			"not-a-timestamp", start.Add(time.Hour), nil, nil, nil, nil, nil).
		AddRow("ev-2", "omer.katz@example.edu", "Omer Katz", "Office Hours",
			start.Add(24*time.Hour), start.Add(25*time.Hour), nil, nil, nil, nil, nil)
	mock.ExpectQuery("FROM ms_event").WillReturnRows(rows)

	src := NewPostgresSource(db, ActivityInstruction, nil)
	result, err := src.Fetch(context.Background(), Filter{})

	require.NoError(t, err, "a row the driver cannot scan is skipped, never fatal")
	assert.Len(t, result.Events, 2, "rows after the bad one are still read")
	assert.Equal(t, 1, result.Skipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSourceExpandsRecurringEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	start := time.Date(2025, 4, 7, 10, 0, 0, 0, time.UTC) // a Monday
	rows := sqlmock.NewRows(eventColumns).
		AddRow("ev-weekly", "dana.levi@example.edu", "Dana Levi", "Weekly Standup",
			start, start.Add(30*time.Minute),
			"grp-1", "FREQ=WEEKLY;COUNT=8", "UTC", nil, nil)
	mock.ExpectQuery("FROM ms_event").WillReturnRows(rows)

	// Window covering April only: 4 Mondays from Apr 7.
	f := Filter{
		From: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	src := NewPostgresSource(db, ActivityInstruction, nil)
	result, err := src.Fetch(context.Background(), f)

	require.NoError(t, err)
	assert.Len(t, result.Events, 4, "Apr 7, 14, 21, 28")
	for _, ev := range result.Events {
		assert.Equal(t, time.April, ev.Start.Month())
		assert.Equal(t, 30*time.Minute, ev.Duration())
	}
}

func TestPostgresSourceUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM ms_event").WillReturnError(errors.New("connection refused"))

	src := NewPostgresSource(db, ActivityInstruction, nil)
	_, err = src.Fetch(context.Background(), Filter{})

	require.Error(t, err)
	assert.True(t, errors.IsSourceUnavailable(err),
		"query failure must surface as source-unavailable, not an empty result")
}

func TestTutoringSourceUsesTutoringQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows(eventColumns)
	mock.ExpectQuery("tutoring-session").WillReturnRows(rows)

	src := NewPostgresSource(db, ActivityTutoring, nil)
	result, err := src.Fetch(context.Background(), Filter{})

	require.NoError(t, err)
	assert.Empty(t, result.Events, "no sessions in range is a valid empty result")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParseExDates(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"empty", "", 0},
		{"empty json array", "[]", 0},
		{"empty pg array", "{}", 0},
		{"json dates", `["2025-01-13", "2025-01-27"]`, 2},
		{"json timestamps", `["2025-01-13T09:30:00Z"]`, 1},
		{"pg array", `{2025-01-13,2025-01-27}`, 2},
		{"garbage entries dropped", `["2025-01-13", "not-a-date"]`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, parseExDates(tt.raw), tt.want)
		})
	}
}

func TestMerge(t *testing.T) {
	a := &FetchResult{Events: []RawEvent{{EventID: "a"}}, Skipped: 1}
	b := &FetchResult{Events: []RawEvent{{EventID: "b"}, {EventID: "c"}}, Skipped: 2}

	merged := Merge(a, b)
	assert.Len(t, merged.Events, 3)
	assert.Equal(t, 3, merged.Skipped)
}
