package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/facultyhours/calendar"
	"github.com/campusops/facultyhours/report"
	"github.com/campusops/facultyhours/timetrack"
)

type fakeTimeAPI struct {
	existing []timetrack.Entry
	fetchErr error

	fetchedMonth    string
	fetchedActivity string
	added           []timetrack.Entry
	deleted         []string
}

func (f *fakeTimeAPI) FetchEntries(_ context.Context, month, activityType string) ([]timetrack.Entry, error) {
	f.fetchedMonth = month
	f.fetchedActivity = activityType
	return f.existing, f.fetchErr
}

func (f *fakeTimeAPI) BulkAdd(_ context.Context, entries []timetrack.Entry) error {
	f.added = append(f.added, entries...)
	return nil
}

func (f *fakeTimeAPI) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func TestTimeSyncAddsMissingEntries(t *testing.T) {
	api := &fakeTimeAPI{}
	s := NewTimeSyncSink(api, calendar.ActivityInstruction, nil)
	doc := testDocument()

	require.NoError(t, s.Deliver(context.Background(), doc, doc.IdempotenceKey()))

	assert.Equal(t, "2025-04", api.fetchedMonth)
	assert.Equal(t, string(calendar.ActivityInstruction), api.fetchedActivity)

	require.Len(t, api.added, 2, "only instruction events for this sink's activity")
	assert.Equal(t, "dana.levi@example.edu", api.added[0].FacultyEmail)
	assert.Equal(t, "2025-04-07", api.added[0].Date)
	assert.Equal(t, "Intro to SQL", api.added[0].Description)
	assert.InDelta(t, 1.5, api.added[0].Hours, 0.001)
	assert.Empty(t, api.deleted)
}

func TestTimeSyncDeletesStaleEntries(t *testing.T) {
	api := &fakeTimeAPI{existing: []timetrack.Entry{
		{ID: "stale-1", FacultyEmail: "dana.levi@example.edu", Date: "2025-04-02",
			Hours: 2, Description: "Cancelled Lecture"},
	}}
	s := NewTimeSyncSink(api, calendar.ActivityInstruction, nil)
	doc := testDocument()

	require.NoError(t, s.Deliver(context.Background(), doc, doc.IdempotenceKey()))

	assert.Equal(t, []string{"stale-1"}, api.deleted)
	assert.Len(t, api.added, 2)
}

func TestTimeSyncUnchangedIsNoop(t *testing.T) {
	api := &fakeTimeAPI{existing: []timetrack.Entry{
		{ID: "keep-1", FacultyEmail: "dana.levi@example.edu", Date: "2025-04-07",
			Hours: 1.5, Description: "Intro to SQL"},
		{ID: "keep-2", FacultyEmail: "dana.levi@example.edu", Date: "2025-04-09",
			Hours: 1, Description: "Office Hours"},
	}}
	s := NewTimeSyncSink(api, calendar.ActivityInstruction, nil)
	doc := testDocument()

	require.NoError(t, s.Deliver(context.Background(), doc, doc.IdempotenceKey()))

	assert.Empty(t, api.deleted)
	assert.Empty(t, api.added)
}

func TestTimeSyncMatchesCaseInsensitiveEmail(t *testing.T) {
	api := &fakeTimeAPI{existing: []timetrack.Entry{
		{ID: "keep-1", FacultyEmail: "Dana.Levi@Example.EDU", Date: "2025-04-07",
			Hours: 1.5, Description: "Intro to SQL"},
	}}
	s := NewTimeSyncSink(api, calendar.ActivityInstruction, nil)
	doc := testDocument()

	require.NoError(t, s.Deliver(context.Background(), doc, doc.IdempotenceKey()))

	assert.Empty(t, api.deleted, "email casing does not break the match")
}

func TestTimeSyncRejectsAllPeriods(t *testing.T) {
	api := &fakeTimeAPI{}
	s := NewTimeSyncSink(api, calendar.ActivityInstruction, nil)
	doc := testDocument()
	doc.Period = report.PeriodAll

	err := s.Deliver(context.Background(), doc, "all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single month")
	assert.Empty(t, api.fetchedMonth, "nothing fetched on rejection")
}

func TestTimeSyncFetchFailureAborts(t *testing.T) {
	api := &fakeTimeAPI{fetchErr: assert.AnError}
	s := NewTimeSyncSink(api, calendar.ActivityInstruction, nil)
	doc := testDocument()

	err := s.Deliver(context.Background(), doc, doc.IdempotenceKey())
	require.Error(t, err)
	assert.Empty(t, api.added)
	assert.Empty(t, api.deleted)
}
