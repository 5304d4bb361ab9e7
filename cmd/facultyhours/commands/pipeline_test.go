package commands

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/facultyhours/calendar"
	"github.com/campusops/facultyhours/report"
)

func periodCmd(args ...string) *cobra.Command {
	cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	addPeriodFlags(cmd)
	cmd.SetArgs(args)
	_ = cmd.Execute()
	return cmd
}

func TestPeriodFromFlags(t *testing.T) {
	p, err := periodFromFlags(periodCmd("--month", "2025-04"))
	require.NoError(t, err)
	assert.Equal(t, report.Period{Year: 2025, Month: time.April}, p)

	p, err = periodFromFlags(periodCmd("--all-months"))
	require.NoError(t, err)
	assert.True(t, p.IsAll())

	p, err = periodFromFlags(periodCmd("--current-month"))
	require.NoError(t, err)
	assert.Equal(t, report.CurrentPeriod(time.Now(), time.Local), p)
}

func TestPeriodFromFlagsRequiresExactlyOne(t *testing.T) {
	_, err := periodFromFlags(periodCmd())
	require.Error(t, err)

	_, err = periodFromFlags(periodCmd("--month", "2025-04", "--all-months"))
	require.Error(t, err)

	_, err = periodFromFlags(periodCmd("--month", "April 2025"))
	require.Error(t, err, "malformed month is rejected")
}

func TestFetchWindowPadsPeriodBounds(t *testing.T) {
	window := fetchWindow(report.Period{Year: 2025, Month: time.April})
	require.False(t, window.IsAll())

	assert.True(t, window.From.Before(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)),
		"window opens before the month so early-timezone events are fetched")
	assert.True(t, window.To.After(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)),
		"window closes after the month so late-timezone events are fetched")

	assert.True(t, fetchWindow(report.PeriodAll).IsAll())
}

func TestActivityForGroup(t *testing.T) {
	a, err := activityForGroup(groupInstructor)
	require.NoError(t, err)
	assert.Equal(t, calendar.ActivityInstruction, a)

	a, err = activityForGroup(groupTutor)
	require.NoError(t, err)
	assert.Equal(t, calendar.ActivityTutoring, a)

	_, err = activityForGroup(groupFaculty)
	require.Error(t, err, "combined group has no single activity type")
}

func TestSourcesForGroupUnknown(t *testing.T) {
	_, err := sourcesForGroup(nil, "students")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown group")
}
