package commands

import (
	"context"
	"database/sql"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusops/facultyhours/calendar"
	"github.com/campusops/facultyhours/config"
	"github.com/campusops/facultyhours/db"
	"github.com/campusops/facultyhours/errors"
	"github.com/campusops/facultyhours/logger"
	"github.com/campusops/facultyhours/report"
)

// Activity groups selectable with --group.
const (
	groupInstructor = "instructor"
	groupTutor      = "tutor"
	groupFaculty    = "faculty" // both activity types
)

// addPeriodFlags wires the period selection flags shared by report and
// events. Exactly one of them must be set.
func addPeriodFlags(cmd *cobra.Command) {
	cmd.Flags().String("month", "", "Report period as YYYY-MM")
	cmd.Flags().Bool("current-month", false, "Report the current calendar month")
	cmd.Flags().Bool("all-months", false, "Report every month present in the calendar data")
}

// periodFromFlags resolves the period selection flags into a period.
func periodFromFlags(cmd *cobra.Command) (report.Period, error) {
	month, _ := cmd.Flags().GetString("month")
	current, _ := cmd.Flags().GetBool("current-month")
	all, _ := cmd.Flags().GetBool("all-months")

	set := 0
	if month != "" {
		set++
	}
	if current {
		set++
	}
	if all {
		set++
	}
	if set != 1 {
		return report.Period{}, errors.New("exactly one of --month, --current-month, --all-months is required")
	}

	switch {
	case all:
		return report.PeriodAll, nil
	case current:
		return report.CurrentPeriod(time.Now(), time.Local), nil
	default:
		return report.ParsePeriod(month)
	}
}

// fetchWindow derives the database fetch window from the period. The
// window is padded by a day on each side: events are bucketed by their
// start time in their own calendar timezone, which can differ from the
// period bounds computed here by up to a day. Aggregation applies the
// precise period filter afterwards.
func fetchWindow(period report.Period) calendar.Filter {
	if period.IsAll() {
		return calendar.Filter{}
	}
	from, to := period.Bounds(time.UTC)
	return calendar.Filter{
		From: from.Add(-24 * time.Hour),
		To:   to.Add(24 * time.Hour),
	}
}

// validGroup rejects unknown --group values before any connection is
// opened.
func validGroup(group string) error {
	switch group {
	case groupInstructor, groupTutor, groupFaculty:
		return nil
	default:
		return errors.Newf("unknown group %q (want instructor, tutor, or faculty)", group)
	}
}

// sourcesForGroup maps the --group flag onto calendar sources.
func sourcesForGroup(conn *sql.DB, group string) ([]calendar.Source, error) {
	switch group {
	case groupInstructor:
		return []calendar.Source{
			calendar.NewPostgresSource(conn, calendar.ActivityInstruction, logger.Logger),
		}, nil
	case groupTutor:
		return []calendar.Source{
			calendar.NewPostgresSource(conn, calendar.ActivityTutoring, logger.Logger),
		}, nil
	case groupFaculty:
		return []calendar.Source{
			calendar.NewPostgresSource(conn, calendar.ActivityInstruction, logger.Logger),
			calendar.NewPostgresSource(conn, calendar.ActivityTutoring, logger.Logger),
		}, nil
	default:
		return nil, errors.Newf("unknown group %q (want instructor, tutor, or faculty)", group)
	}
}

// fetchEvents opens the calendar database and fetches all events for
// the group within the period's window.
func fetchEvents(ctx context.Context, cfg *config.Config, group string, period report.Period) (*calendar.FetchResult, error) {
	if err := validGroup(group); err != nil {
		return nil, err
	}
	if cfg.Database.CampusDSN == "" {
		return nil, errors.New("database.campus_dsn is not configured")
	}

	conn, err := db.Open(ctx, cfg.Database.CampusDSN, logger.Logger)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	sources, err := sourcesForGroup(conn, group)
	if err != nil {
		return nil, err
	}

	window := fetchWindow(period)
	results := make([]*calendar.FetchResult, 0, len(sources))
	for _, src := range sources {
		res, err := src.Fetch(ctx, window)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return calendar.Merge(results...), nil
}
