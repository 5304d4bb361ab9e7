package commands

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusops/facultyhours/calendar"
	"github.com/campusops/facultyhours/config"
	"github.com/campusops/facultyhours/errors"
	"github.com/campusops/facultyhours/logger"
	"github.com/campusops/facultyhours/report"
)

// EventsCmd exports the raw event listing and the monthly roll-up as
// CSV, without identity resolution or delivery. Useful for auditing
// what the calendar database actually contains for a period.
var EventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Export the raw event and monthly-hours listings as CSV",
	Long: `Export two CSV files into the output directory:

  events_list.csv   - every fetched event, one row each, expanded from
                      recurrences, sorted by start time
  monthly_hours.csv - per-person per-month totals derived from them

No CRM resolution happens here; people are listed under their raw
calendar identifier.

Examples:
  facultyhours events --month 2025-04
  facultyhours events --all-months --group faculty`,
	RunE: runEvents,
}

func init() {
	addPeriodFlags(EventsCmd)
	EventsCmd.Flags().String("group", groupInstructor, "Activity group: instructor, tutor, or faculty")
}

func runEvents(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	period, err := periodFromFlags(cmd)
	if err != nil {
		return err
	}
	group, _ := cmd.Flags().GetString("group")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	result, err := fetchEvents(ctx, cfg, group, period)
	if err != nil {
		return err
	}

	agg := report.Aggregate(result.Events, period)

	events := make([]calendar.RawEvent, len(result.Events))
	copy(events, result.Events)
	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}

	eventsPath := filepath.Join(cfg.Output.Dir, "events_list.csv")
	if err := writeEventsList(eventsPath, events); err != nil {
		return err
	}
	hoursPath := filepath.Join(cfg.Output.Dir, "monthly_hours.csv")
	if err := writeMonthlyHours(hoursPath, agg); err != nil {
		return err
	}

	logger.Logger.Infow("Exported event listings",
		"events", len(events), "skipped_rows", result.Skipped,
		"events_file", eventsPath, "hours_file", hoursPath)
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s and %s (%d events)\n", eventsPath, hoursPath, len(events))
	return nil
}

func writeEventsList(path string, events []calendar.RawEvent) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating events list")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"Email", "Name", "Title", "Start Time", "End Time", "Duration (Hours)", "Activity Type", "Source"}
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "writing events header")
	}
	for _, ev := range events {
		loc := ev.Location()
		row := []string{
			ev.Email,
			ev.Name,
			ev.Title,
			ev.Start.In(loc).Format("2006-01-02 15:04"),
			ev.End.In(loc).Format("2006-01-02 15:04"),
			fmt.Sprintf("%.2f", ev.Duration().Hours()),
			string(ev.Activity),
			ev.Source,
		}
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "writing event row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flushing events list")
}

func writeMonthlyHours(path string, agg *report.Aggregation) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating monthly hours file")
	}
	defer f.Close()

	keys := make([]report.PeriodKey, 0, len(agg.Records))
	for key := range agg.Records {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.PersonID != b.PersonID {
			return a.PersonID < b.PersonID
		}
		at := time.Date(a.Period.Year, a.Period.Month, 1, 0, 0, 0, 0, time.UTC)
		bt := time.Date(b.Period.Year, b.Period.Month, 1, 0, 0, 0, 0, time.UTC)
		return at.Before(bt)
	})

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Person", "Period", "Sessions", "Hours"}); err != nil {
		return errors.Wrap(err, "writing monthly hours header")
	}
	for _, key := range keys {
		rec := agg.Records[key]
		row := []string{
			key.PersonID,
			key.Period.String(),
			fmt.Sprintf("%d", rec.Sessions),
			fmt.Sprintf("%.2f", rec.TotalHours()),
		}
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "writing monthly hours row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flushing monthly hours")
}
