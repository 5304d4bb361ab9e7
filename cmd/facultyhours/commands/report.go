package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusops/facultyhours/calendar"
	"github.com/campusops/facultyhours/config"
	"github.com/campusops/facultyhours/directory"
	"github.com/campusops/facultyhours/dispatch"
	"github.com/campusops/facultyhours/errors"
	"github.com/campusops/facultyhours/logger"
	"github.com/campusops/facultyhours/report"
	"github.com/campusops/facultyhours/sink"
	"github.com/campusops/facultyhours/timetrack"
)

// ReportCmd builds monthly faculty-hours reports and delivers them
// through the requested handlers.
var ReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build monthly reports and deliver them through handlers",
	Long: `Build per-person monthly hour reports from calendar events and
deliver them through one or more handlers.

Handlers:
  csv      - Write per-person and summary CSV files to the output directory
  s3       - Upload per-person CSVs to S3 and link them on CRM contacts
  timesync - Reconcile the month against the time-tracking service

Every person in the calendar data appears in the report; people the CRM
directory cannot identify are flagged as unresolved, never dropped.

Examples:
  facultyhours report --current-month
  facultyhours report --month 2025-04 --handlers csv,s3
  facultyhours report --all-months --group tutor`,
	RunE: runReport,
}

func init() {
	addPeriodFlags(ReportCmd)
	ReportCmd.Flags().String("group", groupInstructor, "Activity group: instructor, tutor, or faculty")
	ReportCmd.Flags().StringSlice("handlers", []string{"csv"}, "Delivery handlers to run, in order")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	period, err := periodFromFlags(cmd)
	if err != nil {
		return err
	}
	group, _ := cmd.Flags().GetString("group")
	handlerNames, _ := cmd.Flags().GetStringSlice("handlers")

	if containsHandler(handlerNames, "timesync") {
		if period.IsAll() {
			return errors.New("timesync requires a single month; --all-months cannot be synced")
		}
		if _, err := activityForGroup(group); err != nil {
			return errors.Wrap(err, "timesync")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateForHandlers(handlerNames); err != nil {
		return err
	}

	// The directory is mandatory: identity resolution against the CRM
	// is part of every report, and an unreachable directory aborts the
	// run before any handler fires.
	dir, err := directory.NewClient(cfg.CRM, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "configuring CRM directory")
	}

	coord, err := buildCoordinator(ctx, cfg, group, dir)
	if err != nil {
		return err
	}
	// Reject unknown handler names before touching the database or the
	// directory, not merely before the first delivery.
	if err := checkHandlerNames(coord, handlerNames); err != nil {
		return err
	}

	events, err := fetchEvents(ctx, cfg, group, period)
	if err != nil {
		return err
	}
	logger.Logger.Infow("Fetched calendar events",
		"count", len(events.Events), "skipped_rows", events.Skipped, "group", group)

	agg := report.Aggregate(events.Events, period)
	agg.Skipped += events.Skipped

	resolver := report.NewResolver(dir, logger.Logger)
	resolution, err := resolver.Resolve(ctx, agg.PersonIDs())
	if err != nil {
		return err
	}

	doc := report.BuildDocument(period, agg, resolution, time.Now())
	if len(doc.Entries) == 0 {
		logger.Logger.Infow("No activity found for period", "period", period.String())
		return nil
	}

	result, err := coord.Run(ctx, doc, handlerNames)
	if err != nil {
		return err
	}

	printRunResult(cmd, result)
	if result.Status != dispatch.RunSuccess {
		return errors.Newf("delivery finished with status %s: failed handlers: %s",
			result.Status, strings.Join(result.FailedHandlers(), ", "))
	}
	return nil
}

// buildCoordinator registers every configured handler. Handlers whose
// configuration is incomplete were already rejected by
// ValidateForHandlers, so construction failures here are unexpected.
func buildCoordinator(ctx context.Context, cfg *config.Config, group string, dir *directory.Client) (*dispatch.Coordinator, error) {
	timeout := time.Duration(cfg.Dispatch.HandlerTimeoutSeconds) * time.Second
	coord := dispatch.NewCoordinator(timeout, logger.Logger)

	if err := coord.Register(sink.NewCSVSink(cfg.Output.Dir, logger.Logger)); err != nil {
		return nil, err
	}

	if cfg.S3.Bucket != "" {
		var crm sink.ContactLinker
		if cfg.CRM.ReportLinkProperty != "" {
			crm = dir
		}
		s3Sink, err := sink.NewS3Sink(ctx, cfg.S3, crm, cfg.CRM.ReportLinkProperty, cfg.Output.Dir, logger.Logger)
		if err != nil {
			return nil, errors.Wrap(err, "configuring s3 handler")
		}
		if err := coord.Register(s3Sink); err != nil {
			return nil, err
		}
	}

	if cfg.TimeTracking.APIKey != "" {
		activity, err := activityForGroup(group)
		if err == nil {
			tt, err := timetrack.NewClient(cfg.TimeTracking, logger.Logger)
			if err != nil {
				return nil, errors.Wrap(err, "configuring timesync handler")
			}
			if err := coord.Register(sink.NewTimeSyncSink(tt, activity, logger.Logger)); err != nil {
				return nil, err
			}
		}
	}

	return coord, nil
}

// activityForGroup maps a group onto the single activity type a
// time-tracking sync covers. The combined faculty group mixes activity
// types and cannot be synced as one.
func activityForGroup(group string) (calendar.ActivityType, error) {
	switch group {
	case groupInstructor:
		return calendar.ActivityInstruction, nil
	case groupTutor:
		return calendar.ActivityTutoring, nil
	default:
		return "", errors.Newf("group %q has no single activity type", group)
	}
}

func checkHandlerNames(coord *dispatch.Coordinator, names []string) error {
	known := make(map[string]bool)
	for _, n := range coord.KnownHandlers() {
		known[n] = true
	}
	for _, n := range names {
		if !known[n] {
			return errors.Wrapf(errors.ErrUnknownHandler, "%q", n)
		}
	}
	return nil
}

func containsHandler(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func printRunResult(cmd *cobra.Command, result *dispatch.RunResult) {
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s for period %s: %s\n",
		result.RunID, result.Period, result.Status)
	for _, o := range result.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-10s %s: %v\n", o.Handler, o.Status, o.Err)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-10s %s\n", o.Handler, o.Status)
		}
	}
	if result.SkippedEvents > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "  %d malformed events skipped\n", result.SkippedEvents)
	}
}
