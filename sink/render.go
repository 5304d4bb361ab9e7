// Package sink provides the delivery handlers: local CSV files, S3
// object storage with CRM link-back, and time-tracking sync. Each
// implements dispatch.Handler and treats the report document as
// read-only.
package sink

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/campusops/facultyhours/errors"
	"github.com/campusops/facultyhours/report"
)

// reportHeader is the column layout of a per-person report file.
var reportHeader = []string{
	"Faculty Name",
	"Session Title",
	"Start Time",
	"End Time",
	"Duration (Hours)",
	"Activity Type",
}

const timeLayout = "2006-01-02 15:04"

// renderEntryCSV renders one person's report: one row per contributing
// event plus a trailing Total row, matching what reviewers expect to
// open in a spreadsheet.
func renderEntryCSV(entry report.ResolvedReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(reportHeader); err != nil {
		return nil, errors.Wrap(err, "writing header")
	}

	name := entry.DisplayName()
	if entry.Unresolved {
		name += " (unresolved)"
	}

	for _, ev := range entry.Record.Events {
		loc := ev.Location()
		row := []string{
			name,
			ev.Title,
			ev.Start.In(loc).Format(timeLayout),
			ev.End.In(loc).Format(timeLayout),
			formatHours(ev.Duration()),
			string(ev.Activity),
		}
		if err := w.Write(row); err != nil {
			return nil, errors.Wrap(err, "writing event row")
		}
	}

	total := []string{"Total", "", "", "", fmt.Sprintf("%.2f", entry.Record.TotalHours()), ""}
	if err := w.Write(total); err != nil {
		return nil, errors.Wrap(err, "writing total row")
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "flushing csv")
	}
	return buf.Bytes(), nil
}

// renderSummaryCSV renders the document roll-up: one row per subject
// with per-period totals, then a totals row carrying the resolved and
// unresolved counts and the skipped-event count for audit.
func renderSummaryCSV(doc *report.Document) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"Name", "Email", "Canonical ID", "Period", "Resolved", "Sessions", "Duration (Hours)"}
	if err := w.Write(header); err != nil {
		return nil, errors.Wrap(err, "writing header")
	}

	for _, entry := range doc.Entries {
		canonicalID := ""
		if entry.Directory != nil {
			canonicalID = entry.Directory.CanonicalID
		}
		row := []string{
			entry.DisplayName(),
			entry.Email(),
			canonicalID,
			entry.Record.Key.Period.String(),
			fmt.Sprintf("%t", !entry.Unresolved),
			fmt.Sprintf("%d", entry.Record.Sessions),
			fmt.Sprintf("%.2f", entry.Record.TotalHours()),
		}
		if err := w.Write(row); err != nil {
			return nil, errors.Wrap(err, "writing summary row")
		}
	}

	footer := []string{
		fmt.Sprintf("Total (%d resolved, %d unresolved, %d skipped events)",
			doc.Totals.Resolved, doc.Totals.Unresolved, doc.Totals.SkippedEvents),
		"", "", doc.Period.String(), "",
		fmt.Sprintf("%d", len(doc.Entries)),
		fmt.Sprintf("%.2f", float64(doc.Totals.TotalMinutes)/60),
	}
	if err := w.Write(footer); err != nil {
		return nil, errors.Wrap(err, "writing summary footer")
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "flushing csv")
	}
	return buf.Bytes(), nil
}

// slug turns a display name or identifier into a filesystem- and
// object-key-safe fragment.
func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '.', r == '@':
			b.WriteRune(r)
		case r == ' ' || r == '_' || r == '\t':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

// entryPeriod returns the period fragment for one entry's artifact. An
// all-periods document carries one entry per (person, period), so each
// artifact is named after the entry's own period; collapsing them onto
// the document key would overwrite every period but the last.
func entryPeriod(doc *report.Document, entry report.ResolvedReport) string {
	if doc.Period.IsAll() {
		return entry.Record.Key.Period.String()
	}
	return doc.Period.String()
}

// entryObjectID returns the deterministic per-person fragment of an
// idempotence key: the canonical id when resolved, a slug of the raw
// identifier otherwise.
func entryObjectID(entry report.ResolvedReport) string {
	if entry.Directory != nil && entry.Directory.CanonicalID != "" {
		return entry.Directory.CanonicalID
	}
	return slug(entry.Record.Key.PersonID)
}

func formatHours(d time.Duration) string {
	return fmt.Sprintf("%.2f", d.Hours())
}
