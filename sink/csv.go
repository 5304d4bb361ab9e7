package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/campusops/facultyhours/errors"
	"github.com/campusops/facultyhours/report"
)

// CSVSink writes one CSV file per report subject plus a period summary
// into a local directory. Filenames derive from the idempotence key, so
// re-running a period overwrites the previous run's files.
type CSVSink struct {
	dir string
	log *zap.SugaredLogger
}

// NewCSVSink creates a CSV sink rooted at dir.
func NewCSVSink(dir string, log *zap.SugaredLogger) *CSVSink {
	return &CSVSink{dir: dir, log: log}
}

// Name implements dispatch.Handler.
func (s *CSVSink) Name() string { return "csv" }

// Deliver implements dispatch.Handler.
func (s *CSVSink) Deliver(ctx context.Context, doc *report.Document, key string) error {
	reportsDir := filepath.Join(s.dir, "faculty_reports")
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return errors.Wrap(err, "creating reports directory")
	}

	for _, entry := range doc.Entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		body, err := renderEntryCSV(entry)
		if err != nil {
			return errors.Wrapf(err, "rendering report for %s", entry.DisplayName())
		}

		filename := fmt.Sprintf("%s_%s_faculty_report.csv",
			slug(entry.DisplayName()), entryPeriod(doc, entry))
		path := filepath.Join(reportsDir, filename)
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return errors.Wrapf(err, "writing report for %s", entry.DisplayName())
		}

		if s.log != nil {
			s.log.Debugw("Saved faculty report", "person", entry.DisplayName(), "path", path)
		}
	}

	summary, err := renderSummaryCSV(doc)
	if err != nil {
		return errors.Wrap(err, "rendering summary")
	}
	summaryPath := filepath.Join(reportsDir, fmt.Sprintf("summary_%s.csv", key))
	if err := os.WriteFile(summaryPath, summary, 0o644); err != nil {
		return errors.Wrap(err, "writing summary")
	}

	if s.log != nil {
		s.log.Infow("Saved faculty reports",
			"count", len(doc.Entries), "dir", reportsDir, "period", key)
	}
	return nil
}
