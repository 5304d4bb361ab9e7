package report

import (
	"sort"
	"time"
)

// ResolvedReport pairs one aggregated record with its directory match.
type ResolvedReport struct {
	Record    *AggregatedRecord
	Directory *DirectoryRecord // nil when unresolved

	// Unresolved flags subjects with no directory match. Unresolved
	// entries are retained and flagged, never dropped: downstream
	// consumers rely on completeness for audit.
	Unresolved bool
}

// DisplayName returns the canonical display name when resolved, else
// the raw person identifier.
func (r ResolvedReport) DisplayName() string {
	if r.Directory != nil {
		return r.Directory.DisplayName
	}
	return r.Record.Key.PersonID
}

// Email returns the canonical email when resolved, else the raw person
// identifier when it is itself an email, else empty.
func (r ResolvedReport) Email() string {
	if r.Directory != nil {
		return r.Directory.Email
	}
	if looksLikeEmail(r.Record.Key.PersonID) {
		return r.Record.Key.PersonID
	}
	return ""
}

// Totals summarizes a document.
type Totals struct {
	Resolved      int
	Unresolved    int
	TotalMinutes  int64
	SkippedEvents int
}

// Document is the unit handed across the pipeline/handler boundary.
// Handlers receive it by reference and must not mutate it.
type Document struct {
	Period      Period
	Entries     []ResolvedReport
	GeneratedAt time.Time
	Totals      Totals
}

// IdempotenceKey returns the deterministic key for this document as a
// whole: the period string. Handlers derive per-person object keys as
// key + "/" + canonical id so re-running a period overwrites rather
// than duplicates at the sink.
func (d *Document) IdempotenceKey() string {
	return d.Period.String()
}

// BuildDocument assembles the report document for one period from the
// aggregation and the directory resolution.
//
// Output order is stable across runs so documents diff cleanly:
// resolved entries sorted by canonical id, then unresolved entries by
// raw person identifier. Every aggregated subject appears exactly once;
// unresolved subjects are flagged, never omitted.
func BuildDocument(period Period, agg *Aggregation, resolution Resolution, now time.Time) *Document {
	doc := &Document{
		Period:      period,
		GeneratedAt: now.UTC(),
	}
	doc.Totals.SkippedEvents = agg.Skipped

	var resolved, unresolved []ResolvedReport
	for key, rec := range agg.Records {
		if !period.IsAll() && key.Period != period {
			continue
		}
		entry := ResolvedReport{Record: rec, Directory: resolution[key.PersonID]}
		if entry.Directory == nil {
			entry.Unresolved = true
			unresolved = append(unresolved, entry)
		} else {
			resolved = append(resolved, entry)
		}
		doc.Totals.TotalMinutes += rec.TotalMinutes
	}

	sort.Slice(resolved, func(i, j int) bool {
		a, b := resolved[i], resolved[j]
		if a.Directory.CanonicalID != b.Directory.CanonicalID {
			return a.Directory.CanonicalID < b.Directory.CanonicalID
		}
		// Same person can appear once per period in an "all" document.
		return periodLess(a.Record.Key.Period, b.Record.Key.Period)
	})
	sort.Slice(unresolved, func(i, j int) bool {
		a, b := unresolved[i], unresolved[j]
		if a.Record.Key.PersonID != b.Record.Key.PersonID {
			return a.Record.Key.PersonID < b.Record.Key.PersonID
		}
		return periodLess(a.Record.Key.Period, b.Record.Key.Period)
	})

	doc.Entries = append(resolved, unresolved...)
	doc.Totals.Resolved = len(resolved)
	doc.Totals.Unresolved = len(unresolved)
	return doc
}

func periodLess(a, b Period) bool {
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	return a.Month < b.Month
}

func looksLikeEmail(s string) bool {
	for i, c := range s {
		if c == '@' {
			return i > 0 && i < len(s)-1
		}
	}
	return false
}
