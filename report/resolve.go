package report

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/campusops/facultyhours/errors"
)

// DirectoryRecord is one canonical contact from the directory.
// Read-only within the pipeline.
type DirectoryRecord struct {
	CanonicalID string
	DisplayName string
	Email       string
	CRMID       string // optional external CRM identifier
}

// Directory supplies a snapshot of the contact directory. Batched
// lookup is an allowed optimization as long as per-identifier result
// semantics are preserved, so the interface hands over the whole
// snapshot and the resolver indexes it.
//
// Implementations must report an unreachable backing service as
// errors.ErrDirectoryUnavailable; an outage must never be mistaken for
// an empty directory.
type Directory interface {
	Snapshot(ctx context.Context) ([]DirectoryRecord, error)
}

// Resolution maps person identifiers to directory records. A nil entry
// means the identifier is unresolved: present in the events but absent
// from (or ambiguous in) the directory.
type Resolution map[string]*DirectoryRecord

// Resolver matches person identifiers against a directory snapshot.
//
// Matching is exact only: normalized email first, then normalized
// display name. There is no similarity matching; ambiguity surfaces as
// unresolved instead of a guess. For a fixed snapshot the result for a
// fixed identifier is stable across runs.
type Resolver struct {
	directory Directory
	log       *zap.SugaredLogger
}

// NewResolver creates a resolver over the given directory.
func NewResolver(directory Directory, log *zap.SugaredLogger) *Resolver {
	return &Resolver{directory: directory, log: log}
}

// Resolve maps each identifier to its directory record or nil.
// Fails the run with ErrDirectoryUnavailable when the snapshot cannot
// be fetched: treating everyone as unresolved would masquerade as a
// valid but empty report.
func (r *Resolver) Resolve(ctx context.Context, identifiers []string) (Resolution, error) {
	records, err := r.directory.Snapshot(ctx)
	if err != nil {
		if errors.IsDirectoryUnavailable(err) {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrDirectoryUnavailable, err.Error())
	}

	byEmail := indexUnique(records, func(rec DirectoryRecord) string {
		return NormalizeEmail(rec.Email)
	})
	byName := indexUnique(records, func(rec DirectoryRecord) string {
		return NormalizeName(rec.DisplayName)
	})

	resolution := make(Resolution, len(identifiers))
	for _, id := range identifiers {
		resolution[id] = matchIdentifier(id, byEmail, byName)
	}

	if r.log != nil {
		resolved := 0
		for _, rec := range resolution {
			if rec != nil {
				resolved++
			}
		}
		r.log.Infow("Resolved report subjects",
			"identifiers", len(identifiers),
			"resolved", resolved,
			"unresolved", len(identifiers)-resolved,
		)
	}
	return resolution, nil
}

// matchIdentifier tries the email index, then the name index.
func matchIdentifier(id string, byEmail, byName map[string]*DirectoryRecord) *DirectoryRecord {
	if rec, ok := byEmail[NormalizeEmail(id)]; ok && rec != nil {
		return rec
	}
	if rec, ok := byName[NormalizeName(id)]; ok && rec != nil {
		return rec
	}
	return nil
}

// indexUnique builds a keyed index, marking colliding keys with nil so
// ambiguous matches surface as unresolved rather than an arbitrary pick.
func indexUnique(records []DirectoryRecord, keyOf func(DirectoryRecord) string) map[string]*DirectoryRecord {
	index := make(map[string]*DirectoryRecord, len(records))
	for i := range records {
		key := keyOf(records[i])
		if key == "" {
			continue
		}
		if _, seen := index[key]; seen {
			index[key] = nil
			continue
		}
		index[key] = &records[i]
	}
	return index
}

// NormalizeEmail case-folds and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeName collapses interior whitespace and case-folds a display
// name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// StaticDirectory is an in-memory Directory, used in tests and by the
// resolver benchmark fixtures.
type StaticDirectory struct {
	Records []DirectoryRecord
	Err     error
}

// Snapshot implements Directory.
func (d *StaticDirectory) Snapshot(context.Context) ([]DirectoryRecord, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Records, nil
}
