// Package errors provides error handling for the faculty hours pipeline.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints for operator-facing messages
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrSourceUnavailable) {
//	    // the calendar database could not be reached
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New         = crdb.New
	Newf        = crdb.Newf
	Wrap        = crdb.Wrap
	Wrapf       = crdb.Wrapf
	WithStack   = crdb.WithStack
	WithMessage = crdb.WithMessage
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is     = crdb.Is
	IsAny  = crdb.IsAny
	As     = crdb.As
	Unwrap = crdb.Unwrap
	Join   = crdb.Join
)

// Sentinel errors for the report pipeline.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrSourceUnavailable indicates the calendar event source (database)
	// cannot be reached. Fatal for a run: nothing is dispatched. Distinct
	// from an empty result, which is valid.
	ErrSourceUnavailable = New("event source unavailable")

	// ErrDirectoryUnavailable indicates the contact directory cannot be
	// reached. Fatal for a run: an outage is indistinguishable from
	// everyone being absent from the directory, and must never be
	// reported as the latter.
	ErrDirectoryUnavailable = New("contact directory unavailable")

	// ErrUnknownHandler indicates a requested handler name has no
	// registered implementation. Raised before any handler runs.
	ErrUnknownHandler = New("unknown handler")

	// ErrHandlerTimeout indicates a handler exceeded its allotted
	// delivery time. Reported as that handler's failure, never fatal
	// for sibling handlers.
	ErrHandlerTimeout = New("handler timed out")
)

// IsSourceUnavailable checks if an error is or wraps ErrSourceUnavailable.
func IsSourceUnavailable(err error) bool {
	return err != nil && Is(err, ErrSourceUnavailable)
}

// IsDirectoryUnavailable checks if an error is or wraps ErrDirectoryUnavailable.
func IsDirectoryUnavailable(err error) bool {
	return err != nil && Is(err, ErrDirectoryUnavailable)
}
