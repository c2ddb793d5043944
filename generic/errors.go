/*
errors.go - Centralized error taxonomy for the staffing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every rejection produced by scheduling and payroll is one of four
  structured kinds, each unwrapping to a sentinel for errors.Is():

    ValidationError        malformed input, rejected before any side effect
    ReferentialError       unknown worker / client / assignment / payment ids
    ConflictError          overlapping shifts or pay periods (full list, never just the first)
    PartialFailureWarning  primary write durable, a follow-up write failed

  Anything else is an infrastructure failure (store, network) and maps
  to KindInternal.

USAGE:
  var conflict *generic.ConflictError
  if errors.As(err, &conflict) {
      for _, c := range conflict.Conflicts { ... }
  }

SEE ALSO:
  - result.go: Converts errors into structured Results
  - api/handlers.go: Maps kinds to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation     = errors.New("validation error")
	ErrReferential    = errors.New("referential error")
	ErrConflict       = errors.New("conflict")
	ErrPartialFailure = errors.New("partial failure")

	// ErrNotFound is returned by stores for a missing row.
	ErrNotFound = errors.New("not found")

	// ErrInsertCountMismatch is returned when a batch insert reports fewer rows than requested.
	ErrInsertCountMismatch = errors.New("inserted row count does not match batch size")
)

// Validation codes.
const (
	CodeInvalidTimeFormat       = "InvalidTimeFormat"
	CodeInvalidTimeRange        = "InvalidTimeRange"
	CodeInvalidDateRange        = "InvalidDateRange"
	CodeEmptyBatch              = "EmptyBatch"
	CodeInvalidWorkerID         = "InvalidWorkerID"
	CodeInvalidPayRate          = "InvalidPayRate"
	CodeInvalidAttendanceMode   = "InvalidAttendanceMode"
	CodeMissingField            = "MissingField"
	CodeInvalidStatusTransition = "InvalidStatusTransition"
	CodeNoAssignmentsInPeriod   = "NoAssignmentsInPeriod"
)

// Conflict kinds.
const (
	ConflictShift            = "shift_overlap"
	ConflictPayPeriod        = "pay_period_overlap"
	ConflictDependentRecords = "dependent_records"
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes malformed input.
type ValidationError struct {
	Code    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ReferentialError lists ids that do not resolve to a stored entity.
type ReferentialError struct {
	Entity string // "worker", "client", "assignment", "payment"
	IDs    []string
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("unknown %s id(s): %s", e.Entity, strings.Join(e.IDs, ", "))
}

func (e *ReferentialError) Unwrap() error { return ErrReferential }

// ConflictError carries every detected conflict.
type ConflictError struct {
	Kind        string
	Conflicts   []string
	ExistingIDs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d %s conflict(s): %s", len(e.Conflicts), e.Kind, strings.Join(e.Conflicts, "; "))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// PartialFailureWarning is attached to a successful result whose follow-up writes failed.
type PartialFailureWarning struct {
	Operation string
	Failures  []string
}

func (e *PartialFailureWarning) Error() string {
	return fmt.Sprintf("%s partially failed: %s", e.Operation, strings.Join(e.Failures, "; "))
}

func (e *PartialFailureWarning) Unwrap() error { return ErrPartialFailure }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// ErrorKind classifies an error for callers that branch on it.
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindValidation     ErrorKind = "validation"
	KindReferential    ErrorKind = "referential"
	KindConflict       ErrorKind = "conflict"
	KindPartialFailure ErrorKind = "partial_failure"
	KindInternal       ErrorKind = "internal"
)

// KindOf returns the taxonomy kind of err.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrReferential), errors.Is(err, ErrNotFound):
		return KindReferential
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrPartialFailure):
		return KindPartialFailure
	default:
		return KindInternal
	}
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	k := KindOf(err)
	return k == KindValidation || k == KindReferential || k == KindConflict
}
