/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (HTTP handlers, CLI tools) match on the sentinels with
  errors.Is and unwrap the structured variants with errors.As to get
  the conflicting period IDs or the violated boundary.

ERROR CATEGORIES:
  1. Date errors     - Malformed or logically impossible date inputs
  2. Timeline errors - Cap period conflicts and lifecycle violations
  3. Lookup errors   - Missing records

SEE ALSO:
  - timeline.go: Raises the timeline and date-range errors
  - api/handlers.go: Maps these onto HTTP status codes
*/
package billing

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDateRange is returned for malformed or logically impossible
	// date inputs (validFrom after validUntil, day outside [1,31]).
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrOverlappingPeriods is returned when an inserted cap period conflicts
	// with the existing timeline in a way that cannot be auto-resolved.
	ErrOverlappingPeriods = errors.New("overlapping cap periods")

	// ErrPeriodNotDeletable is returned when deleting a cap period that is
	// already active or in the past.
	ErrPeriodNotDeletable = errors.New("cap period not deletable")

	// ErrPeriodNotFound is returned when a referenced cap period doesn't exist.
	ErrPeriodNotFound = errors.New("cap period not found")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrEntryNotFound is returned when a referenced work entry doesn't exist.
	ErrEntryNotFound = errors.New("entry not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OverlappingPeriodsError reports which existing periods conflict with an
// insert. The timeline never guesses a resolution: anything beyond the
// single open-ended-predecessor case surfaces this error with zero mutation.
type OverlappingPeriodsError struct {
	ConflictIDs []string
}

func (e *OverlappingPeriodsError) Error() string {
	return fmt.Sprintf("insert conflicts with existing cap periods: %s",
		strings.Join(e.ConflictIDs, ", "))
}

func (e *OverlappingPeriodsError) Unwrap() error {
	return ErrOverlappingPeriods
}

// PeriodNotDeletableError reports why a delete was rejected: the period's
// validFrom is not strictly in the future.
type PeriodNotDeletableError struct {
	ID        string
	ValidFrom Date
}

func (e *PeriodNotDeletableError) Error() string {
	return fmt.Sprintf("cap period %s started %s and is active or past; only future periods may be deleted",
		e.ID, e.ValidFrom)
}

func (e *PeriodNotDeletableError) Unwrap() error {
	return ErrPeriodNotDeletable
}

// InvalidDateRangeError reports the specific boundary that was violated.
type InvalidDateRangeError struct {
	Reason string
}

func (e *InvalidDateRangeError) Error() string {
	return "invalid date range: " + e.Reason
}

func (e *InvalidDateRangeError) Unwrap() error {
	return ErrInvalidDateRange
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrOverlappingPeriods) ||
		errors.Is(err, ErrPeriodNotDeletable)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPeriodNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}
