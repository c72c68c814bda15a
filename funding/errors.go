/*
errors.go - Centralized error types for the funding engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these onto HTTP status codes.

ERROR CATEGORIES:
  1. Input errors   - Rejected before any computation or write
  2. State errors   - Probation transition invariants
  3. Store errors   - Persistence-level failures

USAGE:
  if errors.Is(err, funding.ErrAlreadyProcessed) {
      // surface 409, perform no work
  }

SEE ALSO:
  - calculator.go: InvalidFTEError, MissingSalaryError
  - validator.go:  FTETotalMismatchError, DuplicateFundingSourceError
  - transition.go: ErrAlreadyProcessed, ErrMissingProbationSalary
*/
package funding

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidFTE is returned when a requested FTE percentage falls
	// outside (0, 100].
	ErrInvalidFTE = errors.New("fte percentage out of range")

	// ErrMissingSalary is returned when the selected basis salary is nil
	// or not positive.
	ErrMissingSalary = errors.New("required salary figure missing")

	// ErrMissingProbationSalary is returned when a probation transition is
	// triggered for an employment with no probation salary configured.
	ErrMissingProbationSalary = errors.New("probation salary never configured")

	// ErrFTETotalMismatch is returned when an allocation set does not sum
	// to 100% within tolerance.
	ErrFTETotalMismatch = errors.New("allocation set does not total 100%")

	// ErrDuplicateFundingSource is returned when the same funding reference
	// appears twice in one allocation set.
	ErrDuplicateFundingSource = errors.New("duplicate funding source in set")

	// ErrInvalidFundingSource is returned when an entry does not reference
	// exactly one funding-source variant.
	ErrInvalidFundingSource = errors.New("exactly one funding source must be set")

	// ErrEmptyAllocationSet is returned when a replacement set is empty.
	ErrEmptyAllocationSet = errors.New("allocation set is empty")

	// ErrAlreadyProcessed is returned when a probation transition is
	// re-triggered on a completed employment. Expected for racing triggers.
	ErrAlreadyProcessed = errors.New("probation transition already processed")

	// ErrPersistenceConflict is returned when the underlying store could not
	// commit; the caller may retry the whole operation.
	ErrPersistenceConflict = errors.New("persistence conflict")

	// ErrEmploymentNotFound is returned when a referenced employment
	// doesn't exist.
	ErrEmploymentNotFound = errors.New("employment not found")

	// ErrInvalidDayOfMonth is returned by the pro-ration rules for days
	// outside [1, 31].
	ErrInvalidDayOfMonth = errors.New("day of month out of range")
)

// =============================================================================
// STRUCTURED ERRORS - Carry the offending value
// =============================================================================

// InvalidFTEError reports the rejected FTE percentage.
type InvalidFTEError struct {
	FTE decimal.Decimal
}

func (e *InvalidFTEError) Error() string {
	return fmt.Sprintf("invalid fte percentage %s: must be in (0, 100]", e.FTE)
}

func (e *InvalidFTEError) Unwrap() error { return ErrInvalidFTE }

// MissingSalaryError reports which basis salary was absent.
type MissingSalaryError struct {
	Basis SalaryBasis
}

func (e *MissingSalaryError) Error() string {
	return fmt.Sprintf("missing or non-positive %s salary", e.Basis)
}

func (e *MissingSalaryError) Unwrap() error { return ErrMissingSalary }

// FTETotalMismatchError reports the actual total so the caller can correct
// input without guesswork.
type FTETotalMismatchError struct {
	Actual decimal.Decimal
}

func (e *FTETotalMismatchError) Error() string {
	return fmt.Sprintf("allocation set totals %s%%, expected 100%%", e.Actual)
}

func (e *FTETotalMismatchError) Unwrap() error { return ErrFTETotalMismatch }

// DuplicateFundingSourceError reports the repeated reference and its
// position in the submitted set.
type DuplicateFundingSourceError struct {
	Source FundingSource
	Index  int
}

func (e *DuplicateFundingSourceError) Error() string {
	return fmt.Sprintf("funding source %s repeated at position %d", e.Source, e.Index)
}

func (e *DuplicateFundingSourceError) Unwrap() error { return ErrDuplicateFundingSource }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidFTE) ||
		errors.Is(err, ErrMissingSalary) ||
		errors.Is(err, ErrMissingProbationSalary) ||
		errors.Is(err, ErrFTETotalMismatch) ||
		errors.Is(err, ErrDuplicateFundingSource) ||
		errors.Is(err, ErrInvalidFundingSource) ||
		errors.Is(err, ErrEmptyAllocationSet) ||
		errors.Is(err, ErrInvalidDayOfMonth)
}

// IsConflict returns true for user-visible conflicts that are not crashes.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrPersistenceConflict)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmploymentNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistenceConflict)
}
