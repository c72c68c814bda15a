/*
validator.go - Allocation set validator

PURPOSE:
  Enforces the invariants an allocation set must satisfy before anything
  is computed or persisted:

    1. The set is non-empty.
    2. Each entry references exactly one funding-source variant.
    3. Each FTE percentage lies in (0, 100].
    4. No funding-source reference appears twice.
    5. FTE percentages sum to 100 within tolerance.

  The same validation runs on creation and on full-replace update; there
  is no incremental-patch code path.

FAIL-FAST:
  All rules are checked before any write occurs, so rejection never needs
  a compensating rollback.
*/
package funding

import (
	"github.com/shopspring/decimal"
)

// AllocationRequest is one proposed entry of a replacement set.
type AllocationRequest struct {
	Source     FundingSource
	FTEPercent decimal.Decimal
}

// SetValidator checks a proposed allocation set against the 100%-total and
// source-exclusivity invariants.
type SetValidator struct {
	settings Settings
}

func NewSetValidator(settings Settings) *SetValidator {
	return &SetValidator{settings: settings}
}

// Validate checks the rules in order and returns the list unchanged, ready
// for amount calculation.
func (v *SetValidator) Validate(reqs []AllocationRequest) ([]AllocationRequest, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyAllocationSet
	}

	for _, r := range reqs {
		if !r.Source.Valid() {
			return nil, ErrInvalidFundingSource
		}
		if err := ValidateFTE(r.FTEPercent); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool, len(reqs))
	for i, r := range reqs {
		key := r.Source.Key()
		if seen[key] {
			return nil, &DuplicateFundingSourceError{Source: r.Source, Index: i}
		}
		seen[key] = true
	}

	total := decimal.Zero
	for _, r := range reqs {
		total = total.Add(r.FTEPercent)
	}
	if total.Sub(oneHundred).Abs().GreaterThan(v.settings.FTETolerance) {
		return nil, &FTETotalMismatchError{Actual: total}
	}

	return reqs, nil
}
