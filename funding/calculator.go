/*
calculator.go - Funding allocation calculator

PURPOSE:
  Given an employment's salary state and a requested FTE percentage,
  compute the monetary allocation amount, choose the salary basis, and
  produce a human-readable formula string for display.

CONTRACT:
  - Pure function over its inputs; callers persist results themselves.
  - Basis selection: PROBATION only when the probation-end date is set,
    the as-of date falls strictly before it, AND a probation salary exists.
    Everything else uses the post-probation figure.
  - Amount: round(base x fte/100, 2), half-up, currency precision.
  - Idempotent: identical inputs always yield identical output.

SEE ALSO:
  - validator.go:  Set-level validation before amounts are computed
  - transition.go: Re-runs the calculator with the basis forced to
                   post-probation at transition time
*/
package funding

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// SalarySnapshot is the slice of an Employment the calculator reads.
type SalarySnapshot struct {
	ProbationSalary     *decimal.Decimal
	PostProbationSalary decimal.Decimal
	ProbationEndDate    *Date
}

// CalculationResult is the calculator's full output. Formula is purely
// descriptive and never feeds further computation.
type CalculationResult struct {
	BaseSalary decimal.Decimal
	Basis      SalaryBasis
	Amount     decimal.Decimal
	Formula    string
}

// =============================================================================
// CALCULATOR
// =============================================================================

type Calculator struct {
	settings Settings
}

func NewCalculator(settings Settings) *Calculator {
	return &Calculator{settings: settings}
}

// SelectBasis chooses which salary figure applies on asOf.
func (c *Calculator) SelectBasis(snap SalarySnapshot, asOf Date) SalaryBasis {
	if snap.ProbationEndDate != nil && asOf.Before(*snap.ProbationEndDate) && snap.ProbationSalary != nil {
		return BasisProbation
	}
	return BasisPostProbation
}

// Calculate computes the allocation amount for one FTE percentage.
// ftePercent must be in (0, 100].
func (c *Calculator) Calculate(snap SalarySnapshot, ftePercent decimal.Decimal, asOf Date) (*CalculationResult, error) {
	if err := ValidateFTE(ftePercent); err != nil {
		return nil, err
	}

	basis := c.SelectBasis(snap, asOf)
	base, err := c.baseSalary(snap, basis)
	if err != nil {
		return nil, err
	}

	return c.result(base, basis, ftePercent), nil
}

// CalculateOnBasis computes the amount with the salary basis forced, used by
// the transition processor to recompute on the post-probation figure.
func (c *Calculator) CalculateOnBasis(snap SalarySnapshot, ftePercent decimal.Decimal, basis SalaryBasis) (*CalculationResult, error) {
	if err := ValidateFTE(ftePercent); err != nil {
		return nil, err
	}

	base, err := c.baseSalary(snap, basis)
	if err != nil {
		return nil, err
	}

	return c.result(base, basis, ftePercent), nil
}

func (c *Calculator) baseSalary(snap SalarySnapshot, basis SalaryBasis) (decimal.Decimal, error) {
	var base decimal.Decimal
	switch basis {
	case BasisProbation:
		if snap.ProbationSalary == nil {
			return decimal.Zero, &MissingSalaryError{Basis: BasisProbation}
		}
		base = *snap.ProbationSalary
	default:
		base = snap.PostProbationSalary
	}

	if base.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, &MissingSalaryError{Basis: basis}
	}
	return base, nil
}

func (c *Calculator) result(base decimal.Decimal, basis SalaryBasis, ftePercent decimal.Decimal) *CalculationResult {
	amount := base.Mul(ftePercent).Div(oneHundred).Round(c.settings.MoneyPlaces)
	return &CalculationResult{
		BaseSalary: base,
		Basis:      basis,
		Amount:     amount,
		Formula: fmt.Sprintf("(%s × %s) / 100 = %s",
			FormatAmount(base), FormatAmount(ftePercent), FormatAmount(amount)),
	}
}

// ValidateFTE checks the (0, 100] range shared by calculator and validator.
func ValidateFTE(ftePercent decimal.Decimal) error {
	if ftePercent.LessThanOrEqual(decimal.Zero) || ftePercent.GreaterThan(oneHundred) {
		return &InvalidFTEError{FTE: ftePercent}
	}
	return nil
}

// FormatAmount renders a decimal without trailing fraction zeros, the way
// amounts appear in formula text ("30000", not "30000.00").
func FormatAmount(d decimal.Decimal) string {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}
