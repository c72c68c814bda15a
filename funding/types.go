/*
Package funding implements the employment funding-allocation engine.

PURPOSE:
  This package contains the domain types and algorithms for splitting an
  employment's compensation across grant and organizational funding sources
  by FTE percentage, and for moving an employment from its probation salary
  basis to the post-probation basis exactly once.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employment: Salary figures, key dates, and the probation-completed flag
  - Allocation: One funding-source share of an employment's compensation
  - FundingSource: Grant-slot or org-fund reference (exactly one is set)
  - HistoryEntry: Immutable audit record of every employment mutation

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Purity: The calculator has no side effects; persistence is explicit
  3. Idempotence: The probation transition runs at most once per employment
  4. Auditability: Every mutation appends a HistoryEntry with a diff

USAGE:
  calc := funding.NewCalculator(funding.DefaultSettings())
  result, err := calc.Calculate(emp.SalarySnapshot(), decimal.NewFromInt(60), funding.Today())

SEE ALSO:
  - calculator.go: Amount calculation and salary-basis selection
  - validator.go:  100%-total and source-exclusivity rules
  - transition.go: Probation transition processor
  - prorate.go:    30-day-month payroll pro-ration
*/
package funding

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmploymentID string
type EmployeeID string
type AllocationID string

// =============================================================================
// SALARY BASIS
// =============================================================================

// SalaryBasis records which salary figure produced an allocated amount.
// It is set by the calculator, never by the caller.
type SalaryBasis string

const (
	BasisProbation     SalaryBasis = "probation"
	BasisPostProbation SalaryBasis = "post_probation"
)

// =============================================================================
// FUNDING SOURCE - Grant slot or org fund, mutually exclusive
// =============================================================================

type FundingSourceKind string

const (
	SourceGrantSlot FundingSourceKind = "grant_slot"
	SourceOrgFund   FundingSourceKind = "org_fund"
)

// FundingSource references the money behind an allocation. Exactly one of
// GrantSlotID or OrgFundID must be set.
type FundingSource struct {
	GrantSlotID string
	OrgFundID   string
}

func GrantSlot(id string) FundingSource { return FundingSource{GrantSlotID: id} }
func OrgFund(id string) FundingSource   { return FundingSource{OrgFundID: id} }

// Valid reports whether exactly one reference is set.
func (fs FundingSource) Valid() bool {
	return (fs.GrantSlotID != "") != (fs.OrgFundID != "")
}

func (fs FundingSource) Kind() FundingSourceKind {
	if fs.GrantSlotID != "" {
		return SourceGrantSlot
	}
	return SourceOrgFund
}

func (fs FundingSource) Ref() string {
	if fs.GrantSlotID != "" {
		return fs.GrantSlotID
	}
	return fs.OrgFundID
}

// Key returns a stable identity string used for duplicate detection.
func (fs FundingSource) Key() string { return string(fs.Kind()) + ":" + fs.Ref() }

func (fs FundingSource) String() string { return fs.Key() }

// =============================================================================
// EMPLOYMENT - Leaf data holder supplied by the employment CRUD layer
// =============================================================================

// BenefitSetting is a flag + percentage pair carried on the employment.
// Orthogonal to allocation math; consumed by the payroll layer.
type BenefitSetting struct {
	Enabled    bool
	Percentage decimal.Decimal
}

type Employment struct {
	ID         EmploymentID
	EmployeeID EmployeeID

	StartDate        Date
	ProbationEndDate *Date

	// ProbationSalary is nil when the employment has no distinct probation
	// salary; the post-probation figure applies for the whole period.
	ProbationSalary     *decimal.Decimal
	PostProbationSalary decimal.Decimal

	// ProbationCompleted flips false -> true exactly once.
	ProbationCompleted bool

	HealthBenefit  BenefitSetting
	PensionBenefit BenefitSetting

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Normalize derives missing fields at creation time: an absent probation-end
// date defaults to start date + the configured probation length.
func (e *Employment) Normalize(settings Settings) {
	if e.ProbationEndDate == nil && !e.StartDate.IsZero() {
		end := e.StartDate.AddMonths(settings.DefaultProbationMonths)
		e.ProbationEndDate = &end
	}
}

// SalarySnapshot extracts the fields the calculator operates on.
func (e Employment) SalarySnapshot() SalarySnapshot {
	return SalarySnapshot{
		ProbationSalary:     e.ProbationSalary,
		PostProbationSalary: e.PostProbationSalary,
		ProbationEndDate:    e.ProbationEndDate,
	}
}

// =============================================================================
// TRANSITION STATE - Per-employment probation state machine
// =============================================================================

type TransitionState string

const (
	StateNotDue    TransitionState = "not_due"
	StateDue       TransitionState = "due"
	StateCompleted TransitionState = "completed"
)

// TransitionState classifies the employment for the daily sweep.
// COMPLETED is terminal; DUE means the sweep should process it today.
func (e Employment) TransitionState(asOf Date) TransitionState {
	if e.ProbationCompleted {
		return StateCompleted
	}
	if e.ProbationEndDate == nil || asOf.Before(*e.ProbationEndDate) {
		return StateNotDue
	}
	return StateDue
}

// =============================================================================
// ALLOCATION - One funding-source share of an employment's compensation
// =============================================================================

type AllocationStatus string

const (
	AllocationActive AllocationStatus = "active"
)

type Allocation struct {
	ID           AllocationID
	EmploymentID EmploymentID
	Source       FundingSource

	// FTE is stored as a decimal fraction in (0, 1]; the API boundary speaks
	// percentages in (0, 100].
	FTE decimal.Decimal

	// Amount is derived: round(base salary x FTE, 2). Never authored directly.
	Amount decimal.Decimal
	Basis  SalaryBasis
	Status AllocationStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FTEPercent returns the interface-facing percentage for a stored fraction.
func (a Allocation) FTEPercent() decimal.Decimal {
	return a.FTE.Mul(decimal.NewFromInt(100))
}

// FractionFromPercent converts an interface percentage to the stored fraction.
func FractionFromPercent(percent decimal.Decimal) decimal.Decimal {
	return percent.Div(decimal.NewFromInt(100))
}

// =============================================================================
// HISTORY ENTRY - Immutable audit trail
// =============================================================================

type HistoryEntry struct {
	ID           string
	EmploymentID EmploymentID
	Reason       string

	// Before/After hold a structured diff of the change for traceability.
	// Stored JSON-encoded; never updated or deleted.
	Before map[string]any
	After  map[string]any

	CreatedAt time.Time
}
