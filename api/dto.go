/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged with clients. DTOs are separate from
  domain types so the wire format can evolve independently and so decimal
  fields cross the boundary as strings, never floats.

CONVENTIONS:
  - Dates:   YYYY-MM-DD strings
  - Times:   RFC3339 strings
  - Money:   decimal strings ("30000", "45333.34")
  - FTE:     percentage in (0, 100], decimal string

VALIDATION:
  Struct tags follow go-playground/validator. Handlers run the validator
  before touching domain logic, so malformed payloads never reach it.

SEE ALSO:
  - handlers.go: Where DTOs are populated and validated
  - funding/types.go: The domain types these mirror
*/
package api

// =============================================================================
// EMPLOYMENT DTOs
// =============================================================================

// BenefitSettingDTO is an on/off toggle with a contribution percentage.
type BenefitSettingDTO struct {
	Enabled    bool   `json:"enabled"`
	Percentage string `json:"percentage,omitempty"`
}

// EmploymentDTO is the wire representation of an employment record.
type EmploymentDTO struct {
	ID                  string             `json:"id"`
	EmployeeID          string             `json:"employee_id"`
	StartDate           string             `json:"start_date"`
	ProbationEndDate    *string            `json:"probation_end_date,omitempty"`
	ProbationSalary     *string            `json:"probation_salary,omitempty"`
	PostProbationSalary string             `json:"post_probation_salary"`
	ProbationCompleted  bool               `json:"probation_completed"`
	TransitionState     string             `json:"transition_state"`
	HealthBenefit       *BenefitSettingDTO `json:"health_benefit,omitempty"`
	PensionBenefit      *BenefitSettingDTO `json:"pension_benefit,omitempty"`
	CreatedAt           string             `json:"created_at,omitempty"`
	UpdatedAt           string             `json:"updated_at,omitempty"`
}

// CreateEmploymentRequest creates a new employment record.
type CreateEmploymentRequest struct {
	ID                  string             `json:"id" validate:"required"`
	EmployeeID          string             `json:"employee_id" validate:"required"`
	StartDate           string             `json:"start_date" validate:"required,datetime=2006-01-02"`
	ProbationEndDate    *string            `json:"probation_end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ProbationSalary     *string            `json:"probation_salary,omitempty"`
	PostProbationSalary string             `json:"post_probation_salary" validate:"required"`
	HealthBenefit       *BenefitSettingDTO `json:"health_benefit,omitempty"`
	PensionBenefit      *BenefitSettingDTO `json:"pension_benefit,omitempty"`
}

// UpdateEmploymentRequest updates salary figures and dates. The
// probation-completed flag is not writable here.
type UpdateEmploymentRequest struct {
	EmployeeID          string             `json:"employee_id" validate:"required"`
	StartDate           string             `json:"start_date" validate:"required,datetime=2006-01-02"`
	ProbationEndDate    *string            `json:"probation_end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ProbationSalary     *string            `json:"probation_salary,omitempty"`
	PostProbationSalary string             `json:"post_probation_salary" validate:"required"`
	HealthBenefit       *BenefitSettingDTO `json:"health_benefit,omitempty"`
	PensionBenefit      *BenefitSettingDTO `json:"pension_benefit,omitempty"`
	Reason              string             `json:"reason,omitempty"`
}

// =============================================================================
// ALLOCATION DTOs
// =============================================================================

// FundingSourceDTO names exactly one of the two source kinds.
type FundingSourceDTO struct {
	GrantSlotID string `json:"grant_slot_id,omitempty"`
	OrgFundID   string `json:"org_fund_id,omitempty"`
}

// AllocationItemRequest is one line of a proposed allocation set.
type AllocationItemRequest struct {
	Source     FundingSourceDTO `json:"source"`
	FTEPercent string           `json:"fte_percent" validate:"required"`
}

// ReplaceAllocationsRequest replaces the employment's entire allocation set.
type ReplaceAllocationsRequest struct {
	Allocations []AllocationItemRequest `json:"allocations" validate:"required,min=1,dive"`
}

// AllocationDTO is the wire representation of a stored allocation.
type AllocationDTO struct {
	ID           string           `json:"id"`
	EmploymentID string           `json:"employment_id"`
	Source       FundingSourceDTO `json:"source"`
	SourceKey    string           `json:"source_key"`
	FTEPercent   string           `json:"fte_percent"`
	Amount       string           `json:"amount"`
	Basis        string           `json:"basis"`
	Status       string           `json:"status"`
	CreatedAt    string           `json:"created_at,omitempty"`
	UpdatedAt    string           `json:"updated_at,omitempty"`
}

// =============================================================================
// CALCULATION DTOs
// =============================================================================

// CalculationDTO echoes a single allocation calculation, including the
// human-readable formula for audit display.
type CalculationDTO struct {
	EmploymentID string `json:"employment_id"`
	FTEPercent   string `json:"fte_percent"`
	AsOf         string `json:"as_of"`
	Basis        string `json:"basis"`
	BaseSalary   string `json:"base_salary"`
	Amount       string `json:"amount"`
	Formula      string `json:"formula"`
}

// =============================================================================
// TRANSITION DTOs
// =============================================================================

// TransitionResultDTO reports a completed probation transition.
type TransitionResultDTO struct {
	EmploymentID   string          `json:"employment_id"`
	TransitionDate string          `json:"transition_date"`
	Updated        []AllocationDTO `json:"updated"`
}

// SweepResultDTO summarises one sweep execution.
type SweepResultDTO struct {
	RunID     string            `json:"run_id"`
	Processed int               `json:"processed"`
	Failed    []SweepFailureDTO `json:"failed,omitempty"`
}

// SweepFailureDTO records one employment the sweep could not transition.
type SweepFailureDTO struct {
	EmploymentID string `json:"employment_id"`
	Error        string `json:"error"`
}

// SweepRunDTO is a persisted sweep run for the history listing.
type SweepRunDTO struct {
	ID          string `json:"id"`
	SweptAt     string `json:"swept_at"`
	Status      string `json:"status"`
	Processed   int    `json:"processed"`
	Failed      int    `json:"failed"`
	Error       string `json:"error,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// =============================================================================
// HISTORY DTOs
// =============================================================================

// HistoryDTO is one audit-trail entry.
type HistoryDTO struct {
	ID           string         `json:"id"`
	EmploymentID string         `json:"employment_id"`
	Reason       string         `json:"reason"`
	Before       map[string]any `json:"before,omitempty"`
	After        map[string]any `json:"after,omitempty"`
	CreatedAt    string         `json:"created_at"`
}

// =============================================================================
// ERROR DTOs
// =============================================================================

// ErrorResponse is the standard error shape.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
