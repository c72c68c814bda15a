/*
service.go - Allocation operations over a persistent store

PURPOSE:
  Orchestrates the calculator and validator against the store:

    CalculateAllocation:  pure read-only preview for one FTE percentage
    ReplaceAllocations:   validate, compute, and persist a full set
    CreateEmployment:     normalize and persist an employment + history
    UpdateEmployment:     persist field changes with a structured diff

FULL-REPLACE SEMANTICS:
  ReplaceAllocations always deletes the prior set and recreates the
  submitted one inside a single transaction together with the employment
  touch and a history entry. The 100%-total invariant is checked fresh on
  every call; failing sets leave no persisted trace.
*/
package funding

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service struct {
	store     TxStore
	calc      *Calculator
	validator *SetValidator
	settings  Settings

	// Now is injectable for tests; defaults to Today.
	Now func() Date
}

func NewService(store TxStore, settings Settings) *Service {
	return &Service{
		store:     store,
		calc:      NewCalculator(settings),
		validator: NewSetValidator(settings),
		settings:  settings,
		Now:       Today,
	}
}

func (s *Service) Calculator() *Calculator { return s.calc }

// =============================================================================
// EMPLOYMENT LIFECYCLE
// =============================================================================

// CreateEmployment normalizes, persists, and audits a new employment.
// A missing probation-end date is derived as start + 3 calendar months.
func (s *Service) CreateEmployment(ctx context.Context, emp Employment) (*Employment, error) {
	if emp.PostProbationSalary.LessThanOrEqual(decimal.Zero) {
		return nil, &MissingSalaryError{Basis: BasisPostProbation}
	}

	emp.Normalize(s.settings)

	err := s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.SaveEmployment(ctx, emp); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, HistoryEntry{
			ID:           uuid.NewString(),
			EmploymentID: emp.ID,
			Reason:       "employment created",
			After:        employmentSnapshot(emp),
		})
	})
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// UpdateEmployment persists field changes and records an old/new diff.
func (s *Service) UpdateEmployment(ctx context.Context, emp Employment, reason string) (*Employment, error) {
	if emp.PostProbationSalary.LessThanOrEqual(decimal.Zero) {
		return nil, &MissingSalaryError{Basis: BasisPostProbation}
	}

	prev, err := s.store.GetEmployment(ctx, emp.ID)
	if err != nil {
		return nil, err
	}

	// The completed flag only moves through the transition processor.
	emp.ProbationCompleted = prev.ProbationCompleted
	emp.Normalize(s.settings)

	if reason == "" {
		reason = "employment updated"
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.SaveEmployment(ctx, emp); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, HistoryEntry{
			ID:           uuid.NewString(),
			EmploymentID: emp.ID,
			Reason:       reason,
			Before:       employmentSnapshot(*prev),
			After:        employmentSnapshot(emp),
		})
	})
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// =============================================================================
// CALCULATION (read-only)
// =============================================================================

// CalculateAllocation previews the amount for one FTE percentage against the
// employment's current salary state. asOf defaults to today.
func (s *Service) CalculateAllocation(ctx context.Context, employmentID EmploymentID, ftePercent decimal.Decimal, asOf *Date) (*CalculationResult, error) {
	emp, err := s.store.GetEmployment(ctx, employmentID)
	if err != nil {
		return nil, err
	}

	at := s.Now()
	if asOf != nil {
		at = *asOf
	}
	return s.calc.Calculate(emp.SalarySnapshot(), ftePercent, at)
}

// =============================================================================
// FULL-REPLACE ALLOCATION SET
// =============================================================================

// ReplaceAllocations validates the proposed set, computes every amount, and
// atomically swaps the employment's allocation rows for the new set.
func (s *Service) ReplaceAllocations(ctx context.Context, employmentID EmploymentID, reqs []AllocationRequest) ([]Allocation, error) {
	if _, err := s.validator.Validate(reqs); err != nil {
		return nil, err
	}

	emp, err := s.store.GetEmployment(ctx, employmentID)
	if err != nil {
		return nil, err
	}

	asOf := s.Now()
	now := asOf.Time

	allocs := make([]Allocation, 0, len(reqs))
	for _, r := range reqs {
		result, err := s.calc.Calculate(emp.SalarySnapshot(), r.FTEPercent, asOf)
		if err != nil {
			return nil, err
		}
		allocs = append(allocs, Allocation{
			ID:           AllocationID(uuid.NewString()),
			EmploymentID: employmentID,
			Source:       r.Source,
			FTE:          FractionFromPercent(r.FTEPercent),
			Amount:       result.Amount,
			Basis:        result.Basis,
			Status:       AllocationActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	prior, err := s.store.GetAllocations(ctx, employmentID)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.ReplaceAllocations(ctx, employmentID, allocs); err != nil {
			return err
		}
		if err := tx.SaveEmployment(ctx, *emp); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, HistoryEntry{
			ID:           uuid.NewString(),
			EmploymentID: employmentID,
			Reason:       fmt.Sprintf("allocations replaced (%d sources)", len(allocs)),
			Before:       allocationSnapshot(prior),
			After:        allocationSnapshot(allocs),
		})
	})
	if err != nil {
		return nil, err
	}
	return allocs, nil
}

// =============================================================================
// SNAPSHOT HELPERS (history diffs)
// =============================================================================

func employmentSnapshot(emp Employment) map[string]any {
	snap := map[string]any{
		"start_date":            emp.StartDate.String(),
		"post_probation_salary": emp.PostProbationSalary.String(),
		"probation_completed":   emp.ProbationCompleted,
	}
	if emp.ProbationEndDate != nil {
		snap["probation_end_date"] = emp.ProbationEndDate.String()
	}
	if emp.ProbationSalary != nil {
		snap["probation_salary"] = emp.ProbationSalary.String()
	}
	return snap
}

func allocationSnapshot(allocs []Allocation) map[string]any {
	if len(allocs) == 0 {
		return nil
	}
	entries := make([]map[string]any, 0, len(allocs))
	for _, a := range allocs {
		entries = append(entries, map[string]any{
			"source": a.Source.Key(),
			"fte":    a.FTEPercent().String(),
			"amount": a.Amount.String(),
			"basis":  string(a.Basis),
		})
	}
	return map[string]any{"allocations": entries}
}
