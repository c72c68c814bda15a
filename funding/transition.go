/*
transition.go - Probation transition processor and daily sweep

PURPOSE:
  Moves all of an employment's active allocations from the probation
  salary basis to the post-probation basis, exactly once, with audit
  logging. Triggered explicitly (manual "complete probation") or by the
  daily sweep over DUE employments.

STATE MACHINE (per employment):
  NOT_DUE   -> probation-end date in the future
  DUE       -> today >= probation-end date, flag still false
  COMPLETED -> terminal; re-triggering fails with ErrAlreadyProcessed

ATOMICITY:
  The recompute, the history entry, and the completed-flag flip commit in
  one store transaction. On any failure nothing is modified and the
  employment stays DUE. Concurrent triggers are serialized by the store's
  compare-and-set on the flag; the loser observes ErrAlreadyProcessed.

SWEEP:
  RunDailySweep processes each DUE employment independently. One
  employment's failure never aborts the batch; failures are collected
  into the summary for observability.
*/
package funding

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
)

// =============================================================================
// PROCESSOR
// =============================================================================

type Processor struct {
	store    TxStore
	calc     *Calculator
	settings Settings

	// Now is injectable for tests; defaults to Today.
	Now func() Date
}

func NewProcessor(store TxStore, settings Settings) *Processor {
	return &Processor{
		store:    store,
		calc:     NewCalculator(settings),
		settings: settings,
		Now:      Today,
	}
}

// TransitionResult reports the outcome of one completed transition.
type TransitionResult struct {
	Employment     Employment
	Updated        []Allocation
	TransitionDate Date
}

// CompleteProbation recomputes every allocation of the employment on the
// post-probation basis and marks the transition done. Idempotent at the
// state-machine level: a second call fails with ErrAlreadyProcessed and
// performs zero writes.
func (p *Processor) CompleteProbation(ctx context.Context, employmentID EmploymentID) (*TransitionResult, error) {
	emp, err := p.store.GetEmployment(ctx, employmentID)
	if err != nil {
		return nil, err
	}
	if emp.ProbationCompleted {
		return nil, ErrAlreadyProcessed
	}
	if emp.ProbationSalary == nil {
		// Nothing to transition from.
		return nil, ErrMissingProbationSalary
	}

	transitionDate := p.Now()
	if emp.ProbationEndDate != nil {
		transitionDate = *emp.ProbationEndDate
	}

	allocs, err := p.store.GetAllocations(ctx, employmentID)
	if err != nil {
		return nil, err
	}

	// Forcing the snapshot's probation salary to nil forces the
	// post-probation basis through the regular calculator path.
	snap := emp.SalarySnapshot()
	snap.ProbationSalary = nil

	updated := make([]Allocation, len(allocs))
	before := allocationSnapshot(allocs)
	for i, a := range allocs {
		result, err := p.calc.CalculateOnBasis(snap, a.FTEPercent(), BasisPostProbation)
		if err != nil {
			return nil, err
		}
		a.Amount = result.Amount
		a.Basis = BasisPostProbation
		a.UpdatedAt = transitionDate.Time
		updated[i] = a
	}

	err = p.store.WithTx(ctx, func(tx Store) error {
		// CAS guard first: whichever racing trigger commits this wins.
		if err := tx.MarkProbationCompleted(ctx, employmentID); err != nil {
			return err
		}
		if err := tx.UpdateAllocationAmounts(ctx, updated); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, HistoryEntry{
			ID:           uuid.NewString(),
			EmploymentID: employmentID,
			Reason:       "probation completed: allocations moved to post-probation salary",
			Before:       before,
			After:        allocationSnapshot(updated),
		})
	})
	if err != nil {
		return nil, err
	}

	emp.ProbationCompleted = true
	return &TransitionResult{
		Employment:     *emp,
		Updated:        updated,
		TransitionDate: transitionDate,
	}, nil
}

// =============================================================================
// DAILY SWEEP
// =============================================================================

// SweepFailure records one employment the sweep could not process.
type SweepFailure struct {
	EmploymentID EmploymentID
	Err          string
}

// SweepSummary is the observability output of one sweep run. Nothing
// consumes it programmatically.
type SweepSummary struct {
	Processed int
	Failed    []SweepFailure
}

// RunDailySweep finds every DUE employment and completes its probation.
// Each employment is independent: a failure is recorded and the sweep
// moves on. Restart-safe by construction - already-completed employments
// are simply never listed as due again.
func (p *Processor) RunDailySweep(ctx context.Context) (*SweepSummary, error) {
	due, err := p.store.ListDueEmployments(ctx, p.Now())
	if err != nil {
		return nil, err
	}

	summary := &SweepSummary{}
	for _, emp := range due {
		if _, err := p.CompleteProbation(ctx, emp.ID); err != nil {
			if errors.Is(err, ErrAlreadyProcessed) {
				// A manual trigger won the race since we listed it.
				continue
			}
			log.Printf("[Sweep] employment %s failed: %v", emp.ID, err)
			summary.Failed = append(summary.Failed, SweepFailure{
				EmploymentID: emp.ID,
				Err:          err.Error(),
			})
			continue
		}
		summary.Processed++
	}
	return summary, nil
}
