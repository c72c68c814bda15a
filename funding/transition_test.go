package funding_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/funding-engine/funding"
	memstore "github.com/warp/funding-engine/funding/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestProcessor(t *testing.T) (*funding.Processor, *memstore.TxMemory) {
	t.Helper()
	store := memstore.NewTxMemory()
	proc := funding.NewProcessor(store, funding.DefaultSettings())
	proc.Now = func() funding.Date { return date(2025, time.June, 15) }
	return proc, store
}

// seedProbationState stores an employment mid-probation with a 70/30
// allocation set computed on the probation salary.
func seedProbationState(t *testing.T, store *memstore.TxMemory) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.SaveEmployment(ctx, probationEmployment("e-1")))

	svc := funding.NewService(store, funding.DefaultSettings())
	svc.Now = func() funding.Date { return date(2025, time.March, 1) }

	_, err := svc.ReplaceAllocations(ctx, "e-1", []funding.AllocationRequest{
		grantReq("grant-1", "70"),
		orgReq("fund-1", "30"),
	})
	require.NoError(t, err)
}

// =============================================================================
// TRANSITION TESTS
// =============================================================================

func TestCompleteProbation_RecomputesOnPostSalary(t *testing.T) {
	// GIVEN: 70/30 allocations computed on the 40000 probation salary
	// WHEN: Completing probation
	// THEN: Both allocations now derive from the 50000 post salary

	proc, store := newTestProcessor(t)
	seedProbationState(t, store)
	ctx := context.Background()

	// Seeded amounts are on the probation basis
	before, err := store.GetAllocations(ctx, "e-1")
	require.NoError(t, err)
	require.True(t, before[0].Amount.Equal(dec("28000")), "got %s", before[0].Amount)
	require.Equal(t, funding.BasisProbation, before[0].Basis)

	result, err := proc.CompleteProbation(ctx, "e-1")
	require.NoError(t, err)

	require.Len(t, result.Updated, 2)
	assert.True(t, result.Updated[0].Amount.Equal(dec("35000")), "got %s", result.Updated[0].Amount)
	assert.True(t, result.Updated[1].Amount.Equal(dec("15000")), "got %s", result.Updated[1].Amount)
	assert.Equal(t, funding.BasisPostProbation, result.Updated[0].Basis)
	assert.True(t, result.Employment.ProbationCompleted)

	// Persisted state matches the result
	after, err := store.GetAllocations(ctx, "e-1")
	require.NoError(t, err)
	assert.True(t, after[0].Amount.Equal(dec("35000")))
	assert.Equal(t, funding.BasisPostProbation, after[1].Basis)
}

func TestCompleteProbation_FTESharesUnchanged(t *testing.T) {
	// The transition changes amounts, never the FTE split.
	proc, store := newTestProcessor(t)
	seedProbationState(t, store)
	ctx := context.Background()

	result, err := proc.CompleteProbation(ctx, "e-1")
	require.NoError(t, err)

	assert.True(t, result.Updated[0].FTEPercent().Equal(dec("70")))
	assert.True(t, result.Updated[1].FTEPercent().Equal(dec("30")))
}

func TestCompleteProbation_UsesProbationEndAsTransitionDate(t *testing.T) {
	proc, store := newTestProcessor(t)
	seedProbationState(t, store)

	result, err := proc.CompleteProbation(context.Background(), "e-1")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", result.TransitionDate.String())
}

func TestCompleteProbation_WritesHistory(t *testing.T) {
	proc, store := newTestProcessor(t)
	seedProbationState(t, store)
	ctx := context.Background()

	_, err := proc.CompleteProbation(ctx, "e-1")
	require.NoError(t, err)

	history, err := store.GetHistory(ctx, "e-1")
	require.NoError(t, err)
	require.Len(t, history, 2) // replacement + transition
	last := history[len(history)-1]
	assert.Contains(t, last.Reason, "probation completed")
	assert.NotNil(t, last.Before)
	assert.NotNil(t, last.After)
}

// =============================================================================
// IDEMPOTENCE TESTS
// =============================================================================

func TestCompleteProbation_SecondCallRejected(t *testing.T) {
	// GIVEN: A completed transition
	// WHEN: Triggering it again
	// THEN: ErrAlreadyProcessed with zero new writes

	proc, store := newTestProcessor(t)
	seedProbationState(t, store)
	ctx := context.Background()

	_, err := proc.CompleteProbation(ctx, "e-1")
	require.NoError(t, err)

	historyBefore, err := store.GetHistory(ctx, "e-1")
	require.NoError(t, err)
	allocsBefore, err := store.GetAllocations(ctx, "e-1")
	require.NoError(t, err)

	_, err = proc.CompleteProbation(ctx, "e-1")
	require.ErrorIs(t, err, funding.ErrAlreadyProcessed)

	historyAfter, err := store.GetHistory(ctx, "e-1")
	require.NoError(t, err)
	allocsAfter, err := store.GetAllocations(ctx, "e-1")
	require.NoError(t, err)

	assert.Len(t, historyAfter, len(historyBefore))
	for i := range allocsBefore {
		assert.True(t, allocsAfter[i].Amount.Equal(allocsBefore[i].Amount))
		assert.True(t, allocsAfter[i].UpdatedAt.Equal(allocsBefore[i].UpdatedAt))
	}
}

func TestCompleteProbation_AlreadyCompletedFlag(t *testing.T) {
	proc, store := newTestProcessor(t)
	ctx := context.Background()

	emp := probationEmployment("e-1")
	emp.ProbationCompleted = true
	require.NoError(t, store.SaveEmployment(ctx, emp))

	_, err := proc.CompleteProbation(ctx, "e-1")
	assert.ErrorIs(t, err, funding.ErrAlreadyProcessed)
}

func TestCompleteProbation_NoProbationSalary(t *testing.T) {
	proc, store := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployment(ctx, regularEmployment("e-1")))

	_, err := proc.CompleteProbation(ctx, "e-1")
	assert.ErrorIs(t, err, funding.ErrMissingProbationSalary)
}

func TestCompleteProbation_UnknownEmployment(t *testing.T) {
	proc, _ := newTestProcessor(t)

	_, err := proc.CompleteProbation(context.Background(), "ghost")
	assert.ErrorIs(t, err, funding.ErrEmploymentNotFound)
}

func TestCompleteProbation_EmptyAllocationSetStillCompletes(t *testing.T) {
	// An employment without allocations can still finish probation; only
	// the flag flips.
	proc, store := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployment(ctx, probationEmployment("e-1")))

	result, err := proc.CompleteProbation(ctx, "e-1")
	require.NoError(t, err)
	assert.Empty(t, result.Updated)
	assert.True(t, result.Employment.ProbationCompleted)
}

// =============================================================================
// SWEEP TESTS
// =============================================================================

func TestRunDailySweep_ProcessesDueEmployments(t *testing.T) {
	// GIVEN: One DUE employment, one NOT_DUE, one COMPLETED
	// WHEN: Sweeping on June 15
	// THEN: Exactly the DUE one is processed

	proc, store := newTestProcessor(t)
	ctx := context.Background()

	due := probationEmployment("due")
	require.NoError(t, store.SaveEmployment(ctx, due))

	notDue := probationEmployment("not-due")
	notDue.ProbationEndDate = datePtr(2025, time.December, 1)
	require.NoError(t, store.SaveEmployment(ctx, notDue))

	done := probationEmployment("done")
	done.ProbationCompleted = true
	require.NoError(t, store.SaveEmployment(ctx, done))

	summary, err := proc.RunDailySweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Empty(t, summary.Failed)

	swept, err := store.GetEmployment(ctx, "due")
	require.NoError(t, err)
	assert.True(t, swept.ProbationCompleted)

	untouched, err := store.GetEmployment(ctx, "not-due")
	require.NoError(t, err)
	assert.False(t, untouched.ProbationCompleted)
}

func TestRunDailySweep_FailureIsolation(t *testing.T) {
	// GIVEN: Two DUE employments, one with a broken salary state
	// WHEN: Sweeping
	// THEN: The healthy one completes; the broken one lands in Failed

	proc, store := newTestProcessor(t)
	ctx := context.Background()

	healthy := probationEmployment("healthy")
	require.NoError(t, store.SaveEmployment(ctx, healthy))

	broken := probationEmployment("broken")
	broken.ProbationSalary = nil // due, but nothing to transition from
	require.NoError(t, store.SaveEmployment(ctx, broken))

	summary, err := proc.RunDailySweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, funding.EmploymentID("broken"), summary.Failed[0].EmploymentID)

	swept, err := store.GetEmployment(ctx, "healthy")
	require.NoError(t, err)
	assert.True(t, swept.ProbationCompleted)
}

func TestRunDailySweep_RerunIsNoOp(t *testing.T) {
	// Restart safety: a second sweep finds nothing due.
	proc, store := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployment(ctx, probationEmployment("e-1")))

	first, err := proc.RunDailySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Processed)

	second, err := proc.RunDailySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed)
	assert.Empty(t, second.Failed)
}

func TestRunDailySweep_DueOnExactEndDate(t *testing.T) {
	// Probation ending today is DUE (end date is the first post day).
	proc, store := newTestProcessor(t)
	ctx := context.Background()

	emp := probationEmployment("e-1")
	emp.ProbationEndDate = datePtr(2025, time.June, 15)
	require.NoError(t, store.SaveEmployment(ctx, emp))

	summary, err := proc.RunDailySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
}
