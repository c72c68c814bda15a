package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/funding-engine/funding"
	"github.com/warp/funding-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testEmployment(id string) funding.Employment {
	probEnd := funding.NewDate(2025, time.June, 1)
	probSalary := dec("40000")
	return funding.Employment{
		ID:                  funding.EmploymentID(id),
		EmployeeID:          "emp-1",
		StartDate:           funding.NewDate(2025, time.March, 1),
		ProbationEndDate:    &probEnd,
		ProbationSalary:     &probSalary,
		PostProbationSalary: dec("50000"),
		HealthBenefit:       funding.BenefitSetting{Enabled: true, Percentage: dec("5")},
	}
}

func testAllocation(id, empID string, source funding.FundingSource, ftePercent, amount string) funding.Allocation {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	return funding.Allocation{
		ID:           funding.AllocationID(id),
		EmploymentID: funding.EmploymentID(empID),
		Source:       source,
		FTE:          funding.FractionFromPercent(dec(ftePercent)),
		Amount:       dec(amount),
		Basis:        funding.BasisProbation,
		Status:       funding.AllocationActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// =============================================================================
// EMPLOYMENT ROUNDTRIP TESTS
// =============================================================================

func TestEmployment_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEmployment(ctx, testEmployment("e-1")))

	got, err := store.GetEmployment(ctx, "e-1")
	require.NoError(t, err)

	assert.Equal(t, funding.EmploymentID("e-1"), got.ID)
	assert.Equal(t, "2025-03-01", got.StartDate.String())
	require.NotNil(t, got.ProbationEndDate)
	assert.Equal(t, "2025-06-01", got.ProbationEndDate.String())
	require.NotNil(t, got.ProbationSalary)
	assert.True(t, got.ProbationSalary.Equal(dec("40000")))
	assert.True(t, got.PostProbationSalary.Equal(dec("50000")))
	assert.False(t, got.ProbationCompleted)
	assert.True(t, got.HealthBenefit.Enabled)
	assert.True(t, got.HealthBenefit.Percentage.Equal(dec("5")))
	assert.False(t, got.PensionBenefit.Enabled)
}

func TestEmployment_NullableFields(t *testing.T) {
	// No probation window at all
	store := newTestStore(t)
	ctx := context.Background()

	emp := testEmployment("e-1")
	emp.ProbationEndDate = nil
	emp.ProbationSalary = nil
	require.NoError(t, store.SaveEmployment(ctx, emp))

	got, err := store.GetEmployment(ctx, "e-1")
	require.NoError(t, err)
	assert.Nil(t, got.ProbationEndDate)
	assert.Nil(t, got.ProbationSalary)
}

func TestEmployment_UpsertKeepsIdentity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEmployment(ctx, testEmployment("e-1")))

	updated := testEmployment("e-1")
	updated.PostProbationSalary = dec("55000")
	require.NoError(t, store.SaveEmployment(ctx, updated))

	got, err := store.GetEmployment(ctx, "e-1")
	require.NoError(t, err)
	assert.True(t, got.PostProbationSalary.Equal(dec("55000")))

	all, err := store.ListEmployments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEmployment_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetEmployment(context.Background(), "ghost")
	assert.ErrorIs(t, err, funding.ErrEmploymentNotFound)
}

// =============================================================================
// DUE LISTING TESTS
// =============================================================================

func TestListDueEmployments_FiltersByDateAndFlag(t *testing.T) {
	// GIVEN: Employments due, not yet due, completed, and windowless
	// WHEN: Listing due as of June 15
	// THEN: Only the uncompleted past-end-date one surfaces

	store := newTestStore(t)
	ctx := context.Background()

	due := testEmployment("due")
	require.NoError(t, store.SaveEmployment(ctx, due))

	notDue := testEmployment("not-due")
	later := funding.NewDate(2025, time.December, 1)
	notDue.ProbationEndDate = &later
	require.NoError(t, store.SaveEmployment(ctx, notDue))

	done := testEmployment("done")
	done.ProbationCompleted = true
	require.NoError(t, store.SaveEmployment(ctx, done))

	windowless := testEmployment("windowless")
	windowless.ProbationEndDate = nil
	require.NoError(t, store.SaveEmployment(ctx, windowless))

	listed, err := store.ListDueEmployments(ctx, funding.NewDate(2025, time.June, 15))
	require.NoError(t, err)

	require.Len(t, listed, 1)
	assert.Equal(t, funding.EmploymentID("due"), listed[0].ID)
}

func TestListDueEmployments_EndDateInclusive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployment(ctx, testEmployment("e-1")))

	listed, err := store.ListDueEmployments(ctx, funding.NewDate(2025, time.June, 1))
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

// =============================================================================
// COMPARE-AND-SET TESTS
// =============================================================================

func TestMarkProbationCompleted_FirstWins(t *testing.T) {
	// GIVEN: An uncompleted employment
	// WHEN: Marking twice
	// THEN: First succeeds, second gets ErrAlreadyProcessed

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployment(ctx, testEmployment("e-1")))

	require.NoError(t, store.MarkProbationCompleted(ctx, "e-1"))

	err := store.MarkProbationCompleted(ctx, "e-1")
	assert.ErrorIs(t, err, funding.ErrAlreadyProcessed)

	got, err := store.GetEmployment(ctx, "e-1")
	require.NoError(t, err)
	assert.True(t, got.ProbationCompleted)
}

func TestMarkProbationCompleted_UnknownEmployment(t *testing.T) {
	store := newTestStore(t)

	err := store.MarkProbationCompleted(context.Background(), "ghost")
	assert.ErrorIs(t, err, funding.ErrEmploymentNotFound)
}

// =============================================================================
// ALLOCATION TESTS
// =============================================================================

func TestAllocations_ReplaceAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployment(ctx, testEmployment("e-1")))

	allocs := []funding.Allocation{
		testAllocation("a-1", "e-1", funding.GrantSlot("grant-1"), "70", "28000"),
		testAllocation("a-2", "e-1", funding.OrgFund("fund-1"), "30", "12000"),
	}
	require.NoError(t, store.ReplaceAllocations(ctx, "e-1", allocs))

	got, err := store.GetAllocations(ctx, "e-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "grant_slot:grant-1", got[0].Source.Key())
	assert.True(t, got[0].FTE.Equal(dec("0.7")))
	assert.True(t, got[0].Amount.Equal(dec("28000")))
	assert.Equal(t, funding.BasisProbation, got[0].Basis)
	assert.Equal(t, "org_fund:fund-1", got[1].Source.Key())
}

func TestAllocations_ReplaceDropsPriorSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployment(ctx, testEmployment("e-1")))

	require.NoError(t, store.ReplaceAllocations(ctx, "e-1", []funding.Allocation{
		testAllocation("a-1", "e-1", funding.GrantSlot("grant-1"), "70", "28000"),
		testAllocation("a-2", "e-1", funding.OrgFund("fund-1"), "30", "12000"),
	}))
	require.NoError(t, store.ReplaceAllocations(ctx, "e-1", []funding.Allocation{
		testAllocation("a-3", "e-1", funding.GrantSlot("grant-2"), "100", "40000"),
	}))

	got, err := store.GetAllocations(ctx, "e-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, funding.AllocationID("a-3"), got[0].ID)
}

func TestAllocations_DuplicateSourceConstraint(t *testing.T) {
	// The unique partial index backs up the validator at storage level.
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployment(ctx, testEmployment("e-1")))

	err := store.ReplaceAllocations(ctx, "e-1", []funding.Allocation{
		testAllocation("a-1", "e-1", funding.GrantSlot("grant-1"), "50", "20000"),
		testAllocation("a-2", "e-1", funding.GrantSlot("grant-1"), "50", "20000"),
	})
	assert.ErrorIs(t, err, funding.ErrDuplicateFundingSource)
}

func TestUpdateAllocationAmounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployment(ctx, testEmployment("e-1")))

	alloc := testAllocation("a-1", "e-1", funding.GrantSlot("grant-1"), "100", "40000")
	require.NoError(t, store.ReplaceAllocations(ctx, "e-1", []funding.Allocation{alloc}))

	alloc.Amount = dec("50000")
	alloc.Basis = funding.BasisPostProbation
	alloc.UpdatedAt = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateAllocationAmounts(ctx, []funding.Allocation{alloc}))

	got, err := store.GetAllocations(ctx, "e-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(dec("50000")))
	assert.Equal(t, funding.BasisPostProbation, got[0].Basis)
	// FTE untouched by an amount update
	assert.True(t, got[0].FTE.Equal(dec("1")))
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestHistory_AppendAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := funding.HistoryEntry{
		ID:           "h-1",
		EmploymentID: "e-1",
		Reason:       "employment created",
		After:        map[string]any{"post_probation_salary": "50000"},
		CreatedAt:    time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.AppendHistory(ctx, entry))

	got, err := store.GetHistory(ctx, "e-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "employment created", got[0].Reason)
	assert.Nil(t, got[0].Before)
	assert.Equal(t, "50000", got[0].After["post_probation_salary"])
}

func TestHistory_ChronologicalOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	for i, reason := range []string{"first", "second", "third"} {
		require.NoError(t, store.AppendHistory(ctx, funding.HistoryEntry{
			ID:           reason,
			EmploymentID: "e-1",
			Reason:       reason,
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		}))
	}

	got, err := store.GetHistory(ctx, "e-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Reason)
	assert.Equal(t, "third", got[2].Reason)
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that writes then fails
	// WHEN: WithTx returns the error
	// THEN: Nothing is visible afterwards

	store := newTestStore(t)
	ctx := context.Background()

	sentinel := funding.ErrPersistenceConflict
	err := store.WithTx(ctx, func(tx funding.Store) error {
		if err := tx.SaveEmployment(ctx, testEmployment("e-1")); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	_, err = store.GetEmployment(ctx, "e-1")
	assert.ErrorIs(t, err, funding.ErrEmploymentNotFound)
}

func TestWithTx_CommitsAllWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx funding.Store) error {
		if err := tx.SaveEmployment(ctx, testEmployment("e-1")); err != nil {
			return err
		}
		if err := tx.ReplaceAllocations(ctx, "e-1", []funding.Allocation{
			testAllocation("a-1", "e-1", funding.GrantSlot("grant-1"), "100", "40000"),
		}); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, funding.HistoryEntry{
			ID:           "h-1",
			EmploymentID: "e-1",
			Reason:       "seeded",
			CreatedAt:    time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	_, err = store.GetEmployment(ctx, "e-1")
	assert.NoError(t, err)
	allocs, err := store.GetAllocations(ctx, "e-1")
	require.NoError(t, err)
	assert.Len(t, allocs, 1)
	history, err := store.GetHistory(ctx, "e-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestWithTx_CASInsideTransaction(t *testing.T) {
	// The transition pattern: CAS then dependent writes, atomically.
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployment(ctx, testEmployment("e-1")))

	err := store.WithTx(ctx, func(tx funding.Store) error {
		return tx.MarkProbationCompleted(ctx, "e-1")
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx funding.Store) error {
		return tx.MarkProbationCompleted(ctx, "e-1")
	})
	assert.ErrorIs(t, err, funding.ErrAlreadyProcessed)
}

// =============================================================================
// SWEEP RUN TESTS
// =============================================================================

func TestSweepRuns_SaveAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2025, time.June, 15, 6, 0, 0, 0, time.UTC)
	completed := started.Add(2 * time.Second)

	run := sqlite.SweepRun{
		ID:          "run-1",
		SweptAt:     started,
		Status:      "running",
		StartedAt:   &started,
		CreatedAt:   started,
	}
	require.NoError(t, store.SaveSweepRun(ctx, run))

	run.Status = "completed"
	run.Processed = 3
	run.Failed = 1
	run.CompletedAt = &completed
	require.NoError(t, store.SaveSweepRun(ctx, run))

	runs, err := store.GetSweepRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, 3, runs[0].Processed)
	assert.Equal(t, 1, runs[0].Failed)
	require.NotNil(t, runs[0].CompletedAt)
}

func TestSweepRuns_StatusFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.SaveSweepRun(ctx, sqlite.SweepRun{
		ID: "run-ok", SweptAt: now, Status: "completed", CreatedAt: now,
	}))
	require.NoError(t, store.SaveSweepRun(ctx, sqlite.SweepRun{
		ID: "run-bad", SweptAt: now, Status: "failed", CreatedAt: now.Add(time.Minute),
	}))

	failed, err := store.GetSweepRuns(ctx, "failed")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "run-bad", failed[0].ID)
}
