/*
store.go - Persistence interfaces for employments, allocations, and history

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations back this with SQLite or in-memory storage.

KEY INTERFACES:
  Store:   Employment, allocation, and history persistence
  TxStore: Store plus atomic multi-table transactions

ATOMICITY CONTRACT:
  Allocation replacement (delete old set + insert new set + employment
  touch) and the probation transition (allocation updates + history entry
  + completed flag) each run inside one WithTx call. A reader never
  observes an employment with a partially applied set.

COMPARE-AND-SET:
  MarkProbationCompleted flips the flag only when it is still false and
  returns ErrAlreadyProcessed otherwise. Whichever of two racing triggers
  commits first wins; the loser performs no work.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go:  Production SQLite
  - funding/store/memory.go: In-memory for testing
*/
package funding

import "context"

// =============================================================================
// STORE
// =============================================================================

type EmploymentStore interface {
	// SaveEmployment inserts or updates an employment record.
	SaveEmployment(ctx context.Context, emp Employment) error

	// GetEmployment returns nil, ErrEmploymentNotFound when absent.
	GetEmployment(ctx context.Context, id EmploymentID) (*Employment, error)

	ListEmployments(ctx context.Context) ([]Employment, error)

	// ListDueEmployments returns employments whose probation-end date is on
	// or before asOf and whose transition has not run. Input to the sweep.
	ListDueEmployments(ctx context.Context, asOf Date) ([]Employment, error)

	// MarkProbationCompleted is the compare-and-set guard: it flips
	// probation_completed false -> true, or fails with ErrAlreadyProcessed.
	MarkProbationCompleted(ctx context.Context, id EmploymentID) error
}

type AllocationStore interface {
	// ReplaceAllocations deletes the employment's prior set and inserts the
	// new one. Full-replace semantics; there is no partial patch.
	ReplaceAllocations(ctx context.Context, employmentID EmploymentID, allocs []Allocation) error

	// UpdateAllocationAmounts rewrites amount, basis, and updated-at for
	// existing rows. Used only by the probation transition.
	UpdateAllocationAmounts(ctx context.Context, allocs []Allocation) error

	GetAllocations(ctx context.Context, employmentID EmploymentID) ([]Allocation, error)
}

type HistoryStore interface {
	// AppendHistory writes one immutable audit entry.
	AppendHistory(ctx context.Context, entry HistoryEntry) error

	GetHistory(ctx context.Context, employmentID EmploymentID) ([]HistoryEntry, error)
}

// Store bundles the three record families the engine touches.
type Store interface {
	EmploymentStore
	AllocationStore
	HistoryStore
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support. If fn returns an error the
// transaction is rolled back and none of its writes are visible.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
