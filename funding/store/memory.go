// Package store provides funding.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/funding-engine/funding"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	employments map[funding.EmploymentID]funding.Employment
	allocations map[funding.EmploymentID][]funding.Allocation
	history     map[funding.EmploymentID][]funding.HistoryEntry
}

func NewMemory() *Memory {
	return &Memory{
		employments: make(map[funding.EmploymentID]funding.Employment),
		allocations: make(map[funding.EmploymentID][]funding.Allocation),
		history:     make(map[funding.EmploymentID][]funding.HistoryEntry),
	}
}

// =============================================================================
// EMPLOYMENTS
// =============================================================================

func (m *Memory) SaveEmployment(_ context.Context, emp funding.Employment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveEmploymentLocked(emp)
}

func (m *Memory) saveEmploymentLocked(emp funding.Employment) error {
	m.employments[emp.ID] = emp
	return nil
}

func (m *Memory) GetEmployment(_ context.Context, id funding.EmploymentID) (*funding.Employment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEmploymentLocked(id)
}

func (m *Memory) getEmploymentLocked(id funding.EmploymentID) (*funding.Employment, error) {
	emp, ok := m.employments[id]
	if !ok {
		return nil, funding.ErrEmploymentNotFound
	}
	return &emp, nil
}

func (m *Memory) ListEmployments(_ context.Context) ([]funding.Employment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]funding.Employment, 0, len(m.employments))
	for _, emp := range m.employments {
		result = append(result, emp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) ListDueEmployments(_ context.Context, asOf funding.Date) ([]funding.Employment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []funding.Employment
	for _, emp := range m.employments {
		if emp.TransitionState(asOf) == funding.StateDue {
			due = append(due, emp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (m *Memory) MarkProbationCompleted(_ context.Context, id funding.EmploymentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markProbationCompletedLocked(id)
}

func (m *Memory) markProbationCompletedLocked(id funding.EmploymentID) error {
	emp, ok := m.employments[id]
	if !ok {
		return funding.ErrEmploymentNotFound
	}
	if emp.ProbationCompleted {
		return funding.ErrAlreadyProcessed
	}
	emp.ProbationCompleted = true
	m.employments[id] = emp
	return nil
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

func (m *Memory) ReplaceAllocations(_ context.Context, employmentID funding.EmploymentID, allocs []funding.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaceAllocationsLocked(employmentID, allocs)
}

func (m *Memory) replaceAllocationsLocked(employmentID funding.EmploymentID, allocs []funding.Allocation) error {
	copied := make([]funding.Allocation, len(allocs))
	copy(copied, allocs)
	m.allocations[employmentID] = copied
	return nil
}

func (m *Memory) UpdateAllocationAmounts(_ context.Context, allocs []funding.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateAllocationAmountsLocked(allocs)
}

func (m *Memory) updateAllocationAmountsLocked(allocs []funding.Allocation) error {
	for _, updated := range allocs {
		existing := m.allocations[updated.EmploymentID]
		for i, a := range existing {
			if a.ID == updated.ID {
				existing[i] = updated
			}
		}
	}
	return nil
}

func (m *Memory) GetAllocations(_ context.Context, employmentID funding.EmploymentID) ([]funding.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAllocationsLocked(employmentID)
}

func (m *Memory) getAllocationsLocked(employmentID funding.EmploymentID) ([]funding.Allocation, error) {
	result := make([]funding.Allocation, len(m.allocations[employmentID]))
	copy(result, m.allocations[employmentID])
	return result, nil
}

// =============================================================================
// HISTORY
// =============================================================================

func (m *Memory) AppendHistory(_ context.Context, entry funding.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendHistoryLocked(entry)
}

func (m *Memory) appendHistoryLocked(entry funding.HistoryEntry) error {
	m.history[entry.EmploymentID] = append(m.history[entry.EmploymentID], entry)
	return nil
}

func (m *Memory) GetHistory(_ context.Context, employmentID funding.EmploymentID) ([]funding.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]funding.HistoryEntry, len(m.history[employmentID]))
	copy(result, m.history[employmentID])
	return result, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support, simulated with a
// snapshot + rollback on error.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

func (tm *TxMemory) WithTx(ctx context.Context, fn func(funding.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	employments map[funding.EmploymentID]funding.Employment
	allocations map[funding.EmploymentID][]funding.Allocation
	history     map[funding.EmploymentID][]funding.HistoryEntry
}

func (tm *TxMemory) snapshot() memorySnapshot {
	emps := make(map[funding.EmploymentID]funding.Employment, len(tm.employments))
	for k, v := range tm.employments {
		emps[k] = v
	}
	allocs := make(map[funding.EmploymentID][]funding.Allocation, len(tm.allocations))
	for k, v := range tm.allocations {
		allocs[k] = append([]funding.Allocation{}, v...)
	}
	hist := make(map[funding.EmploymentID][]funding.HistoryEntry, len(tm.history))
	for k, v := range tm.history {
		hist[k] = append([]funding.HistoryEntry{}, v...)
	}
	return memorySnapshot{employments: emps, allocations: allocs, history: hist}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.employments = s.employments
	tm.allocations = s.allocations
	tm.history = s.history
}

// txMemoryView routes store calls to the parent's unlocked internals while
// WithTx holds the write lock.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) SaveEmployment(_ context.Context, emp funding.Employment) error {
	return tv.parent.saveEmploymentLocked(emp)
}

func (tv *txMemoryView) GetEmployment(_ context.Context, id funding.EmploymentID) (*funding.Employment, error) {
	return tv.parent.getEmploymentLocked(id)
}

func (tv *txMemoryView) ListEmployments(_ context.Context) ([]funding.Employment, error) {
	result := make([]funding.Employment, 0, len(tv.parent.employments))
	for _, emp := range tv.parent.employments {
		result = append(result, emp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (tv *txMemoryView) ListDueEmployments(_ context.Context, asOf funding.Date) ([]funding.Employment, error) {
	var due []funding.Employment
	for _, emp := range tv.parent.employments {
		if emp.TransitionState(asOf) == funding.StateDue {
			due = append(due, emp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (tv *txMemoryView) MarkProbationCompleted(_ context.Context, id funding.EmploymentID) error {
	return tv.parent.markProbationCompletedLocked(id)
}

func (tv *txMemoryView) ReplaceAllocations(_ context.Context, employmentID funding.EmploymentID, allocs []funding.Allocation) error {
	return tv.parent.replaceAllocationsLocked(employmentID, allocs)
}

func (tv *txMemoryView) UpdateAllocationAmounts(_ context.Context, allocs []funding.Allocation) error {
	return tv.parent.updateAllocationAmountsLocked(allocs)
}

func (tv *txMemoryView) GetAllocations(_ context.Context, employmentID funding.EmploymentID) ([]funding.Allocation, error) {
	return tv.parent.getAllocationsLocked(employmentID)
}

func (tv *txMemoryView) AppendHistory(_ context.Context, entry funding.HistoryEntry) error {
	return tv.parent.appendHistoryLocked(entry)
}

func (tv *txMemoryView) GetHistory(_ context.Context, employmentID funding.EmploymentID) ([]funding.HistoryEntry, error) {
	return tv.parent.history[employmentID], nil
}
