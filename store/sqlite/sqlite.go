/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements funding.TxStore using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  employments: Salary figures, key dates, probation-completed flag
  allocations: Funding-source shares (full-replace lifecycle)
  history:     Immutable audit entries with JSON before/after diffs
  sweep_runs:  Daily sweep outcomes for observability

ATOMICITY:
  WithTx wraps allocation replacement and the probation transition so a
  reader never observes an employment with a partial set. The
  probation_completed flip is a compare-and-set UPDATE; a losing
  concurrent trigger gets funding.ErrAlreadyProcessed.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers don't
  block, single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/hrms.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - funding/store.go: Interface definitions
  - funding/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/funding-engine/funding"
)

// Store implements funding.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; one pooled connection also keeps
	// ":memory:" databases from fragmenting across connections.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employments (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		probation_end_date TEXT,
		probation_salary TEXT,
		post_probation_salary TEXT NOT NULL,
		probation_completed BOOLEAN NOT NULL DEFAULT FALSE,
		health_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		health_percentage TEXT NOT NULL DEFAULT '0',
		pension_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		pension_percentage TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employments_employee
		ON employments(employee_id);

	-- Sweep hot path: find DUE employments by probation-end date
	CREATE INDEX IF NOT EXISTS idx_employments_due
		ON employments(probation_end_date)
		WHERE probation_completed = FALSE;

	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		employment_id TEXT NOT NULL,
		source_kind TEXT NOT NULL,
		source_ref TEXT NOT NULL,
		fte TEXT NOT NULL,
		amount TEXT NOT NULL,
		basis TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_employment
		ON allocations(employment_id);

	-- A funding source appears at most once per employment's active set
	CREATE UNIQUE INDEX IF NOT EXISTS idx_allocations_unique_source
		ON allocations(employment_id, source_kind, source_ref)
		WHERE status = 'active';

	-- History (append-only audit trail)
	CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		employment_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		before_json TEXT,
		after_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_employment
		ON history(employment_id, created_at);

	CREATE TABLE IF NOT EXISTS sweep_runs (
		id TEXT PRIMARY KEY,
		swept_at TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		processed INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sweep_runs_status
		ON sweep_runs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// EMPLOYMENT STORE (funding.EmploymentStore interface)
// =============================================================================

// SaveEmployment inserts or updates an employment.
func (s *Store) SaveEmployment(ctx context.Context, emp funding.Employment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEmployment(ctx, s.db, emp)
}

func saveEmployment(ctx context.Context, db dbtx, emp funding.Employment) error {
	query := `
		INSERT INTO employments
		(id, employee_id, start_date, probation_end_date, probation_salary,
		 post_probation_salary, probation_completed,
		 health_enabled, health_percentage, pension_enabled, pension_percentage,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id,
			start_date = excluded.start_date,
			probation_end_date = excluded.probation_end_date,
			probation_salary = excluded.probation_salary,
			post_probation_salary = excluded.post_probation_salary,
			health_enabled = excluded.health_enabled,
			health_percentage = excluded.health_percentage,
			pension_enabled = excluded.pension_enabled,
			pension_percentage = excluded.pension_percentage,
			updated_at = excluded.updated_at
	`

	var probationEnd, probationSalary *string
	if emp.ProbationEndDate != nil {
		v := emp.ProbationEndDate.String()
		probationEnd = &v
	}
	if emp.ProbationSalary != nil {
		v := emp.ProbationSalary.String()
		probationSalary = &v
	}

	now := time.Now().UTC().Format(time.RFC3339)
	createdAt := now
	if !emp.CreatedAt.IsZero() {
		createdAt = emp.CreatedAt.UTC().Format(time.RFC3339)
	}

	_, err := db.ExecContext(ctx, query,
		emp.ID,
		emp.EmployeeID,
		emp.StartDate.String(),
		probationEnd,
		probationSalary,
		emp.PostProbationSalary.String(),
		emp.ProbationCompleted,
		emp.HealthBenefit.Enabled,
		emp.HealthBenefit.Percentage.String(),
		emp.PensionBenefit.Enabled,
		emp.PensionBenefit.Percentage.String(),
		createdAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save employment: %w", err)
	}
	return nil
}

const employmentColumns = `id, employee_id, start_date, probation_end_date, probation_salary,
	post_probation_salary, probation_completed,
	health_enabled, health_percentage, pension_enabled, pension_percentage,
	created_at, updated_at`

// GetEmployment retrieves an employment by ID.
func (s *Store) GetEmployment(ctx context.Context, id funding.EmploymentID) (*funding.Employment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEmployment(ctx, s.db, id)
}

func getEmployment(ctx context.Context, db dbtx, id funding.EmploymentID) (*funding.Employment, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+employmentColumns+" FROM employments WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, funding.ErrEmploymentNotFound
	}

	emp, err := scanEmployment(rows)
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// ListEmployments returns all employments.
func (s *Store) ListEmployments(ctx context.Context) ([]funding.Employment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEmployments(ctx, s.db,
		"SELECT "+employmentColumns+" FROM employments ORDER BY start_date, id")
}

// ListDueEmployments returns employments whose probation end date is on or
// before asOf and whose transition has not run yet.
func (s *Store) ListDueEmployments(ctx context.Context, asOf funding.Date) ([]funding.Employment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listDueEmployments(ctx, s.db, asOf)
}

func listDueEmployments(ctx context.Context, db dbtx, asOf funding.Date) ([]funding.Employment, error) {
	query := `
		SELECT ` + employmentColumns + `
		FROM employments
		WHERE probation_completed = FALSE
		  AND probation_end_date IS NOT NULL
		  AND probation_end_date <= ?
		ORDER BY probation_end_date, id
	`
	return queryEmployments(ctx, db, query, asOf.String())
}

// MarkProbationCompleted flips the flag with a compare-and-set UPDATE.
// Returns funding.ErrAlreadyProcessed when another trigger won.
func (s *Store) MarkProbationCompleted(ctx context.Context, id funding.EmploymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markProbationCompleted(ctx, s.db, id)
}

func markProbationCompleted(ctx context.Context, db dbtx, id funding.EmploymentID) error {
	res, err := db.ExecContext(ctx, `
		UPDATE employments
		SET probation_completed = TRUE, updated_at = ?
		WHERE id = ? AND probation_completed = FALSE
	`, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark probation completed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish "missing" from "lost the race".
		if _, err := getEmployment(ctx, db, id); err != nil {
			return err
		}
		return funding.ErrAlreadyProcessed
	}
	return nil
}

func queryEmployments(ctx context.Context, db dbtx, query string, args ...any) ([]funding.Employment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employments: %w", err)
	}
	defer rows.Close()

	var employments []funding.Employment
	for rows.Next() {
		emp, err := scanEmployment(rows)
		if err != nil {
			return nil, err
		}
		employments = append(employments, emp)
	}
	return employments, rows.Err()
}

func scanEmployment(rows *sql.Rows) (funding.Employment, error) {
	var (
		emp               funding.Employment
		startDate         string
		probationEnd      sql.NullString
		probationSalary   sql.NullString
		postSalary        string
		healthPercentage  string
		pensionPercentage string
		createdAt         string
		updatedAt         string
	)

	err := rows.Scan(
		&emp.ID, &emp.EmployeeID, &startDate, &probationEnd, &probationSalary,
		&postSalary, &emp.ProbationCompleted,
		&emp.HealthBenefit.Enabled, &healthPercentage,
		&emp.PensionBenefit.Enabled, &pensionPercentage,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return emp, fmt.Errorf("failed to scan employment: %w", err)
	}

	emp.StartDate, _ = funding.ParseDate(startDate)
	if probationEnd.Valid {
		if d, err := funding.ParseDate(probationEnd.String); err == nil {
			emp.ProbationEndDate = &d
		}
	}
	if probationSalary.Valid {
		d := mustDecimal(probationSalary.String)
		emp.ProbationSalary = &d
	}
	emp.PostProbationSalary = mustDecimal(postSalary)
	emp.HealthBenefit.Percentage = mustDecimal(healthPercentage)
	emp.PensionBenefit.Percentage = mustDecimal(pensionPercentage)
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	emp.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return emp, nil
}

// =============================================================================
// ALLOCATION STORE (funding.AllocationStore interface)
// =============================================================================

// ReplaceAllocations deletes the employment's prior set and inserts the new
// one. Callers needing atomicity with other writes use WithTx.
func (s *Store) ReplaceAllocations(ctx context.Context, employmentID funding.EmploymentID, allocs []funding.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return replaceAllocations(ctx, s.db, employmentID, allocs)
}

func replaceAllocations(ctx context.Context, db dbtx, employmentID funding.EmploymentID, allocs []funding.Allocation) error {
	if _, err := db.ExecContext(ctx,
		"DELETE FROM allocations WHERE employment_id = ?", employmentID); err != nil {
		return fmt.Errorf("failed to delete prior allocations: %w", err)
	}

	for _, a := range allocs {
		if err := insertAllocation(ctx, db, a); err != nil {
			return err
		}
	}
	return nil
}

func insertAllocation(ctx context.Context, db dbtx, a funding.Allocation) error {
	query := `
		INSERT INTO allocations
		(id, employment_id, source_kind, source_ref, fte, amount, basis, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		a.ID,
		a.EmploymentID,
		string(a.Source.Kind()),
		a.Source.Ref(),
		a.FTE.String(),
		a.Amount.String(),
		string(a.Basis),
		string(a.Status),
		a.CreatedAt.UTC().Format(time.RFC3339),
		a.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return funding.ErrDuplicateFundingSource
		}
		return fmt.Errorf("failed to insert allocation: %w", err)
	}
	return nil
}

// UpdateAllocationAmounts rewrites amount, basis, and updated-at for
// existing rows. Used by the probation transition.
func (s *Store) UpdateAllocationAmounts(ctx context.Context, allocs []funding.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateAllocationAmounts(ctx, s.db, allocs)
}

func updateAllocationAmounts(ctx context.Context, db dbtx, allocs []funding.Allocation) error {
	for _, a := range allocs {
		_, err := db.ExecContext(ctx, `
			UPDATE allocations
			SET amount = ?, basis = ?, updated_at = ?
			WHERE id = ?
		`, a.Amount.String(), string(a.Basis), a.UpdatedAt.UTC().Format(time.RFC3339), a.ID)
		if err != nil {
			return fmt.Errorf("failed to update allocation %s: %w", a.ID, err)
		}
	}
	return nil
}

// GetAllocations returns the employment's allocation set.
func (s *Store) GetAllocations(ctx context.Context, employmentID funding.EmploymentID) ([]funding.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAllocations(ctx, s.db, employmentID)
}

func getAllocations(ctx context.Context, db dbtx, employmentID funding.EmploymentID) ([]funding.Allocation, error) {
	query := `
		SELECT id, employment_id, source_kind, source_ref, fte, amount, basis, status, created_at, updated_at
		FROM allocations
		WHERE employment_id = ?
		ORDER BY created_at, id
	`

	rows, err := db.QueryContext(ctx, query, employmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var allocs []funding.Allocation
	for rows.Next() {
		var (
			a          funding.Allocation
			sourceKind string
			sourceRef  string
			fte        string
			amount     string
			createdAt  string
			updatedAt  string
		)
		if err := rows.Scan(&a.ID, &a.EmploymentID, &sourceKind, &sourceRef,
			&fte, &amount, &a.Basis, &a.Status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}

		if sourceKind == string(funding.SourceGrantSlot) {
			a.Source = funding.GrantSlot(sourceRef)
		} else {
			a.Source = funding.OrgFund(sourceRef)
		}
		a.FTE = mustDecimal(fte)
		a.Amount = mustDecimal(amount)
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

// =============================================================================
// HISTORY STORE (funding.HistoryStore interface)
// =============================================================================

// AppendHistory writes one immutable audit entry. No update or delete
// statements exist for the history table.
func (s *Store) AppendHistory(ctx context.Context, entry funding.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendHistory(ctx, s.db, entry)
}

func appendHistory(ctx context.Context, db dbtx, entry funding.HistoryEntry) error {
	var beforeJSON, afterJSON *string
	if entry.Before != nil {
		b, _ := json.Marshal(entry.Before)
		v := string(b)
		beforeJSON = &v
	}
	if entry.After != nil {
		b, _ := json.Marshal(entry.After)
		v := string(b)
		afterJSON = &v
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO history (id, employment_id, reason, before_json, after_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.EmploymentID, entry.Reason, beforeJSON, afterJSON,
		createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// GetHistory returns the employment's audit trail, oldest first.
func (s *Store) GetHistory(ctx context.Context, employmentID funding.EmploymentID) ([]funding.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getHistory(ctx, s.db, employmentID)
}

func getHistory(ctx context.Context, db dbtx, employmentID funding.EmploymentID) ([]funding.HistoryEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, employment_id, reason, before_json, after_json, created_at
		FROM history
		WHERE employment_id = ?
		ORDER BY created_at, id
	`, employmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []funding.HistoryEntry
	for rows.Next() {
		var (
			e          funding.HistoryEntry
			beforeJSON sql.NullString
			afterJSON  sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&e.ID, &e.EmploymentID, &e.Reason, &beforeJSON, &afterJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if beforeJSON.Valid {
			json.Unmarshal([]byte(beforeJSON.String), &e.Before)
		}
		if afterJSON.Valid {
			json.Unmarshal([]byte(afterJSON.String), &e.After)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (funding.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store funding.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", funding.ErrPersistenceConflict, err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", funding.ErrPersistenceConflict, err)
	}
	return nil
}

// txStore routes store calls to the open transaction. It never takes the
// parent mutex; WithTx already holds it.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveEmployment(ctx context.Context, emp funding.Employment) error {
	return saveEmployment(ctx, ts.tx, emp)
}

func (ts *txStore) GetEmployment(ctx context.Context, id funding.EmploymentID) (*funding.Employment, error) {
	return getEmployment(ctx, ts.tx, id)
}

func (ts *txStore) ListEmployments(ctx context.Context) ([]funding.Employment, error) {
	return queryEmployments(ctx, ts.tx,
		"SELECT "+employmentColumns+" FROM employments ORDER BY start_date, id")
}

func (ts *txStore) ListDueEmployments(ctx context.Context, asOf funding.Date) ([]funding.Employment, error) {
	return listDueEmployments(ctx, ts.tx, asOf)
}

func (ts *txStore) MarkProbationCompleted(ctx context.Context, id funding.EmploymentID) error {
	return markProbationCompleted(ctx, ts.tx, id)
}

func (ts *txStore) ReplaceAllocations(ctx context.Context, employmentID funding.EmploymentID, allocs []funding.Allocation) error {
	return replaceAllocations(ctx, ts.tx, employmentID, allocs)
}

func (ts *txStore) UpdateAllocationAmounts(ctx context.Context, allocs []funding.Allocation) error {
	return updateAllocationAmounts(ctx, ts.tx, allocs)
}

func (ts *txStore) GetAllocations(ctx context.Context, employmentID funding.EmploymentID) ([]funding.Allocation, error) {
	return getAllocations(ctx, ts.tx, employmentID)
}

func (ts *txStore) AppendHistory(ctx context.Context, entry funding.HistoryEntry) error {
	return appendHistory(ctx, ts.tx, entry)
}

func (ts *txStore) GetHistory(ctx context.Context, employmentID funding.EmploymentID) ([]funding.HistoryEntry, error) {
	return getHistory(ctx, ts.tx, employmentID)
}

// =============================================================================
// SWEEP RUNS STORE
// =============================================================================

// SweepRun represents one daily sweep execution.
type SweepRun struct {
	ID          string
	SweptAt     time.Time
	Status      string // running, completed, failed
	Processed   int
	Failed      int
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// SaveSweepRun inserts or updates a sweep run record.
func (s *Store) SaveSweepRun(ctx context.Context, r SweepRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO sweep_runs (id, swept_at, status, processed, failed, error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			processed = excluded.processed,
			failed = excluded.failed,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	var startedAt, completedAt *string
	if r.StartedAt != nil {
		v := r.StartedAt.Format(time.RFC3339)
		startedAt = &v
	}
	if r.CompletedAt != nil {
		v := r.CompletedAt.Format(time.RFC3339)
		completedAt = &v
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.SweptAt.Format(time.RFC3339),
		r.Status, r.Processed, r.Failed, r.Error,
		startedAt, completedAt,
		r.CreatedAt.Format(time.RFC3339),
	)
	return err
}

// GetSweepRuns returns sweep runs, newest first, optionally filtered by status.
func (s *Store) GetSweepRuns(ctx context.Context, status string) ([]SweepRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, swept_at, status, processed, failed, error, started_at, completed_at, created_at
		FROM sweep_runs
	`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SweepRun
	for rows.Next() {
		var (
			r                      SweepRun
			sweptAt, createdAt     string
			startedAt, completedAt sql.NullString
			errText                sql.NullString
		)
		if err := rows.Scan(&r.ID, &sweptAt, &r.Status, &r.Processed, &r.Failed,
			&errText, &startedAt, &completedAt, &createdAt); err != nil {
			return nil, err
		}
		r.SweptAt, _ = time.Parse(time.RFC3339, sweptAt)
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		r.Error = errText.String
		if startedAt.Valid {
			t, _ := time.Parse(time.RFC3339, startedAt.String)
			r.StartedAt = &t
		}
		if completedAt.Valid {
			t, _ := time.Parse(time.RFC3339, completedAt.String)
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"allocations", "history", "sweep_runs", "employments"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
