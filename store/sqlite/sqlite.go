/*
Package sqlite provides a SQLite-backed implementation of leave.TxStore and
leave.Directory.

PURPOSE:
  Persists leave requests, the balance ledger and the employee directory.
  In production the same patterns apply to PostgreSQL with minor dialect
  differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the transactions table
  - No DELETE statements on any table
  - Corrections to a balance are reversal or adjustment transactions

KEY TABLES:
  transactions:    Immutable ledger of all balance changes
  leave_requests:  Requests with their status and audit fields
  employees:       Directory entries (company, manager, active flag)

OPTIMISTIC CONCURRENCY:
  leave_requests.version is bumped on every status change and
  UpdateRequest is conditioned on it. Zero affected rows on an existing
  row means another writer got there first.

CONCURRENCY:
  Uses sync.RWMutex around the connection pool. WithTx holds the write
  lock and hands fn a view bound to the *sql.Tx; the view never locks.

WAL MODE:
  File databases are opened with WAL, a busy timeout and immediate
  transactions so a writer never upgrades a read lock mid-transaction.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - leave/store.go: Interface definitions
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

const timestampLayout = time.RFC3339Nano

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements leave.TxStore and leave.Directory using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on"
	if dbPath != ":memory:" {
		dsn += "&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := Open(db)
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Open wraps an existing handle without migrating it.
func Open(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const schema = `
	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		policy_id TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		delta TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	-- Balance calculation (hot path)
	CREATE INDEX IF NOT EXISTS idx_transactions_entity_policy_date
		ON transactions(entity_id, policy_id, effective_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(reference_id) WHERE reference_id IS NOT NULL;

	-- Employees (directory)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		manager_id TEXT,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_employees_company
		ON employees(company_id);
	CREATE INDEX IF NOT EXISTS idx_employees_manager
		ON employees(manager_id) WHERE manager_id IS NOT NULL;

	-- Leave requests
	CREATE TABLE IF NOT EXISTS leave_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		approver_id TEXT,
		created_by TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		start_half_day BOOLEAN NOT NULL DEFAULT FALSE,
		end_half_day BOOLEAN NOT NULL DEFAULT FALSE,
		total_days TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		is_emergency BOOLEAN NOT NULL DEFAULT FALSE,
		work_handover TEXT NOT NULL DEFAULT '',
		contact_during_leave TEXT NOT NULL DEFAULT '',
		document_name TEXT,
		document_ref TEXT,
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'approved', 'rejected', 'cancelled')),
		rejection_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		approved_at TEXT,
		rejected_at TEXT,
		cancelled_at TEXT,
		cancelled_by TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		CHECK (end_date >= start_date)
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee_dates
		ON leave_requests(employee_id, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_status
		ON leave_requests(status);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_type
		ON leave_requests(leave_type);
`

// Migrate creates the schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn inside a database transaction. Everything fn writes
// through the view is rolled back if fn returns an error.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(view{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Locked wrappers; view does the work.

func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{q: s.db}.Append(ctx, tx)
}

// AppendBatch appends all transactions atomically.
func (s *Store) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	return s.WithTx(ctx, func(st leave.Store) error {
		return st.AppendBatch(ctx, txs)
	})
}

func (s *Store) Load(ctx context.Context, entityID generic.EntityID, policyID generic.PolicyID) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{q: s.db}.Load(ctx, entityID, policyID)
}

func (s *Store) LoadRange(ctx context.Context, entityID generic.EntityID, policyID generic.PolicyID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{q: s.db}.LoadRange(ctx, entityID, policyID, from, to)
}

func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{q: s.db}.Exists(ctx, idempotencyKey)
}

func (s *Store) InsertRequest(ctx context.Context, r *leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{q: s.db}.InsertRequest(ctx, r)
}

func (s *Store) UpdateRequest(ctx context.Context, r *leave.Request, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{q: s.db}.UpdateRequest(ctx, r, expectedVersion)
}

func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{q: s.db}.GetRequest(ctx, id)
}

func (s *Store) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{q: s.db}.ListRequests(ctx, f)
}

func (s *Store) FindOverlapping(ctx context.Context, employee leave.EmployeeID, start, end generic.TimePoint) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{q: s.db}.FindOverlapping(ctx, employee, start, end)
}

func (s *Store) HasRequestsForType(ctx context.Context, code leave.TypeCode) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{q: s.db}.HasRequestsForType(ctx, code)
}

// =============================================================================
// DIRECTORY
// =============================================================================

// PutEmployee adds or replaces a directory entry.
func (s *Store) PutEmployee(ctx context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, company_id, manager_id, name, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			company_id = excluded.company_id,
			manager_id = excluded.manager_id,
			name = excluded.name,
			active = excluded.active
	`, string(e.ID), string(e.CompanyID), nullEmployee(e.ManagerID), e.Name, e.Active)
	if err != nil {
		return fmt.Errorf("failed to save employee %s: %w", e.ID, err)
	}
	return nil
}

func (s *Store) Employee(ctx context.Context, id leave.EmployeeID) (leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e leave.Employee
	var managerID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, manager_id, name, active FROM employees WHERE id = ?`, string(id),
	).Scan(&e.ID, &e.CompanyID, &managerID, &e.Name, &e.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Employee{}, leave.EmployeeNotFound(id)
	}
	if err != nil {
		return leave.Employee{}, fmt.Errorf("failed to load employee %s: %w", id, err)
	}
	e.ManagerID = employeePtr(managerID)
	return e, nil
}

func (s *Store) Reports(ctx context.Context, manager leave.EmployeeID) ([]leave.EmployeeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryIDs(ctx, s.db, `SELECT id FROM employees WHERE manager_id = ? ORDER BY id`, string(manager))
}

func (s *Store) CompanyMembers(ctx context.Context, company leave.CompanyID) ([]leave.EmployeeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryIDs(ctx, s.db, `SELECT id FROM employees WHERE company_id = ? ORDER BY id`, string(company))
}

func queryIDs(ctx context.Context, q querier, query string, args ...any) ([]leave.EmployeeID, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var ids []leave.EmployeeID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, leave.EmployeeID(id))
	}
	return ids, rows.Err()
}

// =============================================================================
// VIEW - Unlocked operations over a querier
// =============================================================================

type view struct {
	q querier
}

func (v view) Append(ctx context.Context, tx generic.Transaction) error {
	_, err := v.q.ExecContext(ctx, `
		INSERT INTO transactions (id, entity_id, policy_id, effective_at, delta, tx_type,
			reference_id, reason, idempotency_key, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(tx.ID), string(tx.EntityID), string(tx.PolicyID),
		tx.EffectiveAt.String(), tx.Delta.String(), string(tx.Type),
		nullString(tx.ReferenceID), nullString(tx.Reason), nullString(tx.IdempotencyKey),
		nullString(tx.CreatedBy), formatTime(txCreatedAt(tx)),
	)
	if isUniqueConstraintError(err) {
		return generic.ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// AppendBatch relies on the enclosing transaction for atomicity.
func (v view) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	for _, tx := range txs {
		if err := v.Append(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

const transactionColumns = `id, entity_id, policy_id, effective_at, delta, tx_type,
	reference_id, reason, idempotency_key, created_by, created_at`

func (v view) Load(ctx context.Context, entityID generic.EntityID, policyID generic.PolicyID) ([]generic.Transaction, error) {
	return v.queryTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE entity_id = ? AND policy_id = ?
		ORDER BY effective_at, rowid
	`, string(entityID), string(policyID))
}

func (v view) LoadRange(ctx context.Context, entityID generic.EntityID, policyID generic.PolicyID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	return v.queryTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE entity_id = ? AND policy_id = ? AND effective_at >= ? AND effective_at <= ?
		ORDER BY effective_at, rowid
	`, string(entityID), string(policyID), from.String(), to.String())
}

func (v view) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := v.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?`, idempotencyKey,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return count > 0, nil
}

func (v view) queryTransactions(ctx context.Context, query string, args ...any) ([]generic.Transaction, error) {
	rows, err := v.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var result []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var tx generic.Transaction
	var id, entityID, policyID, effectiveAt, delta, txType, createdAt string
	var referenceID, reason, idempotencyKey, createdBy sql.NullString

	err := rows.Scan(&id, &entityID, &policyID, &effectiveAt, &delta, &txType,
		&referenceID, &reason, &idempotencyKey, &createdBy, &createdAt)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	at, err := generic.ParseDate(effectiveAt)
	if err != nil {
		return tx, fmt.Errorf("transaction %s: %w", id, err)
	}
	amount, err := decimal.NewFromString(delta)
	if err != nil {
		return tx, fmt.Errorf("transaction %s: bad delta %q: %w", id, delta, err)
	}

	tx.ID = generic.TransactionID(id)
	tx.EntityID = generic.EntityID(entityID)
	tx.PolicyID = generic.PolicyID(policyID)
	tx.EffectiveAt = at
	tx.Delta = amount
	tx.Type = generic.TransactionType(txType)
	tx.ReferenceID = referenceID.String
	tx.Reason = reason.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.CreatedBy = createdBy.String
	tx.CreatedAt, _ = time.Parse(timestampLayout, createdAt)
	return tx, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

const requestColumns = `id, employee_id, leave_type, approver_id, created_by,
	start_date, end_date, start_half_day, end_half_day, total_days,
	reason, is_emergency, work_handover, contact_during_leave, document_name, document_ref,
	status, rejection_reason, created_at, updated_at,
	approved_at, rejected_at, cancelled_at, cancelled_by, version`

func (v view) InsertRequest(ctx context.Context, r *leave.Request) error {
	docName, docRef := documentColumns(r.Document)
	res, err := v.q.ExecContext(ctx, `
		INSERT INTO leave_requests (employee_id, leave_type, approver_id, created_by,
			start_date, end_date, start_half_day, end_half_day, total_days,
			reason, is_emergency, work_handover, contact_during_leave, document_name, document_ref,
			status, rejection_reason, created_at, updated_at,
			approved_at, rejected_at, cancelled_at, cancelled_by, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(r.EmployeeID), string(r.LeaveType), nullEmployee(r.ApproverID), string(r.CreatedBy),
		r.StartDate.String(), r.EndDate.String(), r.StartHalfDay, r.EndHalfDay, r.TotalDays.String(),
		r.Reason, r.IsEmergency, r.WorkHandover, r.ContactDuringLeave, docName, docRef,
		string(r.Status), r.RejectionReason, formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
		nullTime(r.ApprovedAt), nullTime(r.RejectedAt), nullTime(r.CancelledAt), nullEmployee(r.CancelledBy),
		r.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to insert leave request: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read leave request id: %w", err)
	}
	r.ID = leave.RequestID(id)
	return nil
}

// UpdateRequest writes the mutable columns of r when the stored version
// still equals expectedVersion.
func (v view) UpdateRequest(ctx context.Context, r *leave.Request, expectedVersion int) error {
	res, err := v.q.ExecContext(ctx, `
		UPDATE leave_requests SET
			status = ?,
			rejection_reason = ?,
			updated_at = ?,
			approved_at = ?,
			rejected_at = ?,
			cancelled_at = ?,
			cancelled_by = ?,
			version = ?
		WHERE id = ? AND version = ?
	`,
		string(r.Status), r.RejectionReason, formatTime(r.UpdatedAt),
		nullTime(r.ApprovedAt), nullTime(r.RejectedAt), nullTime(r.CancelledAt), nullEmployee(r.CancelledBy),
		r.Version, int64(r.ID), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update leave request %d: %w", r.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update leave request %d: %w", r.ID, err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = v.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM leave_requests WHERE id = ?`, int64(r.ID)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to update leave request %d: %w", r.ID, err)
	}
	if exists == 0 {
		return leave.RequestNotFound(r.ID)
	}
	return generic.ErrConcurrentModification
}

func (v view) GetRequest(ctx context.Context, id leave.RequestID) (*leave.Request, error) {
	rows, err := v.q.QueryContext(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load leave request %d: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, leave.RequestNotFound(id)
	}
	r, err := scanRequest(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRequests pushes the filter into SQL. Dates are stored as
// YYYY-MM-DD so string comparison orders them.
func (v view) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	var where []string
	var args []any

	if len(f.EmployeeIDs) > 0 {
		where = append(where, "employee_id IN ("+placeholders(len(f.EmployeeIDs))+")")
		for _, id := range f.EmployeeIDs {
			args = append(args, string(id))
		}
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if len(f.LeaveTypes) > 0 {
		where = append(where, "leave_type IN ("+placeholders(len(f.LeaveTypes))+")")
		for _, code := range f.LeaveTypes {
			args = append(args, string(code))
		}
	}
	if f.From != nil {
		where = append(where, "end_date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		where = append(where, "start_date <= ?")
		args = append(args, f.To.String())
	}

	query := `SELECT ` + requestColumns + ` FROM leave_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	return v.queryRequests(ctx, query, args...)
}

func (v view) FindOverlapping(ctx context.Context, employee leave.EmployeeID, start, end generic.TimePoint) ([]leave.Request, error) {
	return v.queryRequests(ctx, `
		SELECT `+requestColumns+`
		FROM leave_requests
		WHERE employee_id = ?
			AND status IN ('pending', 'approved')
			AND start_date <= ? AND end_date >= ?
		ORDER BY id
	`, string(employee), end.String(), start.String())
}

func (v view) HasRequestsForType(ctx context.Context, code leave.TypeCode) (bool, error) {
	var found int
	err := v.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM leave_requests WHERE leave_type = ?)`, string(code),
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("failed to check leave type usage: %w", err)
	}
	return found == 1, nil
}

func (v view) queryRequests(ctx context.Context, query string, args ...any) ([]leave.Request, error) {
	rows, err := v.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave requests: %w", err)
	}
	defer rows.Close()

	var result []leave.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanRequest(rows *sql.Rows) (leave.Request, error) {
	var r leave.Request
	var id int64
	var employeeID, leaveType, createdBy string
	var startDate, endDate, totalDays, status, createdAt, updatedAt string
	var approverID, cancelledBy, docName, docRef sql.NullString
	var approvedAt, rejectedAt, cancelledAt sql.NullString

	err := rows.Scan(&id, &employeeID, &leaveType, &approverID, &createdBy,
		&startDate, &endDate, &r.StartHalfDay, &r.EndHalfDay, &totalDays,
		&r.Reason, &r.IsEmergency, &r.WorkHandover, &r.ContactDuringLeave, &docName, &docRef,
		&status, &r.RejectionReason, &createdAt, &updatedAt,
		&approvedAt, &rejectedAt, &cancelledAt, &cancelledBy, &r.Version,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan leave request: %w", err)
	}

	r.ID = leave.RequestID(id)
	r.EmployeeID = leave.EmployeeID(employeeID)
	r.LeaveType = leave.TypeCode(leaveType)
	r.CreatedBy = leave.EmployeeID(createdBy)
	r.Status = leave.Status(status)
	r.ApproverID = employeePtr(approverID)
	r.CancelledBy = employeePtr(cancelledBy)

	if r.StartDate, err = generic.ParseDate(startDate); err != nil {
		return r, fmt.Errorf("leave request %d: %w", id, err)
	}
	if r.EndDate, err = generic.ParseDate(endDate); err != nil {
		return r, fmt.Errorf("leave request %d: %w", id, err)
	}
	if r.TotalDays, err = decimal.NewFromString(totalDays); err != nil {
		return r, fmt.Errorf("leave request %d: bad total_days %q: %w", id, totalDays, err)
	}
	if docRef.Valid {
		r.Document = &leave.DocumentRef{Name: docName.String, Ref: docRef.String}
	}

	r.CreatedAt, _ = time.Parse(timestampLayout, createdAt)
	r.UpdatedAt, _ = time.Parse(timestampLayout, updatedAt)
	r.ApprovedAt = timePtr(approvedAt)
	r.RejectedAt = timePtr(rejectedAt)
	r.CancelledAt = timePtr(cancelledAt)
	return r, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullEmployee(id *leave.EmployeeID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return nullString(string(*id))
}

func employeePtr(ns sql.NullString) *leave.EmployeeID {
	if !ns.Valid {
		return nil
	}
	id := leave.EmployeeID(ns.String)
	return &id
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(timestampLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func txCreatedAt(tx generic.Transaction) time.Time {
	if tx.CreatedAt.IsZero() {
		return time.Now()
	}
	return tx.CreatedAt
}

func documentColumns(doc *leave.DocumentRef) (sql.NullString, sql.NullString) {
	if doc == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: doc.Name, Valid: true}, sql.NullString{String: doc.Ref, Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
