/*
Package sqlite provides a SQLite-backed implementation of the billing
repository interfaces.

PURPOSE:
  Implements billing.EmployeeRepository, billing.EntryRepository and
  billing.CapPeriodRepository on SQLite. The same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  employees    Billing configuration per employee (start/end day, rate)
  entries      Recorded work with derived earnings in cents
  cap_periods  Earnings-cap timeline

ATOMICITY:
  The cap timeline's multi-record adjustments (insert + neighbor
  truncation, delete + re-stitch) run through WithTx, which wraps them in
  a single SQL transaction. No reader ever observes a half-mutated
  timeline.

DATES AND MONEY:
  Dates are stored as ISO text (YYYY-MM-DD) and parsed back through
  billing.ParseDate, keeping everything in the UTC day calendar. Money is
  stored as INTEGER cents.

WAL MODE:
  SQLite is opened with WAL for better read concurrency. Use ":memory:"
  for tests.

SEE ALSO:
  - billing/cap.go: Interface definitions
  - billing/store/memory.go: In-memory implementation for unit tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lohnwerk/minijob-engine/billing"
)

// Store implements the billing repository interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

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

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		start_day INTEGER NOT NULL,
		end_day INTEGER NOT NULL,
		hourly_rate_cents INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		date TEXT NOT NULL,
		minutes INTEGER NOT NULL,
		earnings_cents INTEGER NOT NULL,
		note TEXT,
		created_at TEXT NOT NULL
	);

	-- Hot path: period totals and first-entry lookups
	CREATE INDEX IF NOT EXISTS idx_entries_employee_date
		ON entries(employee_id, date);

	CREATE TABLE IF NOT EXISTS cap_periods (
		id TEXT PRIMARY KEY,
		limit_cents INTEGER NOT NULL,
		valid_from TEXT NOT NULL,
		valid_until TEXT,
		created_by TEXT,
		active BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cap_periods_valid_from
		ON cap_periods(valid_from);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) ListEmployees(ctx context.Context) ([]billing.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, start_day, end_day, hourly_rate_cents, created_at
		FROM employees ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*billing.Employee, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, start_day, end_day, hourly_rate_cents, created_at
		FROM employees WHERE id = ?`, id)

	e, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) SaveEmployee(ctx context.Context, e billing.Employee) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, start_day, end_day, hourly_rate_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			start_day = excluded.start_day,
			end_day = excluded.end_day,
			hourly_rate_cents = excluded.hourly_rate_cents`,
		e.ID, e.Name, e.Email, e.StartDay, e.EndDay, int64(e.HourlyRate),
		e.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (billing.Employee, error) {
	var (
		e         billing.Employee
		email     sql.NullString
		rate      int64
		createdAt string
	)
	if err := row.Scan(&e.ID, &e.Name, &email, &e.StartDay, &e.EndDay, &rate, &createdAt); err != nil {
		return billing.Employee{}, err
	}
	e.Email = email.String
	e.HourlyRate = billing.Cents(rate)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return e, nil
}

// =============================================================================
// ENTRIES
// =============================================================================

func (s *Store) ListEntries(ctx context.Context, employeeID string, from, to billing.Date) ([]billing.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, date, minutes, earnings_cents, note, created_at
		FROM entries
		WHERE employee_id = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		employeeID, from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) FirstEntryDate(ctx context.Context, employeeID string) (*billing.Date, error) {
	var dateStr sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(date) FROM entries WHERE employee_id = ?`, employeeID).Scan(&dateStr)
	if err != nil {
		return nil, err
	}
	if !dateStr.Valid {
		return nil, nil
	}
	d, err := billing.ParseDate(dateStr.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) SaveEntry(ctx context.Context, e billing.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (id, employee_id, date, minutes, earnings_cents, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			minutes = excluded.minutes,
			earnings_cents = excluded.earnings_cents,
			note = excluded.note`,
		e.ID, e.EmployeeID, e.Date.String(), e.Minutes, int64(e.Earnings), e.Note,
		e.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return billing.ErrEntryNotFound
	}
	return nil
}

func scanEntry(row rowScanner) (billing.Entry, error) {
	var (
		e         billing.Entry
		dateStr   string
		earnings  int64
		note      sql.NullString
		createdAt string
	)
	if err := row.Scan(&e.ID, &e.EmployeeID, &dateStr, &e.Minutes, &earnings, &note, &createdAt); err != nil {
		return billing.Entry{}, err
	}
	d, err := billing.ParseDate(dateStr)
	if err != nil {
		return billing.Entry{}, err
	}
	e.Date = d
	e.Earnings = billing.Cents(earnings)
	e.Note = note.String
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return e, nil
}

// =============================================================================
// CAP PERIODS
// =============================================================================

// execer abstracts *sql.DB and *sql.Tx so the cap period queries can run
// both directly and inside WithTx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) ListCapPeriods(ctx context.Context) ([]billing.CapPeriod, error) {
	return listCapPeriods(ctx, s.db)
}

func (s *Store) GetCapPeriod(ctx context.Context, id string) (*billing.CapPeriod, error) {
	return getCapPeriod(ctx, s.db, id)
}

func (s *Store) SaveCapPeriod(ctx context.Context, p billing.CapPeriod) error {
	return saveCapPeriod(ctx, s.db, p)
}

func (s *Store) DeleteCapPeriod(ctx context.Context, id string) error {
	return deleteCapPeriod(ctx, s.db, id)
}

// WithTx executes fn within a single SQL transaction.
func (s *Store) WithTx(ctx context.Context, fn func(billing.CapPeriodRepository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(&txRepo{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// txRepo is the transaction-scoped view handed to WithTx callbacks.
type txRepo struct {
	tx *sql.Tx
}

func (r *txRepo) ListCapPeriods(ctx context.Context) ([]billing.CapPeriod, error) {
	return listCapPeriods(ctx, r.tx)
}

func (r *txRepo) GetCapPeriod(ctx context.Context, id string) (*billing.CapPeriod, error) {
	return getCapPeriod(ctx, r.tx, id)
}

func (r *txRepo) SaveCapPeriod(ctx context.Context, p billing.CapPeriod) error {
	return saveCapPeriod(ctx, r.tx, p)
}

func (r *txRepo) DeleteCapPeriod(ctx context.Context, id string) error {
	return deleteCapPeriod(ctx, r.tx, id)
}

func (r *txRepo) WithTx(ctx context.Context, fn func(billing.CapPeriodRepository) error) error {
	// Already inside a transaction; nested calls join it.
	return fn(r)
}

func listCapPeriods(ctx context.Context, db execer) ([]billing.CapPeriod, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, limit_cents, valid_from, valid_until, created_by, active, created_at
		FROM cap_periods ORDER BY valid_from`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.CapPeriod
	for rows.Next() {
		p, err := scanCapPeriod(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func getCapPeriod(ctx context.Context, db execer, id string) (*billing.CapPeriod, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, limit_cents, valid_from, valid_until, created_by, active, created_at
		FROM cap_periods WHERE id = ?`, id)

	p, err := scanCapPeriod(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func saveCapPeriod(ctx context.Context, db execer, p billing.CapPeriod) error {
	var validUntil any
	if p.ValidUntil != nil {
		validUntil = p.ValidUntil.String()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO cap_periods (id, limit_cents, valid_from, valid_until, created_by, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			limit_cents = excluded.limit_cents,
			valid_from = excluded.valid_from,
			valid_until = excluded.valid_until,
			active = excluded.active`,
		p.ID, int64(p.Limit), p.ValidFrom.String(), validUntil, p.CreatedBy, p.Active,
		p.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

func deleteCapPeriod(ctx context.Context, db execer, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM cap_periods WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return billing.ErrPeriodNotFound
	}
	return nil
}

func scanCapPeriod(row rowScanner) (billing.CapPeriod, error) {
	var (
		p         billing.CapPeriod
		limit     int64
		fromStr   string
		untilStr  sql.NullString
		createdBy sql.NullString
		createdAt string
	)
	if err := row.Scan(&p.ID, &limit, &fromStr, &untilStr, &createdBy, &p.Active, &createdAt); err != nil {
		return billing.CapPeriod{}, err
	}
	p.Limit = billing.Cents(limit)

	from, err := billing.ParseDate(fromStr)
	if err != nil {
		return billing.CapPeriod{}, err
	}
	p.ValidFrom = from

	if untilStr.Valid {
		until, err := billing.ParseDate(untilStr.String)
		if err != nil {
			return billing.CapPeriod{}, err
		}
		p.ValidUntil = &until
	}
	p.CreatedBy = createdBy.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return p, nil
}

// Compile-time interface checks
var (
	_ billing.EmployeeRepository  = (*Store)(nil)
	_ billing.EntryRepository     = (*Store)(nil)
	_ billing.CapPeriodRepository = (*Store)(nil)
)
