/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.TxStore (workers, clients, assignments, attendance,
  payment records) on SQLite. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  workers:            Placeable workers and their assignment status
  clients:            Agency clients
  assignments:        Worker-to-client shift assignments
  attendance_records: Daily clock-in/clock-out rows (FK to assignments)
  salary_payments:    Salary and advance payment records

INDEXES:
  - idx_assignments_worker_dates: Conflict reads (worker ids + date window)
  - idx_attendance_assignment_date: Aggregation reads
  - idx_payments_worker_period: Pay-period overlap checks

DATES:
  Calendar dates are TEXT "YYYY-MM-DD" so range predicates compare as
  strings. An open-ended assignment has a NULL end_date. Instants are
  RFC3339 TEXT. Money and quantities are decimal TEXT.

ATOMIC BATCHES:
  InsertAssignments() outside a transaction opens its own; inside
  WithTx() it joins the caller's. Either every row is written or none.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/staffing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  sched := scheduling.NewScheduler(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/staffing-engine/generic"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements generic.TxStore using SQLite.
type Store struct {
	*queries
	db *sql.DB
	mu sync.Mutex // serializes write transactions
}

var _ generic.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := NewWithDB(db)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewWithDB wraps an open database without migrating it.
func NewWithDB(db *sql.DB) *Store {
	return &Store{queries: &queries{q: db}, db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Reset clears all data (for demo scenarios and tests).
func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(tx generic.Store) error {
		q := tx.(*txStore).q
		for _, table := range []string{"salary_payments", "attendance_records", "assignments", "clients", "workers"} {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("reset %s: %w", table, err)
			}
		}
		return nil
	})
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workers (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'unassigned'
	);

	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		worker_id INTEGER NOT NULL REFERENCES workers(id),
		client_id TEXT NOT NULL REFERENCES clients(id),
		start_date TEXT NOT NULL,
		end_date TEXT,
		shift_start TEXT NOT NULL,
		shift_end TEXT NOT NULL,
		pay_rate_per_day TEXT NOT NULL,
		status TEXT NOT NULL,
		attendance_mode TEXT NOT NULL DEFAULT 'daily',
		calculated_attendance_days TEXT NOT NULL DEFAULT '0',
		shift_started_at TEXT,
		shift_ended_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_worker_dates
		ON assignments(worker_id, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_assignments_status
		ON assignments(status);

	CREATE TABLE IF NOT EXISTS attendance_records (
		id TEXT PRIMARY KEY,
		assignment_id TEXT NOT NULL REFERENCES assignments(id),
		worker_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		clock_in TEXT,
		clock_out TEXT,
		total_worked TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_assignment_date
		ON attendance_records(assignment_id, date);

	CREATE TABLE IF NOT EXISTS salary_payments (
		id TEXT PRIMARY KEY,
		worker_id INTEGER NOT NULL REFERENCES workers(id),
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		days_worked TEXT NOT NULL,
		hours_worked TEXT NOT NULL,
		billable_hours TEXT NOT NULL,
		gross_salary TEXT NOT NULL,
		bonus TEXT NOT NULL DEFAULT '0',
		deduction TEXT NOT NULL DEFAULT '0',
		net_salary TEXT NOT NULL,
		average_hourly_rate TEXT NOT NULL,
		status TEXT NOT NULL,
		reviewed INTEGER NOT NULL DEFAULT 0,
		info TEXT,
		skipped_count INTEGER NOT NULL DEFAULT 0,
		skipped_detail_json TEXT,
		is_advance INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_worker_period
		ON salary_payments(worker_id, is_advance, period_start, period_end);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries: &queries{q: sqlTx}}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// InsertAssignments writes the batch in its own transaction.
func (s *Store) InsertAssignments(ctx context.Context, as []generic.Assignment) (int, error) {
	var n int
	err := s.WithTx(ctx, func(tx generic.Store) error {
		var err error
		n, err = tx.InsertAssignments(ctx, as)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// txStore wraps a sql.Tx to implement generic.Store.
type txStore struct {
	*queries
}

// =============================================================================
// WORKERS AND CLIENTS
// =============================================================================

// queries holds every statement; q is the database or the open transaction.
type queries struct {
	q querier
}

func (r *queries) GetWorker(ctx context.Context, id generic.WorkerID) (*generic.Worker, error) {
	var w generic.Worker
	var status string
	err := r.q.QueryRowContext(ctx, `SELECT id, name, status FROM workers WHERE id = ?`, int64(id)).
		Scan(&w.ID, &w.Name, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("worker %d: %w", id, generic.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get worker %d: %w", id, err)
	}
	w.Status = generic.WorkerStatus(status)
	return &w, nil
}

func (r *queries) FindWorkers(ctx context.Context, ids []generic.WorkerID) ([]generic.Worker, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, name, status FROM workers WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("find workers: %w", err)
	}
	defer rows.Close()

	var out []generic.Worker
	for rows.Next() {
		var w generic.Worker
		var status string
		if err := rows.Scan(&w.ID, &w.Name, &status); err != nil {
			return nil, err
		}
		w.Status = generic.WorkerStatus(status)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *queries) SaveWorker(ctx context.Context, w generic.Worker) error {
	if w.Status == "" {
		w.Status = generic.WorkerUnassigned
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO workers (id, name, status) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, status = excluded.status
	`, int64(w.ID), w.Name, string(w.Status))
	if err != nil {
		return fmt.Errorf("save worker %d: %w", w.ID, err)
	}
	return nil
}

func (r *queries) SetWorkerStatus(ctx context.Context, id generic.WorkerID, status generic.WorkerStatus) error {
	res, err := r.q.ExecContext(ctx, `UPDATE workers SET status = ? WHERE id = ?`, string(status), int64(id))
	if err != nil {
		return fmt.Errorf("set worker %d status: %w", id, err)
	}
	return expectOne(res, fmt.Sprintf("worker %d", id))
}

func (r *queries) ClientExists(ctx context.Context, id generic.ClientID) (bool, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(1) FROM clients WHERE id = ?`, string(id)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup client %s: %w", id, err)
	}
	return n > 0, nil
}

func (r *queries) SaveClient(ctx context.Context, c generic.Client) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO clients (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, string(c.ID), c.Name)
	if err != nil {
		return fmt.Errorf("save client %s: %w", c.ID, err)
	}
	return nil
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

const assignmentColumns = `id, worker_id, client_id, start_date, end_date, shift_start, shift_end,
	pay_rate_per_day, status, attendance_mode, calculated_attendance_days,
	shift_started_at, shift_ended_at, created_at, updated_at`

func (r *queries) ListAssignments(ctx context.Context, filter generic.AssignmentFilter) ([]generic.Assignment, error) {
	var where []string
	var args []any

	if !filter.IncludeCancelled {
		where = append(where, "status <> ?")
		args = append(args, string(generic.AssignmentCancelled))
	}
	if len(filter.WorkerIDs) > 0 {
		where = append(where, "worker_id IN ("+placeholders(len(filter.WorkerIDs))+")")
		for _, id := range filter.WorkerIDs {
			args = append(args, int64(id))
		}
	}
	if filter.Window != nil {
		where = append(where, "start_date <= ? AND COALESCE(end_date, ?) >= ?")
		args = append(args, filter.Window.End.String(), generic.OpenEnd.String(), filter.Window.Start.String())
	}

	query := `SELECT ` + assignmentColumns + ` FROM assignments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_date, id"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []generic.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *queries) GetAssignment(ctx context.Context, id generic.AssignmentID) (*generic.Assignment, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, string(id))
	if err != nil {
		return nil, fmt.Errorf("get assignment %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("assignment %s: %w", id, generic.ErrNotFound)
	}
	a, err := scanAssignment(rows)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// InsertAssignments writes rows on the current querier and returns the affected count.
func (r *queries) InsertAssignments(ctx context.Context, as []generic.Assignment) (int, error) {
	n := 0
	for _, a := range as {
		res, err := r.q.ExecContext(ctx, `
			INSERT INTO assignments (`+assignmentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, assignmentArgs(a)...)
		if err != nil {
			if isUniqueConstraintError(err) {
				return n, fmt.Errorf("duplicate assignment id %s: %w", a.ID, err)
			}
			return n, fmt.Errorf("insert assignment %s: %w", a.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return n, err
		}
		n += int(affected)
	}
	return n, nil
}

func (r *queries) UpdateAssignment(ctx context.Context, a generic.Assignment) error {
	args := assignmentArgs(a)
	// id moves from first to last for the WHERE clause
	args = append(args[1:], args[0])
	res, err := r.q.ExecContext(ctx, `
		UPDATE assignments SET
			worker_id = ?, client_id = ?, start_date = ?, end_date = ?, shift_start = ?, shift_end = ?,
			pay_rate_per_day = ?, status = ?, attendance_mode = ?, calculated_attendance_days = ?,
			shift_started_at = ?, shift_ended_at = ?, created_at = ?, updated_at = ?
		WHERE id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("update assignment %s: %w", a.ID, err)
	}
	return expectOne(res, "assignment "+string(a.ID))
}

func (r *queries) DeleteAssignment(ctx context.Context, id generic.AssignmentID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM assignments WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete assignment %s: %w", id, err)
	}
	return expectOne(res, "assignment "+string(id))
}

func assignmentArgs(a generic.Assignment) []any {
	var end sql.NullString
	if a.EndDate != nil {
		end = nullString(a.EndDate.String())
	}
	mode := a.Mode
	if mode == "" {
		mode = generic.ModeDaily
	}
	return []any{
		string(a.ID), int64(a.WorkerID), string(a.ClientID),
		a.StartDate.String(), end, a.ShiftStart, a.ShiftEnd,
		a.PayRatePerDay.String(), string(a.Status), string(mode), a.CalculatedAttendanceDays.String(),
		nullTime(a.ShiftStartedAt), nullTime(a.ShiftEndedAt),
		a.CreatedAt.UTC().Format(time.RFC3339), a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func scanAssignment(rows *sql.Rows) (generic.Assignment, error) {
	var (
		a                                 generic.Assignment
		id, client, start, rate           string
		status, mode, calcDays            string
		createdAt, updatedAt              string
		end, startedAt, endedAt           sql.NullString
	)
	err := rows.Scan(&id, &a.WorkerID, &client, &start, &end, &a.ShiftStart, &a.ShiftEnd,
		&rate, &status, &mode, &calcDays, &startedAt, &endedAt, &createdAt, &updatedAt)
	if err != nil {
		return a, fmt.Errorf("scan assignment: %w", err)
	}

	a.ID = generic.AssignmentID(id)
	a.ClientID = generic.ClientID(client)
	a.Status = generic.AssignmentStatus(status)
	a.Mode = generic.AttendanceMode(mode)
	if a.StartDate, err = generic.ParseDate(start); err != nil {
		return a, fmt.Errorf("assignment %s start_date: %w", id, err)
	}
	if end.Valid {
		d, err := generic.ParseDate(end.String)
		if err != nil {
			return a, fmt.Errorf("assignment %s end_date: %w", id, err)
		}
		a.EndDate = &d
	}
	if a.PayRatePerDay, err = decimal.NewFromString(rate); err != nil {
		return a, fmt.Errorf("assignment %s pay rate: %w", id, err)
	}
	if a.CalculatedAttendanceDays, err = decimal.NewFromString(calcDays); err != nil {
		return a, fmt.Errorf("assignment %s attendance days: %w", id, err)
	}
	a.ShiftStartedAt = parseNullTime(startedAt)
	a.ShiftEndedAt = parseNullTime(endedAt)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return a, nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func (r *queries) ListAttendance(ctx context.Context, ids []generic.AssignmentID, period generic.Period) ([]generic.AttendanceRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids)+2)
	for _, id := range ids {
		args = append(args, string(id))
	}
	args = append(args, period.Start.String(), period.End.String())

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, assignment_id, worker_id, date, clock_in, clock_out, total_worked
		FROM attendance_records
		WHERE assignment_id IN (`+placeholders(len(ids))+`) AND date BETWEEN ? AND ?
		ORDER BY date, id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var out []generic.AttendanceRecord
	for rows.Next() {
		var (
			rec                      generic.AttendanceRecord
			id, assignment, date     string
			clockIn, clockOut, total sql.NullString
		)
		if err := rows.Scan(&id, &assignment, &rec.WorkerID, &date, &clockIn, &clockOut, &total); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		rec.ID = generic.RecordID(id)
		rec.AssignmentID = generic.AssignmentID(assignment)
		if rec.Date, err = generic.ParseDate(date); err != nil {
			return nil, fmt.Errorf("attendance %s date: %w", id, err)
		}
		rec.ClockIn, rec.ClockOut, rec.TotalWorked = clockIn.String, clockOut.String, total.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *queries) CountAttendance(ctx context.Context, id generic.AssignmentID) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(1) FROM attendance_records WHERE assignment_id = ?`, string(id)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count attendance for %s: %w", id, err)
	}
	return n, nil
}

func (r *queries) SaveAttendance(ctx context.Context, rec generic.AttendanceRecord) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO attendance_records (id, assignment_id, worker_id, date, clock_in, clock_out, total_worked)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			clock_in = excluded.clock_in, clock_out = excluded.clock_out, total_worked = excluded.total_worked
	`, string(rec.ID), string(rec.AssignmentID), int64(rec.WorkerID), rec.Date.String(),
		nullString(rec.ClockIn), nullString(rec.ClockOut), nullString(rec.TotalWorked))
	if err != nil {
		return fmt.Errorf("save attendance %s: %w", rec.ID, err)
	}
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

const paymentColumns = `id, worker_id, period_start, period_end, days_worked, hours_worked, billable_hours,
	gross_salary, bonus, deduction, net_salary, average_hourly_rate, status, reviewed, info,
	skipped_count, skipped_detail_json, is_advance, created_at, updated_at`

func (r *queries) ListPayments(ctx context.Context, filter generic.PaymentFilter) ([]generic.PaymentRecord, error) {
	var where []string
	var args []any

	if !filter.IncludeCancelled {
		where = append(where, "status <> ?")
		args = append(args, string(generic.PaymentCancelled))
	}
	if filter.WorkerID != nil {
		where = append(where, "worker_id = ?")
		args = append(args, int64(*filter.WorkerID))
	}
	if filter.IsAdvance != nil {
		where = append(where, "is_advance = ?")
		args = append(args, boolInt(*filter.IsAdvance))
	}
	if filter.Window != nil {
		// inclusive overlap: s1 <= e2 AND e1 >= s2
		where = append(where, "period_start <= ? AND period_end >= ?")
		args = append(args, filter.Window.End.String(), filter.Window.Start.String())
	}

	query := `SELECT ` + paymentColumns + ` FROM salary_payments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY period_start, id"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []generic.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *queries) GetPayment(ctx context.Context, id generic.PaymentID) (*generic.PaymentRecord, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+paymentColumns+` FROM salary_payments WHERE id = ?`, string(id))
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("payment %s: %w", id, generic.ErrNotFound)
	}
	p, err := scanPayment(rows)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *queries) InsertPayment(ctx context.Context, p generic.PaymentRecord) error {
	args, err := paymentArgs(p)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO salary_payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		return fmt.Errorf("insert payment %s: %w", p.ID, err)
	}
	return nil
}

func (r *queries) UpdatePayment(ctx context.Context, p generic.PaymentRecord) error {
	args, err := paymentArgs(p)
	if err != nil {
		return err
	}
	args = append(args[1:], args[0])
	res, err := r.q.ExecContext(ctx, `
		UPDATE salary_payments SET
			worker_id = ?, period_start = ?, period_end = ?, days_worked = ?, hours_worked = ?,
			billable_hours = ?, gross_salary = ?, bonus = ?, deduction = ?, net_salary = ?,
			average_hourly_rate = ?, status = ?, reviewed = ?, info = ?, skipped_count = ?,
			skipped_detail_json = ?, is_advance = ?, created_at = ?, updated_at = ?
		WHERE id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("update payment %s: %w", p.ID, err)
	}
	return expectOne(res, "payment "+string(p.ID))
}

func paymentArgs(p generic.PaymentRecord) ([]any, error) {
	detail, err := json.Marshal(p.SkippedDetail)
	if err != nil {
		return nil, fmt.Errorf("marshal skipped detail: %w", err)
	}
	return []any{
		string(p.ID), int64(p.WorkerID), p.Period.Start.String(), p.Period.End.String(),
		p.DaysWorked.String(), p.HoursWorked.String(), p.BillableHours.String(),
		p.GrossSalary.String(), p.Bonus.String(), p.Deduction.String(), p.NetSalary.String(),
		p.AverageHourlyRate.String(), string(p.Status), boolInt(p.Reviewed), nullString(p.Info),
		p.SkippedCount, string(detail), boolInt(p.IsAdvance),
		p.CreatedAt.UTC().Format(time.RFC3339), p.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func scanPayment(rows *sql.Rows) (generic.PaymentRecord, error) {
	var (
		p                                          generic.PaymentRecord
		id, start, end, status                     string
		days, hours, billable, gross, bonus        string
		deduction, net, avg, createdAt, updatedAt  string
		reviewed, advance                          int
		info, detail                               sql.NullString
	)
	err := rows.Scan(&id, &p.WorkerID, &start, &end, &days, &hours, &billable,
		&gross, &bonus, &deduction, &net, &avg, &status, &reviewed, &info,
		&p.SkippedCount, &detail, &advance, &createdAt, &updatedAt)
	if err != nil {
		return p, fmt.Errorf("scan payment: %w", err)
	}

	p.ID = generic.PaymentID(id)
	p.Status = generic.PaymentStatus(status)
	p.Reviewed = reviewed != 0
	p.IsAdvance = advance != 0
	p.Info = info.String
	if p.Period.Start, err = generic.ParseDate(start); err != nil {
		return p, fmt.Errorf("payment %s period_start: %w", id, err)
	}
	if p.Period.End, err = generic.ParseDate(end); err != nil {
		return p, fmt.Errorf("payment %s period_end: %w", id, err)
	}

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&p.DaysWorked, days}, {&p.HoursWorked, hours}, {&p.BillableHours, billable},
		{&p.GrossSalary, gross}, {&p.Bonus, bonus}, {&p.Deduction, deduction},
		{&p.NetSalary, net}, {&p.AverageHourlyRate, avg},
	} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return p, fmt.Errorf("payment %s: %w", id, err)
		}
	}

	if detail.Valid && detail.String != "" && detail.String != "null" {
		if err := json.Unmarshal([]byte(detail.String), &p.SkippedDetail); err != nil {
			return p, fmt.Errorf("payment %s skipped detail: %w", id, err)
		}
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return p, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, generic.ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
