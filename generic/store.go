/*
store.go - Persistence interfaces consumed by the scheduling and payroll core

PURPOSE:
  Defines the interface between the domain logic and the database.
  The core never talks to a database directly; it reads and writes
  through these small role interfaces. Different implementations can use
  SQLite or in-memory storage.

KEY INTERFACES:
  WorkerStore:     Worker existence lookup + status updates
  ClientStore:     Client existence lookup
  AssignmentStore: Reader scoped by worker ids + date window, batch insert, update, delete
  AttendanceStore: Reader scoped by assignment ids + date range
  PaymentStore:    Payment record reads and insert/update
  TxStore:         All of the above plus atomic multi-write transactions

ATOMIC BATCHES:
  InsertAssignments() is called inside WithTx() by the scheduler. Either
  every proposed row is written or none is. The returned count is checked
  against the batch size before the transaction commits.

NOT FOUND:
  Single-row getters return ErrNotFound (wrapped) for missing ids.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - scheduling/scheduler.go: Uses WithTx for the batch insert
  - payroll/calculator.go: Uses PaymentStore for overlap checks
*/
package generic

import "context"

// =============================================================================
// ROLE INTERFACES
// =============================================================================

type WorkerStore interface {
	// GetWorker returns ErrNotFound for an unknown id.
	GetWorker(ctx context.Context, id WorkerID) (*Worker, error)

	// FindWorkers returns the subset of ids that exist.
	FindWorkers(ctx context.Context, ids []WorkerID) ([]Worker, error)

	SaveWorker(ctx context.Context, w Worker) error
	SetWorkerStatus(ctx context.Context, id WorkerID, status WorkerStatus) error
}

type ClientStore interface {
	ClientExists(ctx context.Context, id ClientID) (bool, error)
	SaveClient(ctx context.Context, c Client) error
}

// AssignmentFilter scopes an assignment read. Empty fields do not filter.
type AssignmentFilter struct {
	WorkerIDs        []WorkerID
	Window           *Period // assignments whose date range intersects Window
	IncludeCancelled bool
}

type AssignmentStore interface {
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
	GetAssignment(ctx context.Context, id AssignmentID) (*Assignment, error)

	// InsertAssignments writes all rows and returns how many were written.
	InsertAssignments(ctx context.Context, assignments []Assignment) (int, error)

	UpdateAssignment(ctx context.Context, a Assignment) error
	DeleteAssignment(ctx context.Context, id AssignmentID) error
}

type AttendanceStore interface {
	// ListAttendance returns daily records for the given assignments dated within period.
	ListAttendance(ctx context.Context, ids []AssignmentID, period Period) ([]AttendanceRecord, error)

	// CountAttendance returns the number of records referencing an assignment.
	CountAttendance(ctx context.Context, id AssignmentID) (int, error)

	SaveAttendance(ctx context.Context, r AttendanceRecord) error
}

// PaymentFilter scopes a payment read. Nil fields do not filter.
type PaymentFilter struct {
	WorkerID         *WorkerID
	IsAdvance        *bool
	Window           *Period
	IncludeCancelled bool
}

type PaymentStore interface {
	ListPayments(ctx context.Context, filter PaymentFilter) ([]PaymentRecord, error)
	GetPayment(ctx context.Context, id PaymentID) (*PaymentRecord, error)
	InsertPayment(ctx context.Context, p PaymentRecord) error
	UpdatePayment(ctx context.Context, p PaymentRecord) error
}

// =============================================================================
// STORE - Everything the core reads and writes
// =============================================================================

type Store interface {
	WorkerStore
	ClientStore
	AssignmentStore
	AttendanceStore
	PaymentStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Matches applies the filter to one assignment in memory.
func (f AssignmentFilter) Matches(a Assignment) bool {
	if a.IsCancelled() && !f.IncludeCancelled {
		return false
	}
	if len(f.WorkerIDs) > 0 {
		found := false
		for _, id := range f.WorkerIDs {
			if id == a.WorkerID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Window != nil && !a.Range().Overlaps(*f.Window) {
		return false
	}
	return true
}

// Matches applies the filter to one payment record in memory.
func (f PaymentFilter) Matches(p PaymentRecord) bool {
	if p.Status == PaymentCancelled && !f.IncludeCancelled {
		return false
	}
	if f.WorkerID != nil && p.WorkerID != *f.WorkerID {
		return false
	}
	if f.IsAdvance != nil && p.IsAdvance != *f.IsAdvance {
		return false
	}
	if f.Window != nil && !p.Period.Overlaps(*f.Window) {
		return false
	}
	return true
}
