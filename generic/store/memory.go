// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/staffing-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a generic.TxStore kept entirely in maps.
type Memory struct {
	mu sync.RWMutex
	st *memState
}

type memState struct {
	workers     map[generic.WorkerID]generic.Worker
	clients     map[generic.ClientID]generic.Client
	assignments map[generic.AssignmentID]generic.Assignment
	attendance  map[generic.RecordID]generic.AttendanceRecord
	payments    map[generic.PaymentID]generic.PaymentRecord
}

func NewMemory() *Memory {
	return &Memory{st: newMemState()}
}

func newMemState() *memState {
	return &memState{
		workers:     make(map[generic.WorkerID]generic.Worker),
		clients:     make(map[generic.ClientID]generic.Client),
		assignments: make(map[generic.AssignmentID]generic.Assignment),
		attendance:  make(map[generic.RecordID]generic.AttendanceRecord),
		payments:    make(map[generic.PaymentID]generic.PaymentRecord),
	}
}

var _ generic.TxStore = (*Memory)(nil)

// Reset drops every row.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	m.st = newMemState()
	m.mu.Unlock()
	return nil
}

// =============================================================================
// LOCKED ENTRY POINTS
// =============================================================================

func (m *Memory) GetWorker(_ context.Context, id generic.WorkerID) (*generic.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getWorker(id)
}

func (m *Memory) FindWorkers(_ context.Context, ids []generic.WorkerID) ([]generic.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.findWorkers(ids), nil
}

func (m *Memory) SaveWorker(_ context.Context, w generic.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.saveWorker(w)
	return nil
}

func (m *Memory) SetWorkerStatus(_ context.Context, id generic.WorkerID, status generic.WorkerStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.setWorkerStatus(id, status)
}

func (m *Memory) ClientExists(_ context.Context, id generic.ClientID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.st.clients[id]
	return ok, nil
}

func (m *Memory) SaveClient(_ context.Context, c generic.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.clients[c.ID] = c
	return nil
}

func (m *Memory) ListAssignments(_ context.Context, filter generic.AssignmentFilter) ([]generic.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listAssignments(filter), nil
}

func (m *Memory) GetAssignment(_ context.Context, id generic.AssignmentID) (*generic.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getAssignment(id)
}

// InsertAssignments is atomic on its own: rows are validated before any is written.
func (m *Memory) InsertAssignments(_ context.Context, as []generic.Assignment) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range as {
		if _, exists := m.st.assignments[a.ID]; exists {
			return 0, fmt.Errorf("duplicate assignment id %s", a.ID)
		}
	}
	return m.st.insertAssignments(as)
}

func (m *Memory) UpdateAssignment(_ context.Context, a generic.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateAssignment(a)
}

func (m *Memory) DeleteAssignment(_ context.Context, id generic.AssignmentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.deleteAssignment(id)
}

func (m *Memory) ListAttendance(_ context.Context, ids []generic.AssignmentID, period generic.Period) ([]generic.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listAttendance(ids, period), nil
}

func (m *Memory) CountAttendance(_ context.Context, id generic.AssignmentID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.countAttendance(id), nil
}

func (m *Memory) SaveAttendance(_ context.Context, r generic.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.attendance[r.ID] = r
	return nil
}

func (m *Memory) ListPayments(_ context.Context, filter generic.PaymentFilter) ([]generic.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listPayments(filter), nil
}

func (m *Memory) GetPayment(_ context.Context, id generic.PaymentID) (*generic.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getPayment(id)
}

func (m *Memory) InsertPayment(_ context.Context, p generic.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.insertPayment(p)
}

func (m *Memory) UpdatePayment(_ context.Context, p generic.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updatePayment(p)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(generic.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()

	if err := fn(&txMemoryView{st: m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.workers {
		c.workers[k] = v
	}
	for k, v := range s.clients {
		c.clients[k] = v
	}
	for k, v := range s.assignments {
		c.assignments[k] = v
	}
	for k, v := range s.attendance {
		c.attendance[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

// txMemoryView runs against the live state while WithTx holds the lock.
type txMemoryView struct {
	st *memState
}

func (v *txMemoryView) GetWorker(_ context.Context, id generic.WorkerID) (*generic.Worker, error) {
	return v.st.getWorker(id)
}
func (v *txMemoryView) FindWorkers(_ context.Context, ids []generic.WorkerID) ([]generic.Worker, error) {
	return v.st.findWorkers(ids), nil
}
func (v *txMemoryView) SaveWorker(_ context.Context, w generic.Worker) error {
	v.st.saveWorker(w)
	return nil
}
func (v *txMemoryView) SetWorkerStatus(_ context.Context, id generic.WorkerID, status generic.WorkerStatus) error {
	return v.st.setWorkerStatus(id, status)
}
func (v *txMemoryView) ClientExists(_ context.Context, id generic.ClientID) (bool, error) {
	_, ok := v.st.clients[id]
	return ok, nil
}
func (v *txMemoryView) SaveClient(_ context.Context, c generic.Client) error {
	v.st.clients[c.ID] = c
	return nil
}
func (v *txMemoryView) ListAssignments(_ context.Context, filter generic.AssignmentFilter) ([]generic.Assignment, error) {
	return v.st.listAssignments(filter), nil
}
func (v *txMemoryView) GetAssignment(_ context.Context, id generic.AssignmentID) (*generic.Assignment, error) {
	return v.st.getAssignment(id)
}
func (v *txMemoryView) InsertAssignments(_ context.Context, as []generic.Assignment) (int, error) {
	return v.st.insertAssignments(as)
}
func (v *txMemoryView) UpdateAssignment(_ context.Context, a generic.Assignment) error {
	return v.st.updateAssignment(a)
}
func (v *txMemoryView) DeleteAssignment(_ context.Context, id generic.AssignmentID) error {
	return v.st.deleteAssignment(id)
}
func (v *txMemoryView) ListAttendance(_ context.Context, ids []generic.AssignmentID, period generic.Period) ([]generic.AttendanceRecord, error) {
	return v.st.listAttendance(ids, period), nil
}
func (v *txMemoryView) CountAttendance(_ context.Context, id generic.AssignmentID) (int, error) {
	return v.st.countAttendance(id), nil
}
func (v *txMemoryView) SaveAttendance(_ context.Context, r generic.AttendanceRecord) error {
	v.st.attendance[r.ID] = r
	return nil
}
func (v *txMemoryView) ListPayments(_ context.Context, filter generic.PaymentFilter) ([]generic.PaymentRecord, error) {
	return v.st.listPayments(filter), nil
}
func (v *txMemoryView) GetPayment(_ context.Context, id generic.PaymentID) (*generic.PaymentRecord, error) {
	return v.st.getPayment(id)
}
func (v *txMemoryView) InsertPayment(_ context.Context, p generic.PaymentRecord) error {
	return v.st.insertPayment(p)
}
func (v *txMemoryView) UpdatePayment(_ context.Context, p generic.PaymentRecord) error {
	return v.st.updatePayment(p)
}

// =============================================================================
// STATE OPERATIONS (caller holds the lock)
// =============================================================================

func (s *memState) getWorker(id generic.WorkerID) (*generic.Worker, error) {
	w, ok := s.workers[id]
	if !ok {
		return nil, fmt.Errorf("worker %d: %w", id, generic.ErrNotFound)
	}
	return &w, nil
}

func (s *memState) findWorkers(ids []generic.WorkerID) []generic.Worker {
	var out []generic.Worker
	for _, id := range ids {
		if w, ok := s.workers[id]; ok {
			out = append(out, w)
		}
	}
	return out
}

func (s *memState) saveWorker(w generic.Worker) {
	if w.Status == "" {
		w.Status = generic.WorkerUnassigned
	}
	s.workers[w.ID] = w
}

func (s *memState) setWorkerStatus(id generic.WorkerID, status generic.WorkerStatus) error {
	w, ok := s.workers[id]
	if !ok {
		return fmt.Errorf("worker %d: %w", id, generic.ErrNotFound)
	}
	w.Status = status
	s.workers[id] = w
	return nil
}

func (s *memState) listAssignments(filter generic.AssignmentFilter) []generic.Assignment {
	var out []generic.Assignment
	for _, a := range s.assignments {
		if filter.Matches(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *memState) getAssignment(id generic.AssignmentID) (*generic.Assignment, error) {
	a, ok := s.assignments[id]
	if !ok {
		return nil, fmt.Errorf("assignment %s: %w", id, generic.ErrNotFound)
	}
	return &a, nil
}

func (s *memState) insertAssignments(as []generic.Assignment) (int, error) {
	n := 0
	for _, a := range as {
		if _, exists := s.assignments[a.ID]; exists {
			return n, fmt.Errorf("duplicate assignment id %s", a.ID)
		}
		s.assignments[a.ID] = a
		n++
	}
	return n, nil
}

func (s *memState) updateAssignment(a generic.Assignment) error {
	if _, ok := s.assignments[a.ID]; !ok {
		return fmt.Errorf("assignment %s: %w", a.ID, generic.ErrNotFound)
	}
	s.assignments[a.ID] = a
	return nil
}

func (s *memState) deleteAssignment(id generic.AssignmentID) error {
	if _, ok := s.assignments[id]; !ok {
		return fmt.Errorf("assignment %s: %w", id, generic.ErrNotFound)
	}
	delete(s.assignments, id)
	return nil
}

func (s *memState) listAttendance(ids []generic.AssignmentID, period generic.Period) []generic.AttendanceRecord {
	wanted := make(map[generic.AssignmentID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []generic.AttendanceRecord
	for _, r := range s.attendance {
		if wanted[r.AssignmentID] && period.Contains(r.Date) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *memState) countAttendance(id generic.AssignmentID) int {
	n := 0
	for _, r := range s.attendance {
		if r.AssignmentID == id {
			n++
		}
	}
	return n
}

func (s *memState) listPayments(filter generic.PaymentFilter) []generic.PaymentRecord {
	var out []generic.PaymentRecord
	for _, p := range s.payments {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Period.Start.Equal(out[j].Period.Start) {
			return out[i].Period.Start.Before(out[j].Period.Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *memState) getPayment(id generic.PaymentID) (*generic.PaymentRecord, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", id, generic.ErrNotFound)
	}
	return &p, nil
}

func (s *memState) insertPayment(p generic.PaymentRecord) error {
	if _, exists := s.payments[p.ID]; exists {
		return fmt.Errorf("duplicate payment id %s", p.ID)
	}
	s.payments[p.ID] = p
	return nil
}

func (s *memState) updatePayment(p generic.PaymentRecord) error {
	if _, ok := s.payments[p.ID]; !ok {
		return fmt.Errorf("payment %s: %w", p.ID, generic.ErrNotFound)
	}
	s.payments[p.ID] = p
	return nil
}
