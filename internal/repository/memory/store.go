// Package memory holds map-backed repositories used by service tests and
// local demos. All repositories built from one Store share its data and its
// transactions.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/ratetable"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/timeentry"
	"github.com/google/uuid"
)

type txKey struct{}

type Store struct {
	// txMu serializes writers: a transaction holds it from begin to commit,
	// a write outside a transaction holds it for that write only.
	txMu sync.Mutex
	mu   sync.RWMutex

	employees   map[string]employee.Employee
	entries     map[string]timeentry.TimeEntry
	runs        map[string]payroll.PayrollRun
	slips       map[string]payroll.PaySlip
	rates       []ratetable.Row
	withholding []ratetable.WithholdingBracket

	// FailOn makes the named write return the given error. Tests use it to
	// force rollbacks.
	FailOn map[string]error
}

func NewStore() *Store {
	return &Store{
		employees: map[string]employee.Employee{},
		entries:   map[string]timeentry.TimeEntry{},
		runs:      map[string]payroll.PayrollRun{},
		slips:     map[string]payroll.PaySlip{},
		FailOn:    map[string]error{},
	}
}

type snapshot struct {
	employees   map[string]employee.Employee
	entries     map[string]timeentry.TimeEntry
	runs        map[string]payroll.PayrollRun
	slips       map[string]payroll.PaySlip
	rates       []ratetable.Row
	withholding []ratetable.WithholdingBracket
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{
		employees:   maps.Clone(s.employees),
		entries:     maps.Clone(s.entries),
		runs:        maps.Clone(s.runs),
		slips:       maps.Clone(s.slips),
		rates:       append([]ratetable.Row(nil), s.rates...),
		withholding: append([]ratetable.WithholdingBracket(nil), s.withholding...),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees = snap.employees
	s.entries = snap.entries
	s.runs = snap.runs
	s.slips = snap.slips
	s.rates = snap.rates
	s.withholding = snap.withholding
}

// WithinTx runs fn with every write either committed or rolled back
// together. A ctx that already carries a transaction is joined.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// write applies fn under the data lock, taking the writer lock as well when
// ctx carries no transaction.
func (s *Store) write(ctx context.Context, op string, fn func() error) error {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.FailOn[op]; ok {
		return err
	}
	return fn()
}

func (s *Store) read(fn func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// PutEmployee seeds an employee. Employees are owned by the HR system, so
// there is no repository write for them.
func (s *Store) PutEmployee(e employee.Employee) employee.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = newID()
	}
	s.employees[e.ID] = e
	return e
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
