package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
)

type employeeRepository struct {
	s *Store
}

func NewEmployeeRepository(s *Store) employee.EmployeeRepository {
	return &employeeRepository{s: s}
}

func (r *employeeRepository) GetByID(_ context.Context, id string) (employee.Employee, error) {
	var (
		e  employee.Employee
		ok bool
	)
	r.s.read(func() { e, ok = r.s.employees[id] })
	if !ok {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return e, nil
}

func (r *employeeRepository) ListEligible(_ context.Context, from, to time.Time) ([]employee.Employee, error) {
	var out []employee.Employee
	r.s.read(func() {
		for _, e := range r.s.employees {
			if e.EmployedDuring(from, to) {
				out = append(out, e)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeNumber < out[j].EmployeeNumber })
	return out, nil
}
