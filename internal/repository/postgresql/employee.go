package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeRepositoryImpl struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepositoryImpl{db: db}
}

const employeeColumns = `
	id, employee_number, first_name, last_name, email, ahv_number, iban, status,
	hourly_rate, hours_per_week, remote_rate_multiplier, remote_days_per_week,
	bvg_insured, bvg_contribution_rate, is_quellensteuer, quellensteuer_code,
	date_of_birth, start_date, probation_end_date, end_date, created_at, updated_at`

func scanEmployee(row pgx.Row) (employee.Employee, error) {
	var emp employee.Employee
	err := row.Scan(
		&emp.ID, &emp.EmployeeNumber, &emp.FirstName, &emp.LastName, &emp.Email, &emp.AHVNumber, &emp.IBAN, &emp.Status,
		&emp.HourlyRate, &emp.HoursPerWeek, &emp.RemoteRateMultiplier, &emp.RemoteDaysPerWeek,
		&emp.BVGInsured, &emp.BVGContributionRate, &emp.IsQuellensteuer, &emp.QuellensteuerCode,
		&emp.DateOfBirth, &emp.StartDate, &emp.ProbationEndDate, &emp.EndDate, &emp.CreatedAt, &emp.UpdatedAt,
	)
	return emp, err
}

// GetByID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetByID(ctx context.Context, id string) (employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`

	emp, err := scanEmployee(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee with id %s: %w", id, err)
	}
	return emp, nil
}

// ListEligible implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) ListEligible(ctx context.Context, from, to time.Time) ([]employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		SELECT ` + employeeColumns + `
		FROM employees
		WHERE start_date <= $2
			AND ((end_date IS NULL AND status <> $3) OR end_date >= $1)
		ORDER BY employee_number
	`

	rows, err := q.Query(ctx, query, from, to, employee.StatusTerminated)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible employees: %w", err)
	}
	defer rows.Close()

	var employees []employee.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, emp)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return employees, nil
}
