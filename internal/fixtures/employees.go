package fixtures

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/shopspring/decimal"
)

// ==========================================
// HELPER FUNCTIONS
// ==========================================

func strPtr(s string) *string { return &s }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

// ==========================================
// DEMO EMPLOYEES
// ==========================================

// DemoEmployees is the staff list seeded into the in-memory store. It covers
// the contract shapes the calculator distinguishes: full-time and part-time
// BVG members, a Quellensteuer case with a remote rate, and a new hire still
// in probation.
func DemoEmployees() []employee.Employee {
	return []employee.Employee{
		{
			ID:                  "0190a000-0000-7000-8000-000000000001",
			EmployeeNumber:      "E-001",
			FirstName:           "Anna",
			LastName:            "Muster",
			Email:               "anna.muster@example.ch",
			AHVNumber:           strPtr("756.1234.5678.97"),
			IBAN:                strPtr("CH93 0076 2011 6238 5295 7"),
			Status:              employee.StatusActive,
			HourlyRate:          decPtr("28.50"),
			HoursPerWeek:        decimal.NewFromInt(40),
			BVGInsured:          true,
			BVGContributionRate: decPtr("0.14"),
			DateOfBirth:         datePtr(1988, time.May, 14),
			StartDate:           date(2020, time.January, 1),
		},
		{
			ID:                  "0190a000-0000-7000-8000-000000000002",
			EmployeeNumber:      "E-002",
			FirstName:           "Luca",
			LastName:            "Bernasconi",
			Email:               "luca.bernasconi@example.ch",
			AHVNumber:           strPtr("756.9876.5432.10"),
			Status:              employee.StatusActive,
			HourlyRate:          decPtr("42.00"),
			HoursPerWeek:        decimal.NewFromInt(24),
			BVGInsured:          true,
			BVGContributionRate: decPtr("0.10"),
			DateOfBirth:         datePtr(1975, time.October, 2),
			StartDate:           date(2018, time.March, 1),
		},
		{
			ID:                   "0190a000-0000-7000-8000-000000000003",
			EmployeeNumber:       "E-003",
			FirstName:            "Marta",
			LastName:             "Kowalska",
			Email:                "marta.kowalska@example.ch",
			Status:               employee.StatusActive,
			HourlyRate:           decPtr("31.25"),
			HoursPerWeek:         decimal.NewFromInt(42),
			RemoteRateMultiplier: decPtr("0.95"),
			RemoteDaysPerWeek:    decPtr("2"),
			IsQuellensteuer:      true,
			QuellensteuerCode:    strPtr("A"),
			DateOfBirth:          datePtr(1992, time.February, 20),
			StartDate:            date(2023, time.August, 15),
		},
		{
			ID:               "0190a000-0000-7000-8000-000000000004",
			EmployeeNumber:   "E-004",
			FirstName:        "Jonas",
			LastName:         "Keller",
			Email:            "jonas.keller@example.ch",
			Status:           employee.StatusProbation,
			HourlyRate:       decPtr("26.00"),
			HoursPerWeek:     decimal.NewFromInt(40),
			DateOfBirth:      datePtr(2001, time.July, 9),
			StartDate:        date(2025, time.February, 1),
			ProbationEndDate: datePtr(2025, time.April, 30),
		},
	}
}

// EmployeeSink receives seeded employees.
type EmployeeSink interface {
	PutEmployee(e employee.Employee) employee.Employee
}

// SeedEmployees stores every demo employee and returns them with their IDs.
func SeedEmployees(sink EmployeeSink) []employee.Employee {
	demo := DemoEmployees()
	seeded := make([]employee.Employee, 0, len(demo))
	for _, e := range demo {
		now := time.Now()
		e.CreatedAt = now
		e.UpdatedAt = now
		seeded = append(seeded, sink.PutEmployee(e))
	}
	return seeded
}
