package deduction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/ratetable"
	rtservice "github.com/cmlabs-hris/payroll-engine/internal/service/ratetable"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func newCalculator(t *testing.T) *Calculator {
	t.Helper()
	rows, err := rtservice.DefaultSource{}.Load(context.Background())
	require.NoError(t, err)
	table, err := rtservice.NewTable(rows, time.Now())
	require.NoError(t, err)
	return NewCalculator(table)
}

func worker(rate string) employee.Employee {
	return employee.Employee{
		ID:             "emp-1",
		EmployeeNumber: "E-001",
		FirstName:      "Anna",
		LastName:       "Muster",
		Status:         employee.StatusActive,
		HourlyRate:     ptr(dec(rate)),
		HoursPerWeek:   dec("40"),
	}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "%s: want %s, got %s", msg, want, got.StringFixed(2))
}

func TestCalculator_ReferenceScenario(t *testing.T) {
	calc := newCalculator(t)
	emp := worker("28.50")

	gross, err := calc.GrossPay(payroll.Hours{Regular: dec("160"), Remote: dec("8")}, emp)
	require.NoError(t, err)

	b, err := calc.Compute(gross, emp, decimal.Zero, asOf, payroll.Adjustments{})
	require.NoError(t, err)

	assertMoney(t, "4560.00", b.Gross.Regular, "regular pay")
	assertMoney(t, "182.40", b.Gross.Remote, "remote pay")
	assertMoney(t, "4742.40", b.Gross.Total, "gross")
	assertMoney(t, "251.35", b.Deductions.AHV, "ahv")
	assertMoney(t, "52.17", b.Deductions.ALV, "alv")
	assertMoney(t, "0", b.Deductions.ALV2, "alv2")
	assertMoney(t, "303.52", b.Deductions.Total, "total deductions")
	assertMoney(t, "4438.88", b.NetSalary, "net")

	assertMoney(t, "251.35", b.Employer.AHV, "employer ahv")
	assertMoney(t, "52.17", b.Employer.ALV, "employer alv")
	assertMoney(t, "71.14", b.Employer.UVG, "employer uvg")
	assertMoney(t, "56.91", b.Employer.FAK, "employer fak")
	assertMoney(t, "9.48", b.Employer.Admin, "employer admin")
	assertMoney(t, "5183.45", b.Employer.Total, "employer total")
}

func TestCalculator_GrossPay_Multipliers(t *testing.T) {
	calc := newCalculator(t)

	tests := []struct {
		name   string
		hours  payroll.Hours
		remote *decimal.Decimal
		want   string
	}{
		{"overtime at 125%", payroll.Hours{Overtime: dec("10")}, nil, "375"},
		{"remote default 80%", payroll.Hours{Remote: dec("10")}, nil, "240"},
		{"remote contract multiplier", payroll.Hours{Remote: dec("10")}, ptr(dec("0.9")), "270"},
		{"paid absences at base rate", payroll.Hours{Holiday: dec("8"), Sick: dec("8"), PublicHoliday: dec("8"), Training: dec("4")}, nil, "840"},
		{"unpaid hours earn nothing", payroll.Hours{Unpaid: dec("16")}, nil, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emp := worker("30")
			emp.RemoteRateMultiplier = tt.remote
			g, err := calc.GrossPay(tt.hours, emp)
			require.NoError(t, err)
			assertMoney(t, tt.want, g.Total, "gross")
		})
	}
}

func TestCalculator_GrossComponentsAddUp(t *testing.T) {
	calc := newCalculator(t)
	emp := worker("10.02")

	// 0.25h * 10.02 = 2.505 per line; the unrounded sum would print as 5.01.
	gross, err := calc.GrossPay(payroll.Hours{Regular: dec("0.25"), Training: dec("0.25")}, emp)
	require.NoError(t, err)
	assertMoney(t, "2.51", gross.Regular, "regular")
	assertMoney(t, "2.51", gross.Training, "training")
	assertMoney(t, "5.02", gross.Total, "gross")

	b, err := calc.Compute(gross, emp, decimal.Zero, asOf, payroll.Adjustments{})
	require.NoError(t, err)
	sum := decimal.Sum(b.Gross.Regular, b.Gross.Remote, b.Gross.Holiday, b.Gross.Sick,
		b.Gross.PublicHoliday, b.Gross.Overtime, b.Gross.Training)
	assertMoney(t, sum.String(), b.Gross.Total, "gross total matches its lines")
	assertMoney(t, "5.02", b.Gross.Total, "reported gross")
}

func TestCalculator_ALVCeiling(t *testing.T) {
	calc := newCalculator(t)
	emp := worker("50")
	gross, err := calc.GrossPay(payroll.Hours{Regular: dec("100")}, emp)
	require.NoError(t, err)

	t.Run("ytd at ceiling moves everything to ALV2", func(t *testing.T) {
		b, err := calc.Compute(gross, emp, dec("148200"), asOf, payroll.Adjustments{})
		require.NoError(t, err)
		assertMoney(t, "0", b.Deductions.ALV, "alv")
		assertMoney(t, "25.00", b.Deductions.ALV2, "alv2")
		assertMoney(t, "0", b.Employer.ALV, "employer alv")
	})

	t.Run("ytd above ceiling", func(t *testing.T) {
		b, err := calc.Compute(gross, emp, dec("200000"), asOf, payroll.Adjustments{})
		require.NoError(t, err)
		assertMoney(t, "0", b.Deductions.ALV, "alv")
		assertMoney(t, "25.00", b.Deductions.ALV2, "alv2")
	})

	t.Run("month crossing the ceiling is split", func(t *testing.T) {
		b, err := calc.Compute(gross, emp, dec("146200"), asOf, payroll.Adjustments{})
		require.NoError(t, err)
		assertMoney(t, "22.00", b.Deductions.ALV, "alv")
		assertMoney(t, "15.00", b.Deductions.ALV2, "alv2")
		assertMoney(t, "22.00", b.Employer.ALV, "employer alv")
	})
}

func TestCalculator_BVG(t *testing.T) {
	calc := newCalculator(t)
	emp := worker("60")
	emp.BVGInsured = true
	emp.BVGContributionRate = ptr(dec("0.07"))

	gross, err := calc.GrossPay(payroll.Hours{Regular: dec("100")}, emp)
	require.NoError(t, err)

	b, err := calc.Compute(gross, emp, decimal.Zero, asOf, payroll.Adjustments{})
	require.NoError(t, err)
	// (6000 - 26460/12) * 0.07 / 2
	assertMoney(t, "132.83", b.Deductions.BVG, "bvg")
	assertMoney(t, "132.83", b.Employer.BVG, "employer bvg")

	t.Run("gross under coordination deduction", func(t *testing.T) {
		low, err := calc.GrossPay(payroll.Hours{Regular: dec("10")}, emp)
		require.NoError(t, err)
		b, err := calc.Compute(low, emp, decimal.Zero, asOf, payroll.Adjustments{})
		require.NoError(t, err)
		assert.True(t, b.Deductions.BVG.IsZero())
	})
}

func TestCalculator_Quellensteuer(t *testing.T) {
	calc := newCalculator(t)
	emp := worker("28.50")
	emp.IsQuellensteuer = true
	gross, err := calc.GrossPay(payroll.Hours{Regular: dec("160"), Remote: dec("8")}, emp)
	require.NoError(t, err)

	tests := []struct {
		code string
		want string
	}{
		{"A0", "474.24"},
		{"B1", "711.36"},
		{"C2", "948.48"},
		{"H1", "569.09"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			emp.QuellensteuerCode = ptr(tt.code)
			b, err := calc.Compute(gross, emp, decimal.Zero, asOf, payroll.Adjustments{})
			require.NoError(t, err)
			assertMoney(t, tt.want, b.Deductions.Quellensteuer, "quellensteuer")
		})
	}
}

func TestCalculator_MissingContractTerm(t *testing.T) {
	calc := newCalculator(t)

	tests := []struct {
		name  string
		edit  func(e *employee.Employee)
		field string
	}{
		{"no hourly rate", func(e *employee.Employee) { e.HourlyRate = nil }, "hourly_rate"},
		{"zero hourly rate", func(e *employee.Employee) { e.HourlyRate = ptr(decimal.Zero) }, "hourly_rate"},
		{"bvg without rate", func(e *employee.Employee) { e.BVGInsured = true }, "bvg_contribution_rate"},
		{"withholding without code", func(e *employee.Employee) { e.IsQuellensteuer = true }, "quellensteuer_code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emp := worker("30")
			tt.edit(&emp)

			_, err := calc.Compute(payroll.GrossPay{Total: dec("1000")}, emp, decimal.Zero, asOf, payroll.Adjustments{})
			require.ErrorIs(t, err, payroll.ErrMissingContractTerm)

			var missing *payroll.MissingContractTermError
			require.True(t, errors.As(err, &missing))
			assert.Equal(t, tt.field, missing.Field)
		})
	}
}

func TestCalculator_RateUnavailable(t *testing.T) {
	calc := newCalculator(t)
	emp := worker("30")

	_, err := calc.Compute(payroll.GrossPay{Total: dec("1000")}, emp, decimal.Zero, time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC), payroll.Adjustments{})
	require.ErrorIs(t, err, ratetable.ErrNoRateForDate)

	var rateErr *ratetable.RateError
	require.True(t, errors.As(err, &rateErr))
	assert.Equal(t, ratetable.KindAHV, rateErr.Kind)
}

func TestCalculator_NetIdentity(t *testing.T) {
	calc := newCalculator(t)
	emp := worker("33.33")
	emp.BVGInsured = true
	emp.BVGContributionRate = ptr(dec("0.085"))
	emp.IsQuellensteuer = true
	emp.QuellensteuerCode = ptr("B2")
	emp.RemoteRateMultiplier = ptr(dec("0.777"))

	adj := payroll.Adjustments{
		KBBonus:              dec("100"),
		ExpenseReimbursement: dec("50.555"),
		OtherAdditions:       dec("12.3"),
		OtherDeductions:      dec("20.004"),
	}

	for _, ytd := range []string{"0", "140000", "150000"} {
		gross, err := calc.GrossPay(payroll.Hours{
			Regular:  dec("121.75"),
			Remote:   dec("17.5"),
			Overtime: dec("3.25"),
			Sick:     dec("7.7"),
		}, emp)
		require.NoError(t, err)

		b, err := calc.Compute(gross, emp, dec(ytd), asOf, adj)
		require.NoError(t, err)

		slip := payroll.PaySlip{Gross: b.Gross, Deductions: b.Deductions, Additions: b.Additions, NetSalary: b.NetSalary}
		assert.True(t, slip.Balanced(), "ytd %s: net %s + deductions %s != gross %s + additions %s",
			ytd, b.NetSalary, b.Deductions.Total, b.Gross.Total, b.Additions.Total())
		assertMoney(t, b.NetSalary.Round(2).String(), b.NetSalary, "net is rounded")
	}
}
