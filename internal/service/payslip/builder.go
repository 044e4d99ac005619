package payslip

import (
	"context"
	"fmt"
	"slices"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/timeentry"
	"github.com/cmlabs-hris/payroll-engine/internal/service/deduction"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Builder assembles one employee's payslip for a run. It reads but never
// writes, so it can run on many employees at once.
type Builder struct {
	ledger      timeentry.Ledger
	calc        *deduction.Calculator
	adjustments payroll.AdjustmentSource
}

func NewBuilder(ledger timeentry.Ledger, calc *deduction.Calculator, adjustments payroll.AdjustmentSource) *Builder {
	if adjustments == nil {
		adjustments = payroll.NoAdjustments{}
	}
	return &Builder{ledger: ledger, calc: calc, adjustments: adjustments}
}

// Build returns payroll.ErrNoEntries when there is nothing to pay. prior is
// the employee's existing slip in the same run; its entries are paid again
// by the replacement.
func (b *Builder) Build(ctx context.Context, run payroll.PayrollRun, emp employee.Employee, ytdGross decimal.Decimal, prior *payroll.PaySlip) (payroll.PaySlip, error) {
	period := run.Period()

	entries, err := b.ledger.ApprovedUnpaid(ctx, emp.ID, period)
	if err != nil {
		return payroll.PaySlip{}, err
	}
	if prior != nil {
		consumed, err := b.ledger.ConsumedBy(ctx, prior.ID)
		if err != nil {
			return payroll.PaySlip{}, err
		}
		entries = merge(entries, consumed)
	}
	if len(entries) == 0 {
		return payroll.PaySlip{}, payroll.ErrNoEntries
	}

	var hours payroll.Hours
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		hours.Add(e.EntryType, e.Hours)
		ids = append(ids, e.ID)
	}

	gross, err := b.calc.GrossPay(hours, emp)
	if err != nil {
		return payroll.PaySlip{}, err
	}

	adj, err := b.adjustments.Adjustments(ctx, emp.ID, run.Year, run.Month)
	if err != nil {
		return payroll.PaySlip{}, fmt.Errorf("failed to load adjustments: %w", err)
	}

	breakdown, err := b.calc.Compute(gross, emp, ytdGross, period.End(), adj)
	if err != nil {
		return payroll.PaySlip{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return payroll.PaySlip{}, fmt.Errorf("failed to generate payslip id: %w", err)
	}

	slip := payroll.PaySlip{
		ID:              id.String(),
		PayrollRunID:    run.ID,
		EmployeeID:      emp.ID,
		Year:            run.Year,
		Month:           run.Month,
		EmployeeName:    emp.FullName(),
		EmployeeNumber:  emp.EmployeeNumber,
		AHVNumber:       emp.AHVNumber,
		HourlyRate:      *emp.HourlyRate,
		Hours:           hours,
		Gross:           breakdown.Gross,
		Deductions:      breakdown.Deductions,
		Additions:       breakdown.Additions,
		NetSalary:       breakdown.NetSalary,
		Employer:        breakdown.Employer,
		YearToDateGross: ytdGross,
		TimeEntryIDs:    ids,
	}
	if !slip.Balanced() {
		return payroll.PaySlip{}, fmt.Errorf("%w: employee %s", payroll.ErrAccountingUnbalanced, emp.EmployeeNumber)
	}
	return slip, nil
}

// merge joins both sets without duplicates, in payroll order.
func merge(a, b []timeentry.TimeEntry) []timeentry.TimeEntry {
	out := slices.Clone(a)
	for _, e := range b {
		if !slices.ContainsFunc(out, func(x timeentry.TimeEntry) bool { return x.ID == e.ID }) {
			out = append(out, e)
		}
	}
	timeentry.SortForPayroll(out)
	return out
}
