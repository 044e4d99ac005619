package payroll

import (
	"context"

	"github.com/shopspring/decimal"
)

type PayrollRunRepository interface {
	// Create fails with ErrRunAlreadyExists when a non-closed run covers the same period.
	Create(ctx context.Context, run PayrollRun) (PayrollRun, error)
	GetByID(ctx context.Context, id string) (PayrollRun, error)
	List(ctx context.Context, filter RunFilter) ([]PayrollRun, error)
	// Update writes every mutable column except the export keys, but only
	// while the stored status still equals expected. Otherwise it returns
	// ErrInvalidRunTransition.
	Update(ctx context.Context, run PayrollRun, expected RunStatus) error
	// RecordExport stores artifact keys and the export time. It leaves the
	// status alone, so it cannot clash with a concurrent transition.
	RecordExport(ctx context.Context, runID string, exports ExportResponse) error
}

type PaySlipRepository interface {
	Create(ctx context.Context, slip PaySlip) (PaySlip, error)
	GetByID(ctx context.Context, id string) (PaySlip, error)
	GetByRunAndEmployee(ctx context.Context, runID, employeeID string) (PaySlip, error)
	// ListByRun orders by employee number.
	ListByRun(ctx context.Context, runID string) ([]PaySlip, error)
	Delete(ctx context.Context, id string) error
	// YearToDateGross sums gross of the employee's slips in approved or later
	// runs of the year, for months before beforeMonth.
	YearToDateGross(ctx context.Context, employeeID string, year, beforeMonth int) (decimal.Decimal, error)
	// MarkEmailSent flips the delivery flag, also on slips of approved runs.
	MarkEmailSent(ctx context.Context, id string) error
}

// AdjustmentSource supplies bonuses, reimbursements and manual deductions
// for an employee and period.
type AdjustmentSource interface {
	Adjustments(ctx context.Context, employeeID string, year, month int) (Adjustments, error)
}

// NoAdjustments is the AdjustmentSource used when none is configured.
type NoAdjustments struct{}

func (NoAdjustments) Adjustments(context.Context, string, int, int) (Adjustments, error) {
	return Adjustments{}, nil
}
