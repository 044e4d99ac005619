package timeentry

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type TimeEntryRepository interface {
	Create(ctx context.Context, entry TimeEntry) (TimeEntry, error)
	GetByID(ctx context.Context, id string) (TimeEntry, error)
	Update(ctx context.Context, entry TimeEntry) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]TimeEntry, error)

	// ApprovedUnpaid returns approved entries with no payslip, ordered by date then type.
	ApprovedUnpaid(ctx context.Context, employeeID string, period YearMonth) ([]TimeEntry, error)
	ByPayslip(ctx context.Context, payslipID string) ([]TimeEntry, error)

	// RemoteHoursInWeek sums remote hours already submitted, approved or paid
	// in [from, to], leaving out excludeID.
	RemoteHoursInWeek(ctx context.Context, employeeID string, from, to time.Time, excludeID string) (decimal.Decimal, error)

	// MarkPaid moves approved entries to paid and links them. Only entries
	// currently approved are touched; the count of touched rows is returned.
	MarkPaid(ctx context.Context, ids []string, payslipID string, at time.Time) (int, error)
	// ReleasePayslip moves paid entries of a payslip back to approved and unlinks them.
	ReleasePayslip(ctx context.Context, payslipID string, at time.Time) (int, error)
}
