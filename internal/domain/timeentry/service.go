package timeentry

import (
	"context"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
)

type TimeEntryService interface {
	Create(ctx context.Context, actor user.Actor, req CreateTimeEntryRequest) (TimeEntryResponse, error)
	GetByID(ctx context.Context, actor user.Actor, id string) (TimeEntryResponse, error)
	List(ctx context.Context, actor user.Actor, filter ListFilter) ([]TimeEntryResponse, error)
	Update(ctx context.Context, actor user.Actor, id string, req UpdateTimeEntryRequest) (TimeEntryResponse, error)
	Delete(ctx context.Context, actor user.Actor, id string) error

	Submit(ctx context.Context, actor user.Actor, id string) (SubmitTimeEntryResponse, error)
	// Approve and Reject expect the caller to have checked the manager role.
	Approve(ctx context.Context, id string, approverID string) (TimeEntryResponse, error)
	Reject(ctx context.Context, id string, approverID string, req RejectTimeEntryRequest) (TimeEntryResponse, error)
}

// Ledger is what payroll needs from time entries.
type Ledger interface {
	ApprovedUnpaid(ctx context.Context, employeeID string, period YearMonth) ([]TimeEntry, error)
	ConsumedBy(ctx context.Context, payslipID string) ([]TimeEntry, error)
	// MarkPaid is all-or-nothing. It joins a transaction already on ctx.
	MarkPaid(ctx context.Context, entryIDs []string, payslipID string) error
	// Release undoes MarkPaid for a payslip that is being replaced.
	Release(ctx context.Context, payslipID string) error
}
