package payroll

import (
	"context"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
)

type PayrollService interface {
	CreateRun(ctx context.Context, actor user.Actor, req CreateRunRequest) (RunResponse, error)
	GetRun(ctx context.Context, id string) (RunResponse, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunResponse, error)
	ListPayslips(ctx context.Context, runID string) ([]PayslipResponse, error)

	StartCalculation(ctx context.Context, runID string) (CalculationResponse, error)
	CancelCalculation(ctx context.Context, runID string) error
	RecalculateEmployee(ctx context.Context, runID, employeeID string) (RunResponse, error)

	Approve(ctx context.Context, runID, approverID string) (RunResponse, error)
	StartProcessing(ctx context.Context, runID string) (RunResponse, error)
	MarkPaid(ctx context.Context, runID string) (RunResponse, error)
	Close(ctx context.Context, runID string) (RunResponse, error)

	// Subscribe streams RunEvents for a run until the returned func is called.
	Subscribe(runID string) (<-chan RunEvent, func())
}

// Exporter turns an approved run into stored artifacts. Failures never
// change the run's status.
type Exporter interface {
	Export(ctx context.Context, runID string) (ExportResponse, error)
}

// PayslipNotifier is fire-and-forget: errors are logged by the implementation.
type PayslipNotifier interface {
	NotifyPayslips(ctx context.Context, run PayrollRun, slips []PaySlip)
}
