package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/timeentry"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/sse"
	"github.com/cmlabs-hris/payroll-engine/internal/service/payslip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Options carries the PAYROLL_* settings.
type Options struct {
	Workers      int
	AbortOnError bool
	LockTTL      time.Duration
	ExportOnPaid bool
	NotifyOnPaid bool
}

// Dependencies groups what the orchestrator talks to. Exporter and Notifier
// may be nil.
type Dependencies struct {
	Tx           database.Transactor
	RunRepo      payroll.PayrollRunRepository
	SlipRepo     payroll.PaySlipRepository
	EmployeeRepo employee.EmployeeRepository
	Ledger       timeentry.Ledger
	Builder      *payslip.Builder
	Locker       lock.Locker
	Events       *sse.Hub[payroll.RunEvent]
	Exporter     payroll.Exporter
	Notifier     payroll.PayslipNotifier
}

type PayrollServiceImpl struct {
	Dependencies
	opts Options

	mu       sync.Mutex
	inflight map[string]context.CancelFunc

	background sync.WaitGroup
}

func NewPayrollService(deps Dependencies, opts Options) *PayrollServiceImpl {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 15 * time.Minute
	}
	if deps.Events == nil {
		deps.Events = sse.NewHub[payroll.RunEvent](32)
	}
	return &PayrollServiceImpl{
		Dependencies: deps,
		opts:         opts,
		inflight:     map[string]context.CancelFunc{},
	}
}

var _ payroll.PayrollService = (*PayrollServiceImpl)(nil)

// ========== RUNS ==========

func (s *PayrollServiceImpl) CreateRun(ctx context.Context, actor user.Actor, req payroll.CreateRunRequest) (payroll.RunResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.RunResponse{}, err
	}

	abort := s.opts.AbortOnError
	if req.AbortOnError != nil {
		abort = *req.AbortOnError
	}

	period := timeentry.NewYearMonth(req.Year, req.Month)
	createdBy := actor.UserID
	run := payroll.PayrollRun{
		Year:         req.Year,
		Month:        req.Month,
		PeriodName:   period.PeriodName(),
		Status:       payroll.RunStatusDraft,
		AbortOnError: abort,
		CreatedBy:    &createdBy,
		Notes:        req.Notes,
	}

	created, err := s.RunRepo.Create(ctx, run)
	if err != nil {
		return payroll.RunResponse{}, fmt.Errorf("failed to create payroll run: %w", err)
	}

	slog.Info("payroll run created", "run_id", created.ID, "period", period.String(), "created_by", createdBy)
	return payroll.ToRunResponse(created), nil
}

func (s *PayrollServiceImpl) GetRun(ctx context.Context, id string) (payroll.RunResponse, error) {
	run, err := s.RunRepo.GetByID(ctx, id)
	if err != nil {
		return payroll.RunResponse{}, err
	}
	return payroll.ToRunResponse(run), nil
}

func (s *PayrollServiceImpl) ListRuns(ctx context.Context, filter payroll.RunFilter) ([]payroll.RunResponse, error) {
	runs, err := s.RunRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	result := make([]payroll.RunResponse, 0, len(runs))
	for _, r := range runs {
		result = append(result, payroll.ToRunResponse(r))
	}
	return result, nil
}

func (s *PayrollServiceImpl) ListPayslips(ctx context.Context, runID string) ([]payroll.PayslipResponse, error) {
	if _, err := s.RunRepo.GetByID(ctx, runID); err != nil {
		return nil, err
	}
	slips, err := s.SlipRepo.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payslips: %w", err)
	}
	result := make([]payroll.PayslipResponse, 0, len(slips))
	for _, p := range slips {
		result = append(result, payroll.ToPayslipResponse(p))
	}
	return result, nil
}

func (s *PayrollServiceImpl) Subscribe(runID string) (<-chan payroll.RunEvent, func()) {
	return s.Events.Subscribe(runID)
}

// ========== CALCULATION ==========

type employeeResult struct {
	employee employee.Employee
	prior    *payroll.PaySlip
	slip     *payroll.PaySlip
	skipped  bool
	err      *payroll.EmployeeError
}

// StartCalculation computes slips for every eligible employee and moves the
// run to pending_review. Workers only read; all writes happen in a single
// transaction once every worker is done.
func (s *PayrollServiceImpl) StartCalculation(ctx context.Context, runID string) (payroll.CalculationResponse, error) {
	run, err := s.RunRepo.GetByID(ctx, runID)
	if err != nil {
		return payroll.CalculationResponse{}, err
	}
	if err := checkMutable(run); err != nil {
		return payroll.CalculationResponse{}, err
	}
	if !run.Status.CanTransitionTo(payroll.RunStatusCalculating) {
		return payroll.CalculationResponse{}, fmt.Errorf("%w: cannot calculate a %s run", payroll.ErrInvalidRunTransition, run.Status)
	}

	unlock, err := s.acquire(ctx, runID)
	if err != nil {
		return payroll.CalculationResponse{}, err
	}
	defer unlock()

	from := run.Status
	run.Status = payroll.RunStatusCalculating
	if err := s.RunRepo.Update(ctx, run, from); err != nil {
		return payroll.CalculationResponse{}, fmt.Errorf("failed to start calculation: %w", err)
	}
	s.publishStatus(run, "")

	// The calculation outlives a dropped client connection; only
	// CancelCalculation stops it.
	calcCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.register(runID, cancel)
	defer s.deregister(runID)

	employees, err := s.EmployeeRepo.ListEligible(calcCtx, run.Period().Start(), run.Period().End())
	if err != nil {
		s.revertToDraft(run, "employee lookup failed")
		return payroll.CalculationResponse{}, fmt.Errorf("failed to list eligible employees: %w", err)
	}

	results := make([]employeeResult, len(employees))
	var processed atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, emp := range employees {
		g.Go(func() error {
			if err := calcCtx.Err(); err != nil {
				return err
			}
			results[i] = s.calculateEmployee(calcCtx, run, emp)
			s.publishProgress(run, int(processed.Add(1)), len(employees))
			return nil
		})
	}
	_ = g.Wait()

	if calcCtx.Err() != nil {
		s.revertToDraft(run, "cancelled")
		slog.Info("payroll calculation cancelled", "run_id", runID, "processed", processed.Load())
		return payroll.CalculationResponse{}, payroll.ErrCalculationCancelled
	}

	var calcErrors []payroll.CalculationError
	skipped := 0
	for _, r := range results {
		switch {
		case r.err != nil:
			calcErrors = append(calcErrors, r.err.Record())
		case r.skipped:
			skipped++
		}
	}

	if run.AbortOnError && len(calcErrors) > 0 {
		s.revertToDraft(run, "aborted on employee errors")
		slog.Warn("payroll calculation aborted", "run_id", runID, "errors", len(calcErrors))
		return payroll.CalculationResponse{}, &payroll.AbortedError{Errors: calcErrors}
	}

	calculating := run
	persistCtx := context.WithoutCancel(ctx)
	err = s.Tx.WithinTx(persistCtx, func(ctx context.Context) error {
		for _, r := range results {
			if err := s.replaceSlip(ctx, r); err != nil {
				return err
			}
		}

		run.Errors = calcErrors
		run.HasErrors = len(calcErrors) > 0
		if err := s.applyTotals(ctx, &run); err != nil {
			return err
		}
		now := time.Now()
		run.CalculatedAt = &now
		return s.submitForReview(ctx, &run)
	})
	if err != nil {
		s.revertToDraft(calculating, "persisting results failed")
		return payroll.CalculationResponse{}, fmt.Errorf("failed to persist payroll results: %w", err)
	}

	s.publishStatus(run, "")
	slog.Info("payroll run calculated",
		"run_id", runID,
		"period", run.Period().String(),
		"slips", run.TotalEmployees,
		"skipped", skipped,
		"errors", len(calcErrors),
		"total_gross", run.TotalGross.StringFixed(2),
	)

	return payroll.CalculationResponse{
		Run:       payroll.ToRunResponse(run),
		Processed: run.TotalEmployees,
		Skipped:   skipped,
		Failed:    len(calcErrors),
	}, nil
}

// RecalculateEmployee redoes one employee's slip while the run is under review.
func (s *PayrollServiceImpl) RecalculateEmployee(ctx context.Context, runID, employeeID string) (payroll.RunResponse, error) {
	run, err := s.RunRepo.GetByID(ctx, runID)
	if err != nil {
		return payroll.RunResponse{}, err
	}
	if err := checkMutable(run); err != nil {
		return payroll.RunResponse{}, err
	}
	if run.Status != payroll.RunStatusPendingReview {
		return payroll.RunResponse{}, fmt.Errorf("%w: employees can only be recalculated in review, run is %s", payroll.ErrInvalidRunTransition, run.Status)
	}

	emp, err := s.EmployeeRepo.GetByID(ctx, employeeID)
	if err != nil {
		return payroll.RunResponse{}, err
	}
	if !emp.EmployedDuring(run.Period().Start(), run.Period().End()) {
		return payroll.RunResponse{}, payroll.ErrEmployeeNotInRun
	}

	unlock, err := s.acquire(ctx, runID)
	if err != nil {
		return payroll.RunResponse{}, err
	}
	defer unlock()

	result := s.calculateEmployee(ctx, run, emp)

	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.replaceSlip(ctx, result); err != nil {
			return err
		}

		run.Errors = slices.DeleteFunc(run.Errors, func(e payroll.CalculationError) bool {
			return e.EmployeeID == employeeID
		})
		if result.err != nil {
			run.Errors = append(run.Errors, result.err.Record())
		}
		run.HasErrors = len(run.Errors) > 0
		if err := s.applyTotals(ctx, &run); err != nil {
			return err
		}
		return s.RunRepo.Update(ctx, run, payroll.RunStatusPendingReview)
	})
	if err != nil {
		return payroll.RunResponse{}, fmt.Errorf("failed to recalculate employee: %w", err)
	}

	slog.Info("payroll employee recalculated", "run_id", runID, "employee_id", employeeID, "has_errors", run.HasErrors)
	s.publishStatus(run, "employee recalculated")
	return payroll.ToRunResponse(run), nil
}

func (s *PayrollServiceImpl) CancelCalculation(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancel, ok := s.inflight[runID]
	if !ok {
		return payroll.ErrNotCalculating
	}
	cancel()
	return nil
}

// calculateEmployee never writes. Failures end up in the result, not as a
// returned error, so one employee cannot stop the others.
func (s *PayrollServiceImpl) calculateEmployee(ctx context.Context, run payroll.PayrollRun, emp employee.Employee) employeeResult {
	res := employeeResult{employee: emp}
	fail := func(err error) employeeResult {
		res.err = &payroll.EmployeeError{EmployeeID: emp.ID, EmployeeNumber: emp.EmployeeNumber, Err: err}
		return res
	}

	prior, err := s.SlipRepo.GetByRunAndEmployee(ctx, run.ID, emp.ID)
	switch {
	case err == nil:
		res.prior = &prior
	case !errors.Is(err, payroll.ErrPayslipNotFound):
		return fail(fmt.Errorf("failed to load existing payslip: %w", err))
	}

	ytd, err := s.SlipRepo.YearToDateGross(ctx, emp.ID, run.Year, run.Month)
	if err != nil {
		return fail(fmt.Errorf("failed to load year-to-date gross: %w", err))
	}

	slip, err := s.Builder.Build(ctx, run, emp, ytd, res.prior)
	switch {
	case errors.Is(err, payroll.ErrNoEntries):
		res.skipped = true
		return res
	case err != nil:
		return fail(err)
	}
	res.slip = &slip
	return res
}

// replaceSlip swaps an employee's previous slip for the new result inside
// the caller's transaction.
func (s *PayrollServiceImpl) replaceSlip(ctx context.Context, r employeeResult) error {
	if r.prior != nil {
		if err := s.Ledger.Release(ctx, r.prior.ID); err != nil {
			return err
		}
		if err := s.SlipRepo.Delete(ctx, r.prior.ID); err != nil {
			return fmt.Errorf("failed to delete payslip %s: %w", r.prior.ID, err)
		}
	}
	if r.slip == nil {
		return nil
	}
	created, err := s.SlipRepo.Create(ctx, *r.slip)
	if err != nil {
		return fmt.Errorf("failed to store payslip for %s: %w", r.employee.EmployeeNumber, err)
	}
	return s.Ledger.MarkPaid(ctx, created.TimeEntryIDs, created.ID)
}

// applyTotals recomputes run totals from the slips stored in the run.
func (s *PayrollServiceImpl) applyTotals(ctx context.Context, run *payroll.PayrollRun) error {
	slips, err := s.SlipRepo.ListByRun(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("failed to list payslips: %w", err)
	}

	run.TotalEmployees = len(slips)
	run.TotalHours = decimal.Zero
	run.TotalGross = decimal.Zero
	run.TotalNet = decimal.Zero
	run.TotalEmployerCost = decimal.Zero
	for _, p := range slips {
		run.TotalHours = run.TotalHours.Add(p.Hours.Total)
		run.TotalGross = run.TotalGross.Add(p.Gross.Total)
		run.TotalNet = run.TotalNet.Add(p.NetSalary)
		run.TotalEmployerCost = run.TotalEmployerCost.Add(p.Employer.Total)
	}
	return nil
}

func (s *PayrollServiceImpl) submitForReview(ctx context.Context, run *payroll.PayrollRun) error {
	run.Status = payroll.RunStatusPendingReview
	return s.RunRepo.Update(ctx, *run, payroll.RunStatusCalculating)
}

func (s *PayrollServiceImpl) revertToDraft(run payroll.PayrollRun, reason string) {
	run.Status = payroll.RunStatusDraft
	if err := s.RunRepo.Update(context.Background(), run, payroll.RunStatusCalculating); err != nil {
		slog.Error("failed to revert payroll run to draft", "run_id", run.ID, "reason", reason, "error", err)
		return
	}
	s.publishStatus(run, reason)
}

func (s *PayrollServiceImpl) acquire(ctx context.Context, runID string) (func(), error) {
	unlock, err := s.Locker.TryLock(ctx, "payroll-run:"+runID, s.opts.LockTTL)
	if errors.Is(err, lock.ErrLockHeld) {
		return nil, payroll.ErrAlreadyCalculating
	}
	if err != nil {
		return nil, err
	}
	return func() {
		if err := unlock(context.Background()); err != nil {
			slog.Warn("failed to release payroll run lock", "run_id", runID, "error", err)
		}
	}, nil
}

func (s *PayrollServiceImpl) register(runID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight[runID] = cancel
}

func (s *PayrollServiceImpl) deregister(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.inflight[runID]; ok {
		cancel()
		delete(s.inflight, runID)
	}
}

// ========== LIFECYCLE ==========

func (s *PayrollServiceImpl) Approve(ctx context.Context, runID, approverID string) (payroll.RunResponse, error) {
	run, err := s.transition(ctx, runID, payroll.RunStatusApproved, func(run *payroll.PayrollRun) error {
		if run.HasErrors {
			return payroll.ErrHasUnresolvedErrors
		}
		now := time.Now()
		run.ApprovedBy = &approverID
		run.ApprovedAt = &now
		return nil
	})
	if err != nil {
		return payroll.RunResponse{}, err
	}
	return payroll.ToRunResponse(run), nil
}

func (s *PayrollServiceImpl) StartProcessing(ctx context.Context, runID string) (payroll.RunResponse, error) {
	run, err := s.transition(ctx, runID, payroll.RunStatusProcessing, func(run *payroll.PayrollRun) error {
		now := time.Now()
		run.ProcessingAt = &now
		return nil
	})
	if err != nil {
		return payroll.RunResponse{}, err
	}
	return payroll.ToRunResponse(run), nil
}

// MarkPaid records payment and then exports and notifies in the background.
// Neither follow-up can undo the payment.
func (s *PayrollServiceImpl) MarkPaid(ctx context.Context, runID string) (payroll.RunResponse, error) {
	run, err := s.transition(ctx, runID, payroll.RunStatusPaid, func(run *payroll.PayrollRun) error {
		now := time.Now()
		run.PaidAt = &now
		return nil
	})
	if err != nil {
		return payroll.RunResponse{}, err
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.afterPaid(context.Background(), run)
	}()

	return payroll.ToRunResponse(run), nil
}

func (s *PayrollServiceImpl) Close(ctx context.Context, runID string) (payroll.RunResponse, error) {
	run, err := s.transition(ctx, runID, payroll.RunStatusClosed, func(run *payroll.PayrollRun) error {
		now := time.Now()
		run.ClosedAt = &now
		return nil
	})
	if err != nil {
		return payroll.RunResponse{}, err
	}
	return payroll.ToRunResponse(run), nil
}

// Wait blocks until background follow-ups of MarkPaid have finished.
func (s *PayrollServiceImpl) Wait() {
	s.background.Wait()
}

func (s *PayrollServiceImpl) afterPaid(ctx context.Context, run payroll.PayrollRun) {
	if s.Exporter != nil && s.opts.ExportOnPaid {
		if _, err := s.Exporter.Export(ctx, run.ID); err != nil {
			slog.Error("payroll export failed", "run_id", run.ID, "error", err)
		}
	}

	if s.Notifier != nil && s.opts.NotifyOnPaid {
		slips, err := s.SlipRepo.ListByRun(ctx, run.ID)
		if err != nil {
			slog.Error("failed to load payslips for notification", "run_id", run.ID, "error", err)
			return
		}
		s.Notifier.NotifyPayslips(ctx, run, slips)
	}
}

func (s *PayrollServiceImpl) transition(ctx context.Context, runID string, to payroll.RunStatus, mutate func(*payroll.PayrollRun) error) (payroll.PayrollRun, error) {
	run, err := s.RunRepo.GetByID(ctx, runID)
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	if err := checkMutable(run); err != nil {
		return payroll.PayrollRun{}, err
	}
	if !run.Status.CanTransitionTo(to) {
		return payroll.PayrollRun{}, fmt.Errorf("%w: %s to %s", payroll.ErrInvalidRunTransition, run.Status, to)
	}
	if err := mutate(&run); err != nil {
		return payroll.PayrollRun{}, err
	}

	from := run.Status
	run.Status = to
	if err := s.RunRepo.Update(ctx, run, from); err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("failed to update payroll run: %w", err)
	}

	slog.Info("payroll run status changed", "run_id", run.ID, "from", from, "to", to)
	s.publishStatus(run, "")
	return run, nil
}

func checkMutable(run payroll.PayrollRun) error {
	if run.Status == payroll.RunStatusClosed {
		return payroll.ErrRunImmutable
	}
	return nil
}

func (s *PayrollServiceImpl) publishStatus(run payroll.PayrollRun, message string) {
	s.Events.Publish(run.ID, payroll.RunEvent{
		RunID:   run.ID,
		Type:    payroll.EventRunStatus,
		Status:  run.Status,
		Message: message,
		At:      time.Now(),
	})
}

func (s *PayrollServiceImpl) publishProgress(run payroll.PayrollRun, processed, total int) {
	s.Events.Publish(run.ID, payroll.RunEvent{
		RunID:     run.ID,
		Type:      payroll.EventRunProgress,
		Status:    payroll.RunStatusCalculating,
		Processed: processed,
		Total:     total,
		At:        time.Now(),
	})
}
