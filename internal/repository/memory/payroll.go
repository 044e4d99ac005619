package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

type payrollRunRepository struct {
	s *Store
}

func NewPayrollRunRepository(s *Store) payroll.PayrollRunRepository {
	return &payrollRunRepository{s: s}
}

func (r *payrollRunRepository) Create(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	err := r.s.write(ctx, "payroll_run.create", func() error {
		for _, existing := range r.s.runs {
			if existing.Year == run.Year && existing.Month == run.Month && existing.Status != payroll.RunStatusClosed {
				return payroll.ErrRunAlreadyExists
			}
		}
		now := time.Now()
		run.ID = newID()
		run.CreatedAt = now
		run.UpdatedAt = now
		run.Errors = slices.Clone(run.Errors)
		r.s.runs[run.ID] = run
		return nil
	})
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	return run, nil
}

func (r *payrollRunRepository) GetByID(_ context.Context, id string) (payroll.PayrollRun, error) {
	var (
		run payroll.PayrollRun
		ok  bool
	)
	r.s.read(func() { run, ok = r.s.runs[id] })
	if !ok {
		return payroll.PayrollRun{}, payroll.ErrRunNotFound
	}
	run.Errors = slices.Clone(run.Errors)
	return run, nil
}

func (r *payrollRunRepository) List(_ context.Context, filter payroll.RunFilter) ([]payroll.PayrollRun, error) {
	var out []payroll.PayrollRun
	r.s.read(func() {
		for _, run := range r.s.runs {
			if filter.Year != nil && run.Year != *filter.Year {
				continue
			}
			if filter.Status != nil && run.Status != *filter.Status {
				continue
			}
			out = append(out, run)
		}
	})

	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		if out[i].Month != out[j].Month {
			return out[i].Month > out[j].Month
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *payrollRunRepository) Update(ctx context.Context, run payroll.PayrollRun, expected payroll.RunStatus) error {
	return r.s.write(ctx, "payroll_run.update", func() error {
		current, ok := r.s.runs[run.ID]
		if !ok {
			return payroll.ErrRunNotFound
		}
		if current.Status != expected {
			return fmt.Errorf("%w: run is %s, expected %s", payroll.ErrInvalidRunTransition, current.Status, expected)
		}
		run.CSVExportKey = current.CSVExportKey
		run.XLSXExportKey = current.XLSXExportKey
		run.PDFArchiveKey = current.PDFArchiveKey
		run.AuditLogKey = current.AuditLogKey
		run.ExportedAt = current.ExportedAt
		run.UpdatedAt = time.Now()
		run.Errors = slices.Clone(run.Errors)
		r.s.runs[run.ID] = run
		return nil
	})
}

func (r *payrollRunRepository) RecordExport(ctx context.Context, runID string, exports payroll.ExportResponse) error {
	return r.s.write(ctx, "payroll_run.record_export", func() error {
		run, ok := r.s.runs[runID]
		if !ok {
			return payroll.ErrRunNotFound
		}
		csvKey, xlsxKey, auditKey := exports.CSVKey, exports.XLSXKey, exports.AuditLogKey
		exportedAt := exports.ExportedAt
		run.CSVExportKey = &csvKey
		run.XLSXExportKey = &xlsxKey
		run.AuditLogKey = &auditKey
		run.PDFArchiveKey = nil
		if exports.PDFArchiveKey != "" {
			pdfKey := exports.PDFArchiveKey
			run.PDFArchiveKey = &pdfKey
		}
		run.ExportedAt = &exportedAt
		run.UpdatedAt = time.Now()
		r.s.runs[runID] = run
		return nil
	})
}

type paySlipRepository struct {
	s *Store
}

func NewPaySlipRepository(s *Store) payroll.PaySlipRepository {
	return &paySlipRepository{s: s}
}

func (r *paySlipRepository) Create(ctx context.Context, slip payroll.PaySlip) (payroll.PaySlip, error) {
	err := r.s.write(ctx, "payslip.create", func() error {
		for _, existing := range r.s.slips {
			if existing.PayrollRunID == slip.PayrollRunID && existing.EmployeeID == slip.EmployeeID {
				return fmt.Errorf("payslip for employee %s already exists in run", slip.EmployeeID)
			}
		}
		if slip.ID == "" {
			slip.ID = newID()
		}
		slip.CreatedAt = time.Now()
		slip.TimeEntryIDs = slices.Clone(slip.TimeEntryIDs)
		r.s.slips[slip.ID] = slip
		return nil
	})
	if err != nil {
		return payroll.PaySlip{}, err
	}
	return slip, nil
}

func (r *paySlipRepository) GetByID(_ context.Context, id string) (payroll.PaySlip, error) {
	var (
		slip payroll.PaySlip
		ok   bool
	)
	r.s.read(func() { slip, ok = r.s.slips[id] })
	if !ok {
		return payroll.PaySlip{}, payroll.ErrPayslipNotFound
	}
	return slip, nil
}

func (r *paySlipRepository) GetByRunAndEmployee(_ context.Context, runID, employeeID string) (payroll.PaySlip, error) {
	var (
		slip  payroll.PaySlip
		found bool
	)
	r.s.read(func() {
		for _, s := range r.s.slips {
			if s.PayrollRunID == runID && s.EmployeeID == employeeID {
				slip, found = s, true
				return
			}
		}
	})
	if !found {
		return payroll.PaySlip{}, payroll.ErrPayslipNotFound
	}
	return slip, nil
}

func (r *paySlipRepository) ListByRun(_ context.Context, runID string) ([]payroll.PaySlip, error) {
	var out []payroll.PaySlip
	r.s.read(func() {
		for _, s := range r.s.slips {
			if s.PayrollRunID == runID {
				out = append(out, s)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeNumber < out[j].EmployeeNumber })
	return out, nil
}

func (r *paySlipRepository) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, "payslip.delete", func() error {
		if _, ok := r.s.slips[id]; !ok {
			return payroll.ErrPayslipNotFound
		}
		delete(r.s.slips, id)
		return nil
	})
}

func (r *paySlipRepository) YearToDateGross(_ context.Context, employeeID string, year, beforeMonth int) (decimal.Decimal, error) {
	total := decimal.Zero
	r.s.read(func() {
		for _, s := range r.s.slips {
			if s.EmployeeID != employeeID || s.Year != year || s.Month >= beforeMonth {
				continue
			}
			run, ok := r.s.runs[s.PayrollRunID]
			if !ok || !run.Status.IsFinalized() {
				continue
			}
			total = total.Add(s.Gross.Total)
		}
	})
	return total, nil
}

func (r *paySlipRepository) MarkEmailSent(ctx context.Context, id string) error {
	return r.s.write(ctx, "payslip.mark_email_sent", func() error {
		slip, ok := r.s.slips[id]
		if !ok {
			return payroll.ErrPayslipNotFound
		}
		slip.EmailSent = true
		r.s.slips[id] = slip
		return nil
	})
}
