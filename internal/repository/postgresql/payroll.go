package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ========== PAYROLL RUNS ==========

type payrollRunRepositoryImpl struct {
	db *database.DB
}

func NewPayrollRunRepository(db *database.DB) payroll.PayrollRunRepository {
	return &payrollRunRepositoryImpl{db: db}
}

const payrollRunOpenPeriodIndex = "payroll_runs_open_period_key"

const payrollRunColumns = `
	id, year, month, period_name, status, abort_on_error, has_errors, errors,
	total_employees, total_hours, total_gross, total_net, total_employer_cost,
	created_by, approved_by, calculated_at, approved_at, processing_at, paid_at, closed_at,
	csv_export_key, xlsx_export_key, pdf_archive_key, audit_log_key, exported_at, notes,
	created_at, updated_at`

func scanPayrollRun(row pgx.Row) (payroll.PayrollRun, error) {
	var run payroll.PayrollRun
	err := row.Scan(
		&run.ID, &run.Year, &run.Month, &run.PeriodName, &run.Status, &run.AbortOnError, &run.HasErrors, &run.Errors,
		&run.TotalEmployees, &run.TotalHours, &run.TotalGross, &run.TotalNet, &run.TotalEmployerCost,
		&run.CreatedBy, &run.ApprovedBy, &run.CalculatedAt, &run.ApprovedAt, &run.ProcessingAt, &run.PaidAt, &run.ClosedAt,
		&run.CSVExportKey, &run.XLSXExportKey, &run.PDFArchiveKey, &run.AuditLogKey, &run.ExportedAt, &run.Notes,
		&run.CreatedAt, &run.UpdatedAt,
	)
	return run, err
}

func runErrors(run payroll.PayrollRun) []payroll.CalculationError {
	if run.Errors == nil {
		return []payroll.CalculationError{}
	}
	return run.Errors
}

// Create implements payroll.PayrollRunRepository.
func (r *payrollRunRepositoryImpl) Create(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	id, err := uuid.NewV7()
	if err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("failed to generate payroll run id: %w", err)
	}

	query := `
		INSERT INTO payroll_runs (
			id, year, month, period_name, status, abort_on_error, has_errors, errors,
			total_employees, total_hours, total_gross, total_net, total_employer_cost,
			created_by, paid_at, exported_at, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING ` + payrollRunColumns

	created, err := scanPayrollRun(q.QueryRow(ctx, query,
		id.String(), run.Year, run.Month, run.PeriodName, run.Status, run.AbortOnError, run.HasErrors, runErrors(run),
		run.TotalEmployees, run.TotalHours, run.TotalGross, run.TotalNet, run.TotalEmployerCost,
		run.CreatedBy, run.PaidAt, run.ExportedAt, run.Notes,
	))
	if err != nil {
		if isUniqueViolation(err, payrollRunOpenPeriodIndex) {
			return payroll.PayrollRun{}, payroll.ErrRunAlreadyExists
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to create payroll run: %w", err)
	}
	return created, nil
}

// GetByID implements payroll.PayrollRunRepository.
func (r *payrollRunRepositoryImpl) GetByID(ctx context.Context, id string) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollRunColumns + ` FROM payroll_runs WHERE id = $1`

	run, err := scanPayrollRun(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollRun{}, payroll.ErrRunNotFound
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to get payroll run with id %s: %w", id, err)
	}
	return run, nil
}

// List implements payroll.PayrollRunRepository.
func (r *payrollRunRepositoryImpl) List(ctx context.Context, filter payroll.RunFilter) ([]payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	var (
		conditions []string
		args       []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Year != nil {
		conditions = append(conditions, "year = "+arg(*filter.Year))
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = "+arg(*filter.Status))
	}

	query := `SELECT ` + payrollRunColumns + ` FROM payroll_runs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY year DESC, month DESC, created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	var runs []payroll.PayrollRun
	for rows.Next() {
		run, err := scanPayrollRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// Update implements payroll.PayrollRunRepository. The status check and the
// write are one statement, so two callers racing on the same transition
// cannot both succeed. Export columns belong to RecordExport.
func (r *payrollRunRepositoryImpl) Update(ctx context.Context, run payroll.PayrollRun, expected payroll.RunStatus) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_runs SET
			status = $3, abort_on_error = $4, has_errors = $5, errors = $6,
			total_employees = $7, total_hours = $8, total_gross = $9, total_net = $10, total_employer_cost = $11,
			approved_by = $12, calculated_at = $13, approved_at = $14, processing_at = $15, paid_at = $16, closed_at = $17,
			notes = $18, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	tag, err := q.Exec(ctx, query,
		run.ID, expected,
		run.Status, run.AbortOnError, run.HasErrors, runErrors(run),
		run.TotalEmployees, run.TotalHours, run.TotalGross, run.TotalNet, run.TotalEmployerCost,
		run.ApprovedBy, run.CalculatedAt, run.ApprovedAt, run.ProcessingAt, run.PaidAt, run.ClosedAt,
		run.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to update payroll run with id %s: %w", run.ID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current payroll.RunStatus
	err = q.QueryRow(ctx, `SELECT status FROM payroll_runs WHERE id = $1`, run.ID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.ErrRunNotFound
		}
		return fmt.Errorf("failed to read payroll run status: %w", err)
	}
	return fmt.Errorf("%w: run is %s, expected %s", payroll.ErrInvalidRunTransition, current, expected)
}

// RecordExport implements payroll.PayrollRunRepository.
func (r *payrollRunRepositoryImpl) RecordExport(ctx context.Context, runID string, exports payroll.ExportResponse) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_runs SET
			csv_export_key = $2, xlsx_export_key = $3, pdf_archive_key = NULLIF($4, ''),
			audit_log_key = $5, exported_at = $6, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query, runID,
		exports.CSVKey, exports.XLSXKey, exports.PDFArchiveKey, exports.AuditLogKey, exports.ExportedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record export of payroll run with id %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrRunNotFound
	}
	return nil
}

// ========== PAYSLIPS ==========

type paySlipRepositoryImpl struct {
	db *database.DB
}

func NewPaySlipRepository(db *database.DB) payroll.PaySlipRepository {
	return &paySlipRepositoryImpl{db: db}
}

// slipBreakdown is the JSONB document holding the line items of a slip.
type slipBreakdown struct {
	Hours      payroll.Hours         `json:"hours"`
	Gross      payroll.GrossPay      `json:"gross"`
	Deductions payroll.Deductions    `json:"deductions"`
	Additions  payroll.Additions     `json:"additions"`
	Employer   payroll.EmployerCosts `json:"employer"`
}

const paySlipColumns = `
	id, payroll_run_id, employee_id, year, month, employee_name, employee_number, ahv_number,
	hourly_rate, net_salary, ytd_gross, breakdown, time_entry_ids, email_sent, notes, created_at`

func scanPaySlip(row pgx.Row) (payroll.PaySlip, error) {
	var (
		slip      payroll.PaySlip
		breakdown slipBreakdown
	)
	err := row.Scan(
		&slip.ID, &slip.PayrollRunID, &slip.EmployeeID, &slip.Year, &slip.Month, &slip.EmployeeName, &slip.EmployeeNumber, &slip.AHVNumber,
		&slip.HourlyRate, &slip.NetSalary, &slip.YearToDateGross, &breakdown, &slip.TimeEntryIDs, &slip.EmailSent, &slip.Notes, &slip.CreatedAt,
	)
	if err != nil {
		return payroll.PaySlip{}, err
	}
	slip.Hours = breakdown.Hours
	slip.Gross = breakdown.Gross
	slip.Deductions = breakdown.Deductions
	slip.Additions = breakdown.Additions
	slip.Employer = breakdown.Employer
	return slip, nil
}

func collectPaySlips(rows pgx.Rows) ([]payroll.PaySlip, error) {
	defer rows.Close()

	var slips []payroll.PaySlip
	for rows.Next() {
		slip, err := scanPaySlip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payslip: %w", err)
		}
		slips = append(slips, slip)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slips, nil
}

// Create implements payroll.PaySlipRepository.
func (r *paySlipRepositoryImpl) Create(ctx context.Context, slip payroll.PaySlip) (payroll.PaySlip, error) {
	q := GetQuerier(ctx, r.db)

	if slip.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return payroll.PaySlip{}, fmt.Errorf("failed to generate payslip id: %w", err)
		}
		slip.ID = id.String()
	}
	entryIDs := slip.TimeEntryIDs
	if entryIDs == nil {
		entryIDs = []string{}
	}

	query := `
		INSERT INTO payslips (
			id, payroll_run_id, employee_id, year, month, employee_name, employee_number, ahv_number,
			hourly_rate, total_hours, gross_salary, total_deductions, net_salary, employer_total, ytd_gross,
			breakdown, time_entry_ids, email_sent, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17::uuid[], $18, $19)
		RETURNING ` + paySlipColumns

	created, err := scanPaySlip(q.QueryRow(ctx, query,
		slip.ID, slip.PayrollRunID, slip.EmployeeID, slip.Year, slip.Month, slip.EmployeeName, slip.EmployeeNumber, slip.AHVNumber,
		slip.HourlyRate, slip.Hours.Total, slip.Gross.Total, slip.Deductions.Total, slip.NetSalary, slip.Employer.Total, slip.YearToDateGross,
		slipBreakdown{
			Hours:      slip.Hours,
			Gross:      slip.Gross,
			Deductions: slip.Deductions,
			Additions:  slip.Additions,
			Employer:   slip.Employer,
		},
		entryIDs, slip.EmailSent, slip.Notes,
	))
	if err != nil {
		if isUniqueViolation(err, "payslips_run_employee_key") {
			return payroll.PaySlip{}, fmt.Errorf("payslip for employee %s already exists in run", slip.EmployeeID)
		}
		return payroll.PaySlip{}, fmt.Errorf("failed to create payslip: %w", err)
	}
	return created, nil
}

// GetByID implements payroll.PaySlipRepository.
func (r *paySlipRepositoryImpl) GetByID(ctx context.Context, id string) (payroll.PaySlip, error) {
	q := GetQuerier(ctx, r.db)

	slip, err := scanPaySlip(q.QueryRow(ctx, `SELECT `+paySlipColumns+` FROM payslips WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PaySlip{}, payroll.ErrPayslipNotFound
		}
		return payroll.PaySlip{}, fmt.Errorf("failed to get payslip with id %s: %w", id, err)
	}
	return slip, nil
}

// GetByRunAndEmployee implements payroll.PaySlipRepository.
func (r *paySlipRepositoryImpl) GetByRunAndEmployee(ctx context.Context, runID, employeeID string) (payroll.PaySlip, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + paySlipColumns + ` FROM payslips WHERE payroll_run_id = $1 AND employee_id = $2`

	slip, err := scanPaySlip(q.QueryRow(ctx, query, runID, employeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PaySlip{}, payroll.ErrPayslipNotFound
		}
		return payroll.PaySlip{}, fmt.Errorf("failed to get payslip of employee %s: %w", employeeID, err)
	}
	return slip, nil
}

// ListByRun implements payroll.PaySlipRepository.
func (r *paySlipRepositoryImpl) ListByRun(ctx context.Context, runID string) ([]payroll.PaySlip, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + paySlipColumns + ` FROM payslips WHERE payroll_run_id = $1 ORDER BY employee_number`

	rows, err := q.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payslips of run %s: %w", runID, err)
	}
	return collectPaySlips(rows)
}

// Delete implements payroll.PaySlipRepository.
func (r *paySlipRepositoryImpl) Delete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM payslips WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payslip with id %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrPayslipNotFound
	}
	return nil
}

// YearToDateGross implements payroll.PaySlipRepository.
func (r *paySlipRepositoryImpl) YearToDateGross(ctx context.Context, employeeID string, year, beforeMonth int) (decimal.Decimal, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT COALESCE(SUM(p.gross_salary), 0)
		FROM payslips p
		JOIN payroll_runs r ON r.id = p.payroll_run_id
		WHERE p.employee_id = $1 AND p.year = $2 AND p.month < $3
			AND r.status IN ($4, $5, $6, $7)
	`

	var total decimal.Decimal
	err := q.QueryRow(ctx, query, employeeID, year, beforeMonth,
		payroll.RunStatusApproved, payroll.RunStatusProcessing, payroll.RunStatusPaid, payroll.RunStatusClosed,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum year to date gross for employee %s: %w", employeeID, err)
	}
	return total, nil
}

// MarkEmailSent implements payroll.PaySlipRepository.
func (r *paySlipRepositoryImpl) MarkEmailSent(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `UPDATE payslips SET email_sent = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark payslip %s as sent: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrPayslipNotFound
	}
	return nil
}
