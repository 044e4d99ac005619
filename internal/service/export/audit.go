package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

type auditLog struct {
	RunID        string                     `json:"run_id"`
	Period       string                     `json:"period"`
	PeriodName   string                     `json:"period_name"`
	Status       payroll.RunStatus          `json:"status"`
	CreatedBy    *string                    `json:"created_by,omitempty"`
	ApprovedBy   *string                    `json:"approved_by,omitempty"`
	CreatedAt    time.Time                  `json:"created_at"`
	CalculatedAt *time.Time                 `json:"calculated_at,omitempty"`
	ApprovedAt   *time.Time                 `json:"approved_at,omitempty"`
	ProcessingAt *time.Time                 `json:"processing_at,omitempty"`
	PaidAt       *time.Time                 `json:"paid_at,omitempty"`
	ClosedAt     *time.Time                 `json:"closed_at,omitempty"`
	ExportedAt   time.Time                  `json:"exported_at"`
	Totals       auditTotals                `json:"totals"`
	Errors       []payroll.CalculationError `json:"errors"`
	Payslips     []auditPayslip             `json:"payslips"`
}

type auditTotals struct {
	Employees    int             `json:"employees"`
	Hours        decimal.Decimal `json:"hours"`
	Gross        decimal.Decimal `json:"gross"`
	Net          decimal.Decimal `json:"net"`
	EmployerCost decimal.Decimal `json:"employer_cost"`
}

type auditPayslip struct {
	ID              string          `json:"id"`
	EmployeeID      string          `json:"employee_id"`
	EmployeeNumber  string          `json:"employee_number"`
	Gross           decimal.Decimal `json:"gross_salary"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	Additions       decimal.Decimal `json:"total_additions"`
	Net             decimal.Decimal `json:"net_salary"`
	EmployerCost    decimal.Decimal `json:"total_employer_cost"`
	YearToDateGross decimal.Decimal `json:"year_to_date_gross"`
	TimeEntryIDs    []string        `json:"time_entry_ids"`
}

func encodeAuditLog(run payroll.PayrollRun, slips []payroll.PaySlip, exportedAt time.Time) ([]byte, error) {
	doc := auditLog{
		RunID:        run.ID,
		Period:       run.Period().String(),
		PeriodName:   run.PeriodName,
		Status:       run.Status,
		CreatedBy:    run.CreatedBy,
		ApprovedBy:   run.ApprovedBy,
		CreatedAt:    run.CreatedAt,
		CalculatedAt: run.CalculatedAt,
		ApprovedAt:   run.ApprovedAt,
		ProcessingAt: run.ProcessingAt,
		PaidAt:       run.PaidAt,
		ClosedAt:     run.ClosedAt,
		ExportedAt:   exportedAt,
		Totals: auditTotals{
			Employees:    run.TotalEmployees,
			Hours:        run.TotalHours,
			Gross:        run.TotalGross,
			Net:          run.TotalNet,
			EmployerCost: run.TotalEmployerCost,
		},
		Errors:   run.Errors,
		Payslips: make([]auditPayslip, 0, len(slips)),
	}
	if doc.Errors == nil {
		doc.Errors = []payroll.CalculationError{}
	}

	for _, p := range slips {
		doc.Payslips = append(doc.Payslips, auditPayslip{
			ID:              p.ID,
			EmployeeID:      p.EmployeeID,
			EmployeeNumber:  p.EmployeeNumber,
			Gross:           p.Gross.Total,
			TotalDeductions: p.Deductions.Total,
			Additions:       p.Additions.Total(),
			Net:             p.NetSalary,
			EmployerCost:    p.Employer.Total,
			YearToDateGross: p.YearToDateGross,
			TimeEntryIDs:    p.TimeEntryIDs,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit log: %w", err)
	}
	return data, nil
}
