package payroll

import (
	"strconv"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== RUN DTOs ==========

type CreateRunRequest struct {
	Year         int     `json:"year"`
	Month        int     `json:"month"`
	AbortOnError *bool   `json:"abort_on_error,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

func (r *CreateRunRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidPayrollYear(r.Year) {
		errs.Add("year", "must be between 2000 and 2100")
	}
	if !validator.IsValidMonth(r.Month) {
		errs.Add("month", "must be between 1 and 12")
	}

	return errs.OrNil()
}

type ListRunsRequest struct {
	Year   string
	Status string
	Limit  string
	Offset string
}

func (r *ListRunsRequest) ToFilter() (RunFilter, error) {
	var errs validator.ValidationErrors
	filter := RunFilter{Limit: 50}

	if r.Year != "" {
		year, err := strconv.Atoi(r.Year)
		if err != nil || !validator.IsValidPayrollYear(year) {
			errs.Add("year", "must be a valid year")
		} else {
			filter.Year = &year
		}
	}
	if r.Status != "" {
		status := RunStatus(r.Status)
		if _, known := runTransitions[status]; !known && status != RunStatusClosed {
			errs.Add("status", "invalid status")
		} else {
			filter.Status = &status
		}
	}
	if r.Limit != "" {
		limit, err := strconv.Atoi(r.Limit)
		if err != nil || limit < 1 || limit > 200 {
			errs.Add("limit", "must be between 1 and 200")
		} else {
			filter.Limit = limit
		}
	}
	if r.Offset != "" {
		offset, err := strconv.Atoi(r.Offset)
		if err != nil || offset < 0 {
			errs.Add("offset", "must not be negative")
		} else {
			filter.Offset = offset
		}
	}

	if err := errs.OrNil(); err != nil {
		return RunFilter{}, err
	}
	return filter, nil
}

type RunResponse struct {
	ID                string             `json:"id"`
	Year              int                `json:"year"`
	Month             int                `json:"month"`
	PeriodName        string             `json:"period_name"`
	Status            RunStatus          `json:"status"`
	AbortOnError      bool               `json:"abort_on_error"`
	HasErrors         bool               `json:"has_errors"`
	Errors            []CalculationError `json:"errors"`
	TotalEmployees    int                `json:"total_employees"`
	TotalHours        decimal.Decimal    `json:"total_hours"`
	TotalGross        decimal.Decimal    `json:"total_gross"`
	TotalNet          decimal.Decimal    `json:"total_net"`
	TotalEmployerCost decimal.Decimal    `json:"total_employer_cost"`
	CreatedBy         *string            `json:"created_by,omitempty"`
	ApprovedBy        *string            `json:"approved_by,omitempty"`
	CalculatedAt      *time.Time         `json:"calculated_at,omitempty"`
	ApprovedAt        *time.Time         `json:"approved_at,omitempty"`
	ProcessingAt      *time.Time         `json:"processing_at,omitempty"`
	PaidAt            *time.Time         `json:"paid_at,omitempty"`
	ClosedAt          *time.Time         `json:"closed_at,omitempty"`
	Exports           *ExportResponse    `json:"exports,omitempty"`
	Notes             *string            `json:"notes,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

func ToRunResponse(r PayrollRun) RunResponse {
	resp := RunResponse{
		ID:                r.ID,
		Year:              r.Year,
		Month:             r.Month,
		PeriodName:        r.PeriodName,
		Status:            r.Status,
		AbortOnError:      r.AbortOnError,
		HasErrors:         r.HasErrors,
		Errors:            r.Errors,
		TotalEmployees:    r.TotalEmployees,
		TotalHours:        r.TotalHours,
		TotalGross:        r.TotalGross,
		TotalNet:          r.TotalNet,
		TotalEmployerCost: r.TotalEmployerCost,
		CreatedBy:         r.CreatedBy,
		ApprovedBy:        r.ApprovedBy,
		CalculatedAt:      r.CalculatedAt,
		ApprovedAt:        r.ApprovedAt,
		ProcessingAt:      r.ProcessingAt,
		PaidAt:            r.PaidAt,
		ClosedAt:          r.ClosedAt,
		Notes:             r.Notes,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if resp.Errors == nil {
		resp.Errors = []CalculationError{}
	}
	if r.ExportedAt != nil {
		resp.Exports = &ExportResponse{
			CSVKey:        deref(r.CSVExportKey),
			XLSXKey:       deref(r.XLSXExportKey),
			PDFArchiveKey: deref(r.PDFArchiveKey),
			AuditLogKey:   deref(r.AuditLogKey),
			ExportedAt:    *r.ExportedAt,
		}
	}
	return resp
}

// ========== CALCULATION DTOs ==========

type CalculationResponse struct {
	Run       RunResponse `json:"run"`
	Processed int         `json:"processed"`
	Skipped   int         `json:"skipped"`
	Failed    int         `json:"failed"`
}

// ========== PAYSLIP DTOs ==========

type PayslipResponse struct {
	ID             string          `json:"id"`
	PayrollRunID   string          `json:"payroll_run_id"`
	EmployeeID     string          `json:"employee_id"`
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	EmployeeName   string          `json:"employee_name"`
	EmployeeNumber string          `json:"employee_number"`
	AHVNumber      *string         `json:"ahv_number,omitempty"`
	HourlyRate     decimal.Decimal `json:"hourly_rate"`

	Hours struct {
		Regular       decimal.Decimal `json:"regular"`
		Remote        decimal.Decimal `json:"remote"`
		Holiday       decimal.Decimal `json:"holiday"`
		Sick          decimal.Decimal `json:"sick"`
		PublicHoliday decimal.Decimal `json:"public_holiday"`
		Overtime      decimal.Decimal `json:"overtime"`
		Training      decimal.Decimal `json:"training"`
		Unpaid        decimal.Decimal `json:"unpaid"`
		Total         decimal.Decimal `json:"total"`
	} `json:"hours"`

	Gross struct {
		Regular       decimal.Decimal `json:"regular_pay"`
		Remote        decimal.Decimal `json:"remote_pay"`
		Holiday       decimal.Decimal `json:"holiday_pay"`
		Sick          decimal.Decimal `json:"sick_pay"`
		PublicHoliday decimal.Decimal `json:"public_holiday_pay"`
		Overtime      decimal.Decimal `json:"overtime_pay"`
		Training      decimal.Decimal `json:"training_pay"`
		Total         decimal.Decimal `json:"gross_salary"`
	} `json:"gross"`

	Deductions struct {
		AHV           decimal.Decimal `json:"ahv_iv_eo"`
		ALV           decimal.Decimal `json:"alv"`
		ALV2          decimal.Decimal `json:"alv2"`
		BVG           decimal.Decimal `json:"bvg"`
		UVGNBU        decimal.Decimal `json:"uvg_nbu"`
		KTG           decimal.Decimal `json:"ktg"`
		Quellensteuer decimal.Decimal `json:"quellensteuer"`
		Other         decimal.Decimal `json:"other_deductions"`
		Total         decimal.Decimal `json:"total_deductions"`
	} `json:"deductions"`

	Additions struct {
		KBBonus              decimal.Decimal `json:"kb_bonus"`
		ExpenseReimbursement decimal.Decimal `json:"expense_reimbursement"`
		Other                decimal.Decimal `json:"other_additions"`
	} `json:"additions"`

	NetSalary decimal.Decimal `json:"net_salary"`

	Employer struct {
		AHV   decimal.Decimal `json:"employer_ahv"`
		ALV   decimal.Decimal `json:"employer_alv"`
		BVG   decimal.Decimal `json:"employer_bvg"`
		UVG   decimal.Decimal `json:"employer_uvg"`
		FAK   decimal.Decimal `json:"employer_fak"`
		Admin decimal.Decimal `json:"employer_admin"`
		Total decimal.Decimal `json:"total_employer_cost"`
	} `json:"employer"`

	YearToDateGross decimal.Decimal `json:"year_to_date_gross"`
	TimeEntryIDs    []string        `json:"time_entry_ids"`
	EmailSent       bool            `json:"email_sent"`
	CreatedAt       time.Time       `json:"created_at"`
}

func ToPayslipResponse(p PaySlip) PayslipResponse {
	resp := PayslipResponse{
		ID:              p.ID,
		PayrollRunID:    p.PayrollRunID,
		EmployeeID:      p.EmployeeID,
		Year:            p.Year,
		Month:           p.Month,
		EmployeeName:    p.EmployeeName,
		EmployeeNumber:  p.EmployeeNumber,
		AHVNumber:       p.AHVNumber,
		HourlyRate:      p.HourlyRate,
		NetSalary:       p.NetSalary,
		YearToDateGross: p.YearToDateGross,
		TimeEntryIDs:    p.TimeEntryIDs,
		EmailSent:       p.EmailSent,
		CreatedAt:       p.CreatedAt,
	}

	resp.Hours.Regular = p.Hours.Regular
	resp.Hours.Remote = p.Hours.Remote
	resp.Hours.Holiday = p.Hours.Holiday
	resp.Hours.Sick = p.Hours.Sick
	resp.Hours.PublicHoliday = p.Hours.PublicHoliday
	resp.Hours.Overtime = p.Hours.Overtime
	resp.Hours.Training = p.Hours.Training
	resp.Hours.Unpaid = p.Hours.Unpaid
	resp.Hours.Total = p.Hours.Total

	resp.Gross.Regular = p.Gross.Regular
	resp.Gross.Remote = p.Gross.Remote
	resp.Gross.Holiday = p.Gross.Holiday
	resp.Gross.Sick = p.Gross.Sick
	resp.Gross.PublicHoliday = p.Gross.PublicHoliday
	resp.Gross.Overtime = p.Gross.Overtime
	resp.Gross.Training = p.Gross.Training
	resp.Gross.Total = p.Gross.Total

	resp.Deductions.AHV = p.Deductions.AHV
	resp.Deductions.ALV = p.Deductions.ALV
	resp.Deductions.ALV2 = p.Deductions.ALV2
	resp.Deductions.BVG = p.Deductions.BVG
	resp.Deductions.UVGNBU = p.Deductions.UVGNBU
	resp.Deductions.KTG = p.Deductions.KTG
	resp.Deductions.Quellensteuer = p.Deductions.Quellensteuer
	resp.Deductions.Other = p.Deductions.Other
	resp.Deductions.Total = p.Deductions.Total

	resp.Additions.KBBonus = p.Additions.KBBonus
	resp.Additions.ExpenseReimbursement = p.Additions.ExpenseReimbursement
	resp.Additions.Other = p.Additions.Other

	resp.Employer.AHV = p.Employer.AHV
	resp.Employer.ALV = p.Employer.ALV
	resp.Employer.BVG = p.Employer.BVG
	resp.Employer.UVG = p.Employer.UVG
	resp.Employer.FAK = p.Employer.FAK
	resp.Employer.Admin = p.Employer.Admin
	resp.Employer.Total = p.Employer.Total

	if resp.TimeEntryIDs == nil {
		resp.TimeEntryIDs = []string{}
	}
	return resp
}

// ========== EXPORT DTOs ==========

type ExportResponse struct {
	CSVKey        string    `json:"csv_key"`
	XLSXKey       string    `json:"xlsx_key"`
	PDFArchiveKey string    `json:"pdf_archive_key,omitempty"`
	AuditLogKey   string    `json:"audit_log_key"`
	ExportedAt    time.Time `json:"exported_at"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
