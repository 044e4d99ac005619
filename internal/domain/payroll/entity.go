package payroll

import (
	"slices"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/timeentry"
	"github.com/shopspring/decimal"
)

// RunStatus enum
type RunStatus string

const (
	RunStatusDraft         RunStatus = "draft"
	RunStatusCalculating   RunStatus = "calculating"
	RunStatusPendingReview RunStatus = "pending_review"
	RunStatusApproved      RunStatus = "approved"
	RunStatusProcessing    RunStatus = "processing"
	RunStatusPaid          RunStatus = "paid"
	RunStatusClosed        RunStatus = "closed"
)

var runTransitions = map[RunStatus][]RunStatus{
	RunStatusDraft:         {RunStatusCalculating},
	RunStatusCalculating:   {RunStatusPendingReview, RunStatusDraft},
	RunStatusPendingReview: {RunStatusCalculating, RunStatusApproved},
	RunStatusApproved:      {RunStatusProcessing, RunStatusPaid},
	RunStatusProcessing:    {RunStatusPaid},
	RunStatusPaid:          {RunStatusClosed},
}

func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	return slices.Contains(runTransitions[s], next)
}

// IsEditable reports whether slips of a run in this state may still change.
func (s RunStatus) IsEditable() bool {
	return s == RunStatusDraft || s == RunStatusPendingReview
}

// IsFinalized is true from approval on; slips and consumed entries are frozen.
func (s RunStatus) IsFinalized() bool {
	switch s {
	case RunStatusApproved, RunStatusProcessing, RunStatusPaid, RunStatusClosed:
		return true
	}
	return false
}

// CalculationError records why one employee has no slip in a run.
type CalculationError struct {
	EmployeeID     string `json:"employee_id"`
	EmployeeNumber string `json:"employee_number"`
	Code           string `json:"code"`
	Field          string `json:"field,omitempty"`
	Message        string `json:"message"`
}

// PayrollRun - one monthly payroll batch
type PayrollRun struct {
	ID                string
	Year              int
	Month             int
	PeriodName        string
	Status            RunStatus
	AbortOnError      bool
	HasErrors         bool
	Errors            []CalculationError
	TotalEmployees    int
	TotalHours        decimal.Decimal
	TotalGross        decimal.Decimal
	TotalNet          decimal.Decimal
	TotalEmployerCost decimal.Decimal
	CreatedBy         *string
	ApprovedBy        *string
	CalculatedAt      *time.Time
	ApprovedAt        *time.Time
	ProcessingAt      *time.Time
	PaidAt            *time.Time
	ClosedAt          *time.Time
	CSVExportKey      *string
	XLSXExportKey     *string
	PDFArchiveKey     *string
	AuditLogKey       *string
	ExportedAt        *time.Time
	Notes             *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (r PayrollRun) Period() timeentry.YearMonth {
	return timeentry.NewYearMonth(r.Year, r.Month)
}

// Hours by entry type. Total leaves out unpaid hours.
type Hours struct {
	Regular       decimal.Decimal
	Remote        decimal.Decimal
	Holiday       decimal.Decimal
	Sick          decimal.Decimal
	PublicHoliday decimal.Decimal
	Overtime      decimal.Decimal
	Training      decimal.Decimal
	Unpaid        decimal.Decimal
	Total         decimal.Decimal
}

// Add books hours under their entry type. Unknown types count as regular.
func (h *Hours) Add(t timeentry.EntryType, hours decimal.Decimal) {
	switch t {
	case timeentry.EntryTypeRemote:
		h.Remote = h.Remote.Add(hours)
	case timeentry.EntryTypeHoliday:
		h.Holiday = h.Holiday.Add(hours)
	case timeentry.EntryTypeSick:
		h.Sick = h.Sick.Add(hours)
	case timeentry.EntryTypePublicHoliday:
		h.PublicHoliday = h.PublicHoliday.Add(hours)
	case timeentry.EntryTypeOvertime:
		h.Overtime = h.Overtime.Add(hours)
	case timeentry.EntryTypeTraining:
		h.Training = h.Training.Add(hours)
	case timeentry.EntryTypeUnpaid:
		h.Unpaid = h.Unpaid.Add(hours)
		return
	default:
		h.Regular = h.Regular.Add(hours)
	}
	h.Total = h.Total.Add(hours)
}

type GrossPay struct {
	Regular       decimal.Decimal
	Remote        decimal.Decimal
	Holiday       decimal.Decimal
	Sick          decimal.Decimal
	PublicHoliday decimal.Decimal
	Overtime      decimal.Decimal
	Training      decimal.Decimal
	Total         decimal.Decimal
}

// Deductions withheld from the employee.
type Deductions struct {
	AHV           decimal.Decimal
	ALV           decimal.Decimal
	ALV2          decimal.Decimal
	BVG           decimal.Decimal
	UVGNBU        decimal.Decimal
	KTG           decimal.Decimal
	Quellensteuer decimal.Decimal
	Other         decimal.Decimal
	Total         decimal.Decimal
}

type Additions struct {
	KBBonus              decimal.Decimal
	ExpenseReimbursement decimal.Decimal
	Other                decimal.Decimal
}

func (a Additions) Total() decimal.Decimal {
	return a.KBBonus.Add(a.ExpenseReimbursement).Add(a.Other)
}

// EmployerCosts are reported on the slip, never subtracted from net.
// Total is gross plus all employer contributions.
type EmployerCosts struct {
	AHV   decimal.Decimal
	ALV   decimal.Decimal
	BVG   decimal.Decimal
	UVG   decimal.Decimal
	FAK   decimal.Decimal
	Admin decimal.Decimal
	Total decimal.Decimal
}

// Adjustments are per employee and period amounts that do not come from time entries.
type Adjustments struct {
	KBBonus              decimal.Decimal
	ExpenseReimbursement decimal.Decimal
	OtherAdditions       decimal.Decimal
	OtherDeductions      decimal.Decimal
}

// Breakdown is the calculator output, every line item already rounded.
type Breakdown struct {
	Gross      GrossPay
	Deductions Deductions
	Additions  Additions
	Employer   EmployerCosts
	NetSalary  decimal.Decimal
}

// PaySlip - one per run and employee, frozen once the run is approved.
// EmailSent is delivery metadata and stays writable after approval; it is
// only ever set through PaySlipRepository.MarkEmailSent and never touches
// hours, amounts or entry links.
type PaySlip struct {
	ID              string
	PayrollRunID    string
	EmployeeID      string
	Year            int
	Month           int
	EmployeeName    string
	EmployeeNumber  string
	AHVNumber       *string
	HourlyRate      decimal.Decimal
	Hours           Hours
	Gross           GrossPay
	Deductions      Deductions
	Additions       Additions
	NetSalary       decimal.Decimal
	Employer        EmployerCosts
	YearToDateGross decimal.Decimal
	TimeEntryIDs    []string
	EmailSent       bool
	Notes           *string
	CreatedAt       time.Time
}

// Balanced checks net + deductions == gross + additions.
func (p PaySlip) Balanced() bool {
	return p.NetSalary.Add(p.Deductions.Total).Equal(p.Gross.Total.Add(p.Additions.Total()))
}

// RunFilter narrows ListRuns
type RunFilter struct {
	Year   *int
	Status *RunStatus
	Limit  int
	Offset int
}

// RunEvent is pushed to subscribers of a run.
type RunEvent struct {
	RunID     string    `json:"run_id"`
	Type      string    `json:"type"`
	Status    RunStatus `json:"status"`
	Processed int       `json:"processed,omitempty"`
	Total     int       `json:"total,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

const (
	EventRunStatus   = "run.status"
	EventRunProgress = "run.progress"
)
