package timeentry

import (
	"strconv"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

var maxHoursPerDay = decimal.NewFromInt(24)

type CreateTimeEntryRequest struct {
	EmployeeID   string          `json:"employee_id"`
	EntryDate    string          `json:"entry_date"`
	EntryType    string          `json:"entry_type"`
	Hours        decimal.Decimal `json:"hours"`
	StartTime    *string         `json:"start_time,omitempty"`
	EndTime      *string         `json:"end_time,omitempty"`
	BreakMinutes int             `json:"break_minutes"`
	Description  *string         `json:"description,omitempty"`
}

// Validate reports negative amounts as ErrNegativeHours / ErrNegativeBreak so
// callers can match them, everything else as validator.ValidationErrors.
func (r *CreateTimeEntryRequest) Validate() error {
	if r.Hours.IsNegative() {
		return ErrNegativeHours
	}
	if r.BreakMinutes < 0 {
		return ErrNegativeBreak
	}

	var errs validator.ValidationErrors
	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "is required")
	}
	if _, ok := validator.IsValidDate(r.EntryDate); !ok {
		errs.Add("entry_date", "must be a date in YYYY-MM-DD format")
	}
	if !EntryType(r.EntryType).IsValid() {
		errs.Add("entry_type", "must be one of regular, remote, holiday, sick, public_holiday, overtime, training, unpaid")
	}
	if r.Hours.GreaterThan(maxHoursPerDay) {
		errs.Add("hours", "must not exceed 24")
	}
	validateClock(&errs, r.StartTime, r.EndTime)

	return errs.OrNil()
}

type UpdateTimeEntryRequest struct {
	EntryDate    *string          `json:"entry_date,omitempty"`
	EntryType    *string          `json:"entry_type,omitempty"`
	Hours        *decimal.Decimal `json:"hours,omitempty"`
	StartTime    *string          `json:"start_time,omitempty"`
	EndTime      *string          `json:"end_time,omitempty"`
	BreakMinutes *int             `json:"break_minutes,omitempty"`
	Description  *string          `json:"description,omitempty"`
}

func (r *UpdateTimeEntryRequest) Validate() error {
	if r.Hours != nil && r.Hours.IsNegative() {
		return ErrNegativeHours
	}
	if r.BreakMinutes != nil && *r.BreakMinutes < 0 {
		return ErrNegativeBreak
	}

	var errs validator.ValidationErrors
	if r.EntryDate != nil {
		if _, ok := validator.IsValidDate(*r.EntryDate); !ok {
			errs.Add("entry_date", "must be a date in YYYY-MM-DD format")
		}
	}
	if r.EntryType != nil && !EntryType(*r.EntryType).IsValid() {
		errs.Add("entry_type", "invalid entry type")
	}
	if r.Hours != nil && r.Hours.GreaterThan(maxHoursPerDay) {
		errs.Add("hours", "must not exceed 24")
	}
	validateClock(&errs, r.StartTime, r.EndTime)

	return errs.OrNil()
}

func validateClock(errs *validator.ValidationErrors, start, end *string) {
	if start != nil && !validator.IsValidClockTime(*start) {
		errs.Add("start_time", "must be HH:MM")
	}
	if end != nil && !validator.IsValidClockTime(*end) {
		errs.Add("end_time", "must be HH:MM")
	}
	if start != nil && end != nil && validator.IsValidClockTime(*start) && validator.IsValidClockTime(*end) && *end <= *start {
		errs.Add("end_time", "must be after start_time")
	}
}

// ValidateClock checks the clock window of an entry after a partial update
// merged new values into stored ones.
func ValidateClock(start, end *string) error {
	var errs validator.ValidationErrors
	validateClock(&errs, start, end)
	return errs.OrNil()
}

type RejectTimeEntryRequest struct {
	Reason string `json:"reason"`
}

func (r *RejectTimeEntryRequest) Validate() error {
	var errs validator.ValidationErrors
	if validator.IsEmpty(r.Reason) {
		errs.Add("reason", "is required")
	}
	return errs.OrNil()
}

// ListTimeEntriesRequest is bound from query parameters.
type ListTimeEntriesRequest struct {
	EmployeeID string
	Year       string
	Month      string
	Status     string
}

func (r *ListTimeEntriesRequest) ToFilter() (ListFilter, error) {
	var errs validator.ValidationErrors
	var filter ListFilter

	if r.EmployeeID != "" {
		id := r.EmployeeID
		filter.EmployeeID = &id
	}
	if r.Year != "" || r.Month != "" {
		year, yErr := strconv.Atoi(r.Year)
		month, mErr := strconv.Atoi(r.Month)
		if yErr != nil || !validator.IsValidPayrollYear(year) {
			errs.Add("year", "must be a valid year")
		}
		if mErr != nil || !validator.IsValidMonth(month) {
			errs.Add("month", "must be between 1 and 12")
		}
		if yErr == nil && mErr == nil {
			ym := NewYearMonth(year, month)
			filter.Period = &ym
		}
	}
	if r.Status != "" {
		status := Status(r.Status)
		switch status {
		case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected, StatusPaid:
			filter.Status = &status
		default:
			errs.Add("status", "invalid status")
		}
	}

	if err := errs.OrNil(); err != nil {
		return ListFilter{}, err
	}
	return filter, nil
}

type TimeEntryResponse struct {
	ID              string          `json:"id"`
	EmployeeID      string          `json:"employee_id"`
	EntryDate       string          `json:"entry_date"`
	EntryType       EntryType       `json:"entry_type"`
	Hours           decimal.Decimal `json:"hours"`
	StartTime       *string         `json:"start_time,omitempty"`
	EndTime         *string         `json:"end_time,omitempty"`
	BreakMinutes    int             `json:"break_minutes"`
	Description     *string         `json:"description,omitempty"`
	Status          Status          `json:"status"`
	SubmittedAt     *time.Time      `json:"submitted_at,omitempty"`
	ApprovedBy      *string         `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	RejectedBy      *string         `json:"rejected_by,omitempty"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	PayslipID       *string         `json:"payslip_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type SubmitTimeEntryResponse struct {
	Entry    TimeEntryResponse `json:"entry"`
	Warnings []Warning         `json:"warnings"`
}

func ToResponse(e TimeEntry) TimeEntryResponse {
	return TimeEntryResponse{
		ID:              e.ID,
		EmployeeID:      e.EmployeeID,
		EntryDate:       e.EntryDate.Format(time.DateOnly),
		EntryType:       e.EntryType,
		Hours:           e.Hours,
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		BreakMinutes:    e.BreakMinutes,
		Description:     e.Description,
		Status:          e.Status,
		SubmittedAt:     e.SubmittedAt,
		ApprovedBy:      e.ApprovedBy,
		ApprovedAt:      e.ApprovedAt,
		RejectedBy:      e.RejectedBy,
		RejectionReason: e.RejectionReason,
		PayslipID:       e.PayslipID,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}
