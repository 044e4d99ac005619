package timeentry

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type EntryType string

const (
	EntryTypeRegular       EntryType = "regular"
	EntryTypeRemote        EntryType = "remote"
	EntryTypeHoliday       EntryType = "holiday"
	EntryTypeSick          EntryType = "sick"
	EntryTypePublicHoliday EntryType = "public_holiday"
	EntryTypeOvertime      EntryType = "overtime"
	EntryTypeTraining      EntryType = "training"
	EntryTypeUnpaid        EntryType = "unpaid"
)

var EntryTypes = []EntryType{
	EntryTypeRegular,
	EntryTypeRemote,
	EntryTypeHoliday,
	EntryTypeSick,
	EntryTypePublicHoliday,
	EntryTypeOvertime,
	EntryTypeTraining,
	EntryTypeUnpaid,
}

func (t EntryType) IsValid() bool {
	for _, et := range EntryTypes {
		if et == t {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusPaid      Status = "paid"
)

// TimeEntry is one row per employee, calendar date and entry type.
// Hours are the payable hours; BreakMinutes is informational.
type TimeEntry struct {
	ID              string
	EmployeeID      string
	EntryDate       time.Time
	EntryType       EntryType
	Hours           decimal.Decimal
	StartTime       *string
	EndTime         *string
	BreakMinutes    int
	Description     *string
	Status          Status
	SubmittedAt     *time.Time
	ApprovedBy      *string
	ApprovedAt      *time.Time
	RejectedBy      *string
	RejectionReason *string
	PayslipID       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (e TimeEntry) IsPaid() bool {
	return e.Status == StatusPaid
}

// IsoWeek returns the Monday and Sunday of the entry's ISO week.
func (e TimeEntry) IsoWeek() (time.Time, time.Time) {
	d := time.Date(e.EntryDate.Year(), e.EntryDate.Month(), e.EntryDate.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7
	monday := d.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 6)
}

// SortForPayroll orders entries by date, then entry type name. Totals depend
// on a stable order, so every read path used by payroll goes through here.
func SortForPayroll(entries []TimeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].EntryDate.Equal(entries[j].EntryDate) {
			return entries[i].EntryDate.Before(entries[j].EntryDate)
		}
		return entries[i].EntryType < entries[j].EntryType
	})
}

// YearMonth identifies a payroll period.
type YearMonth struct {
	Year  int
	Month time.Month
}

func NewYearMonth(year, month int) YearMonth {
	return YearMonth{Year: year, Month: time.Month(month)}
}

// Start is the first day of the month.
func (ym YearMonth) Start() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the last day of the month.
func (ym YearMonth) End() time.Time {
	return ym.Start().AddDate(0, 1, -1)
}

func (ym YearMonth) Contains(t time.Time) bool {
	return t.Year() == ym.Year && t.Month() == ym.Month
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

var germanMonths = [...]string{"", "Januar", "Februar", "März", "April", "Mai", "Juni",
	"Juli", "August", "September", "Oktober", "November", "Dezember"}

// PeriodName renders the period the way payslips print it, e.g. "März 2025".
func (ym YearMonth) PeriodName() string {
	return fmt.Sprintf("%s %d", germanMonths[ym.Month], ym.Year)
}

// Warning is a soft business rule hit that does not block the operation.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const WarningExceedsWeeklyCap = "EXCEEDS_WEEKLY_CAP"

func (w Warning) Error() string {
	return w.Message
}

// Unwrap lets errors.Is match a warning against the rule it reports.
func (w Warning) Unwrap() error {
	if w.Code == WarningExceedsWeeklyCap {
		return ErrExceedsWeeklyCap
	}
	return nil
}

// ListFilter narrows List results. Zero values mean "any".
type ListFilter struct {
	EmployeeID *string
	Period     *YearMonth
	Status     *Status
	Limit      int
	Offset     int
}
