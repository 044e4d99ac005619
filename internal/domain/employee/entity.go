package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee is owned by the HR subsystem. The payroll engine only reads it.
type Employee struct {
	ID                   string
	EmployeeNumber       string
	FirstName            string
	LastName             string
	Email                string
	AHVNumber            *string
	IBAN                 *string
	Status               Status
	HourlyRate           *decimal.Decimal
	HoursPerWeek         decimal.Decimal
	RemoteRateMultiplier *decimal.Decimal
	RemoteDaysPerWeek    *decimal.Decimal
	BVGInsured           bool
	BVGContributionRate  *decimal.Decimal
	IsQuellensteuer      bool
	QuellensteuerCode    *string
	DateOfBirth          *time.Time
	StartDate            time.Time
	ProbationEndDate     *time.Time
	EndDate              *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Status string

const (
	StatusProbation  Status = "probation"
	StatusActive     Status = "active"
	StatusNotice     Status = "notice"
	StatusOnLeave    Status = "on_leave"
	StatusTerminated Status = "terminated"
)

// WorkingDaysPerWeek is used to derive contracted daily hours.
const WorkingDaysPerWeek = 5

var defaultHoursPerWeek = decimal.NewFromInt(40)

func (e Employee) FullName() string {
	switch {
	case e.FirstName == "":
		return e.LastName
	case e.LastName == "":
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// ContractedDailyHours returns hours_per_week spread over a five day week.
func (e Employee) ContractedDailyHours() decimal.Decimal {
	hours := e.HoursPerWeek
	if !hours.IsPositive() {
		hours = defaultHoursPerWeek
	}
	return hours.Div(decimal.NewFromInt(WorkingDaysPerWeek))
}

// WeeklyRemoteCap returns the maximum remote hours per ISO week.
// ok is false when no remote allowance is configured.
func (e Employee) WeeklyRemoteCap() (decimal.Decimal, bool) {
	if e.RemoteDaysPerWeek == nil {
		return decimal.Zero, false
	}
	return e.RemoteDaysPerWeek.Mul(e.ContractedDailyHours()), true
}

// EmployedDuring reports whether the employment window overlaps [from, to].
func (e Employee) EmployedDuring(from, to time.Time) bool {
	if e.StartDate.After(to) {
		return false
	}
	if e.EndDate != nil {
		return !e.EndDate.Before(from)
	}
	return e.Status != StatusTerminated
}
