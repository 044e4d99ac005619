package notification

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

const (
	PayslipIssuedTopic = "hr.payroll.payslip.issued.v1"
	EventPayslipIssued = "payslip.issued"
)

// PayslipIssued is published once per slip after its run was paid.
type PayslipIssued struct {
	EventType      string          `json:"event_type"`
	PayslipID      string          `json:"payslip_id"`
	PayrollRunID   string          `json:"payroll_run_id"`
	EmployeeID     string          `json:"employee_id"`
	EmployeeNumber string          `json:"employee_number"`
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	GrossSalary    decimal.Decimal `json:"gross_salary"`
	NetSalary      decimal.Decimal `json:"net_salary"`
	EmployerCost   decimal.Decimal `json:"total_employer_cost"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

func NewPayslipIssued(slip payroll.PaySlip, at time.Time) PayslipIssued {
	return PayslipIssued{
		EventType:      EventPayslipIssued,
		PayslipID:      slip.ID,
		PayrollRunID:   slip.PayrollRunID,
		EmployeeID:     slip.EmployeeID,
		EmployeeNumber: slip.EmployeeNumber,
		Year:           slip.Year,
		Month:          slip.Month,
		GrossSalary:    slip.Gross.Total,
		NetSalary:      slip.NetSalary,
		EmployerCost:   slip.Employer.Total,
		OccurredAt:     at,
	}
}

// PayslipMail is everything the mailer needs for one employee.
type PayslipMail struct {
	To             string
	EmployeeName   string
	PeriodName     string
	GrossSalary    string
	NetSalary      string
	Attachment     []byte
	AttachmentName string
}
