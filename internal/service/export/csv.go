package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/gocarina/gocsv"
)

// csvRow is one payslip line of the bookkeeping CSV. Amounts are fixed to
// two decimals.
type csvRow struct {
	EmployeeNumber       string `csv:"employee_number"`
	EmployeeName         string `csv:"employee_name"`
	AHVNumber            string `csv:"ahv_number"`
	Period               string `csv:"period"`
	HourlyRate           string `csv:"hourly_rate"`
	TotalHours           string `csv:"total_hours"`
	GrossSalary          string `csv:"gross_salary"`
	AHV                  string `csv:"ahv_iv_eo"`
	ALV                  string `csv:"alv"`
	ALV2                 string `csv:"alv2"`
	BVG                  string `csv:"bvg"`
	UVGNBU               string `csv:"uvg_nbu"`
	KTG                  string `csv:"ktg"`
	Quellensteuer        string `csv:"quellensteuer"`
	OtherDeductions      string `csv:"other_deductions"`
	TotalDeductions      string `csv:"total_deductions"`
	KBBonus              string `csv:"kb_bonus"`
	ExpenseReimbursement string `csv:"expense_reimbursement"`
	OtherAdditions       string `csv:"other_additions"`
	NetSalary            string `csv:"net_salary"`
	TotalEmployerCost    string `csv:"total_employer_cost"`
}

func toCSVRow(p payroll.PaySlip) csvRow {
	ahv := ""
	if p.AHVNumber != nil {
		ahv = *p.AHVNumber
	}
	return csvRow{
		EmployeeNumber:       p.EmployeeNumber,
		EmployeeName:         p.EmployeeName,
		AHVNumber:            ahv,
		Period:               fmt.Sprintf("%d-%02d", p.Year, p.Month),
		HourlyRate:           p.HourlyRate.StringFixed(2),
		TotalHours:           p.Hours.Total.StringFixed(2),
		GrossSalary:          p.Gross.Total.StringFixed(2),
		AHV:                  p.Deductions.AHV.StringFixed(2),
		ALV:                  p.Deductions.ALV.StringFixed(2),
		ALV2:                 p.Deductions.ALV2.StringFixed(2),
		BVG:                  p.Deductions.BVG.StringFixed(2),
		UVGNBU:               p.Deductions.UVGNBU.StringFixed(2),
		KTG:                  p.Deductions.KTG.StringFixed(2),
		Quellensteuer:        p.Deductions.Quellensteuer.StringFixed(2),
		OtherDeductions:      p.Deductions.Other.StringFixed(2),
		TotalDeductions:      p.Deductions.Total.StringFixed(2),
		KBBonus:              p.Additions.KBBonus.StringFixed(2),
		ExpenseReimbursement: p.Additions.ExpenseReimbursement.StringFixed(2),
		OtherAdditions:       p.Additions.Other.StringFixed(2),
		NetSalary:            p.NetSalary.StringFixed(2),
		TotalEmployerCost:    p.Employer.Total.StringFixed(2),
	}
}

// encodeCSV writes semicolon separated rows, the delimiter Swiss
// spreadsheet locales expect.
func encodeCSV(slips []payroll.PaySlip) ([]byte, error) {
	rows := make([]csvRow, 0, len(slips))
	for _, p := range slips {
		rows = append(rows, toCSVRow(p))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(w)); err != nil {
		return nil, fmt.Errorf("failed to encode payslip csv: %w", err)
	}
	return buf.Bytes(), nil
}
