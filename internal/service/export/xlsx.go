package export

import (
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const registerSheet = "Lohnjournal"

type registerColumn struct {
	header string
	width  float64
	value  func(payroll.PaySlip) any
	sum    bool
}

func amount(d decimal.Decimal) any { return d.Round(2).InexactFloat64() }

var registerColumns = []registerColumn{
	{header: "Personalnummer", width: 16, value: func(p payroll.PaySlip) any { return p.EmployeeNumber }},
	{header: "Name", width: 28, value: func(p payroll.PaySlip) any { return p.EmployeeName }},
	{header: "Stunden", width: 10, value: func(p payroll.PaySlip) any { return amount(p.Hours.Total) }, sum: true},
	{header: "Stundenlohn", width: 12, value: func(p payroll.PaySlip) any { return amount(p.HourlyRate) }},
	{header: "Bruttolohn", width: 14, value: func(p payroll.PaySlip) any { return amount(p.Gross.Total) }, sum: true},
	{header: "AHV/IV/EO", width: 12, value: func(p payroll.PaySlip) any { return amount(p.Deductions.AHV) }, sum: true},
	{header: "ALV", width: 10, value: func(p payroll.PaySlip) any { return amount(p.Deductions.ALV) }, sum: true},
	{header: "ALV2", width: 10, value: func(p payroll.PaySlip) any { return amount(p.Deductions.ALV2) }, sum: true},
	{header: "BVG", width: 10, value: func(p payroll.PaySlip) any { return amount(p.Deductions.BVG) }, sum: true},
	{header: "UVG NBU", width: 10, value: func(p payroll.PaySlip) any { return amount(p.Deductions.UVGNBU) }, sum: true},
	{header: "KTG", width: 10, value: func(p payroll.PaySlip) any { return amount(p.Deductions.KTG) }, sum: true},
	{header: "Quellensteuer", width: 14, value: func(p payroll.PaySlip) any { return amount(p.Deductions.Quellensteuer) }, sum: true},
	{header: "Abzüge total", width: 14, value: func(p payroll.PaySlip) any { return amount(p.Deductions.Total) }, sum: true},
	{header: "Zulagen", width: 12, value: func(p payroll.PaySlip) any { return amount(p.Additions.Total()) }, sum: true},
	{header: "Nettolohn", width: 14, value: func(p payroll.PaySlip) any { return amount(p.NetSalary) }, sum: true},
	{header: "Arbeitgeberkosten", width: 18, value: func(p payroll.PaySlip) any { return amount(p.Employer.Total) }, sum: true},
}

// encodeRegister builds the payroll register workbook: a header row, one row
// per slip and a SUM row under every amount column.
func encodeRegister(run payroll.PayrollRun, slips []payroll.PaySlip) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", registerSheet); err != nil {
		return nil, fmt.Errorf("failed to name register sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Lohnjournal " + run.PeriodName,
		Subject: run.ID,
	}); err != nil {
		return nil, fmt.Errorf("failed to set register properties: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create register style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, fmt.Errorf("failed to create register style: %w", err)
	}

	header := make([]any, len(registerColumns))
	for i, col := range registerColumns {
		header[i] = col.header
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(registerSheet, name, name, col.width); err != nil {
			return nil, fmt.Errorf("failed to size register column: %w", err)
		}
	}
	if err := f.SetSheetRow(registerSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write register header: %w", err)
	}

	for r, p := range slips {
		row := make([]any, len(registerColumns))
		for i, col := range registerColumns {
			row[i] = col.value(p)
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(registerSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write register row: %w", err)
		}
	}

	lastData := len(slips) + 1
	totalRow := lastData + 1
	label, _ := excelize.CoordinatesToCellName(1, totalRow)
	if err := f.SetCellValue(registerSheet, label, "Total"); err != nil {
		return nil, fmt.Errorf("failed to write register totals: %w", err)
	}
	for i, col := range registerColumns {
		if !col.sum {
			continue
		}
		name, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s%d", name, totalRow)
		formula := fmt.Sprintf("SUM(%s2:%s%d)", name, name, lastData)
		if len(slips) == 0 {
			formula = "0"
		}
		if err := f.SetCellFormula(registerSheet, cell, formula); err != nil {
			return nil, fmt.Errorf("failed to write register totals: %w", err)
		}
	}

	first, _ := excelize.CoordinatesToCellName(3, 2)
	last, _ := excelize.CoordinatesToCellName(len(registerColumns), totalRow)
	if err := f.SetCellStyle(registerSheet, first, last, money); err != nil {
		return nil, fmt.Errorf("failed to style register: %w", err)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(registerColumns), 1)
	if err := f.SetCellStyle(registerSheet, "A1", lastHeader, bold); err != nil {
		return nil, fmt.Errorf("failed to style register: %w", err)
	}
	lastTotal, _ := excelize.CoordinatesToCellName(2, totalRow)
	if err := f.SetCellStyle(registerSheet, label, lastTotal, bold); err != nil {
		return nil, fmt.Errorf("failed to style register: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write register workbook: %w", err)
	}
	return buf.Bytes(), nil
}
