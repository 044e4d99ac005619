package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
)

// buildArchive renders every slip and zips the PDFs, one file per employee.
func (s *ExportServiceImpl) buildArchive(ctx context.Context, slips []payroll.PaySlip) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, p := range slips {
		pdf, err := s.renderer.RenderPayslip(ctx, payroll.ToPayslipResponse(p))
		if err != nil {
			return nil, fmt.Errorf("failed to render payslip for %s: %w", p.EmployeeNumber, err)
		}

		w, err := zw.Create(PayslipFileName(p))
		if err != nil {
			return nil, fmt.Errorf("failed to add payslip to archive: %w", err)
		}
		if _, err := w.Write(pdf); err != nil {
			return nil, fmt.Errorf("failed to add payslip to archive: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish payslip archive: %w", err)
	}
	return buf.Bytes(), nil
}

// PayslipFileName is the PDF name inside the archive and in mail attachments.
func PayslipFileName(p payroll.PaySlip) string {
	return fmt.Sprintf("Lohnabrechnung_%s_%d-%02d.pdf", p.EmployeeNumber, p.Year, p.Month)
}
