package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/storage"
)

// PayslipRenderer turns one payslip document into a PDF.
type PayslipRenderer interface {
	RenderPayslip(ctx context.Context, payload any) ([]byte, error)
}

type ExportServiceImpl struct {
	runRepo  payroll.PayrollRunRepository
	slipRepo payroll.PaySlipRepository
	storage  storage.FileStorage
	renderer PayslipRenderer
	now      func() time.Time
}

// NewExportService wires the exporter. renderer may be nil, in which case
// no PDF archive is produced.
func NewExportService(runRepo payroll.PayrollRunRepository, slipRepo payroll.PaySlipRepository, store storage.FileStorage, renderer PayslipRenderer) *ExportServiceImpl {
	return &ExportServiceImpl{
		runRepo:  runRepo,
		slipRepo: slipRepo,
		storage:  store,
		renderer: renderer,
		now:      time.Now,
	}
}

var _ payroll.Exporter = (*ExportServiceImpl)(nil)

// ArtifactPrefix is the storage folder of a run's exports.
func ArtifactPrefix(run payroll.PayrollRun) string {
	return fmt.Sprintf("payroll/%d/%02d/%s/", run.Year, run.Month, run.ID)
}

// Export writes the payslip CSV, the XLSX register, the audit log and, with
// a renderer, the PDF archive. Keys are recorded on the run. A failure
// leaves the run status untouched.
func (s *ExportServiceImpl) Export(ctx context.Context, runID string) (payroll.ExportResponse, error) {
	run, err := s.runRepo.GetByID(ctx, runID)
	if err != nil {
		return payroll.ExportResponse{}, err
	}
	if !run.Status.IsFinalized() {
		return payroll.ExportResponse{}, fmt.Errorf("%w: run is %s", payroll.ErrRunNotExportable, run.Status)
	}

	slips, err := s.slipRepo.ListByRun(ctx, runID)
	if err != nil {
		return payroll.ExportResponse{}, fmt.Errorf("failed to list payslips: %w", err)
	}

	prefix := ArtifactPrefix(run)
	exportedAt := s.now()
	var resp payroll.ExportResponse

	csvData, err := encodeCSV(slips)
	if err != nil {
		return payroll.ExportResponse{}, err
	}
	if resp.CSVKey, err = s.upload(ctx, csvData, prefix+"payslips.csv", storage.ContentTypeCSV); err != nil {
		return payroll.ExportResponse{}, err
	}

	xlsxData, err := encodeRegister(run, slips)
	if err != nil {
		return payroll.ExportResponse{}, err
	}
	if resp.XLSXKey, err = s.upload(ctx, xlsxData, prefix+"register.xlsx", storage.ContentTypeXLSX); err != nil {
		return payroll.ExportResponse{}, err
	}

	if s.renderer != nil {
		archive, err := s.buildArchive(ctx, slips)
		if err != nil {
			return payroll.ExportResponse{}, err
		}
		if resp.PDFArchiveKey, err = s.upload(ctx, archive, prefix+"payslips.zip", storage.ContentTypeZIP); err != nil {
			return payroll.ExportResponse{}, err
		}
	}

	auditData, err := encodeAuditLog(run, slips, exportedAt)
	if err != nil {
		return payroll.ExportResponse{}, err
	}
	if resp.AuditLogKey, err = s.upload(ctx, auditData, prefix+"audit.json", storage.ContentTypeJSON); err != nil {
		return payroll.ExportResponse{}, err
	}

	resp.ExportedAt = exportedAt
	if err := s.runRepo.RecordExport(ctx, run.ID, resp); err != nil {
		return payroll.ExportResponse{}, fmt.Errorf("failed to record export keys: %w", err)
	}

	slog.Info("payroll run exported",
		"run_id", run.ID,
		"period", run.Period().String(),
		"payslips", len(slips),
		"pdf_archive", resp.PDFArchiveKey != "",
	)
	return resp, nil
}

func (s *ExportServiceImpl) upload(ctx context.Context, data []byte, key, contentType string) (string, error) {
	stored, err := s.storage.Upload(ctx, bytes.NewReader(data), key, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return stored, nil
}

// Open streams a stored artifact of a run back to the caller.
func (s *ExportServiceImpl) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.storage.Download(ctx, key)
}
