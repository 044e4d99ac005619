package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/storage"
	"github.com/cmlabs-hris/payroll-engine/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeRenderer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *fakeRenderer) RenderPayslip(_ context.Context, payload any) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	slip := payload.(payroll.PayslipResponse)
	return []byte("%PDF-" + slip.EmployeeNumber), nil
}

type exportFixture struct {
	runs    payroll.PayrollRunRepository
	slips   payroll.PaySlipRepository
	storage *storage.LocalStorage
	run     payroll.PayrollRun
}

func newExportFixture(t *testing.T, status payroll.RunStatus) *exportFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	runs := memory.NewPayrollRunRepository(store)
	slips := memory.NewPaySlipRepository(store)

	fs, err := storage.NewLocalStorage(t.TempDir(), "http://localhost/exports")
	require.NoError(t, err)

	approver := "admin-1"
	run, err := runs.Create(ctx, payroll.PayrollRun{
		Year:              2025,
		Month:             3,
		PeriodName:        "März 2025",
		Status:            status,
		ApprovedBy:        &approver,
		TotalEmployees:    2,
		TotalHours:        dec("178"),
		TotalGross:        dec("5162.40"),
		TotalNet:          dec("4800.00"),
		TotalEmployerCost: dec("5600.00"),
	})
	require.NoError(t, err)

	for _, s := range []payroll.PaySlip{
		slip(run, "E-002", "420", "380"),
		slip(run, "E-001", "4742.40", "4438.88"),
	} {
		_, err := slips.Create(ctx, s)
		require.NoError(t, err)
	}

	return &exportFixture{runs: runs, slips: slips, storage: fs, run: run}
}

func slip(run payroll.PayrollRun, number, gross, net string) payroll.PaySlip {
	g, n := dec(gross), dec(net)
	return payroll.PaySlip{
		PayrollRunID:   run.ID,
		EmployeeID:     "emp-" + number,
		Year:           run.Year,
		Month:          run.Month,
		EmployeeName:   "Test " + number,
		EmployeeNumber: number,
		HourlyRate:     dec("28.50"),
		Hours:          payroll.Hours{Regular: dec("10"), Total: dec("10")},
		Gross:          payroll.GrossPay{Regular: g, Total: g},
		Deductions:     payroll.Deductions{AHV: g.Sub(n), Total: g.Sub(n)},
		NetSalary:      n,
		Employer:       payroll.EmployerCosts{Total: g.Add(dec("100"))},
		TimeEntryIDs:   []string{"te-" + number},
	}
}

func (f *exportFixture) read(t *testing.T, key string) []byte {
	t.Helper()
	rc, err := f.storage.Download(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestExport_AllArtifacts(t *testing.T) {
	f := newExportFixture(t, payroll.RunStatusPaid)
	renderer := &fakeRenderer{}
	svc := NewExportService(f.runs, f.slips, f.storage, renderer)
	fixed := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	resp, err := svc.Export(context.Background(), f.run.ID)
	require.NoError(t, err)

	prefix := "payroll/2025/03/" + f.run.ID + "/"
	assert.Equal(t, prefix+"payslips.csv", resp.CSVKey)
	assert.Equal(t, prefix+"register.xlsx", resp.XLSXKey)
	assert.Equal(t, prefix+"payslips.zip", resp.PDFArchiveKey)
	assert.Equal(t, prefix+"audit.json", resp.AuditLogKey)
	assert.Equal(t, fixed, resp.ExportedAt)
	assert.Equal(t, 2, renderer.calls)

	run, err := f.runs.GetByID(context.Background(), f.run.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusPaid, run.Status)
	require.NotNil(t, run.ExportedAt)
	assert.Equal(t, resp.CSVKey, *run.CSVExportKey)
	assert.Equal(t, resp.PDFArchiveKey, *run.PDFArchiveKey)

	t.Run("csv", func(t *testing.T) {
		lines := strings.Split(strings.TrimSpace(string(f.read(t, resp.CSVKey))), "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "employee_number;employee_name;ahv_number;period"))
		assert.True(t, strings.HasPrefix(lines[1], "E-001;Test E-001;;2025-03;28.50;10.00;4742.40;303.52;"))
		assert.True(t, strings.HasPrefix(lines[2], "E-002;"))
	})

	t.Run("xlsx", func(t *testing.T) {
		wb, err := excelize.OpenReader(bytes.NewReader(f.read(t, resp.XLSXKey)))
		require.NoError(t, err)
		defer wb.Close()

		rows, err := wb.GetRows(registerSheet)
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, "Personalnummer", rows[0][0])
		assert.Equal(t, "E-001", rows[1][0])
		assert.Equal(t, "Total", rows[3][0])

		formula, err := wb.GetCellFormula(registerSheet, "E4")
		require.NoError(t, err)
		assert.Equal(t, "SUM(E2:E3)", formula)
	})

	t.Run("archive", func(t *testing.T) {
		data := f.read(t, resp.PDFArchiveKey)
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		require.Len(t, zr.File, 2)
		assert.Equal(t, "Lohnabrechnung_E-001_2025-03.pdf", zr.File[0].Name)

		rc, err := zr.File[0].Open()
		require.NoError(t, err)
		pdf, _ := io.ReadAll(rc)
		rc.Close()
		assert.Equal(t, "%PDF-E-001", string(pdf))
	})

	t.Run("audit", func(t *testing.T) {
		var doc auditLog
		require.NoError(t, json.Unmarshal(f.read(t, resp.AuditLogKey), &doc))
		assert.Equal(t, f.run.ID, doc.RunID)
		assert.Equal(t, "2025-03", doc.Period)
		assert.Equal(t, "admin-1", *doc.ApprovedBy)
		assert.True(t, doc.Totals.Gross.Equal(dec("5162.40")))
		assert.Len(t, doc.Payslips, 2)
		assert.NotNil(t, doc.Errors)
	})
}

func TestExport_WithoutRenderer(t *testing.T) {
	f := newExportFixture(t, payroll.RunStatusApproved)
	svc := NewExportService(f.runs, f.slips, f.storage, nil)

	resp, err := svc.Export(context.Background(), f.run.ID)
	require.NoError(t, err)
	assert.Empty(t, resp.PDFArchiveKey)

	run, err := f.runs.GetByID(context.Background(), f.run.ID)
	require.NoError(t, err)
	assert.Nil(t, run.PDFArchiveKey)
	assert.Equal(t, payroll.RunStatusApproved, run.Status)

	exported := payroll.ToRunResponse(run)
	require.NotNil(t, exported.Exports)
	assert.Equal(t, resp.AuditLogKey, exported.Exports.AuditLogKey)
}

func TestExport_RequiresApproval(t *testing.T) {
	for _, status := range []payroll.RunStatus{payroll.RunStatusDraft, payroll.RunStatusPendingReview} {
		t.Run(string(status), func(t *testing.T) {
			f := newExportFixture(t, status)
			svc := NewExportService(f.runs, f.slips, f.storage, nil)

			_, err := svc.Export(context.Background(), f.run.ID)
			assert.ErrorIs(t, err, payroll.ErrRunNotExportable)
		})
	}
}

func TestExport_FailureLeavesRunUntouched(t *testing.T) {
	f := newExportFixture(t, payroll.RunStatusPaid)
	svc := NewExportService(f.runs, f.slips, f.storage, &fakeRenderer{err: errors.New("renderer down")})

	_, err := svc.Export(context.Background(), f.run.ID)
	require.Error(t, err)

	run, err := f.runs.GetByID(context.Background(), f.run.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusPaid, run.Status)
	assert.Nil(t, run.ExportedAt)
	assert.Nil(t, run.CSVExportKey)
}

func TestExport_KeysSurviveTransitionFromStaleCopy(t *testing.T) {
	f := newExportFixture(t, payroll.RunStatusApproved)
	svc := NewExportService(f.runs, f.slips, f.storage, nil)
	ctx := context.Background()

	// A transition read the run before the export finished.
	stale, err := f.runs.GetByID(ctx, f.run.ID)
	require.NoError(t, err)

	resp, err := svc.Export(ctx, f.run.ID)
	require.NoError(t, err)

	paidAt := time.Now()
	stale.Status = payroll.RunStatusPaid
	stale.PaidAt = &paidAt
	require.NoError(t, f.runs.Update(ctx, stale, payroll.RunStatusApproved))

	run, err := f.runs.GetByID(ctx, f.run.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusPaid, run.Status)
	require.NotNil(t, run.CSVExportKey)
	assert.Equal(t, resp.CSVKey, *run.CSVExportKey)
	require.NotNil(t, run.ExportedAt)
	assert.Nil(t, run.PDFArchiveKey)
}
