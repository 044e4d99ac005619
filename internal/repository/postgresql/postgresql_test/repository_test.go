package postgresqltest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/ratetable"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/timeentry"
	"github.com/cmlabs-hris/payroll-engine/internal/repository/postgresql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEmployeeRepository(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	repo := postgresql.NewEmployeeRepository(setup.DB)

	id, err := setup.SeedEmployee(ctx, "E-001", "28.50")
	require.NoError(t, err)

	emp, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "E-001", emp.EmployeeNumber)
	require.NotNil(t, emp.HourlyRate)
	assert.True(t, emp.HourlyRate.Equal(dec("28.50")))
	assert.True(t, emp.HoursPerWeek.Equal(dec("40")))

	eligible, err := repo.ListEligible(ctx, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, eligible, 1)
}

func TestTimeEntryRepository(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	repo := postgresql.NewTimeEntryRepository(setup.DB)

	empID, err := setup.SeedEmployee(ctx, "E-001", "28.50")
	require.NoError(t, err)

	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	entry := timeentry.TimeEntry{
		EmployeeID: empID,
		EntryDate:  day,
		EntryType:  timeentry.EntryTypeRemote,
		Hours:      dec("8"),
		Status:     timeentry.StatusApproved,
	}

	created, err := repo.Create(ctx, entry)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, err = repo.Create(ctx, entry)
	assert.ErrorIs(t, err, timeentry.ErrDuplicateEntry)

	remote, err := repo.RemoteHoursInWeek(ctx, empID, day, day.AddDate(0, 0, 6), "")
	require.NoError(t, err)
	assert.True(t, remote.Equal(dec("8")))

	unpaid, err := repo.ApprovedUnpaid(ctx, empID, timeentry.NewYearMonth(2025, 3))
	require.NoError(t, err)
	require.Len(t, unpaid, 1)

	slipID := "0190a4b2-0000-7000-8000-000000000001"
	n, err := repo.MarkPaid(ctx, []string{created.ID}, slipID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	paid, err := repo.ByPayslip(ctx, slipID)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, timeentry.StatusPaid, paid[0].Status)

	n, err = repo.ReleasePayslip(ctx, slipID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPayrollRunRepository_CompareAndSwap(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	repo := postgresql.NewPayrollRunRepository(setup.DB)

	run, err := repo.Create(ctx, payroll.PayrollRun{Year: 2025, Month: 3, PeriodName: "März 2025", Status: payroll.RunStatusDraft})
	require.NoError(t, err)

	_, err = repo.Create(ctx, payroll.PayrollRun{Year: 2025, Month: 3, PeriodName: "März 2025", Status: payroll.RunStatusDraft})
	assert.ErrorIs(t, err, payroll.ErrRunAlreadyExists)

	run.Status = payroll.RunStatusCalculating
	require.NoError(t, repo.Update(ctx, run, payroll.RunStatusDraft))

	run.Status = payroll.RunStatusPendingReview
	err = repo.Update(ctx, run, payroll.RunStatusDraft)
	assert.ErrorIs(t, err, payroll.ErrInvalidRunTransition)

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusCalculating, got.Status)
	assert.NotNil(t, got.Errors)
}

func TestPayrollRunRepository_RecordExportSurvivesTransition(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	repo := postgresql.NewPayrollRunRepository(setup.DB)

	run, err := repo.Create(ctx, payroll.PayrollRun{Year: 2025, Month: 4, PeriodName: "April 2025", Status: payroll.RunStatusApproved})
	require.NoError(t, err)

	exportedAt := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.RecordExport(ctx, run.ID, payroll.ExportResponse{
		CSVKey:      "payroll/2025/04/" + run.ID + "/payslips.csv",
		XLSXKey:     "payroll/2025/04/" + run.ID + "/register.xlsx",
		AuditLogKey: "payroll/2025/04/" + run.ID + "/audit.json",
		ExportedAt:  exportedAt,
	}))

	// run still carries no export keys; the transition must not clear them.
	run.Status = payroll.RunStatusProcessing
	require.NoError(t, repo.Update(ctx, run, payroll.RunStatusApproved))

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusProcessing, got.Status)
	require.NotNil(t, got.CSVExportKey)
	assert.Equal(t, "payroll/2025/04/"+run.ID+"/payslips.csv", *got.CSVExportKey)
	assert.Nil(t, got.PDFArchiveKey)
	require.NotNil(t, got.ExportedAt)
	assert.True(t, exportedAt.Equal(*got.ExportedAt))

	err = repo.RecordExport(ctx, "0190a000-0000-7000-8000-00000000ffff", payroll.ExportResponse{})
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)
}

func TestPaySlipRepository_YearToDate(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	runs := postgresql.NewPayrollRunRepository(setup.DB)
	slips := postgresql.NewPaySlipRepository(setup.DB)
	tx := postgresql.NewTxManager(setup.DB)

	empID, err := setup.SeedEmployee(ctx, "E-001", "28.50")
	require.NoError(t, err)

	jan, err := runs.Create(ctx, payroll.PayrollRun{Year: 2025, Month: 1, PeriodName: "Januar 2025", Status: payroll.RunStatusApproved})
	require.NoError(t, err)

	slip := payroll.PaySlip{
		PayrollRunID:   jan.ID,
		EmployeeID:     empID,
		Year:           2025,
		Month:          1,
		EmployeeName:   "Anna Muster",
		EmployeeNumber: "E-001",
		HourlyRate:     dec("28.50"),
		Gross:          payroll.GrossPay{Regular: dec("400"), Total: dec("400")},
		NetSalary:      dec("400"),
	}
	created, err := slips.Create(ctx, slip)
	require.NoError(t, err)
	assert.True(t, created.Gross.Total.Equal(dec("400")))
	assert.Empty(t, created.TimeEntryIDs)

	ytd, err := slips.YearToDateGross(ctx, empID, 2025, 2)
	require.NoError(t, err)
	assert.True(t, ytd.Equal(dec("400")))

	rollback := errors.New("rollback")
	err = tx.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, slips.MarkEmailSent(ctx, created.ID))
		return rollback
	})
	assert.ErrorIs(t, err, rollback)

	got, err := slips.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.EmailSent)
}

func TestRateTableRepository(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	repo := postgresql.NewRateTableRepository(setup.DB)

	ceiling := dec("148200")
	require.NoError(t, repo.AppendRate(ctx, ratetable.Row{
		Kind:          ratetable.KindALV,
		EffectiveFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Percent:       dec("1.1"),
		Ceiling:       &ceiling,
	}))

	rows, err := repo.ListRates(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "database", rows[0].Source)
	require.NotNil(t, rows[0].Ceiling)
	assert.True(t, rows[0].Ceiling.Equal(ceiling))
}
