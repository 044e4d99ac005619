package timeentry

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/timeentry"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
)

// Ledger is the payroll-facing side of time entries.
type Ledger struct {
	repo timeentry.TimeEntryRepository
	tx   database.Transactor
}

func NewLedger(repo timeentry.TimeEntryRepository, tx database.Transactor) *Ledger {
	return &Ledger{repo: repo, tx: tx}
}

func (l *Ledger) ApprovedUnpaid(ctx context.Context, employeeID string, period timeentry.YearMonth) ([]timeentry.TimeEntry, error) {
	entries, err := l.repo.ApprovedUnpaid(ctx, employeeID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to get approved entries: %w", err)
	}
	timeentry.SortForPayroll(entries)
	return entries, nil
}

func (l *Ledger) ConsumedBy(ctx context.Context, payslipID string) ([]timeentry.TimeEntry, error) {
	entries, err := l.repo.ByPayslip(ctx, payslipID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries of payslip: %w", err)
	}
	timeentry.SortForPayroll(entries)
	return entries, nil
}

func (l *Ledger) MarkPaid(ctx context.Context, entryIDs []string, payslipID string) error {
	if len(entryIDs) == 0 {
		return nil
	}
	return l.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := l.repo.MarkPaid(ctx, entryIDs, payslipID, time.Now())
		if err != nil {
			return fmt.Errorf("failed to mark entries paid: %w", err)
		}
		if n != len(entryIDs) {
			return fmt.Errorf("%w: %d of %d entries are no longer approved", timeentry.ErrInvalidTransition, len(entryIDs)-n, len(entryIDs))
		}
		return nil
	})
}

func (l *Ledger) Release(ctx context.Context, payslipID string) error {
	return l.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := l.repo.ReleasePayslip(ctx, payslipID, time.Now()); err != nil {
			return fmt.Errorf("failed to release entries: %w", err)
		}
		return nil
	})
}

var _ timeentry.Ledger = (*Ledger)(nil)
