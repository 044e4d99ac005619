package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
)

// RateReloader rebuilds the rate table from its sources.
type RateReloader interface {
	Reload(ctx context.Context) error
}

// PayrollJobs contains the payroll engine's background jobs
type PayrollJobs struct {
	rates          RateReloader
	runRepo        payroll.PayrollRunRepository
	exporter       payroll.Exporter
	reloadInterval time.Duration
	exportGrace    time.Duration
	now            func() time.Time
}

// NewPayrollJobs wires the jobs. exporter may be nil, which disables the
// export retry.
func NewPayrollJobs(rates RateReloader, runRepo payroll.PayrollRunRepository, exporter payroll.Exporter, reloadInterval time.Duration) *PayrollJobs {
	return &PayrollJobs{
		rates:          rates,
		runRepo:        runRepo,
		exporter:       exporter,
		reloadInterval: reloadInterval,
		exportGrace:    10 * time.Minute,
		now:            time.Now,
	}
}

func (j *PayrollJobs) RegisterJobs(scheduler *Scheduler) {
	// The table is loaded at start, so the first reload waits an interval.
	scheduler.AddJob(Job{
		Name:           "reload_rate_tables",
		Interval:       j.reloadInterval,
		Fn:             j.ReloadRateTables,
		SkipInitialRun: true,
	})

	if j.exporter != nil {
		scheduler.AddJob(Job{
			Name:     "retry_pending_exports",
			Interval: 15 * time.Minute,
			Fn:       j.RetryPendingExports,
		})
	}
}

func (j *PayrollJobs) ReloadRateTables(ctx context.Context) error {
	return j.rates.Reload(ctx)
}

// RetryPendingExports exports paid or closed runs whose export after
// payment never completed. Runs paid within the grace period are left to
// the export that MarkPaid started.
func (j *PayrollJobs) RetryPendingExports(ctx context.Context) error {
	var runs []payroll.PayrollRun
	for _, status := range []payroll.RunStatus{payroll.RunStatusPaid, payroll.RunStatusClosed} {
		page, err := j.runRepo.List(ctx, payroll.RunFilter{Status: &status, Limit: 200})
		if err != nil {
			return fmt.Errorf("failed to list %s runs: %w", status, err)
		}
		runs = append(runs, page...)
	}

	cutoff := j.now().Add(-j.exportGrace)
	exported, failed := 0, 0
	for _, run := range runs {
		if run.ExportedAt != nil || run.PaidAt == nil || run.PaidAt.After(cutoff) {
			continue
		}
		if _, err := j.exporter.Export(ctx, run.ID); err != nil {
			failed++
			slog.Error("Cron: export retry failed", "run_id", run.ID, "error", err)
			continue
		}
		exported++
	}

	if exported > 0 || failed > 0 {
		slog.Info("Cron: pending exports retried", "exported", exported, "failed", failed)
	}
	if failed > 0 {
		return fmt.Errorf("%d export(s) failed", failed)
	}
	return nil
}
