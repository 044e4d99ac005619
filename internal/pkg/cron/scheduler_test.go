package cron

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsAndStops(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	s.AddJob(Job{Name: "tick", Interval: 5 * time.Millisecond, Fn: func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}})
	s.AddJob(Job{Name: "panics", Interval: 5 * time.Millisecond, Fn: func(ctx context.Context) error {
		panic("boom")
	}})
	s.AddJob(Job{Name: "no interval", Fn: func(ctx context.Context) error { return nil }})

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	s.Stop()

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestScheduler_RunOnce(t *testing.T) {
	s := NewScheduler()
	var order []string
	s.AddJob(Job{Name: "a", Interval: time.Hour, Fn: func(ctx context.Context) error {
		order = append(order, "a")
		return errors.New("failed")
	}})
	s.AddJob(Job{Name: "b", Interval: time.Hour, Fn: func(ctx context.Context) error {
		order = append(order, "b")
		return nil
	}})

	err := s.RunOnce(context.Background())
	assert.EqualError(t, err, "a: failed")
	assert.Equal(t, []string{"a", "b"}, order)
}

type countingReloader struct{ calls int }

func (r *countingReloader) Reload(context.Context) error {
	r.calls++
	return nil
}

type recordingExporter struct {
	mu   sync.Mutex
	runs []string
}

func (e *recordingExporter) Export(_ context.Context, runID string) (payroll.ExportResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs = append(e.runs, runID)
	return payroll.ExportResponse{}, nil
}

func TestPayrollJobs_RetryPendingExports(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	runs := memory.NewPayrollRunRepository(store)
	now := time.Date(2025, 4, 2, 12, 0, 0, 0, time.UTC)

	create := func(month int, status payroll.RunStatus, paidAgo time.Duration, exported bool) payroll.PayrollRun {
		run := payroll.PayrollRun{Year: 2025, Month: month, Status: status}
		if paidAgo > 0 {
			paid := now.Add(-paidAgo)
			run.PaidAt = &paid
		}
		if exported {
			run.ExportedAt = &now
		}
		created, err := runs.Create(ctx, run)
		require.NoError(t, err)
		return created
	}

	stale := create(1, payroll.RunStatusPaid, time.Hour, false)
	create(2, payroll.RunStatusPaid, time.Hour, true)
	create(3, payroll.RunStatusPaid, time.Minute, false)
	create(4, payroll.RunStatusApproved, 0, false)
	closed := create(5, payroll.RunStatusClosed, 2*time.Hour, false)
	create(6, payroll.RunStatusClosed, 2*time.Hour, true)

	exporter := &recordingExporter{}
	reloader := &countingReloader{}
	jobs := NewPayrollJobs(reloader, runs, exporter, time.Minute)
	jobs.now = func() time.Time { return now }

	require.NoError(t, jobs.RetryPendingExports(ctx))
	assert.ElementsMatch(t, []string{stale.ID, closed.ID}, exporter.runs)

	require.NoError(t, jobs.ReloadRateTables(ctx))
	assert.Equal(t, 1, reloader.calls)

	s := NewScheduler()
	jobs.RegisterJobs(s)
	assert.Len(t, s.jobs, 2)
}
