package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/notification"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/service/export"
)

// Config holds dispatcher configuration
type Config struct {
	BatchSize     int           // default: 50
	FlushInterval time.Duration // default: 2 seconds
	WorkerCount   int           // default: 2
	QueueSize     int           // default: 1000
}

// Dependencies of the dispatcher. Mailer and Renderer may be nil.
type Dependencies struct {
	SlipRepo     payroll.PaySlipRepository
	EmployeeRepo employee.EmployeeRepository
	Publisher    notification.EventPublisher
	Mailer       notification.Mailer
	Renderer     export.PayslipRenderer
}

type job struct {
	run  payroll.PayrollRun
	slip payroll.PaySlip
}

// Dispatcher publishes payslip events and mails payslips after a run was
// paid. Work is queued and handled by background workers in batches.
type Dispatcher struct {
	deps   Dependencies
	config Config

	queue    chan job
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

func NewDispatcher(deps Dependencies, cfg Config) *Dispatcher {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 2
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 1000
	}
	if deps.Publisher == nil {
		deps.Publisher = notification.NoopPublisher{}
	}

	d := &Dispatcher{
		deps:   deps,
		config: cfg,
		queue:  make(chan job, cfg.QueueSize),
		stopCh: make(chan struct{}),
		now:    time.Now,
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	slog.Info("payslip dispatcher started",
		"workers", cfg.WorkerCount,
		"batch_size", cfg.BatchSize,
		"flush_interval", cfg.FlushInterval,
	)
	return d
}

var _ payroll.PayslipNotifier = (*Dispatcher)(nil)

// NotifyPayslips queues every slip not yet mailed. When the queue is full
// the slip is handled inline.
func (d *Dispatcher) NotifyPayslips(ctx context.Context, run payroll.PayrollRun, slips []payroll.PaySlip) {
	for _, slip := range slips {
		if slip.EmailSent {
			continue
		}
		j := job{run: run, slip: slip}

		select {
		case <-d.stopCh:
			slog.Warn("payslip dispatcher stopped, dropping notification", "payslip_id", slip.ID, "error", notification.ErrQueueClosed)
			continue
		default:
		}

		select {
		case d.queue <- j:
		case <-ctx.Done():
			slog.Warn("payslip notification not queued", "payslip_id", slip.ID, "error", ctx.Err())
			return
		default:
			d.process(ctx, []job{j})
		}
	}
}

// Stop drains the queue and waits for the workers.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	d.wg.Wait()
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	batch := make([]job, 0, d.config.BatchSize)
	ticker := time.NewTicker(d.config.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		d.process(ctx, batch)
		slog.Debug("payslip notifications flushed", "worker", id, "count", len(batch))
		batch = batch[:0]
	}

	for {
		select {
		case j := <-d.queue:
			batch = append(batch, j)
			if len(batch) >= d.config.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-d.stopCh:
			for {
				select {
				case j := <-d.queue:
					batch = append(batch, j)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, jobs []job) {
	events := make([]notification.PayslipIssued, 0, len(jobs))
	at := d.now()
	for _, j := range jobs {
		events = append(events, notification.NewPayslipIssued(j.slip, at))
	}
	if err := d.deps.Publisher.PublishPayslipIssued(ctx, events...); err != nil {
		slog.Error("failed to publish payslip events", "count", len(events), "error", err)
	}

	if d.deps.Mailer == nil {
		return
	}
	for _, j := range jobs {
		if err := d.mail(ctx, j); err != nil {
			slog.Error("failed to mail payslip",
				"payslip_id", j.slip.ID,
				"employee_number", j.slip.EmployeeNumber,
				"error", err,
			)
		}
	}
}

func (d *Dispatcher) mail(ctx context.Context, j job) error {
	emp, err := d.deps.EmployeeRepo.GetByID(ctx, j.slip.EmployeeID)
	if err != nil {
		return err
	}

	mail := notification.PayslipMail{
		To:           emp.Email,
		EmployeeName: j.slip.EmployeeName,
		PeriodName:   j.run.PeriodName,
		GrossSalary:  j.slip.Gross.Total.StringFixed(2),
		NetSalary:    j.slip.NetSalary.StringFixed(2),
	}
	if d.deps.Renderer != nil {
		pdf, err := d.deps.Renderer.RenderPayslip(ctx, payroll.ToPayslipResponse(j.slip))
		if err != nil {
			slog.Warn("payslip pdf unavailable, mailing without attachment", "payslip_id", j.slip.ID, "error", err)
		} else {
			mail.Attachment = pdf
			mail.AttachmentName = export.PayslipFileName(j.slip)
		}
	}

	if err := d.deps.Mailer.SendPayslip(ctx, mail); err != nil {
		if errors.Is(err, notification.ErrNoRecipient) {
			slog.Warn("employee has no e-mail address, payslip not mailed", "employee_number", j.slip.EmployeeNumber)
			return nil
		}
		return err
	}
	return d.deps.SlipRepo.MarkEmailSent(ctx, j.slip.ID)
}
