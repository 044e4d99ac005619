package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/notification"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notification.PayslipIssued
	err    error
}

func (p *recordingPublisher) PublishPayslipIssued(_ context.Context, events ...notification.PayslipIssued) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

type recordingMailer struct {
	mu    sync.Mutex
	mails []notification.PayslipMail
}

func (m *recordingMailer) SendPayslip(_ context.Context, mail notification.PayslipMail) error {
	if mail.To == "" {
		return notification.ErrNoRecipient
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mails = append(m.mails, mail)
	return nil
}

type staticRenderer struct{}

func (staticRenderer) RenderPayslip(context.Context, any) ([]byte, error) {
	return []byte("%PDF"), nil
}

type fixture struct {
	slips payroll.PaySlipRepository
	run   payroll.PayrollRun
	list  []payroll.PaySlip
}

func newFixture(t *testing.T, store *memory.Store) *fixture {
	t.Helper()
	ctx := context.Background()
	slips := memory.NewPaySlipRepository(store)
	run := payroll.PayrollRun{ID: "run-1", Year: 2025, Month: 3, PeriodName: "März 2025", Status: payroll.RunStatusPaid}

	var list []payroll.PaySlip
	for _, e := range []employee.Employee{
		{EmployeeNumber: "E-001", FirstName: "Anna", LastName: "Muster", Email: "anna@example.ch"},
		{EmployeeNumber: "E-002", FirstName: "Ben", LastName: "Keller"},
	} {
		e = store.PutEmployee(e)
		slip, err := slips.Create(ctx, payroll.PaySlip{
			PayrollRunID:   run.ID,
			EmployeeID:     e.ID,
			Year:           2025,
			Month:          3,
			EmployeeName:   e.FullName(),
			EmployeeNumber: e.EmployeeNumber,
			Gross:          payroll.GrossPay{Total: decimal.RequireFromString("4742.4")},
			NetSalary:      decimal.RequireFromString("4438.88"),
		})
		require.NoError(t, err)
		list = append(list, slip)
	}
	return &fixture{slips: slips, run: run, list: list}
}

func TestDispatcher_PublishesAndMails(t *testing.T) {
	store := memory.NewStore()
	f := newFixture(t, store)
	pub := &recordingPublisher{}
	mailer := &recordingMailer{}

	d := NewDispatcher(Dependencies{
		SlipRepo:     f.slips,
		EmployeeRepo: memory.NewEmployeeRepository(store),
		Publisher:    pub,
		Mailer:       mailer,
		Renderer:     staticRenderer{},
	}, Config{FlushInterval: time.Hour, WorkerCount: 1})

	d.NotifyPayslips(context.Background(), f.run, f.list)
	d.Stop()

	require.Len(t, pub.events, 2)
	assert.Equal(t, notification.EventPayslipIssued, pub.events[0].EventType)
	assert.ElementsMatch(t, []string{f.list[0].ID, f.list[1].ID}, []string{pub.events[0].PayslipID, pub.events[1].PayslipID})

	require.Len(t, mailer.mails, 1, "employee without address is skipped")
	mail := mailer.mails[0]
	assert.Equal(t, "anna@example.ch", mail.To)
	assert.Equal(t, "März 2025", mail.PeriodName)
	assert.Equal(t, "4742.40", mail.GrossSalary)
	assert.Equal(t, "Lohnabrechnung_E-001_2025-03.pdf", mail.AttachmentName)

	anna, err := f.slips.GetByID(context.Background(), f.list[0].ID)
	require.NoError(t, err)
	assert.True(t, anna.EmailSent)
	ben, err := f.slips.GetByID(context.Background(), f.list[1].ID)
	require.NoError(t, err)
	assert.False(t, ben.EmailSent)
}

func TestDispatcher_MailedFlagLeavesAmountsAlone(t *testing.T) {
	store := memory.NewStore()
	f := newFixture(t, store)
	before := f.list[0]

	d := NewDispatcher(Dependencies{
		SlipRepo:     f.slips,
		EmployeeRepo: memory.NewEmployeeRepository(store),
		Publisher:    &recordingPublisher{},
		Mailer:       &recordingMailer{},
	}, Config{FlushInterval: time.Hour, WorkerCount: 1})

	d.NotifyPayslips(context.Background(), f.run, f.list[:1])
	d.Stop()

	after, err := f.slips.GetByID(context.Background(), before.ID)
	require.NoError(t, err)
	assert.True(t, after.EmailSent)

	after.EmailSent = before.EmailSent
	assert.Equal(t, before, after, "only the delivery flag changes")
}

func TestDispatcher_SkipsMailedSlips(t *testing.T) {
	store := memory.NewStore()
	f := newFixture(t, store)
	pub := &recordingPublisher{}

	d := NewDispatcher(Dependencies{
		SlipRepo:     f.slips,
		EmployeeRepo: memory.NewEmployeeRepository(store),
		Publisher:    pub,
	}, Config{FlushInterval: time.Hour, WorkerCount: 1})

	f.list[0].EmailSent = true
	d.NotifyPayslips(context.Background(), f.run, f.list)
	d.Stop()

	require.Len(t, pub.events, 1)
	assert.Equal(t, f.list[1].ID, pub.events[0].PayslipID)
}

func TestDispatcher_PublishFailureStillMails(t *testing.T) {
	store := memory.NewStore()
	f := newFixture(t, store)
	mailer := &recordingMailer{}

	d := NewDispatcher(Dependencies{
		SlipRepo:     f.slips,
		EmployeeRepo: memory.NewEmployeeRepository(store),
		Publisher:    &recordingPublisher{err: errors.New("broker down")},
		Mailer:       mailer,
	}, Config{FlushInterval: time.Hour, WorkerCount: 1})

	d.NotifyPayslips(context.Background(), f.run, f.list)
	d.Stop()

	assert.Len(t, mailer.mails, 1)
	assert.Empty(t, mailer.mails[0].Attachment)
}

func TestDispatcher_AfterStop(t *testing.T) {
	store := memory.NewStore()
	f := newFixture(t, store)
	pub := &recordingPublisher{}

	d := NewDispatcher(Dependencies{SlipRepo: f.slips, EmployeeRepo: memory.NewEmployeeRepository(store), Publisher: pub}, Config{})
	d.Stop()
	d.Stop()

	d.NotifyPayslips(context.Background(), f.run, f.list)
	assert.Empty(t, pub.events)
}
