package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"github.com/cmlabs-hris/payroll-engine/internal/config"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeSES struct {
	sesiface.SESAPI
	inputs []*ses.SendRawEmailInput
}

func (f *fakeSES) SendRawEmailWithContext(_ aws.Context, in *ses.SendRawEmailInput, _ ...request.Option) (*ses.SendRawEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	return &ses.SendRawEmailOutput{MessageId: aws.String("msg-1")}, nil
}

type flakyTransport struct {
	failures int
	sent     int
}

func (t *flakyTransport) Send(context.Context, *gomail.Message) error {
	if t.failures > 0 {
		t.failures--
		return errors.New("connection reset")
	}
	t.sent++
	return nil
}

var mailConfig = config.EmailConfig{From: "payroll@example.ch", FromName: "Lohnbuchhaltung"}

func newService(t *testing.T, transport Transport) *emailServiceImpl {
	t.Helper()
	svc, err := NewEmailService(mailConfig, transport)
	require.NoError(t, err)
	impl := svc.(*emailServiceImpl)
	impl.backoff = func(int) time.Duration { return time.Millisecond }
	return impl
}

func TestSendPayslip_SES(t *testing.T) {
	client := &fakeSES{}
	svc := newService(t, NewSESTransport(client))

	err := svc.SendPayslip(context.Background(), notification.PayslipMail{
		To:             "anna@example.ch",
		EmployeeName:   "Anna Muster",
		PeriodName:     "März 2025",
		GrossSalary:    "4742.40",
		NetSalary:      "4438.88",
		Attachment:     []byte("%PDF-1.7"),
		AttachmentName: "Lohnabrechnung_E-001_2025-03.pdf",
	})
	require.NoError(t, err)
	require.Len(t, client.inputs, 1)

	in := client.inputs[0]
	assert.Equal(t, []string{"anna@example.ch"}, aws.StringValueSlice(in.Destinations))
	raw := string(in.RawMessage.Data)
	assert.Contains(t, raw, "Lohnabrechnung_E-001_2025-03.pdf")
	assert.Contains(t, raw, "application/pdf")
	assert.Contains(t, raw, "Lohnbuchhaltung")
	assert.True(t, strings.Contains(raw, "Subject: =?UTF-8?"), "non-ascii subject is encoded")
}

func TestSendPayslip_NoRecipient(t *testing.T) {
	svc := newService(t, &flakyTransport{})
	err := svc.SendPayslip(context.Background(), notification.PayslipMail{EmployeeName: "x"})
	assert.ErrorIs(t, err, notification.ErrNoRecipient)
}

func TestSendPayslip_Retries(t *testing.T) {
	transport := &flakyTransport{failures: 2}
	svc := newService(t, transport)

	require.NoError(t, svc.SendPayslip(context.Background(), notification.PayslipMail{To: "a@example.ch"}))
	assert.Equal(t, 1, transport.sent)

	transport.failures = maxRetries
	err := svc.SendPayslip(context.Background(), notification.PayslipMail{To: "a@example.ch"})
	assert.ErrorContains(t, err, "after 3 attempts")
}
