package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/notification"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishPayslipIssued(t *testing.T) {
	w := &recordingWriter{}
	p := newPayslipPublisher(w, "")

	at := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	slip := payroll.PaySlip{
		ID:             "slip-1",
		PayrollRunID:   "run-1",
		EmployeeID:     "emp-1",
		EmployeeNumber: "E-001",
		Year:           2025,
		Month:          3,
		Gross:          payroll.GrossPay{Total: decimal.RequireFromString("4742.40")},
		NetSalary:      decimal.RequireFromString("4438.88"),
	}

	require.NoError(t, p.PublishPayslipIssued(context.Background(), notification.NewPayslipIssued(slip, at)))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, notification.PayslipIssuedTopic, msg.Topic)
	assert.Equal(t, "slip-1", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, notification.EventPayslipIssued, string(msg.Headers[0].Value))

	var event notification.PayslipIssued
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "run-1", event.PayrollRunID)
	assert.True(t, event.NetSalary.Equal(slip.NetSalary))
	assert.Equal(t, at, event.OccurredAt)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishPayslipIssued_Errors(t *testing.T) {
	w := &recordingWriter{err: errors.New("leader not available")}
	p := newPayslipPublisher(w, "custom.topic")

	assert.NoError(t, p.PublishPayslipIssued(context.Background()))
	err := p.PublishPayslipIssued(context.Background(), notification.PayslipIssued{PayslipID: "a"})
	assert.ErrorContains(t, err, "leader not available")
}
