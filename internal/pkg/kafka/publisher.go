package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/config"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/notification"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// PayslipPublisher writes payslip events keyed by payslip id, so every
// event of one slip lands on the same partition.
type PayslipPublisher struct {
	writer messageWriter
	topic  string
}

func NewPayslipPublisher(cfg config.KafkaConfig) *PayslipPublisher {
	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newPayslipPublisher(writer, cfg.PayslipTopic)
}

func newPayslipPublisher(w messageWriter, topic string) *PayslipPublisher {
	if topic == "" {
		topic = notification.PayslipIssuedTopic
	}
	return &PayslipPublisher{writer: w, topic: topic}
}

var _ notification.EventPublisher = (*PayslipPublisher)(nil)

func (p *PayslipPublisher) PublishPayslipIssued(ctx context.Context, events ...notification.PayslipIssued) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to encode payslip event: %w", err)
		}
		msgs = append(msgs, kafkago.Message{
			Topic: p.topic,
			Key:   []byte(event.PayslipID),
			Value: payload,
			Headers: []kafkago.Header{
				{Key: "event_type", Value: []byte(event.EventType)},
				{Key: "aggregate_type", Value: []byte("payslip")},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish %d payslip event(s): %w", len(msgs), err)
	}
	return nil
}

func (p *PayslipPublisher) Close() error {
	return p.writer.Close()
}
