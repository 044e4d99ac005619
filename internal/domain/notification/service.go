package notification

import "context"

// EventPublisher sends payslip events to the message bus.
type EventPublisher interface {
	PublishPayslipIssued(ctx context.Context, events ...PayslipIssued) error
}

// NoopPublisher is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishPayslipIssued(context.Context, ...PayslipIssued) error { return nil }

type Mailer interface {
	SendPayslip(ctx context.Context, mail PayslipMail) error
}
