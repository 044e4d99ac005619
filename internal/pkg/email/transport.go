package email

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"gopkg.in/gomail.v2"
)

// SESTransport hands the raw MIME message to Amazon SES.
type SESTransport struct {
	client sesiface.SESAPI
}

func NewSESTransport(client sesiface.SESAPI) *SESTransport {
	return &SESTransport{client: client}
}

func (t *SESTransport) Send(ctx context.Context, msg *gomail.Message) error {
	var raw bytes.Buffer
	if _, err := msg.WriteTo(&raw); err != nil {
		return fmt.Errorf("failed to write email data: %w", err)
	}

	input := &ses.SendRawEmailInput{
		RawMessage: &ses.RawMessage{Data: raw.Bytes()},
	}
	input.SetDestinations(aws.StringSlice(msg.GetHeader("To")))

	if _, err := t.client.SendRawEmailWithContext(ctx, input); err != nil {
		return fmt.Errorf("ses send raw email: %w", err)
	}
	return nil
}

// SMTPTransport dials the configured relay for every message.
type SMTPTransport struct {
	dialer *gomail.Dialer
}

func NewSMTPTransport(host string, port int, username, password string) *SMTPTransport {
	return &SMTPTransport{dialer: gomail.NewDialer(host, port, username, password)}
}

func (t *SMTPTransport) Send(_ context.Context, msg *gomail.Message) error {
	return t.dialer.DialAndSend(msg)
}

// LogTransport only logs. It is used when mail delivery is disabled.
type LogTransport struct{}

func (LogTransport) Send(_ context.Context, msg *gomail.Message) error {
	slog.Warn("email delivery disabled, skipping send", "to", msg.GetHeader("To"), "subject", msg.GetHeader("Subject"))
	return nil
}
