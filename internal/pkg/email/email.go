package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/config"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/notification"
	"gopkg.in/gomail.v2"
)

//go:embed templates/*.html
var templateFS embed.FS

const maxRetries = 3

// Transport delivers a composed message.
type Transport interface {
	Send(ctx context.Context, msg *gomail.Message) error
}

type emailServiceImpl struct {
	from      string
	fromName  string
	transport Transport
	templates *template.Template
	backoff   func(attempt int) time.Duration
}

// NewEmailService creates the payslip mailer on top of the given transport.
func NewEmailService(cfg config.EmailConfig, transport Transport) (notification.Mailer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &emailServiceImpl{
		from:      cfg.From,
		fromName:  cfg.FromName,
		transport: transport,
		templates: tmpl,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<(attempt-1)) * time.Second
		},
	}, nil
}

type payslipEmailData struct {
	EmployeeName string
	PeriodName   string
	GrossSalary  string
	NetSalary    string
	HasPDF       bool
}

// SendPayslip mails the payslip notice, with the PDF attached when present.
func (s *emailServiceImpl) SendPayslip(ctx context.Context, mail notification.PayslipMail) error {
	if mail.To == "" {
		return notification.ErrNoRecipient
	}

	data := payslipEmailData{
		EmployeeName: mail.EmployeeName,
		PeriodName:   mail.PeriodName,
		GrossSalary:  mail.GrossSalary,
		NetSalary:    mail.NetSalary,
		HasPDF:       len(mail.Attachment) > 0,
	}

	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, "payslip.html", data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	msg := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	msg.SetAddressHeader("From", s.from, s.fromName)
	msg.SetHeader("To", mail.To)
	msg.SetHeader("Subject", fmt.Sprintf("Lohnabrechnung %s", mail.PeriodName))
	msg.SetBody("text/html", body.String())
	if len(mail.Attachment) > 0 {
		attachment := mail.Attachment
		msg.Attach(mail.AttachmentName,
			gomail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(attachment)
				return err
			}),
		)
	}

	return s.send(ctx, mail.To, msg)
}

func (s *emailServiceImpl) send(ctx context.Context, to string, msg *gomail.Message) error {
	subject := msg.GetHeader("Subject")

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := s.transport.Send(ctx, msg)
		if err == nil {
			slog.Info("Email sent successfully", "to", to, "subject", subject, "attempt", attempt)
			return nil
		}

		lastErr = err
		slog.Error("Failed to send email",
			"to", to,
			"subject", subject,
			"attempt", attempt,
			"max_retries", maxRetries,
			"error", err,
		)

		if attempt < maxRetries {
			select {
			case <-time.After(s.backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, lastErr)
}
