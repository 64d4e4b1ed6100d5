// Package mailer sends outbound email over SMTP.
package mailer

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"

	"betihari-backend/pkg/models"
)

// Message is one outbound email.
type Message struct {
	To      []string
	Subject string
	Body    string
	HTML    bool
	ReplyTo string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msgs ...Message) error
}

// SMTPConfig holds the SMTP connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends through a single SMTP server.
type SMTPMailer struct {
	config SMTPConfig
	// deliver is replaced in tests.
	deliver func(ctx context.Context, msgs ...*mail.Msg) error
}

// NewSMTPMailer returns ErrNotConfigured when host or sender are missing.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp: %w", models.ErrNotConfigured)
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	m := &SMTPMailer{config: cfg}
	m.deliver = m.dialAndSend
	return m, nil
}

func (m *SMTPMailer) dialAndSend(ctx context.Context, msgs ...*mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.config.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.config.Username),
			mail.WithPassword(m.config.Password),
		)
	}
	client, err := mail.NewClient(m.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msgs...)
}

func (m *SMTPMailer) build(msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("message has no recipients: %w", models.ErrInvalidInput)
	}
	out := mail.NewMsg()
	if err := out.From(m.config.From); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := out.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", models.ErrInvalidInput)
	}
	if msg.ReplyTo != "" {
		if err := out.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("invalid reply-to: %w", models.ErrInvalidInput)
		}
	}
	out.Subject(msg.Subject)
	contentType := mail.TypeTextPlain
	if msg.HTML {
		contentType = mail.TypeTextHTML
	}
	out.SetBodyString(contentType, msg.Body)
	return out, nil
}

// Send delivers all messages over one connection.
func (m *SMTPMailer) Send(ctx context.Context, msgs ...Message) error {
	built := make([]*mail.Msg, 0, len(msgs))
	for _, msg := range msgs {
		b, err := m.build(msg)
		if err != nil {
			return err
		}
		built = append(built, b)
	}
	if err := m.deliver(ctx, built...); err != nil {
		log.WithError(err).WithField("count", len(built)).Error("smtp delivery failed")
		return fmt.Errorf("failed to send email: %w", models.ErrUnavailable)
	}
	return nil
}

// Disabled is used when SMTP is not configured.
type Disabled struct{}

func (Disabled) Send(context.Context, ...Message) error {
	return fmt.Errorf("email: %w", models.ErrNotConfigured)
}

// SendEach delivers one message per recipient so addresses are not disclosed
// to each other, and reports which recipients failed.
func SendEach(ctx context.Context, m Mailer, recipients []string, subject, body string, html bool) models.EmailResult {
	result := models.EmailResult{}
	seen := make(map[string]bool, len(recipients))
	for _, to := range recipients {
		to = models.NormalizeEmail(to)
		if to == "" || seen[to] {
			continue
		}
		seen[to] = true
		if err := m.Send(ctx, Message{To: []string{to}, Subject: subject, Body: body, HTML: html}); err != nil {
			result.Failed = append(result.Failed, to)
			continue
		}
		result.Sent++
	}
	return result
}

// FormatDollars renders cents as a dollar amount.
func FormatDollars(cents int64) string {
	s := fmt.Sprintf("$%d.%02d", cents/100, cents%100)
	return strings.TrimSuffix(s, ".00")
}

// Configured reports whether m can actually deliver mail.
func Configured(m Mailer) bool {
	if m == nil {
		return false
	}
	_, disabled := m.(Disabled)
	return !disabled
}
