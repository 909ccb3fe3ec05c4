// Package notify delivers operator alerts by email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sendgrid/rest"

	"github.com/solhealth/match-booking/pkg/logging"
)

const defaultFromName = "Sol Health Booking"

// ErrNoRecipients is returned when a message has no To addresses.
var ErrNoRecipients = errors.New("notify: message has no recipients")

// EmailSender sends one email. SendGrid, SES and the stub all satisfy it.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is one alert email. Text and HTML are alternatives of the same
// content; at least one should be set.
type EmailMessage struct {
	To       []string
	Subject  string
	Text     string
	HTML     string
	// Category tags the message for provider-side filtering
	// (SendGrid category, SES message tag).
	Category string
}

func (m EmailMessage) recipients() []string {
	out := make([]string, 0, len(m.To))
	for _, addr := range m.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

type sendgridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender sends through the SendGrid v3 API.
type SendGridSender struct {
	client    sendgridAPI
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

// build assembles a single-personalization message addressed to every
// recipient.
func (s *SendGridSender) build(msg EmailMessage, to []string) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.fromName, s.fromEmail))
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	for _, addr := range to {
		p.AddTos(mail.NewEmail("", addr))
	}
	m.AddPersonalizations(p)

	text := msg.Text
	if text == "" && msg.HTML == "" {
		text = msg.Subject
	}
	if text != "" {
		m.AddContent(mail.NewContent("text/plain", text))
	}
	if msg.HTML != "" {
		m.AddContent(mail.NewContent("text/html", msg.HTML))
	}
	if msg.Category != "" {
		m.AddCategories(msg.Category)
	}
	return m
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}
	to := msg.recipients()
	if len(to) == 0 {
		return ErrNoRecipients
	}

	response, err := s.client.SendWithContext(ctx, s.build(msg, to))
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "recipients", len(to))
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid rejected message", "status", response.StatusCode, "body", response.Body)
		return fmt.Errorf("notify: sendgrid status %d", response.StatusCode)
	}

	s.logger.Info("alert email sent", "provider", "sendgrid", "subject", msg.Subject, "category", msg.Category, "recipients", len(to))
	return nil
}

// StubEmailSender logs instead of sending. Used when no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("stub email sender: would send alert", "to", msg.recipients(), "subject", msg.Subject, "category", msg.Category)
	return nil
}

// ProviderConfig selects an EmailSender.
type ProviderConfig struct {
	// Provider is "sendgrid", "ses", "stub" or "auto". Auto picks SendGrid
	// when it has an API key, then SES when it has a sender, then the stub.
	Provider string
	SendGrid SendGridConfig
	SES      SESConfig
}

// NewEmailSender builds the configured sender. ses may be nil when SES is not
// in use.
func NewEmailSender(cfg ProviderConfig, ses sesAPI, logger *logging.Logger) (EmailSender, error) {
	if logger == nil {
		logger = logging.Default()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "sendgrid":
		sender := NewSendGridSender(cfg.SendGrid, logger)
		if sender == nil {
			return nil, fmt.Errorf("notify: sendgrid selected but SENDGRID_API_KEY is empty")
		}
		return sender, nil
	case "ses":
		sender := NewSESSender(ses, cfg.SES, logger)
		if sender == nil || cfg.SES.FromEmail == "" {
			return nil, fmt.Errorf("notify: ses selected but client or SES_FROM_EMAIL is missing")
		}
		return sender, nil
	case "stub", "none":
		return NewStubEmailSender(logger), nil
	case "", "auto":
		if sender := NewSendGridSender(cfg.SendGrid, logger); sender != nil {
			return sender, nil
		}
		if sender := NewSESSender(ses, cfg.SES, logger); sender != nil && cfg.SES.FromEmail != "" {
			return sender, nil
		}
		return NewStubEmailSender(logger), nil
	default:
		return nil, fmt.Errorf("notify: unknown email provider %q", cfg.Provider)
	}
}
