package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/solhealth/match-booking/pkg/logging"
)

// OpsAlerter emails operators about bookings that need a human, such as an
// appointment that was created but never synced.
type OpsAlerter struct {
	email  EmailSender
	to     []string
	env    string
	logger *logging.Logger
}

// AlertCategory tags every operator alert.
const AlertCategory = "booking-alert"

// NewOpsAlerter takes a comma separated recipient list. It returns nil when
// there is no sender or recipient, so callers can treat alerts as disabled.
func NewOpsAlerter(email EmailSender, to, env string, logger *logging.Logger) *OpsAlerter {
	var recipients []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	if email == nil || len(recipients) == 0 {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OpsAlerter{email: email, to: recipients, env: env, logger: logger}
}

// Notify sends one alert. Subjects are prefixed with the environment outside
// production.
func (a *OpsAlerter) Notify(ctx context.Context, subject, body string) error {
	if a == nil {
		return nil
	}
	if a.env != "" && a.env != "production" {
		subject = fmt.Sprintf("[%s] %s", a.env, subject)
	}
	err := a.email.Send(ctx, EmailMessage{
		To:       a.to,
		Subject:  subject,
		Text:     body,
		HTML:     formatAlertHTML(subject, body),
		Category: AlertCategory,
	})
	if err != nil {
		a.logger.Warn("ops alert not delivered", "subject", subject, "error", err)
		return fmt.Errorf("notify: ops alert: %w", err)
	}
	return nil
}

// formatAlertHTML renders "Key: value" lines as a table and anything else as
// a paragraph.
func formatAlertHTML(title, body string) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family:sans-serif;max-width:600px;">`)
	b.WriteString(fmt.Sprintf(`<h2 style="color:#333;">%s</h2>`, html.EscapeString(title)))
	inTable := false
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ": ")
		if ok && len(key) <= 24 {
			if !inTable {
				b.WriteString(`<table style="border-collapse:collapse;width:100%;">`)
				inTable = true
			}
			b.WriteString(fmt.Sprintf(`<tr><td style="padding:6px 12px;font-weight:bold;">%s</td><td style="padding:6px 12px;">%s</td></tr>`,
				html.EscapeString(key), html.EscapeString(value)))
			continue
		}
		if inTable {
			b.WriteString(`</table>`)
			inTable = false
		}
		b.WriteString(fmt.Sprintf(`<p>%s</p>`, html.EscapeString(line)))
	}
	if inTable {
		b.WriteString(`</table>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}
