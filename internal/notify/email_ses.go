package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/solhealth/match-booking/pkg/logging"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends through Amazon SES v2.
type SESSender struct {
	client    sesAPI
	from      string
	configSet string
	logger    *logging.Logger
}

type SESConfig struct {
	FromEmail string
	FromName  string
	// ConfigurationSet routes bounce and delivery events; optional.
	ConfigurationSet string
}

// NewSESSender returns nil for a nil client, including a typed-nil
// *sesv2.Client.
func NewSESSender(client sesAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	if c, ok := client.(*sesv2.Client); ok && c == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	name := cfg.FromName
	if name == "" {
		name = defaultFromName
	}
	return &SESSender{
		client:    client,
		from:      fmt.Sprintf("%s <%s>", name, cfg.FromEmail),
		configSet: cfg.ConfigurationSet,
		logger:    logger,
	}
}

func (s *SESSender) input(msg EmailMessage, to []string) *sesv2.SendEmailInput {
	body := &types.Body{}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")}
	}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")}
	}
	if body.Text == nil && body.Html == nil {
		body.Text = &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")}
	}

	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: to},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	}
	if s.configSet != "" {
		in.ConfigurationSetName = aws.String(s.configSet)
	}
	if msg.Category != "" {
		in.EmailTags = []types.MessageTag{{Name: aws.String("category"), Value: aws.String(msg.Category)}}
	}
	return in
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: SES client not configured")
	}
	to := msg.recipients()
	if len(to) == 0 {
		return ErrNoRecipients
	}

	output, err := s.client.SendEmail(ctx, s.input(msg, to))
	if err != nil {
		s.logger.Error("SES send failed", "error", err, "recipients", len(to))
		return fmt.Errorf("notify: SES send: %w", err)
	}

	s.logger.Info("alert email sent", "provider", "ses", "subject", msg.Subject, "category", msg.Category,
		"recipients", len(to), "message_id", aws.ToString(output.MessageId))
	return nil
}

var (
	_ EmailSender = (*SESSender)(nil)
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
