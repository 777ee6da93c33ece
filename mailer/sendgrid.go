package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type SendGridSender struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridSender(apiKey, from string) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail("EventHub", from),
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	to := mail.NewEmail("", msg.To)
	message := mail.NewSingleEmail(s.from, msg.Subject, to, "", msg.HTML)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogSender writes mails to the log instead of sending them. Used when no
// SendGrid key is configured.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info("mail not sent, no transport configured",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("html", msg.HTML),
	)
	return nil
}
