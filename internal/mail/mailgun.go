package mail

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
)

type MailgunSender struct {
	client *mailgun.MailgunImpl
}

func NewMailgunSender(domain, apiKey string) *MailgunSender {
	return &MailgunSender{client: mailgun.NewMailgun(domain, apiKey)}
}

func (s *MailgunSender) Send(ctx context.Context, message Message) error {
	m := s.client.NewMessage(message.From, message.Subject, message.Text, message.To...)
	if message.HTML != "" {
		m.SetHtml(message.HTML)
	}

	if _, _, err := s.client.Send(ctx, m); err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	return nil
}
