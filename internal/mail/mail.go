package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"portfolio-backend/internal/config"
)

var ErrInvalidMessage = errors.New("invalid mail message")

type Message struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
}

func (m Message) validate() error {
	if m.From == "" || len(m.To) == 0 || m.Subject == "" {
		return ErrInvalidMessage
	}
	return nil
}

type Sender interface {
	Send(ctx context.Context, message Message) error
}

// NewSender builds the provider named in cfg wrapped in a circuit breaker.
// It returns a nil Sender when mail is not configured.
func NewSender(cfg config.Mail) (Sender, error) {
	var sender Sender
	switch cfg.Provider {
	case "":
		return nil, nil
	case config.MailProviderSMTP:
		sender = NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
		})
	case config.MailProviderMailgun:
		sender = NewMailgunSender(cfg.MailgunDomain, cfg.MailgunAPIKey)
	default:
		return nil, fmt.Errorf("unsupported mail provider %q", cfg.Provider)
	}

	return NewBreakerSender(cfg.Provider, sender), nil
}

// BreakerSender stops calling a failing provider for a while instead of
// stalling every contact submission on it.
type BreakerSender struct {
	next    Sender
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerSender(name string, next Sender) *BreakerSender {
	return &BreakerSender{
		next: next,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "mail-" + name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}),
	}
}

func (s *BreakerSender) Send(ctx context.Context, message Message) error {
	if err := message.validate(); err != nil {
		return err
	}

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.next.Send(ctx, message)
	})
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (s *BreakerSender) State() gobreaker.State {
	return s.breaker.State()
}
