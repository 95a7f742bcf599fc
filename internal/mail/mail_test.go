package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-backend/internal/config"
)

type fakeSender struct {
	err  error
	sent []Message
}

func (f *fakeSender) Send(_ context.Context, message Message) error {
	f.sent = append(f.sent, message)
	return f.err
}

func TestNewSender(t *testing.T) {
	sender, err := NewSender(config.Mail{})
	require.NoError(t, err)
	assert.Nil(t, sender)

	sender, err = NewSender(config.Mail{Provider: config.MailProviderSMTP, SMTPHost: "localhost", SMTPPort: 25})
	require.NoError(t, err)
	assert.IsType(t, &BreakerSender{}, sender)

	sender, err = NewSender(config.Mail{Provider: config.MailProviderMailgun, MailgunDomain: "mg.example.com", MailgunAPIKey: "key"})
	require.NoError(t, err)
	assert.IsType(t, &BreakerSender{}, sender)

	_, err = NewSender(config.Mail{Provider: "fax"})
	assert.Error(t, err)
}

func TestBreakerSenderTripsAfterFailures(t *testing.T) {
	inner := &fakeSender{err: errors.New("connection refused")}
	sender := NewBreakerSender("test", inner)
	msg := Message{From: "site@example.com", To: []string{"owner@example.com"}, Subject: "hi"}

	for i := 0; i < 3; i++ {
		assert.Error(t, sender.Send(context.Background(), msg))
	}
	assert.Equal(t, gobreaker.StateOpen, sender.State())

	err := sender.Send(context.Background(), msg)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Len(t, inner.sent, 3)
}

func TestBreakerSenderRejectsInvalidMessage(t *testing.T) {
	inner := &fakeSender{}
	sender := NewBreakerSender("test", inner)

	err := sender.Send(context.Background(), Message{Subject: "no recipients"})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Empty(t, inner.sent)
}

func TestSMTPSenderBuildsMessage(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "user", Password: "pass"})

	var (
		gotAddr string
		gotTo   []string
		gotBody string
	)
	sender.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotBody = addr, to, string(msg)
		assert.NotNil(t, a)
		assert.Equal(t, "site@example.com", from)
		return nil
	}

	err := sender.Send(context.Background(), Message{
		From:    "site@example.com",
		To:      []string{"owner@example.com"},
		Subject: "New message",
		HTML:    "<p>hello</p>",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"owner@example.com"}, gotTo)
	assert.Contains(t, gotBody, "Subject: New message\r\n")
	assert.Contains(t, gotBody, `Content-Type: text/html; charset="utf-8"`)
	assert.True(t, strings.HasSuffix(gotBody, "\r\n\r\n<p>hello</p>"))
}

func TestSMTPSenderHonoursContext(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 25})
	release := make(chan struct{})
	defer close(release)
	sender.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sender.Send(ctx, Message{From: "a@example.com", To: []string{"b@example.com"}, Subject: "s"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestContactNotifierEscapesInput(t *testing.T) {
	inner := &fakeSender{}
	notifier := NewContactNotifier(inner, "site@example.com", "owner@example.com")

	err := notifier.NotifyContact(context.Background(), "<b>Eve</b>", "eve@example.com", "line one\nline <two>")
	require.NoError(t, err)
	require.Len(t, inner.sent, 1)

	msg := inner.sent[0]
	assert.Equal(t, []string{"owner@example.com"}, msg.To)
	assert.Equal(t, "New Contact Form Submission from <b>Eve</b>", msg.Subject)
	assert.Contains(t, msg.HTML, "&lt;b&gt;Eve&lt;/b&gt;")
	assert.Contains(t, msg.HTML, "line one<br>line &lt;two&gt;")
	assert.Contains(t, msg.HTML, `href="mailto:eve@example.com"`)
	assert.NotContains(t, msg.HTML, "<b>Eve</b>")
}
