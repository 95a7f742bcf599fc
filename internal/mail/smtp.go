package mail

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

type SMTPSender struct {
	config   SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(config SMTPConfig) *SMTPSender {
	return &SMTPSender{config: config, sendMail: smtp.SendMail}
}

// Send delivers through net/smtp, which upgrades to STARTTLS when the server
// offers it. The context bounds how long the caller waits, not the dial.
func (s *SMTPSender) Send(ctx context.Context, message Message) error {
	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	body := buildMIME(message, time.Now())

	done := make(chan error, 1)
	go func() {
		done <- s.sendMail(addr, auth, message.From, message.To, body)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMIME(message Message, now time.Time) []byte {
	var buf bytes.Buffer
	header := func(key, value string) {
		buf.WriteString(key + ": " + value + "\r\n")
	}

	header("From", message.From)
	header("To", strings.Join(message.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", message.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")

	if message.HTML != "" {
		header("Content-Type", `text/html; charset="utf-8"`)
		buf.WriteString("\r\n" + message.HTML)
	} else {
		header("Content-Type", `text/plain; charset="utf-8"`)
		buf.WriteString("\r\n" + message.Text)
	}

	return buf.Bytes()
}
