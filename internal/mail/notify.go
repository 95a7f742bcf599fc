package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
)

var contactTemplate = template.Must(template.New("contact").Parse(`<h2>New Contact Message</h2>
<p><strong>From:</strong> {{.Name}}</p>
<p><strong>Email:</strong> <a href="mailto:{{.Email}}">{{.Email}}</a></p>
<p><strong>Message:</strong></p>
<p>{{range $i, $line := .Lines}}{{if $i}}<br>{{end}}{{$line}}{{end}}</p>
`))

// ContactNotifier mails the site owner for every contact form submission.
type ContactNotifier struct {
	sender Sender
	from   string
	to     string
}

func NewContactNotifier(sender Sender, from, to string) *ContactNotifier {
	return &ContactNotifier{sender: sender, from: from, to: to}
}

func (n *ContactNotifier) NotifyContact(ctx context.Context, name, email, message string) error {
	html, err := renderContact(name, email, message)
	if err != nil {
		return err
	}

	return n.sender.Send(ctx, Message{
		From:    n.from,
		To:      []string{n.to},
		Subject: "New Contact Form Submission from " + name,
		Text:    fmt.Sprintf("From: %s <%s>\n\n%s", name, email, message),
		HTML:    html,
	})
}

func renderContact(name, email, message string) (string, error) {
	var buf bytes.Buffer
	err := contactTemplate.Execute(&buf, struct {
		Name  string
		Email string
		Lines []string
	}{
		Name:  name,
		Email: email,
		Lines: strings.Split(message, "\n"),
	})
	if err != nil {
		return "", fmt.Errorf("render contact notification: %w", err)
	}
	return buf.String(), nil
}
