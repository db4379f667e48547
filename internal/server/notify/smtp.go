package notify

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"text/template"
	"time"
)

var activationTemplate = template.Must(template.New("activation").Parse(
	"From: {{.From}}\r\n" +
		"To: {{.To}}\r\n" +
		"Subject: Activate your account\r\n" +
		"Date: {{.Date}}\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		"Hello {{.Nickname}},\r\n" +
		"\r\n" +
		"please confirm your email address by opening the link below.\r\n" +
		"The link is valid for 24 hours.\r\n" +
		"\r\n" +
		"{{.Link}}\r\n"))

type message struct {
	From     string
	To       string
	Date     string
	Nickname string
	Link     string
}

// sendMail is a seam for testing smtp.SendMail.
var sendMail = smtp.SendMail

// SMTPNotifier mails activation links through an SMTP relay.
type SMTPNotifier struct {
	addr    string
	auth    smtp.Auth
	from    string
	baseURL string
	now     func() time.Time
}

// NewSMTPNotifier builds a notifier for the relay at addr (host:port).
// PLAIN auth is used when user is not empty.
func NewSMTPNotifier(addr, user, password, from, baseURL string) (*SMTPNotifier, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("smtp address %q: %w", addr, err)
	}
	n := &SMTPNotifier{addr: addr, from: from, baseURL: baseURL, now: time.Now}
	if user != "" {
		n.auth = smtp.PlainAuth("", user, password, host)
	}
	return n, nil
}

func (n *SMTPNotifier) SendActivation(ctx context.Context, email, nickname, rawToken string) error {
	if err := ctx.Err(); err != nil {
		return &DeliveryError{Recipient: email, Err: err}
	}

	var body bytes.Buffer
	err := activationTemplate.Execute(&body, message{
		From:     n.from,
		To:       email,
		Date:     n.now().Format(time.RFC1123Z),
		Nickname: nickname,
		Link:     ActivationLink(n.baseURL, rawToken),
	})
	if err != nil {
		return &DeliveryError{Recipient: email, Err: fmt.Errorf("render: %w", err)}
	}

	if err := sendMail(n.addr, n.auth, n.from, []string{email}, body.Bytes()); err != nil {
		return &DeliveryError{Recipient: email, Err: err}
	}
	return nil
}
