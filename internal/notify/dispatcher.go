// Package notify sends reminder and summary emails for content calendars.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"contentcal/api/internal/logger"
)

const (
	TypeReminder = "reminder"
	TypeSummary  = "summary"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Type    string
}

type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds SMTP configuration
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.Port != "" && c.From != ""
}

// SMTPDispatcher delivers messages through an SMTP relay.
type SMTPDispatcher struct {
	config SMTPConfig
	server string
	auth   smtp.Auth
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPDispatcher(config SMTPConfig) *SMTPDispatcher {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &SMTPDispatcher{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

func (d *SMTPDispatcher) Send(ctx context.Context, msg Message) error {
	if !d.config.IsConfigured() {
		return fmt.Errorf("email not configured")
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("message has no recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.send(d.server, d.auth, d.config.From, []string{msg.To}, d.build(msg))
}

func (d *SMTPDispatcher) build(msg Message) []byte {
	from := d.config.From
	if d.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", d.config.FromName, d.config.From)
	}
	boundary := "boundary-contentcal"

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	if msg.Type != "" {
		fmt.Fprintf(&buf, "X-Contentcal-Type: %s\r\n", msg.Type)
	}
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&buf, "\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&buf, "Please view this email in an HTML-capable email client.\r\n\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", msg.HTML)
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}

// LogDispatcher only logs messages. It stands in when SMTP is not configured.
type LogDispatcher struct {
	log logger.Logger
}

func NewLogDispatcher(log logger.Logger) *LogDispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Send(_ context.Context, msg Message) error {
	d.log.Info("Email not sent, SMTP disabled",
		logger.String("to", msg.To),
		logger.String("subject", msg.Subject),
		logger.String("type", msg.Type))
	return nil
}
