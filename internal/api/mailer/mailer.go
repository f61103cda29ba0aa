package mailer

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/shared/config"
	"github.com/platformplatform/account-api/internal/shared/logutil"
)

type Message struct {
	To      []string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, m Message) error
}

type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: auth,
		from: from,
	}
}

func (m SMTPMailer) Send(_ context.Context, msg Message) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	buf.WriteString(msg.Body)

	if err := smtp.SendMail(m.addr, m.auth, m.from, msg.To, buf.Bytes()); err != nil {
		return errors.Wrapf(err, "failed to send mail %q to %v", msg.Subject, msg.To)
	}

	return nil
}

// LogMailer only logs messages, it's used in development.
type LogMailer struct {
	log logutil.Log
}

func NewLogMailer(log logutil.Log) *LogMailer {
	return &LogMailer{log: log}
}

func (m LogMailer) Send(_ context.Context, msg Message) error {
	m.log.Infof("Mail to %v: %s\n%s", msg.To, msg.Subject, msg.Body)
	return nil
}

// MemoryMailer keeps sent messages for tests.
type MemoryMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (m *MemoryMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *MemoryMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

// SentTo matches recipients case-insensitively.
func (m *MemoryMailer) SentTo(email string) []Message {
	var ret []Message
	for _, msg := range m.Sent() {
		for _, to := range msg.To {
			if strings.EqualFold(to, email) {
				ret = append(ret, msg)
				break
			}
		}
	}
	return ret
}

func (m *MemoryMailer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

// New returns SMTP mailer if SMTP_HOST is set and log mailer otherwise.
func New(cfg config.Config, log logutil.Log) Mailer {
	host := cfg.GetString("SMTP_HOST")
	if host == "" {
		log.Infof("No SMTP_HOST, emails will be only logged")
		return NewLogMailer(log.Child("mail"))
	}

	from := cfg.GetString("MAIL_FROM")
	if from == "" {
		from = "no-reply@" + host
	}
	return NewSMTPMailer(host, cfg.GetInt("SMTP_PORT", 587), cfg.GetString("SMTP_USERNAME"),
		cfg.GetString("SMTP_PASSWORD"), from)
}
