// Package mail sends the reply-needed notification for records where the
// buyer asked for a substitution.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/furnbridge/orderdesk/internal/config"
)

// Message is one outbound plain-text mail.
type Message struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	Body    string
}

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers mail over SMTP with STARTTLS when the server offers it.
type SMTPSender struct {
	cfg config.MailConfig
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return eris.New("mail: no recipient configured")
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return eris.Wrapf(err, "mail: dial %s", addr)
	}

	client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return eris.Wrap(err, "mail: smtp handshake")
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.SMTPHost}); err != nil {
			return eris.Wrap(err, "mail: starttls")
		}
	}
	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return eris.Wrap(err, "mail: auth")
		}
	}

	if err := client.Mail(msg.From); err != nil {
		return eris.Wrap(err, "mail: mail from")
	}
	if err := client.Rcpt(msg.To); err != nil {
		return eris.Wrapf(err, "mail: rcpt %s", msg.To)
	}
	w, err := client.Data()
	if err != nil {
		return eris.Wrap(err, "mail: data")
	}
	if _, err := w.Write([]byte(msg.encode())); err != nil {
		w.Close()
		return eris.Wrap(err, "mail: write body")
	}
	if err := w.Close(); err != nil {
		return eris.Wrap(err, "mail: close body")
	}
	return eris.Wrap(client.Quit(), "mail: quit")
}

func (m Message) encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	if m.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", m.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	return b.String()
}
