package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/furnbridge/orderdesk/internal/config"
	"github.com/furnbridge/orderdesk/internal/model"
)

const replyCasePrefix = "Reply needed: "

// ReplyMailer composes and sends the reply-needed notification. It satisfies
// the pipeline's ReplySender.
type ReplyMailer struct {
	cfg    config.MailConfig
	sender Sender
}

func NewReplyMailer(cfg config.MailConfig) *ReplyMailer {
	return &ReplyMailer{cfg: cfg, sender: NewSMTPSender(cfg)}
}

// NewReplyMailerWithSender injects a custom delivery backend.
func NewReplyMailerWithSender(cfg config.MailConfig, sender Sender) *ReplyMailer {
	return &ReplyMailer{cfg: cfg, sender: sender}
}

// SendReplyNeeded mails the notification and returns the recipient address.
func (m *ReplyMailer) SendReplyNeeded(ctx context.Context, msg model.IngestedEmail, order *model.Order) (string, error) {
	if m.cfg.To == "" {
		return "", eris.New("mail: no recipient configured")
	}
	composed := ComposeReplyNeeded(m.cfg, msg, order)
	if err := m.sender.Send(ctx, composed); err != nil {
		return "", err
	}
	return m.cfg.To, nil
}

// ComposeReplyNeeded builds the notification mail for a record whose
// reply_needed flag is set.
func ComposeReplyNeeded(cfg config.MailConfig, msg model.IngestedEmail, order *model.Order) Message {
	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		subject = fmt.Sprintf("Bestellung %s", order.Header.Text(model.FieldKomNr))
	}
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	var b strings.Builder
	b.WriteString("Für die folgende Bestellung ist eine Rückmeldung erforderlich:\n\n")
	fmt.Fprintf(&b, "Nachricht: %s\n", msg.MessageID)
	if komNr := order.Header.Text(model.FieldKomNr); komNr != "" {
		fmt.Fprintf(&b, "Kommission: %s", komNr)
		if komName := order.Header.Text(model.FieldKomName); komName != "" {
			fmt.Fprintf(&b, " (%s)", komName)
		}
		b.WriteString("\n")
	}
	if kdnr := order.Header.Text(model.FieldKundennummer); kdnr != "" {
		fmt.Fprintf(&b, "Kundennummer: %s\n", kdnr)
	}

	if cases := replyCases(order.Warnings); len(cases) > 0 {
		b.WriteString("\nOffene Punkte:\n")
		for _, c := range cases {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	if sender := strings.TrimSpace(msg.Sender); sender != "" {
		fmt.Fprintf(&b, "\nAbsender der Bestellung: %s\n", sender)
	}

	return Message{
		From:    cfg.From,
		To:      cfg.To,
		ReplyTo: cfg.ReplyTo,
		Subject: subject,
		Body:    b.String(),
	}
}

func replyCases(warnings []string) []string {
	var cases []string
	for _, w := range warnings {
		if strings.HasPrefix(w, replyCasePrefix) {
			cases = append(cases, strings.TrimPrefix(w, replyCasePrefix))
		}
	}
	return cases
}
