// Package mailer turns account notifications into e-mail messages and
// delivers them. Delivery writes the message to the log and, when an outbox
// directory is configured, to an .eml file there.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"portfel/internal/amqp"
	applog "portfel/internal/log"
)

// Message is a composed plain-text e-mail.
type Message struct {
	To      string
	Subject string
	Body    string
	Date    time.Time
}

var bodies = template.Must(template.New("mail").Parse(`
{{define "activation"}}Cześć {{.FirstName}},

dziękujemy za rejestrację w Portfelu. Aby aktywować konto, otwórz link:

{{.Link}}

Kod aktywacyjny: {{.Pin}}
{{end}}
{{define "password_reset"}}Cześć {{.FirstName}},

otrzymaliśmy prośbę o zresetowanie hasła. Nowe hasło ustawisz pod adresem:

{{.Link}}

Jeśli to nie Ty, zignoruj tę wiadomość.
{{end}}
{{define "account_deleted"}}Cześć {{.FirstName}},

Twoje konto {{.Username}} zostało usunięte razem ze wszystkimi zapisanymi wydarzeniami.
{{end}}`))

// Compose renders the message for n.
func Compose(n *amqp.Notification) (Message, error) {
	if err := n.Validate(); err != nil {
		return Message{}, err
	}
	var buf bytes.Buffer
	if err := bodies.ExecuteTemplate(&buf, string(n.Kind), n); err != nil {
		return Message{}, fmt.Errorf("compose %s: %w", n.Kind, err)
	}
	return Message{
		To:      n.Email,
		Subject: n.Subject(),
		Body:    strings.TrimSpace(buf.String()) + "\n",
		Date:    n.Timestamp,
	}, nil
}

// Bytes renders m as an RFC 5322 message.
func (m Message) Bytes(from string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", m.Date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return b.Bytes()
}

// Mailer delivers composed notifications.
type Mailer struct {
	From   string
	Outbox string
	Logger *applog.Logger
}

// Handle composes and delivers n. It matches the amqp consumer handler
// signature; a returned error requeues the message.
func (m *Mailer) Handle(ctx context.Context, n *amqp.Notification) error {
	msg, err := Compose(n)
	if err != nil {
		return err
	}
	logger := m.Logger
	if logger == nil {
		logger = applog.Discard()
	}

	path := ""
	if m.Outbox != "" {
		name := fmt.Sprintf("%s-%s-%s.eml", msg.Date.UTC().Format("20060102T150405"), n.Kind, sanitize(msg.To))
		path = filepath.Join(m.Outbox, name)
		if err := os.WriteFile(path, msg.Bytes(m.From), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	logger.InfoContext(ctx, "Mail delivered",
		applog.FieldOperation, applog.OpConsume,
		applog.FieldNotifyKind, n.Kind,
		"to", msg.To,
		"subject", msg.Subject,
		"file", path)
	return nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}
