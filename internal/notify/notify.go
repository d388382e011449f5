// Package notify emails pipeline results to organisation members.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/termsheet-cli/internal/config"
)

// Attachment is a file sent with a message.
type Attachment struct {
	Name string
	Data []byte
}

// Message is one email to one recipient.
type Message struct {
	From        string
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers through an SMTP relay.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
	send SendFunc
}

// NewSMTPMailer creates a mailer from email settings.
func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		addr: cfg.Host + ":" + strconv.Itoa(cfg.Port),
		auth: auth,
		from: cfg.From,
		send: smtp.SendMail,
	}
}

// WithSendFunc replaces the transport, for tests.
func (m *SMTPMailer) WithSendFunc(fn SendFunc) *SMTPMailer {
	m.send = fn
	return m
}

// Send builds the MIME message and hands it to the relay.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "notify: send")
	}
	if msg.From == "" {
		msg.From = m.from
	}
	raw, err := Build(msg)
	if err != nil {
		return err
	}
	if err := m.send(m.addr, m.auth, msg.From, []string{msg.To}, raw); err != nil {
		return eris.Wrapf(err, "notify: send to %s", msg.To)
	}
	return nil
}

// Build renders msg as a multipart/mixed MIME document with a plain-text
// body followed by base64 attachments.
func Build(msg Message) ([]byte, error) {
	if msg.To == "" {
		return nil, eris.New("notify: message has no recipient")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {`text/plain; charset="utf-8"`},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, eris.Wrap(err, "notify: create body part")
	}
	if _, err := part.Write([]byte(msg.Body)); err != nil {
		return nil, eris.Wrap(err, "notify: write body")
	}

	for _, a := range msg.Attachments {
		ctype := mime.TypeByExtension(filepath.Ext(a.Name))
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {ctype},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Name})},
		})
		if err != nil {
			return nil, eris.Wrapf(err, "notify: create part %s", a.Name)
		}
		if _, err := part.Write([]byte(wrapBase64(a.Data))); err != nil {
			return nil, eris.Wrapf(err, "notify: write part %s", a.Name)
		}
	}
	if err := w.Close(); err != nil {
		return nil, eris.Wrap(err, "notify: close multipart")
	}

	var out bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&out, "%s: %s\r\n", k, v) }
	header("From", msg.From)
	header("To", msg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", time.Now().UTC().Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@termsheet-cli>", uuid.NewString()))
	header("MIME-Version", "1.0")
	header("Content-Type", fmt.Sprintf("multipart/mixed; boundary=%q", w.Boundary()))
	out.WriteString("\r\n")
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// LoadAttachments reads files into attachments named by their base name.
func LoadAttachments(paths ...string) ([]Attachment, error) {
	out := make([]Attachment, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "notify: read attachment %s", p)
		}
		out = append(out, Attachment{Name: filepath.Base(p), Data: data})
	}
	return out, nil
}

// Broadcast sends one message per recipient. A failed recipient is logged
// and does not stop the others; the number delivered is returned.
func Broadcast(ctx context.Context, m Mailer, recipients []string, tmpl Message) (int, error) {
	sent := 0
	var failed []string
	for _, to := range recipients {
		to = strings.TrimSpace(to)
		if to == "" {
			continue
		}
		msg := tmpl
		msg.To = to
		if err := m.Send(ctx, msg); err != nil {
			zap.L().Warn("email delivery failed", zap.String("to", to), zap.Error(err))
			failed = append(failed, to)
			continue
		}
		sent++
	}
	if sent == 0 && len(failed) > 0 {
		return 0, eris.Errorf("notify: delivery failed for all %d recipients", len(failed))
	}
	zap.L().Info("emails sent", zap.Int("sent", sent), zap.Int("failed", len(failed)))
	return sent, nil
}
