// Package email delivers notification mail over SMTP.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"bizops/internal/domain/notifications"
	"bizops/internal/platform/config"
	"bizops/internal/requestctx"
)

const (
	dialTimeout = 10 * time.Second
	maxAttempts = 2
	retryDelay  = 2 * time.Second
)

// Settings is the SMTP relay the mailer talks to.
type Settings struct {
	Host     string
	Port     int
	User     string
	Password string
	StartTLS bool
	// ReplyTo is added to every message when set; result mails point it at
	// the operations contact.
	ReplyTo string
}

func SettingsFrom(cfg config.Config) Settings {
	return Settings{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		StartTLS: cfg.SMTPUseTLS,
		ReplyTo:  cfg.Contact.Email,
	}
}

type smtpMailer struct {
	settings Settings
	now      func() time.Time
}

// New returns an SMTP mailer, or nil when email is disabled. The notifier
// treats a nil mailer as in-app only.
func New(cfg config.Config) notifications.Mailer {
	if !cfg.EmailEnabled || cfg.SMTPHost == "" {
		return nil
	}
	return &smtpMailer{settings: SettingsFrom(cfg), now: time.Now}
}

// Send delivers one message. A transient 4xx reply from the relay is retried
// once; anything else fails immediately.
func (s *smtpMailer) Send(ctx context.Context, from, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return nil
	}
	msg := buildMessage(envelope{
		From:      from,
		To:        to,
		ReplyTo:   s.settings.ReplyTo,
		Subject:   subject,
		Date:      s.now(),
		MessageID: messageID(from),
	}, body)

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = s.deliver(ctx, from, to, msg); err == nil || !transient(err) || attempt == maxAttempts {
			break
		}
		requestctx.Logger(ctx).Warn("smtp transient failure, retrying", "to", to, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return err
}

func (s *smtpMailer) deliver(ctx context.Context, from, to string, msg []byte) error {
	addr := net.JoinHostPort(s.settings.Host, fmt.Sprint(s.settings.Port))
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.settings.Host)
	if err != nil {
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer client.Close()

	if s.settings.StartTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.settings.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if s.settings.User != "" {
		if err := client.Auth(smtp.PlainAuth("", s.settings.User, s.settings.Password, s.settings.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return client.Quit()
}

// transient reports a 4xx SMTP reply.
func transient(err error) bool {
	var protoErr *textproto.Error
	return errors.As(err, &protoErr) && protoErr.Code >= 400 && protoErr.Code < 500
}

type envelope struct {
	From      string
	To        string
	ReplyTo   string
	Subject   string
	Date      time.Time
	MessageID string
}

// buildMessage writes CRLF headers and normalizes body line endings. Header
// values are flattened to a single line.
func buildMessage(env envelope, body string) []byte {
	var b strings.Builder
	header := func(name, value string) {
		if value == "" {
			return
		}
		b.WriteString(name + ": " + sanitizeHeader(value) + "\r\n")
	}
	header("From", env.From)
	header("To", env.To)
	header("Reply-To", env.ReplyTo)
	header("Subject", env.Subject)
	if !env.Date.IsZero() {
		header("Date", env.Date.Format(time.RFC1123Z))
	}
	header("Message-ID", env.MessageID)
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="UTF-8"`)
	b.WriteString("\r\n")

	body = strings.ReplaceAll(body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func messageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = strings.Trim(from[at+1:], "> ")
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}

func sanitizeHeader(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}
