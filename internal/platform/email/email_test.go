package email

import (
	"errors"
	"fmt"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"bizops/internal/platform/config"
)

func TestNewReturnsNilWhenDisabled(t *testing.T) {
	if mailer := New(config.Config{EmailEnabled: false, SMTPHost: "smtp.example.com"}); mailer != nil {
		t.Fatalf("expected no mailer while email is disabled, got %T", mailer)
	}
	if mailer := New(config.Config{EmailEnabled: true}); mailer != nil {
		t.Fatalf("expected no mailer without an SMTP host, got %T", mailer)
	}

	enabled := New(config.Config{EmailEnabled: true, SMTPHost: "smtp.example.com", SMTPPort: 2525, Contact: config.Contact{Email: "ops@x.test"}})
	smtp, ok := enabled.(*smtpMailer)
	if !ok {
		t.Fatal("expected smtp mailer when enabled")
	}
	if smtp.settings.Port != 2525 || smtp.settings.ReplyTo != "ops@x.test" {
		t.Fatalf("unexpected settings %+v", smtp.settings)
	}
}

func TestBuildMessage(t *testing.T) {
	date := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	msg := string(buildMessage(envelope{
		From:      "from@x.test",
		To:        "to@x.test",
		ReplyTo:   "ops@x.test",
		Subject:   "Result\r\nBcc: evil@x.test",
		Date:      date,
		MessageID: "<id@x.test>",
	}, "line one\nline two"))

	if !strings.Contains(msg, "Subject: Result  Bcc: evil@x.test\r\n") {
		t.Fatalf("expected header injection to be flattened, got %q", msg)
	}
	if !strings.Contains(msg, "Reply-To: ops@x.test\r\n") || !strings.Contains(msg, "Date: Mon, 01 Apr 2024 09:00:00 +0000\r\n") {
		t.Fatalf("expected reply-to and date headers, got %q", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\nline one\r\nline two") {
		t.Fatalf("expected CRLF body, got %q", msg)
	}
}

func TestBuildMessageSkipsEmptyHeaders(t *testing.T) {
	msg := string(buildMessage(envelope{From: "a@x.test", To: "b@x.test", Subject: "s"}, "body"))
	if strings.Contains(msg, "Reply-To") || strings.Contains(msg, "Date:") {
		t.Fatalf("expected optional headers to be omitted, got %q", msg)
	}
}

func TestMessageIDUsesSenderDomain(t *testing.T) {
	id := messageID("No Reply <no-reply@ops.example.com>")
	if !strings.HasSuffix(id, "@ops.example.com>") || !strings.HasPrefix(id, "<") {
		t.Fatalf("unexpected message id %q", id)
	}
	if !strings.HasSuffix(messageID("bare"), "@localhost>") {
		t.Fatal("expected localhost fallback")
	}
}

func TestTransient(t *testing.T) {
	if !transient(fmt.Errorf("smtp rcpt to: %w", &textproto.Error{Code: 451, Msg: "try later"})) {
		t.Fatal("expected 451 to be transient")
	}
	if transient(&textproto.Error{Code: 550, Msg: "no such user"}) {
		t.Fatal("expected 550 to be permanent")
	}
	if transient(errors.New("smtp dial: refused")) {
		t.Fatal("expected dial failure to be permanent")
	}
}
