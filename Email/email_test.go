package Email

import (
	"errors"
	"strings"
	"testing"
)

type sent struct {
	to, subject, html string
}

type recordingSender struct {
	messages []sent
	err      error
}

func (r *recordingSender) Send(to, subject, html string) error {
	r.messages = append(r.messages, sent{to, subject, html})
	return r.err
}

func useSender(t *testing.T, s Sender) {
	t.Helper()
	previous := Mailer
	Mailer = s
	t.Cleanup(func() { Mailer = previous })
}

func TestSendVerificationEmailIncludesLink(t *testing.T) {
	rec := &recordingSender{}
	useSender(t, rec)

	url := "http://localhost:3005/auth/verify/abc123"
	if err := SendVerificationEmail("a@example.com", url); err != nil {
		t.Fatal(err)
	}
	if len(rec.messages) != 1 {
		t.Fatalf("sent %d messages", len(rec.messages))
	}
	msg := rec.messages[0]
	if msg.to != "a@example.com" || msg.subject != "Verify your email" {
		t.Errorf("unexpected message %+v", msg)
	}
	if strings.Count(msg.html, url) != 2 {
		t.Errorf("verification link missing from body: %s", msg.html)
	}
}

func TestSendWelcomeEmail(t *testing.T) {
	rec := &recordingSender{}
	useSender(t, rec)

	if err := SendWelcomeEmail("b@example.com", "bob", "http://x/a/SLUG1234"); err != nil {
		t.Fatal(err)
	}
	body := rec.messages[0].html
	if !strings.Contains(body, "bob") || !strings.Contains(body, "http://x/a/SLUG1234") {
		t.Errorf("welcome body = %s", body)
	}
}

func TestSenderErrorsPropagate(t *testing.T) {
	boom := errors.New("smtp down")
	useSender(t, &recordingSender{err: boom})
	if err := SendApprovalNotification("c@example.com"); !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}
}

func TestUnconfiguredSender(t *testing.T) {
	useSender(t, unconfigured{})
	if err := SendApprovalNotification("c@example.com"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("got %v, want ErrNotConfigured", err)
	}
}

func TestSMTPMessageHeaders(t *testing.T) {
	s := NewSMTPSender("smtp.example.com", 465, "user", "pass", "noreply@clinichub.com")
	m := s.message("d@example.com", "Subject line", "<p>hi</p>")
	if got := m.GetHeader("To"); len(got) != 1 || got[0] != "d@example.com" {
		t.Errorf("To = %v", got)
	}
	if got := m.GetHeader("Subject"); len(got) != 1 || got[0] != "Subject line" {
		t.Errorf("Subject = %v", got)
	}
	if got := m.GetHeader("From"); len(got) != 1 || !strings.Contains(got[0], "noreply@clinichub.com") {
		t.Errorf("From = %v", got)
	}
}
