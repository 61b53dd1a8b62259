package alert

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"
)

func TestMultiSkipsNilAndReturnsFirstError(t *testing.T) {
	var calls []string
	ok := notifierFunc(func(ctx context.Context, subject, body string) error {
		calls = append(calls, "ok")
		return nil
	})
	fail1 := notifierFunc(func(ctx context.Context, subject, body string) error {
		calls = append(calls, "fail1")
		return errors.New("first")
	})
	fail2 := notifierFunc(func(ctx context.Context, subject, body string) error {
		calls = append(calls, "fail2")
		return errors.New("second")
	})

	m := Multi{nil, ok, fail1, fail2}
	err := m.Send(context.Background(), "subject", "body")

	if err == nil || err.Error() != "first" {
		t.Fatalf("expected first error, got %v", err)
	}
	if len(calls) != 3 {
		t.Fatalf("expected all non-nil notifiers called, got %v", calls)
	}
}

type notifierFunc func(ctx context.Context, subject, body string) error

func (f notifierFunc) Send(ctx context.Context, subject, body string) error {
	return f(ctx, subject, body)
}

func TestWebhookSend(t *testing.T) {
	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		received = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w := NewWebhook(server.URL, time.Second)
	if err := w.Send(context.Background(), "PACKET LOSS: gateway", "target down"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if !strings.Contains(received, `"subject":"PACKET LOSS: gateway"`) {
		t.Errorf("expected payload to carry subject, got %s", received)
	}
	if !strings.Contains(received, `"body":"target down"`) {
		t.Errorf("expected payload to carry body, got %s", received)
	}
}

func TestWebhookNon2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	w := NewWebhook(server.URL, time.Second)
	if err := w.Send(context.Background(), "subject", "body"); err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
}

func TestNewWebhookEmptyURLReturnsNil(t *testing.T) {
	if w := NewWebhook("", time.Second); w != nil {
		t.Fatalf("expected nil webhook for empty URL")
	}
}

func TestSMTPBuildsRFC822Message(t *testing.T) {
	s := NewSMTP("smtp.example.com", 587, "netpulse@example.com", "secret", []string{"ops@example.com", "net@example.com"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	if err := s.Send(context.Background(), "HIGH LATENCY: gateway", "latency 480ms"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Errorf("expected addr smtp.example.com:587, got %s", gotAddr)
	}
	if gotFrom != "netpulse@example.com" {
		t.Errorf("unexpected sender %s", gotFrom)
	}
	if len(gotTo) != 2 {
		t.Errorf("expected 2 recipients, got %v", gotTo)
	}

	msg := string(gotMsg)
	for _, snippet := range []string{
		"Subject: HIGH LATENCY: gateway\r\n",
		"To: ops@example.com, net@example.com\r\n",
		"\r\n\r\nlatency 480ms",
	} {
		if !strings.Contains(msg, snippet) {
			t.Errorf("expected message to contain %q, got %q", snippet, msg)
		}
	}
}

func TestSMTPSendHonoursCancelledContext(t *testing.T) {
	s := NewSMTP("smtp.example.com", 587, "netpulse@example.com", "secret", []string{"ops@example.com"})
	s.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		t.Fatalf("send must not be called with cancelled context")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Send(ctx, "subject", "body"); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}

func TestNewSMTPDisabledWithoutServer(t *testing.T) {
	if s := NewSMTP("", 587, "a@b.c", "pw", []string{"x@y.z"}); s != nil {
		t.Fatalf("expected nil SMTP notifier without server")
	}
	if s := NewSMTP("smtp.example.com", 587, "a@b.c", "pw", nil); s != nil {
		t.Fatalf("expected nil SMTP notifier without recipients")
	}
}
