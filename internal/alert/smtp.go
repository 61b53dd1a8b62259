package alert

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// SMTP sends notifications as plain-text email over SMTP with AUTH PLAIN.
type SMTP struct {
	Server     string
	Port       int
	Sender     string
	Password   string
	Recipients []string

	// send is swapped out in tests
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP creates an email notifier. Returns nil when no server is
// configured.
func NewSMTP(server string, port int, sender, password string, recipients []string) *SMTP {
	if server == "" || len(recipients) == 0 {
		return nil
	}
	if port == 0 {
		port = 587
	}
	return &SMTP{
		Server:     server,
		Port:       port,
		Sender:     sender,
		Password:   password,
		Recipients: recipients,
		send:       smtp.SendMail,
	}
}

// Send implements Notifier.
func (s *SMTP) Send(ctx context.Context, subject, body string) error {
	if s == nil {
		return fmt.Errorf("smtp disabled")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.Server, fmt.Sprintf("%d", s.Port))
	auth := smtp.PlainAuth("", s.Sender, s.Password, s.Server)

	msg := s.buildMessage(subject, body)
	if err := s.send(addr, auth, s.Sender, s.Recipients, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *SMTP) buildMessage(subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.Sender)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(s.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
