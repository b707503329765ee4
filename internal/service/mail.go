package service

import (
	"context"
	"fmt"
	"log"

	"gopkg.in/gomail.v2"
)

// Mailer sends a plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer delivers mail through an authenticated SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, user, password string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   user,
	}
}

// Send dials per message; gomail has no context support so ctx is only checked up front.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		log.Printf("[Mailer] Send FAILED: to=%s subject=%q err=%v", to, subject, err)
		return fmt.Errorf("send mail: %w", err)
	}

	log.Printf("[Mailer] Send OK: to=%s subject=%q", to, subject)
	return nil
}
