package services

import (
	"context"
	"fmt"
	"html"
	"io"

	"busease/internal/domain"
	"busease/internal/utils"

	"gopkg.in/gomail.v2"
)

// Attachment is a file sent along with a mail.
type Attachment struct {
	Filename string
	Content  []byte
}

// Mail is one outgoing HTML message.
type Mail struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// SMTPMailer delivers mail through an SMTP relay.
type SMTPMailer struct {
	Dialer *gomail.Dialer
	From   string
}

func NewSMTPMailer(host string, port int, user, password, from string) SMTPMailer {
	if from == "" {
		from = user
	}
	return SMTPMailer{Dialer: gomail.NewDialer(host, port, user, password), From: from}
}

func (s SMTPMailer) Send(ctx context.Context, m Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.From)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/html", m.HTML)
	for _, a := range m.Attachments {
		content := a.Content
		msg.Attach(a.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}))
	}
	if err := s.Dialer.DialAndSend(msg); err != nil {
		return domain.ExternalServiceError{Service: "email", Err: err}
	}
	return nil
}

// LogMailer only logs; used when SMTP is not configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, m Mail) error {
	utils.LogEvent("", "mail", "skip_send", fmt.Sprintf("to=%s subject=%q attachments=%d", m.To, m.Subject, len(m.Attachments)))
	return nil
}

func ticketEmailHTML(username string, updated bool) string {
	intro := "Thank you for booking with BusEase. Your ticket is attached to this email."
	if updated {
		intro = "Your booking has been updated. Your new ticket is attached to this email."
	}
	return fmt.Sprintf(`<p>Hi %s,</p><p>%s</p><p>Have a safe trip!<br/>The BusEase Team</p>`, html.EscapeString(username), intro)
}
