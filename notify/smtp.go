package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"
)

// SMTPNotifier emails strong reminders to an operator mailbox.
type SMTPNotifier struct {
	Host     string
	Port     int
	From     string
	To       string
	Password string
	Log      zerolog.Logger
}

func (n *SMTPNotifier) Strong(ctx context.Context, msg string) error {
	addr := fmt.Sprintf("%s:%d", n.Host, n.Port)
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		n.From, n.To, msg, msg)

	auth := smtp.PlainAuth("", n.From, n.Password, n.Host)
	if err := smtp.SendMail(addr, auth, n.From, []string{n.To}, []byte(body)); err != nil {
		n.Log.Error().Err(err).Msg("strong reminder mail failed")
		return fmt.Errorf("send reminder mail: %w", err)
	}
	return nil
}
