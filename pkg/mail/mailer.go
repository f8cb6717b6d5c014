package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/noah-isme/enfermeria-api/pkg/config"
)

// ErrNoRecipients is returned when no report recipients are configured.
var ErrNoRecipients = errors.New("no report recipients configured")

// Attachment is an in-memory file sent along with a message.
type Attachment struct {
	Filename string
	Content  []byte
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer delivers report emails over SMTP.
type Mailer struct {
	dialer     dialer
	from       string
	recipients []string
	subject    string
	timeout    time.Duration
}

// NewMailer constructs an SMTP mailer from configuration.
func NewMailer(cfg config.MailConfig) *Mailer {
	return &Mailer{
		dialer:     gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:       cfg.From,
		recipients: cfg.Recipients,
		subject:    cfg.Subject,
		timeout:    cfg.Timeout,
	}
}

// SendReport mails the attachment to the configured recipients.
func (m *Mailer) SendReport(ctx context.Context, body string, attachment Attachment) error {
	if len(m.recipients) == 0 {
		return ErrNoRecipients
	}
	if len(attachment.Content) == 0 {
		return fmt.Errorf("attachment %q is empty", attachment.Filename)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.recipients...)
	msg.SetHeader("Subject", m.subject)
	msg.SetBody("text/plain", body)
	content := attachment.Content
	msg.Attach(attachment.Filename,
		gomail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}),
	)

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send report mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send report mail: %w", ctx.Err())
	}
}

// Recipients returns the configured report recipients.
func (m *Mailer) Recipients() []string {
	out := make([]string, len(m.recipients))
	copy(out, m.recipients)
	return out
}
