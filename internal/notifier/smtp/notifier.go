// Package smtpnotifier delivers notifications as plain-text email.
package smtpnotifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

const (
	defaultPort    = 587
	defaultTimeout = 10 * time.Second
	fallbackFrom   = "noreply@example.com"
)

// Config describes the SMTP relay and the envelope.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	Recipient string
	Timeout   time.Duration
}

// Notifier sends one message per Notify call over a fresh STARTTLS session.
type Notifier struct {
	cfg Config
}

// New validates cfg and builds a Notifier. From defaults to Username, then to
// a noreply address.
func New(cfg Config) (*Notifier, error) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		cfg.From = fallbackFrom
	}
	var errs []error
	if cfg.Host == "" {
		errs = append(errs, errors.New("smtp host is required"))
	}
	if cfg.Recipient == "" {
		errs = append(errs, errors.New("notification recipient is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &Notifier{cfg: cfg}, nil
}

// Notify composes and sends the message.
func (n *Notifier) Notify(ctx context.Context, subject, body string) error {
	msg, err := n.buildMessage(subject, body)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(n.cfg.Host, n.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", n.cfg.Recipient, err)
	}
	return nil
}

func (n *Notifier) buildMessage(subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("smtp from address: %w", err)
	}
	if err := msg.To(n.cfg.Recipient); err != nil {
		return nil, fmt.Errorf("smtp recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func (n *Notifier) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(n.cfg.Timeout),
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}
	return opts
}
