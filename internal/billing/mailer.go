package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
)

var ErrInvalidEmail = errors.New("invalid e-mail address")

// Message is an outgoing HTML e-mail.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer records sends in the log instead of delivering them.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Email sent", "to", msg.To, "subject", msg.Subject, "bytes", len(msg.HTML))
	return nil
}

// NormalizeEmail parses addr and returns the bare address.
func NormalizeEmail(addr string) (string, error) {
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, addr)
	}
	return parsed.Address, nil
}

// SendReceipt renders bill and mails it to addr. The bill's CustomerEmail is
// set on success.
func SendReceipt(ctx context.Context, m Mailer, addr string, bill *Bill) error {
	to, err := NormalizeEmail(addr)
	if err != nil {
		return err
	}

	html, err := RenderReceipt(bill)
	if err != nil {
		return err
	}

	if err := m.Send(ctx, Message{To: to, Subject: ReceiptSubject(bill), HTML: html}); err != nil {
		return fmt.Errorf("send receipt for bill %s: %w", bill.ID, err)
	}

	bill.CustomerEmail = to
	return nil
}
