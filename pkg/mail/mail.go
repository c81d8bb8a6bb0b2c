// Package mail sends ledger exports through Resend.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"
)

var ErrNoRecipients = errors.New("no recipients")

// Attachment is a file sent with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one outgoing email.
type Message struct {
	To          []string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Result reports what happened to a message.
type Result struct {
	ID      string `json:"id,omitempty"`
	Skipped bool   `json:"skipped"`
}

// Mailer sends messages. Without an API key it logs and skips.
type Mailer struct {
	client *resend.Client
	from   string
	logger *slog.Logger
}

// New builds a Mailer from an API key; an empty key disables sending.
func New(apiKey, from string, logger *slog.Logger) *Mailer {
	var client *resend.Client
	if apiKey != "" {
		client = resend.NewClient(apiKey)
	}
	return NewWithClient(client, from, logger)
}

func NewWithClient(client *resend.Client, from string, logger *slog.Logger) *Mailer {
	return &Mailer{client: client, from: from, logger: logger}
}

// Enabled reports whether messages are actually delivered.
func (m *Mailer) Enabled() bool { return m.client != nil }

func (m *Mailer) Send(ctx context.Context, msg Message) (Result, error) {
	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		return Result{}, ErrNoRecipients
	}

	if m.client == nil {
		m.logger.Warn("resend client not configured, skipping email",
			slog.String("subject", msg.Subject),
			slog.Int("recipients", len(to)),
		)
		return Result{Skipped: true}, nil
	}

	req := &resend.SendEmailRequest{
		From:    m.from,
		To:      to,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	for _, a := range msg.Attachments {
		req.Attachments = append(req.Attachments, &resend.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Content:     a.Content,
		})
	}

	resp, err := m.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("send email: %w", err)
	}

	m.logger.Info("email sent",
		slog.String("email_id", resp.Id),
		slog.Int("recipients", len(to)),
		slog.Int("attachments", len(req.Attachments)),
	)
	return Result{ID: resp.Id}, nil
}
