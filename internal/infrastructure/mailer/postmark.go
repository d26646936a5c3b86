// Package mailer sends the email copy of a notification through Postmark.
package mailer

import (
	"context"
	"fmt"

	"github.com/mrz1836/postmark"
)

// Postmark implements orchestrator.Mailer on Postmark's transactional API.
type Postmark struct {
	client *postmark.Client
	from   string
}

// New creates a Postmark mailer. Tokens and sender are required; the service
// refuses to start half-configured rather than failing silently per send.
func New(serverToken, accountToken, from string) (*Postmark, error) {
	if serverToken == "" || accountToken == "" {
		return nil, fmt.Errorf("postmark tokens are required")
	}
	if from == "" {
		return nil, fmt.Errorf("sender address is required")
	}
	return &Postmark{
		client: postmark.NewClient(serverToken, accountToken),
		from:   from,
	}, nil
}

// SendNotificationEmail sends a plain-text notification email.
func (p *Postmark) SendNotificationEmail(ctx context.Context, to, subject, body string) error {
	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:     p.from,
		To:       to,
		Subject:  subject,
		TextBody: body,
		Tag:      "notification",
	})
	if err != nil {
		return fmt.Errorf("postmark send: %w", err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark send: %d - %s", resp.ErrorCode, resp.Message)
	}
	return nil
}
