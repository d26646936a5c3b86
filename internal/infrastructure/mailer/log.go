package mailer

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Log is a development mailer that only logs. Used when Postmark tokens are
// not configured so local stacks can run without an email provider.
type Log struct{}

// SendNotificationEmail logs the email instead of sending it.
func (Log) SendNotificationEmail(_ context.Context, to, subject, body string) error {
	log.Info().
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("dev mailer: email suppressed")
	return nil
}
