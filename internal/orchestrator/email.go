package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kidora-labs/notification/internal/domain"
)

// Directory resolves recipient contact details and channel settings against
// the platform account service. Implementation lives in
// infrastructure/directory.
type Directory interface {
	// EmailEnabled reports the global "email notifications" toggle.
	EmailEnabled(ctx context.Context) (bool, error)

	// ParentEmail returns the parent's address, or "" when none is on file.
	ParentEmail(ctx context.Context, parentID string) (string, error)

	// AllParentIDs returns every active parent account id. Used for admin
	// broadcast fan-out.
	AllParentIDs(ctx context.Context) ([]string, error)
}

// Mailer sends the email copy of a notification. Implementation lives in
// infrastructure/mailer.
type Mailer interface {
	SendNotificationEmail(ctx context.Context, to, subject, body string) error
}

// defaultEmailSubject is used when a notification carries no title.
const defaultEmailSubject = "New notification"

// emailDispatchTimeout bounds a single detached dispatch, including the
// directory lookups.
const emailDispatchTimeout = 30 * time.Second

// dispatchEmail attempts the email channel for a stored notification.
// Preconditions: the channel was requested and the recipient is a parent —
// children never receive email. The attempt runs on a detached goroutine;
// every failure is logged and swallowed, never surfaced to the Send caller.
func (o *Orchestrator) dispatchEmail(rt domain.RecipientType, recipientID string, channels []domain.Channel, n *domain.Notification) {
	if rt != domain.RecipientParent || !containsChannel(channels, domain.ChannelEmail) {
		return
	}

	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("parent", recipientID).Msg("email dispatch panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), emailDispatchTimeout)
		defer cancel()

		enabled, err := o.directory.EmailEnabled(ctx)
		if err != nil {
			log.Warn().Err(err).Str("parent", recipientID).Msg("email settings lookup failed, skipping email")
			return
		}
		if !enabled {
			log.Debug().Str("parent", recipientID).Msg("email channel disabled, skipping")
			return
		}

		addr, err := o.directory.ParentEmail(ctx, recipientID)
		if err != nil {
			log.Warn().Err(err).Str("parent", recipientID).Msg("email address lookup failed, skipping email")
			return
		}
		if addr == "" {
			log.Debug().Str("parent", recipientID).Msg("parent has no email address, skipping")
			return
		}

		subject := n.Title
		if subject == "" {
			subject = defaultEmailSubject
		}

		if err := o.mailer.SendNotificationEmail(ctx, addr, subject, n.Message); err != nil {
			log.Warn().Err(err).
				Str("id", n.ID.String()).
				Str("parent", recipientID).
				Msg("email delivery failed")
			return
		}

		log.Debug().Str("id", n.ID.String()).Str("parent", recipientID).Msg("email delivered")
	}()
}

func containsChannel(channels []domain.Channel, c domain.Channel) bool {
	for _, ch := range channels {
		if ch == c {
			return true
		}
	}
	return false
}
