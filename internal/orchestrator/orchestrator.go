// Package orchestrator is the single entry point for sending notifications:
// persist the record, push it to live listeners, and attempt the remaining
// delivery channels best-effort.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kidora-labs/notification/internal/domain"
)

// LivePush is the slice of the recipient registry the orchestrator needs.
// Implementation lives in internal/registry.
type LivePush interface {
	PublishChild(childID string, n *domain.Notification)
	PublishParent(parentID string, n *domain.Notification)
}

// Orchestrator ties store, registry and channel adapters together.
type Orchestrator struct {
	store     domain.Store
	registry  LivePush
	directory Directory
	mailer    Mailer

	// inflight tracks detached email dispatches so Drain can wait for them
	// on shutdown instead of silently dropping them.
	inflight sync.WaitGroup
}

// New creates an Orchestrator.
func New(store domain.Store, reg LivePush, dir Directory, mailer Mailer) *Orchestrator {
	return &Orchestrator{store: store, registry: reg, directory: dir, mailer: mailer}
}

// Send persists the notification and fans it out. Only a persistence failure
// propagates to the caller; channel failures are logged and swallowed. The
// returned record carries the generated id and created_at.
func (o *Orchestrator) Send(ctx context.Context, in domain.SendInput) (*domain.Notification, error) {
	channels := resolveChannels(in.Channels)
	expiresAt := expiryFrom(in.TTLMinutes)

	create := domain.CreateInput{
		Type:          typeOrDefault(in.Type),
		Title:         in.Title,
		Message:       in.Message,
		Style:         styleOrDefault(in.Style),
		Priority:      priorityOrDefault(in.Priority),
		SoundAlert:    in.SoundAlert,
		Vibration:     in.Vibration,
		RelatedID:     in.RelatedID,
		CTAAction:     in.CTAAction,
		CTATarget:     in.CTATarget,
		Metadata:      mergeMetadata(in.Metadata, in.GroupKey, expiresAt, channels),
		ExpiresAt:     expiresAt,
		SourceEventID: in.SourceEventID,
	}
	switch in.RecipientType {
	case domain.RecipientChild:
		create.ChildID = in.RecipientID
	case domain.RecipientParent:
		create.ParentID = in.RecipientID
	default:
		return nil, fmt.Errorf("unknown recipient type: %q", in.RecipientType)
	}

	n, err := o.store.Create(ctx, create)
	if err != nil {
		// A redelivered event already produced this record; everything that
		// follows persistence ran the first time, so skip without error.
		if errors.Is(err, domain.ErrDuplicateEvent) {
			log.Debug().
				Str("source_event_id", in.SourceEventID).
				Str("recipient", in.RecipientID).
				Msg("duplicate event, notification already recorded")
			return nil, nil
		}
		return nil, fmt.Errorf("create notification: %w", err)
	}

	// Synchronous in-app push: listeners see records in the same order their
	// store writes completed.
	if in.RecipientType == domain.RecipientChild {
		o.registry.PublishChild(in.RecipientID, n)
	}

	o.dispatchEmail(in.RecipientType, in.RecipientID, channels, n)

	log.Info().
		Str("id", n.ID.String()).
		Str("recipient_type", string(in.RecipientType)).
		Str("recipient", in.RecipientID).
		Str("type", string(n.Type)).
		Msg("notification sent")

	return n, nil
}

// Broadcast persists one record per parent and pushes each record to that
// parent's live listeners. The batch insert is the only step whose failure
// reaches the caller.
func (o *Orchestrator) Broadcast(ctx context.Context, in domain.BroadcastInput) ([]*domain.Notification, error) {
	parents := in.ParentIDs
	if len(parents) == 0 {
		var err error
		parents, err = o.directory.AllParentIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve broadcast parents: %w", err)
		}
	}
	if len(parents) == 0 {
		log.Warn().Str("type", string(in.Type)).Msg("broadcast resolved to zero parents, skipping")
		return nil, nil
	}

	channels := resolveChannels(in.Channels)
	expiresAt := expiryFrom(in.TTLMinutes)

	batch := make([]domain.CreateInput, 0, len(parents))
	for _, pid := range parents {
		ci := domain.CreateInput{
			ParentID:  pid,
			Type:      typeOrDefault(in.Type),
			Title:     in.Title,
			Message:   in.Message,
			Style:     styleOrDefault(in.Style),
			Priority:  priorityOrDefault(in.Priority),
			Metadata:  mergeMetadata(in.Metadata, in.GroupKey, expiresAt, channels),
			ExpiresAt: expiresAt,
		}
		// Per-parent dedup key so a redelivered broadcast resumes the fan-out
		// without repeating the parents already covered.
		if in.SourceEventID != "" {
			ci.SourceEventID = in.SourceEventID + ":" + pid
		}
		batch = append(batch, ci)
	}

	inserted, err := o.store.BatchCreate(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("batch create notifications: %w", err)
	}
	if len(inserted) == 0 {
		return nil, nil
	}

	// Each connected parent gets their own stored record, so the live payload
	// carries the id they will mark as read.
	for _, n := range inserted {
		o.registry.PublishParent(n.ParentID, n)
		o.dispatchEmail(domain.RecipientParent, n.ParentID, channels, n)
	}

	log.Info().
		Int("parents", len(parents)).
		Int("inserted", len(inserted)).
		Str("type", string(in.Type)).
		Msg("broadcast notifications sent")

	return inserted, nil
}

// Drain blocks until all detached channel dispatches have finished.
// Called during graceful shutdown.
func (o *Orchestrator) Drain() {
	o.inflight.Wait()
}

func typeOrDefault(t domain.NotificationType) domain.NotificationType {
	if t == "" {
		return domain.TypeSystem
	}
	return t
}

func styleOrDefault(s domain.Style) domain.Style {
	if s == "" {
		return domain.StyleToast
	}
	return s
}

func priorityOrDefault(p domain.Priority) domain.Priority {
	if p == "" {
		return domain.PriorityNormal
	}
	return p
}

func resolveChannels(requested []domain.Channel) []domain.Channel {
	if len(requested) == 0 {
		return []domain.Channel{domain.ChannelInApp}
	}
	return requested
}

func expiryFrom(ttlMinutes int) *time.Time {
	if ttlMinutes <= 0 {
		return nil
	}
	t := time.Now().Add(time.Duration(ttlMinutes) * time.Minute)
	return &t
}

// mergeMetadata flattens the reserved routing keys into the caller's bag.
// The computed values always win over caller-supplied keys.
func mergeMetadata(caller map[string]any, groupKey string, expiresAt *time.Time, channels []domain.Channel) map[string]any {
	meta := make(map[string]any, len(caller)+4)
	for k, v := range caller {
		meta[k] = v
	}

	meta[domain.MetaGroupKey] = groupKey
	if expiresAt != nil {
		meta[domain.MetaExpiresAt] = expiresAt.Format(time.RFC3339)
	} else {
		meta[domain.MetaExpiresAt] = nil
	}

	chs := make([]string, len(channels))
	for i, c := range channels {
		chs[i] = string(c)
	}
	meta[domain.MetaChannels] = chs

	first := string(domain.ChannelInApp)
	if len(chs) > 0 {
		first = chs[0]
	}
	meta[domain.MetaChannel] = first

	return meta
}
