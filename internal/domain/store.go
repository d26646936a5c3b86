package domain

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence port the orchestrator depends on.
// Implementations live in infrastructure/postgres.
type Store interface {
	// Create validates the recipient invariant, stamps id and created_at,
	// and inserts the record atomically, returning the stored entity.
	Create(ctx context.Context, input CreateInput) (*Notification, error)

	// BatchCreate inserts multiple notifications in a single statement
	// (used by admin broadcast fan-out). Returns the inserted records.
	BatchCreate(ctx context.Context, inputs []CreateInput) ([]*Notification, error)
}

// Repository is the full persistence surface, consumed by the HTTP read layer.
// The orchestrator only ever uses the Store subset.
type Repository interface {
	Store

	// List fetches notifications matching the given filter.
	List(ctx context.Context, filter NotificationFilter) ([]*Notification, error)

	// GetByID fetches a single notification by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)

	// MarkRead marks a single notification as read for the given recipient.
	MarkRead(ctx context.Context, id uuid.UUID, rt RecipientType, recipientID string) error

	// MarkAllRead marks all unread notifications for a recipient as read.
	MarkAllRead(ctx context.Context, rt RecipientType, recipientID string) (int64, error)

	// Delete removes a notification belonging to the recipient.
	Delete(ctx context.Context, id uuid.UUID, rt RecipientType, recipientID string) error

	// CountUnread returns the number of unread notifications for a recipient.
	CountUnread(ctx context.Context, rt RecipientType, recipientID string) (int64, error)

	// PurgeExpired deletes notifications whose expires_at is in the past.
	PurgeExpired(ctx context.Context) (int64, error)

	// PurgeOlderThan deletes notifications older than the given number of days.
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
}
