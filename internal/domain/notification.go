package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// NotificationType tags the domain event that triggered the notification.
type NotificationType string

const (
	TypeTaskAssigned   NotificationType = "task_assigned"
	TypeTaskCompleted  NotificationType = "task_completed"
	TypeTaskExpired    NotificationType = "task_expired"
	TypeRewardGranted  NotificationType = "reward_granted"
	TypePointsEarned   NotificationType = "points_earned"
	TypeOrderPaid      NotificationType = "order_paid"
	TypePaymentFailed  NotificationType = "payment_failed"
	TypeAdminBroadcast NotificationType = "admin_broadcast"
	TypeSystem         NotificationType = "system"
)

// Style is a client-side rendering hint. It never affects delivery.
type Style string

const (
	StyleToast      Style = "toast"
	StyleModal      Style = "modal"
	StyleBanner     Style = "banner"
	StyleFullscreen Style = "fullscreen"
)

// Priority is a client-side interruption hint. It never affects delivery.
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityWarning  Priority = "warning"
	PriorityUrgent   Priority = "urgent"
	PriorityBlocking Priority = "blocking"
)

// Channel is a delivery mechanism.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
)

// RecipientType selects which recipient namespace a notification targets.
// A child id and a parent id live in disjoint namespaces even when equal in value.
type RecipientType string

const (
	RecipientParent RecipientType = "parent"
	RecipientChild  RecipientType = "child"
)

// Reserved metadata keys injected by the orchestrator. Caller-supplied values
// under these keys are overwritten — the computed values always win.
const (
	MetaGroupKey  = "groupKey"
	MetaExpiresAt = "expiresAt"
	MetaChannels  = "channels"
	MetaChannel   = "channel"
)

var (
	// ErrNoRecipient is returned when neither parent nor child id is set.
	ErrNoRecipient = errors.New("notification has no recipient")
	// ErrBothRecipients is returned when both parent and child ids are set.
	ErrBothRecipients = errors.New("notification targets both parent and child")
	// ErrDuplicateEvent is returned when a notification for the same source
	// event id was already recorded. Redelivered events hit this.
	ErrDuplicateEvent = errors.New("notification already recorded for source event")
)

// Notification is the durable core record. Exactly one of ParentID and ChildID
// is non-empty; the store rejects anything else.
type Notification struct {
	ID         uuid.UUID        `json:"id"`
	ParentID   string           `json:"parent_id,omitempty"`
	ChildID    string           `json:"child_id,omitempty"`
	Type       NotificationType `json:"type"`
	Title      string           `json:"title,omitempty"`
	Message    string           `json:"message"`
	Style      Style            `json:"style"`
	Priority   Priority         `json:"priority"`
	SoundAlert bool             `json:"sound_alert"`
	Vibration  bool             `json:"vibration"`
	RelatedID  string           `json:"related_id,omitempty"`
	CTAAction  string           `json:"cta_action,omitempty"`
	CTATarget  string           `json:"cta_target,omitempty"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
	IsRead     bool             `json:"is_read"`
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  *time.Time       `json:"expires_at,omitempty"`
	// SourceEventID is the upstream event id this record was created for.
	// Unique when set; the store skips inserts that would repeat it.
	SourceEventID string `json:"source_event_id,omitempty"`
}

// RecipientID returns whichever recipient id is set.
func (n *Notification) RecipientID() string {
	if n.ChildID != "" {
		return n.ChildID
	}
	return n.ParentID
}

// CreateInput is the pre-insert DTO consumed by Store.Create.
type CreateInput struct {
	ParentID   string
	ChildID    string
	Type       NotificationType
	Title      string
	Message    string
	Style      Style
	Priority   Priority
	SoundAlert bool
	Vibration  bool
	RelatedID  string
	CTAAction  string
	CTATarget  string
	Metadata   map[string]any
	ExpiresAt  *time.Time
	// SourceEventID deduplicates redelivered events. Empty disables the guard.
	SourceEventID string
}

// Validate enforces the recipient invariant: exactly one of ParentID, ChildID.
func (in CreateInput) Validate() error {
	switch {
	case in.ParentID == "" && in.ChildID == "":
		return ErrNoRecipient
	case in.ParentID != "" && in.ChildID != "":
		return ErrBothRecipients
	}
	return nil
}

// SendInput is the orchestrator's entry DTO.
type SendInput struct {
	RecipientType RecipientType
	RecipientID   string
	Type          NotificationType
	Title         string
	Message       string
	Style         Style
	Priority      Priority
	SoundAlert    bool
	Vibration     bool
	RelatedID     string
	CTAAction     string
	CTATarget     string
	// Channels defaults to [in_app] when empty.
	Channels []Channel
	// TTLMinutes > 0 sets ExpiresAt = now + TTLMinutes; otherwise the
	// notification never expires.
	TTLMinutes int
	GroupKey   string
	Metadata   map[string]any
	// SourceEventID deduplicates redelivered events: a second Send carrying
	// the same id is a silent no-op. Empty disables the guard.
	SourceEventID string
}

// BroadcastInput is an admin announcement fanned out to every parent.
type BroadcastInput struct {
	ParentIDs  []string
	Type       NotificationType
	Title      string
	Message    string
	Style      Style
	Priority   Priority
	Channels   []Channel
	TTLMinutes int
	GroupKey   string
	Metadata   map[string]any
	// SourceEventID deduplicates a redelivered broadcast. The orchestrator
	// derives a per-parent key from it, so a partial fan-out resumes without
	// repeating the parents already covered.
	SourceEventID string
}

// NotificationFilter holds query parameters for listing notifications.
type NotificationFilter struct {
	ParentID string
	ChildID  string
	IsRead   *bool
	Type     NotificationType
	Limit    int
	Offset   int
}
