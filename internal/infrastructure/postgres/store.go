package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kidora-labs/notification/internal/domain"
)

const notificationColumns = `id, parent_id, child_id, type, title, message, style, priority,
		sound_alert, vibration, related_id, cta_action, cta_target, metadata, is_read, created_at, expires_at, source_event_id`

// Store is the PostgreSQL implementation of domain.Repository.
// The notifications table also carries a CHECK constraint mirroring the
// recipient invariant, so a bad row cannot slip in through other writers,
// and a partial unique index on source_event_id (WHERE source_event_id IS
// NOT NULL) backing the redelivery guard.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new postgres Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts a single notification record atomically. An insert that
// would repeat a source_event_id is skipped and reported as
// domain.ErrDuplicateEvent, so a redelivered event never produces a second row.
func (s *Store) Create(ctx context.Context, input domain.CreateInput) (*domain.Notification, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	metaJSON, err := json.Marshal(input.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO notifications
			(parent_id, child_id, type, title, message, style, priority,
			 sound_alert, vibration, related_id, cta_action, cta_target, metadata, expires_at, source_event_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (source_event_id) WHERE source_event_id IS NOT NULL DO NOTHING
		RETURNING `+notificationColumns,
		nullable(input.ParentID), nullable(input.ChildID), string(input.Type),
		nullable(input.Title), input.Message, string(input.Style), string(input.Priority),
		input.SoundAlert, input.Vibration,
		nullable(input.RelatedID), nullable(input.CTAAction), nullable(input.CTATarget),
		metaJSON, input.ExpiresAt, nullable(input.SourceEventID))

	n, err := scanNotification(row)
	if err != nil {
		// DO NOTHING yields no row, which surfaces here as ErrNoRows.
		if errors.Is(err, pgx.ErrNoRows) && input.SourceEventID != "" {
			return nil, domain.ErrDuplicateEvent
		}
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// BatchCreate inserts multiple notifications in one statement (broadcast
// fan-out). Rows that would repeat a source_event_id are skipped, so only the
// newly inserted records come back and a redelivered broadcast resumes where
// it left off.
func (s *Store) BatchCreate(ctx context.Context, inputs []domain.CreateInput) ([]*domain.Notification, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	const paramsPerRow = 15
	args := make([]any, 0, len(inputs)*paramsPerRow)
	valuesClauses := make([]string, 0, len(inputs))

	for i, input := range inputs {
		if err := input.Validate(); err != nil {
			return nil, err
		}

		base := i * paramsPerRow
		placeholders := make([]string, paramsPerRow)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valuesClauses = append(valuesClauses, "("+strings.Join(placeholders, ",")+")")

		metaJSON, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		args = append(args,
			nullable(input.ParentID), nullable(input.ChildID), string(input.Type),
			nullable(input.Title), input.Message, string(input.Style), string(input.Priority),
			input.SoundAlert, input.Vibration,
			nullable(input.RelatedID), nullable(input.CTAAction), nullable(input.CTATarget),
			metaJSON, input.ExpiresAt, nullable(input.SourceEventID),
		)
	}

	query := `INSERT INTO notifications
			(parent_id, child_id, type, title, message, style, priority,
			 sound_alert, vibration, related_id, cta_action, cta_target, metadata, expires_at, source_event_id)
		VALUES ` + strings.Join(valuesClauses, ",") + `
		ON CONFLICT (source_event_id) WHERE source_event_id IS NOT NULL DO NOTHING
		RETURNING ` + notificationColumns

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("batch insert notifications: %w", err)
	}
	defer rows.Close()

	var inserted []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		inserted = append(inserted, n)
	}
	return inserted, rows.Err()
}

// List fetches paginated notifications for a recipient.
func (s *Store) List(ctx context.Context, f domain.NotificationFilter) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE `
	var args []any

	switch {
	case f.ChildID != "":
		query += "child_id = $1"
		args = append(args, f.ChildID)
	case f.ParentID != "":
		query += "parent_id = $1"
		args = append(args, f.ParentID)
	default:
		return nil, domain.ErrNoRecipient
	}

	paramIdx := 2
	if f.IsRead != nil {
		query += fmt.Sprintf(" AND is_read = $%d", paramIdx)
		args = append(args, *f.IsRead)
		paramIdx++
	}
	if f.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", paramIdx)
		args = append(args, string(f.Type))
		paramIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", paramIdx, paramIdx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var results []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, n)
	}
	return results, rows.Err()
}

// GetByID fetches a single notification.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	return scanNotification(row)
}

// MarkRead marks a single notification as read.
func (s *Store) MarkRead(ctx context.Context, id uuid.UUID, rt domain.RecipientType, recipientID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND `+recipientColumn(rt)+` = $2 AND is_read = FALSE
	`, id, recipientID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification not found or already read")
	}
	return nil
}

// MarkAllRead marks all unread notifications for a recipient as read.
func (s *Store) MarkAllRead(ctx context.Context, rt domain.RecipientType, recipientID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE `+recipientColumn(rt)+` = $1 AND is_read = FALSE
	`, recipientID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes a notification belonging to the recipient.
func (s *Store) Delete(ctx context.Context, id uuid.UUID, rt domain.RecipientType, recipientID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND `+recipientColumn(rt)+` = $2`, id, recipientID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification not found")
	}
	return nil
}

// CountUnread returns the count of unread notifications for a recipient.
func (s *Store) CountUnread(ctx context.Context, rt domain.RecipientType, recipientID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE `+recipientColumn(rt)+` = $1 AND is_read = FALSE`,
		recipientID,
	).Scan(&count)
	return count, err
}

// PurgeExpired deletes notifications whose TTL has elapsed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("purge expired notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeOlderThan deletes notifications older than the given number of days.
func (s *Store) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

func recipientColumn(rt domain.RecipientType) string {
	if rt == domain.RecipientChild {
		return "child_id"
	}
	return "parent_id"
}

// nullable maps "" to NULL for optional text columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanNotification(row scannable) (*domain.Notification, error) {
	var (
		n                               domain.Notification
		parentID, childID, title        *string
		relatedID, ctaAction, ctaTarget *string
		sourceEventID                   *string
		metaJSON                        []byte
	)

	err := row.Scan(
		&n.ID, &parentID, &childID, &n.Type, &title, &n.Message, &n.Style, &n.Priority,
		&n.SoundAlert, &n.Vibration, &relatedID, &ctaAction, &ctaTarget,
		&metaJSON, &n.IsRead, &n.CreatedAt, &n.ExpiresAt, &sourceEventID,
	)
	if err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}

	n.ParentID = deref(parentID)
	n.ChildID = deref(childID)
	n.Title = deref(title)
	n.RelatedID = deref(relatedID)
	n.CTAAction = deref(ctaAction)
	n.CTATarget = deref(ctaTarget)
	n.SourceEventID = deref(sourceEventID)
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &n.Metadata)
	}
	return &n, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
