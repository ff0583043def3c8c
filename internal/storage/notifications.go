package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/insightlab/analytics-engine/internal/domain"
)

// InsertNotification persists a notification. Idempotent on
// (tenant_id, dedupe_key, day): a duplicate within the same UTC calendar
// day leaves the existing row untouched and reports false. The day column
// is set here rather than derived in the index because timestamptz-to-date
// casts are timezone-dependent and cannot back a unique index.
func (s *Storage) InsertNotification(ctx context.Context, n *domain.Notification) (bool, error) {
	query := `
		INSERT INTO notifications (
			notification_id, tenant_id, user_id, priority, title,
			message, data, dedupe_key, day, created_at
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9::date, $10)
		ON CONFLICT (tenant_id, dedupe_key, day) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		n.ID, n.TenantID, n.UserID, n.Priority, n.Title,
		n.Message, []byte(n.Data), n.DedupeKey,
		n.CreatedAt.UTC().Format("2006-01-02"), n.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// GetNotification fetches one notification scoped to its tenant.
func (s *Storage) GetNotification(ctx context.Context, tenantID, id string) (*domain.Notification, error) {
	query := `
		SELECT notification_id, tenant_id, COALESCE(user_id, '') AS user_id,
		       priority, title, message, data, dedupe_key,
		       created_at, read_at, dismissed_at
		FROM notifications
		WHERE tenant_id = $1 AND notification_id = $2
	`

	var n domain.Notification
	if err := s.db.GetContext(ctx, &n, query, tenantID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &n, nil
}

// MarkNotificationRead sets read_at once; re-reads keep the first timestamp.
func (s *Storage) MarkNotificationRead(ctx context.Context, tenantID, id string, at time.Time) error {
	query := `
		UPDATE notifications
		SET read_at = $1
		WHERE tenant_id = $2 AND notification_id = $3
		  AND read_at IS NULL AND dismissed_at IS NULL
	`

	if _, err := s.db.ExecContext(ctx, query, at, tenantID, id); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkNotificationDismissed sets the terminal dismissed state.
func (s *Storage) MarkNotificationDismissed(ctx context.Context, tenantID, id string, at time.Time) error {
	query := `
		UPDATE notifications
		SET dismissed_at = $1
		WHERE tenant_id = $2 AND notification_id = $3
		  AND dismissed_at IS NULL
	`

	if _, err := s.db.ExecContext(ctx, query, at, tenantID, id); err != nil {
		return fmt.Errorf("failed to mark notification dismissed: %w", err)
	}
	return nil
}

// ListNotifications returns non-dismissed notifications for a tenant, most
// urgent first. A non-empty userID includes that user's rows plus
// tenant-broadcast rows.
func (s *Storage) ListNotifications(ctx context.Context, tenantID, userID string, limit int) ([]domain.Notification, error) {
	query := `
		SELECT notification_id, tenant_id, COALESCE(user_id, '') AS user_id,
		       priority, title, message, data, dedupe_key,
		       created_at, read_at, dismissed_at
		FROM notifications
		WHERE tenant_id = $1
		  AND dismissed_at IS NULL
		  AND ($2 = '' OR user_id IS NULL OR user_id = $2)
		ORDER BY
			CASE priority
				WHEN 'critical' THEN 0
				WHEN 'high' THEN 1
				WHEN 'medium' THEN 2
				ELSE 3
			END,
			created_at DESC
		LIMIT $3
	`

	var notifications []domain.Notification
	if err := s.db.SelectContext(ctx, &notifications, query, tenantID, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}
