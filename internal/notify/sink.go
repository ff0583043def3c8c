// Package notify persists computed analytics results as tenant notifications
// and owns their unread -> read -> dismissed state machine.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/insightlab/analytics-engine/internal/domain"
)

// Store is the persistence surface the sink writes through. Insert reports
// whether a row was actually created; a dedupe collision returns false.
type Store interface {
	InsertNotification(ctx context.Context, n *domain.Notification) (bool, error)
	GetNotification(ctx context.Context, tenantID, id string) (*domain.Notification, error)
	MarkNotificationRead(ctx context.Context, tenantID, id string, at time.Time) error
	MarkNotificationDismissed(ctx context.Context, tenantID, id string, at time.Time) error
	ListNotifications(ctx context.Context, tenantID, userID string, limit int) ([]domain.Notification, error)
}

// Draft is a notification before persistence. UserID empty means
// tenant-broadcast.
type Draft struct {
	TenantID  string
	UserID    string
	Priority  string
	Title     string
	Message   string
	Data      any
	DedupeKey string
}

// Sink persists drafts idempotently and serves state transitions.
type Sink struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewSink creates a sink over the given store.
func NewSink(store Store, logger *slog.Logger) *Sink {
	return &Sink{store: store, logger: logger, now: time.Now}
}

// Create persists a draft. Creation is idempotent on
// (tenant, dedupeKey, day): a duplicate within the same calendar day is
// silently dropped and the existing row wins. Returns the created
// notification, or nil when deduplicated.
func (s *Sink) Create(ctx context.Context, d Draft) (*domain.Notification, error) {
	data, err := json.Marshal(d.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification data: %w", err)
	}

	now := s.now().UTC()
	n := &domain.Notification{
		ID:        uuid.New().String(),
		TenantID:  d.TenantID,
		UserID:    d.UserID,
		Priority:  d.Priority,
		Title:     d.Title,
		Message:   d.Message,
		Data:      data,
		DedupeKey: d.DedupeKey,
		CreatedAt: now,
	}

	created, err := s.store.InsertNotification(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to insert notification: %w", err)
	}
	if !created {
		s.logger.Debug("Notification deduplicated",
			slog.String("tenant_id", d.TenantID),
			slog.String("dedupe_key", d.DedupeKey),
		)
		return nil, nil
	}

	s.logger.Info("Notification created",
		slog.String("notification_id", n.ID),
		slog.String("tenant_id", n.TenantID),
		slog.String("priority", n.Priority),
	)
	return n, nil
}

// MarkRead transitions unread -> read. Already-read is a no-op; a dismissed
// notification cannot change state again.
func (s *Sink) MarkRead(ctx context.Context, tenantID, id string) error {
	n, err := s.store.GetNotification(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if n.DismissedAt != nil {
		return domain.ErrNotificationDismissed
	}
	if n.ReadAt != nil {
		return nil
	}
	return s.store.MarkNotificationRead(ctx, tenantID, id, s.now().UTC())
}

// MarkDismissed transitions a notification to its terminal state. Dismissing
// an already-dismissed notification is a no-op.
func (s *Sink) MarkDismissed(ctx context.Context, tenantID, id string) error {
	n, err := s.store.GetNotification(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if n.DismissedAt != nil {
		return nil
	}
	return s.store.MarkNotificationDismissed(ctx, tenantID, id, s.now().UTC())
}

// List returns a tenant's notifications ordered by priority then recency.
// userID filters to per-user plus broadcast rows when non-empty.
func (s *Sink) List(ctx context.Context, tenantID, userID string, limit int) ([]domain.Notification, error) {
	return s.store.ListNotifications(ctx, tenantID, userID, limit)
}

// DayKey formats the calendar-day bucket used by the dedupe constraint.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
