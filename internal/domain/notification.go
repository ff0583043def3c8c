package domain

import (
	"encoding/json"
	"time"
)

// Notification priorities, highest first.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// PriorityRank maps a priority to its sort weight (lower is more urgent).
func PriorityRank(p string) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Notification is a persisted analytics result surfaced to tenant users.
// UserID is empty for tenant-broadcast notifications. State is monotonic:
// unread -> read -> dismissed, and dismissed is terminal.
type Notification struct {
	ID          string          `db:"notification_id"`
	TenantID    string          `db:"tenant_id"`
	UserID      string          `db:"user_id"`
	Priority    string          `db:"priority"`
	Title       string          `db:"title"`
	Message     string          `db:"message"`
	Data        json.RawMessage `db:"data"`
	DedupeKey   string          `db:"dedupe_key"`
	CreatedAt   time.Time       `db:"created_at"`
	ReadAt      *time.Time      `db:"read_at"`
	DismissedAt *time.Time      `db:"dismissed_at"`
}
