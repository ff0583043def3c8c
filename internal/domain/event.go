package domain

import (
	"encoding/json"
	"time"
)

// Event topics published by the business layer.
const (
	TopicOrderCreated     = "order.created"
	TopicMetricsClosed    = "metrics.daily_closed"
	TopicInventoryUpdated = "inventory.updated"
	TopicChatMessage      = "conversation.message"
)

// Event is an ephemeral business event. It is dispatched to subscribers and
// discarded; nothing here is persisted unless a subscriber enqueues a job.
type Event struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	TenantID  string          `json:"tenant_id"`
	Payload   json.RawMessage `json:"data"`
	EmittedAt time.Time       `json:"emitted_at"`
}
