package domain

import (
	"encoding/json"
	"time"
)

// Job statuses
const (
	JobStatusQueued    = "QUEUED"
	JobStatusRunning   = "RUNNING"
	JobStatusSucceeded = "SUCCEEDED"
	JobStatusFailed    = "FAILED"
	JobStatusDead      = "DEAD"
	JobStatusCancelled = "CANCELLED"
)

// Job types handled by the analytics worker
const (
	JobTypeDailyBriefing     = "daily_briefing"
	JobTypeDemandForecast    = "demand_forecast"
	JobTypeAnomalyScan       = "anomaly_scan"
	JobTypeInsightGeneration = "insight_generation"
	JobTypeConversationReply = "conversation_reply"
)

// Job is a unit of asynchronous analytics work. Every job is scoped to a
// single tenant; the payload schema depends on the job type.
type Job struct {
	ID          string          `db:"job_id"`
	Type        string          `db:"job_type"`
	TenantID    string          `db:"tenant_id"`
	Payload     json.RawMessage `db:"payload"`
	Status      string          `db:"status"`
	DedupeKey   string          `db:"dedupe_key"`
	Attempt     int             `db:"attempt"`
	MaxAttempts int             `db:"max_attempts"`
	LastError   string          `db:"error_message"`
	EnqueuedAt  time.Time       `db:"enqueued_at"`
	RetryAt     *time.Time      `db:"retry_at"`
	WorkerID    string          `db:"worker_id"`
}

// JobMessage is the broker envelope. Only the job ID travels over the wire;
// the job row in the store is the source of truth.
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}
