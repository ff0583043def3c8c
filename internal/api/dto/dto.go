package dto

import "encoding/json"

// PublishEventRequest is the body of POST /api/v1/events.
type PublishEventRequest struct {
	Topic    string          `json:"topic" binding:"required"`
	TenantID string          `json:"tenant_id" binding:"required"`
	Payload  json.RawMessage `json:"payload" binding:"required"`
}

// SubmitJobRequest is the body of POST /api/v1/jobs.
type SubmitJobRequest struct {
	JobType     string          `json:"job_type" binding:"required"`
	TenantID    string          `json:"tenant_id" binding:"required"`
	Payload     json.RawMessage `json:"payload"`
	MaxAttempts int             `json:"max_attempts"`
	DedupeKey   string          `json:"dedupe_key"`
}

// SubmitJobResponse reports the outcome of a job submission. Deduplicated
// is true when an earlier submission already claimed the dedupe key.
type SubmitJobResponse struct {
	JobID        string `json:"job_id,omitempty"`
	Status       string `json:"status,omitempty"`
	Deduplicated bool   `json:"deduplicated"`
}

// JobDTO is the wire shape of a job row.
type JobDTO struct {
	JobID       string          `json:"job_id"`
	JobType     string          `json:"job_type"`
	TenantID    string          `json:"tenant_id"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	LastError   string          `json:"last_error,omitempty"`
	EnqueuedAt  string          `json:"enqueued_at"`
}

// NotificationDTO is the wire shape of a notification.
type NotificationDTO struct {
	NotificationID string          `json:"notification_id"`
	TenantID       string          `json:"tenant_id"`
	UserID         string          `json:"user_id,omitempty"`
	Priority       string          `json:"priority"`
	Title          string          `json:"title"`
	Message        string          `json:"message"`
	Data           json.RawMessage `json:"data,omitempty"`
	CreatedAt      string          `json:"created_at"`
	Read           bool            `json:"read"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status          string `json:"status"`
	Service         string `json:"service"`
	QueueMode       string `json:"queue_mode"`
	PendingJobs     int    `json:"pending_jobs"`
	DeadLetterCount int    `json:"dead_letter_count"`
	BusFaults       int64  `json:"bus_faults"`
}
