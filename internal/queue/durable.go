package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/insightlab/analytics-engine/internal/domain"
)

// Publisher is the broker surface the durable adapter publishes through.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Durable persists the job row, then hands a {job_id} envelope to the
// broker. Delivery is at-least-once: consumers lease jobs via claim and
// heartbeat, so a crashed worker's job becomes re-deliverable.
type Durable struct {
	store     JobStore
	publisher Publisher
	logger    *slog.Logger
}

// NewDurable creates the broker-backed adapter.
func NewDurable(store JobStore, publisher Publisher, logger *slog.Logger) *Durable {
	return &Durable{store: store, publisher: publisher, logger: logger}
}

func (d *Durable) Mode() Mode {
	return ModeDurable
}

// Enqueue returns once the broker accepts the message. The job row is the
// source of truth; losing the broker message only delays delivery until the
// retry reaper republishes it.
func (d *Durable) Enqueue(ctx context.Context, req Request) (string, error) {
	job, err := buildJob(req)
	if err != nil {
		return "", err
	}

	created, err := d.store.CreateJob(ctx, job)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}
	if !created {
		d.logger.Debug("Job deduplicated",
			slog.String("job_type", req.Type),
			slog.String("tenant_id", req.TenantID),
			slog.String("dedupe_key", req.DedupeKey),
		)
		return "", nil
	}

	body, err := json.Marshal(domain.JobMessage{JobID: job.ID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal job message: %w", err)
	}
	if err := d.publisher.PublishWithRetry(ctx, body, "application/json"); err != nil {
		// Row exists; the reaper will republish it when the broker recovers.
		d.logger.Error("Failed to publish job message",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return job.ID, nil
	}

	d.logger.Info("Job enqueued",
		slog.String("job_id", job.ID),
		slog.String("job_type", job.Type),
		slog.String("tenant_id", job.TenantID),
	)
	return job.ID, nil
}
