// Package queue abstracts job submission over two interchangeable
// strategies: a durable broker-backed mode and an in-process immediate mode
// used when the broker is unreachable at startup.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/insightlab/analytics-engine/internal/domain"
)

// Mode identifies the active submission strategy.
type Mode string

const (
	ModeDurable   Mode = "durable"
	ModeImmediate Mode = "immediate"
)

// DefaultMaxAttempts is the retry budget for jobs that don't specify one.
const DefaultMaxAttempts = 3

// Request describes a job to submit. DedupeKey, when set, makes the
// submission idempotent: a second request with the same tenant and key is
// dropped at the store.
type Request struct {
	Type        string
	TenantID    string
	Payload     any
	MaxAttempts int
	DedupeKey   string
}

// Adapter is the single submission interface callers see. Which strategy
// backs it is decided once at process start by the broker health probe;
// business code never branches on mode.
type Adapter interface {
	// Enqueue submits a job. In durable mode it returns once the broker
	// accepts the message; in immediate mode it blocks until the handler
	// finishes and surfaces the handler's error directly. A deduplicated
	// submission returns an empty job ID and no error.
	Enqueue(ctx context.Context, req Request) (string, error)
	Mode() Mode
}

// JobStore persists job rows. CreateJob reports false when the dedupe key
// already claimed this submission.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.Job) (bool, error)
}

// buildJob materializes a Request into a queued job row.
func buildJob(req Request) (*domain.Job, error) {
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, domain.NewValidationError(err)
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &domain.Job{
		ID:          uuid.New().String(),
		Type:        req.Type,
		TenantID:    req.TenantID,
		Payload:     payload,
		Status:      domain.JobStatusQueued,
		DedupeKey:   req.DedupeKey,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		EnqueuedAt:  time.Now().UTC(),
	}, nil
}
