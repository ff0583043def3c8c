package queue

import (
	"context"
	"fmt"
	"log/slog"
)

// Executor runs one job synchronously. Satisfied by jobs.Executor.
type Executor interface {
	Execute(ctx context.Context, jobID, workerID string) error
}

// immediateWorkerID marks claims made by the in-process fallback path.
const immediateWorkerID = "immediate"

// Immediate is the fallback strategy for when the broker is unreachable:
// Enqueue runs the handler synchronously in the caller's stack and errors
// propagate to the caller instead of being retried. Availability over
// durability, chosen once at startup by the health probe.
type Immediate struct {
	store    JobStore
	executor Executor
	logger   *slog.Logger
}

// NewImmediate creates the synchronous fallback adapter.
func NewImmediate(store JobStore, executor Executor, logger *slog.Logger) *Immediate {
	return &Immediate{store: store, executor: executor, logger: logger}
}

func (i *Immediate) Mode() Mode {
	return ModeImmediate
}

// Enqueue persists the job row and executes it before returning.
func (i *Immediate) Enqueue(ctx context.Context, req Request) (string, error) {
	job, err := buildJob(req)
	if err != nil {
		return "", err
	}

	created, err := i.store.CreateJob(ctx, job)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}
	if !created {
		i.logger.Debug("Job deduplicated",
			slog.String("job_type", req.Type),
			slog.String("tenant_id", req.TenantID),
			slog.String("dedupe_key", req.DedupeKey),
		)
		return "", nil
	}

	if err := i.executor.Execute(ctx, job.ID, immediateWorkerID); err != nil {
		return job.ID, fmt.Errorf("immediate execution failed: %w", err)
	}
	return job.ID, nil
}
