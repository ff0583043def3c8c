package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/insightlab/analytics-engine/internal/domain"
	"github.com/insightlab/analytics-engine/internal/notify"
)

// JobStore is the job persistence surface the executor drives status
// transitions through.
type JobStore interface {
	ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error)
	MarkJobSucceeded(ctx context.Context, jobID string) error
	MarkJobFailed(ctx context.Context, jobID, errMsg string) error
	MarkJobDead(ctx context.Context, jobID, errMsg string) error
	UpdateJobHeartbeat(ctx context.Context, jobID string) error
}

// ExecutorConfig holds executor tuning.
type ExecutorConfig struct {
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
}

// Executor claims a job, resolves its handler, runs it under a timeout, and
// persists results through the notification sink. Both queue modes execute
// jobs through this path, so an immediate-mode submission produces the same
// persisted result a durable delivery eventually would.
type Executor struct {
	registry *Registry
	store    JobStore
	sink     *notify.Sink
	logger   *slog.Logger
	cfg      ExecutorConfig
}

// NewExecutor wires an executor.
func NewExecutor(registry *Registry, store JobStore, sink *notify.Sink, logger *slog.Logger, cfg ExecutorConfig) *Executor {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	return &Executor{
		registry: registry,
		store:    store,
		sink:     sink,
		logger:   logger,
		cfg:      cfg,
	}
}

// Execute runs one job end to end and returns the classified outcome:
//   - nil: handler succeeded, job marked SUCCEEDED
//   - ValidationError / ErrUnknownJobType: job marked DEAD, never retried
//   - RetryableError: job marked FAILED with retry budget remaining
//   - ErrMaxAttemptsExceeded: job marked DEAD after exhausting retries
//   - ErrJobAlreadyClaimed: another consumer owns the job; skip
func (e *Executor) Execute(ctx context.Context, jobID, workerID string) error {
	job, err := e.store.ClaimJob(ctx, jobID, workerID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) || errors.Is(err, domain.ErrJobNotFound) {
			e.logger.Warn("Job not claimable, skipping",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("job not claimable: %w", err)
		}
		// Store error, likely transient.
		return domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	e.logger.Info("Processing job",
		slog.String("job_id", job.ID),
		slog.String("job_type", job.Type),
		slog.String("tenant_id", job.TenantID),
		slog.Int("attempt", job.Attempt),
		slog.Int("max_attempts", job.MaxAttempts),
	)

	// A rescued job can arrive with its budget already spent when the lease
	// was lost on the final attempt. It must not run again.
	if job.Attempt > job.MaxAttempts {
		cause := fmt.Errorf("%w: attempt %d of %d", domain.ErrMaxAttemptsExceeded, job.Attempt, job.MaxAttempts)
		if markErr := e.store.MarkJobDead(ctx, job.ID, cause.Error()); markErr != nil {
			e.logger.Error("Failed to mark job dead",
				slog.String("job_id", job.ID),
				slog.String("error", markErr.Error()),
			)
		}
		return cause
	}

	handler, err := e.registry.Resolve(job.Type)
	if err != nil {
		// Unknown type can never succeed; dead-letter immediately.
		if markErr := e.store.MarkJobDead(ctx, job.ID, err.Error()); markErr != nil {
			e.logger.Error("Failed to mark job dead",
				slog.String("job_id", job.ID),
				slog.String("error", markErr.Error()),
			)
		}
		return err
	}

	jobCtx, cancel := context.WithTimeout(ctx, e.cfg.JobTimeout)
	defer cancel()

	heartbeatDone := make(chan struct{})
	go e.heartbeat(jobCtx, job.ID, heartbeatDone)
	defer close(heartbeatDone)

	drafts, err := e.runHandler(jobCtx, handler, job)
	if err != nil {
		return e.fail(ctx, job, err)
	}

	for _, d := range drafts {
		if _, err := e.sink.Create(ctx, d); err != nil {
			return e.fail(ctx, job, fmt.Errorf("failed to persist notification: %w", err))
		}
	}

	if err := e.store.MarkJobSucceeded(ctx, job.ID); err != nil {
		e.logger.Error("Failed to mark job succeeded",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		// Handler work is done and results persisted; still report success.
	}

	e.logger.Info("Job completed",
		slog.String("job_id", job.ID),
		slog.String("job_type", job.Type),
		slog.Int("notifications", len(drafts)),
	)
	return nil
}

type handlerResult struct {
	drafts []notify.Draft
	err    error
}

// runHandler invokes the handler with panic isolation so a broken handler
// cannot take down a pool goroutine. The job runs to completion in its own
// goroutine even when the timeout fires first; only the outcome is dropped.
func (e *Executor) runHandler(ctx context.Context, handler HandlerFunc, job *domain.Job) ([]notify.Draft, error) {
	resCh := make(chan handlerResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- handlerResult{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		drafts, err := handler(ctx, job)
		resCh <- handlerResult{drafts: drafts, err: err}
	}()
	select {
	case res := <-resCh:
		return res.drafts, res.err
	case <-ctx.Done():
		return nil, domain.NewRetryableError(fmt.Errorf("job execution timed out: %w", ctx.Err()))
	}
}

// fail records a handler failure and classifies the outcome for the caller.
func (e *Executor) fail(ctx context.Context, job *domain.Job, cause error) error {
	e.logger.Error("Job execution failed",
		slog.String("job_id", job.ID),
		slog.String("job_type", job.Type),
		slog.String("tenant_id", job.TenantID),
		slog.Int("attempt", job.Attempt),
		slog.String("error", cause.Error()),
	)

	if domain.IsValidation(cause) {
		if err := e.store.MarkJobDead(ctx, job.ID, cause.Error()); err != nil {
			e.logger.Error("Failed to dead-letter job",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		return cause
	}

	if job.Attempt >= job.MaxAttempts {
		if err := e.store.MarkJobDead(ctx, job.ID, cause.Error()); err != nil {
			e.logger.Error("Failed to dead-letter job",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		return fmt.Errorf("%w: %v", domain.ErrMaxAttemptsExceeded, cause)
	}

	if err := e.store.MarkJobFailed(ctx, job.ID, cause.Error()); err != nil {
		e.logger.Error("Failed to mark job failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
	if domain.IsRetryable(cause) {
		return cause
	}
	return domain.NewRetryableError(cause)
}

// heartbeat keeps the job's lease fresh while the handler runs, so a crashed
// consumer's job becomes re-deliverable once the lease goes stale.
func (e *Executor) heartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(e.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.store.UpdateJobHeartbeat(ctx, jobID); err != nil {
				e.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
