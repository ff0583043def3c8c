package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/insightlab/analytics-engine/internal/domain"
)

// spawnWorkerPool spawns N consumer goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each pool goroutine.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg, ok := <-w.jobsChan:
			if !ok {
				return
			}
			w.handleMessage(ctx, workerName, msg)
		}
	}
}

// handleMessage executes one delivery and settles it with the broker. A
// message is acked only after its outcome is fully recorded: success,
// dead-letter, or a scheduled retry the reaper now owns.
func (w *Worker) handleMessage(ctx context.Context, workerName string, msg *domain.JobMessage) {
	err := w.executor.Execute(ctx, msg.JobID, workerName)

	channel := w.rabbitClient.GetChannel()
	if channel == nil {
		w.logger.Error("Failed to get broker channel for ACK/NACK",
			slog.String("worker_name", workerName),
			slog.String("job_id", msg.JobID),
		)
		return
	}

	if err == nil {
		if ackErr := channel.Ack(msg.DeliveryTag, false); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("worker_name", workerName),
				slog.String("job_id", msg.JobID),
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	if domain.IsRetryable(err) {
		if scheduleErr := w.scheduleRetry(ctx, msg.JobID); scheduleErr != nil {
			w.logger.Error("Failed to schedule retry, requeueing delivery",
				slog.String("job_id", msg.JobID),
				slog.String("error", scheduleErr.Error()),
			)
			if nackErr := channel.Nack(msg.DeliveryTag, false, true); nackErr != nil {
				w.logger.Error("Failed to NACK message",
					slog.String("job_id", msg.JobID),
					slog.String("error", nackErr.Error()),
				)
			}
			return
		}
	} else {
		// Validation failures, exhausted retries, and unclaimable jobs are
		// settled; nothing further to deliver.
		w.logger.Info("Job settled without retry",
			slog.String("worker_name", workerName),
			slog.String("job_id", msg.JobID),
			slog.String("reason", err.Error()),
		)
	}

	if ackErr := channel.Ack(msg.DeliveryTag, false); ackErr != nil {
		w.logger.Error("Failed to ACK message",
			slog.String("worker_name", workerName),
			slog.String("job_id", msg.JobID),
			slog.String("error", ackErr.Error()),
		)
	}
}

// scheduleRetry puts a failed job back in the queued state with a backoff
// delay; the reaper republishes it when due.
func (w *Worker) scheduleRetry(ctx context.Context, jobID string) error {
	job, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load job for retry: %w", err)
	}

	delay := w.retryDelay(job.Attempt)
	retryAt := time.Now().UTC().Add(delay)
	if err := w.store.ScheduleRetry(ctx, jobID, retryAt); err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}

	w.logger.Info("Job retry scheduled",
		slog.String("job_id", jobID),
		slog.Int("attempt", job.Attempt),
		slog.Int("max_attempts", job.MaxAttempts),
		slog.Duration("delay", delay),
	)
	return nil
}
