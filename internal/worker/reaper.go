package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/insightlab/analytics-engine/internal/domain"
)

const reaperBatchSize = 100

// runReaper periodically republishes jobs whose retry delay has elapsed and
// rescues jobs orphaned by crashed consumers (stale heartbeat). This is the
// visibility-timeout half of the at-least-once contract.
func (w *Worker) runReaper(ctx context.Context) {
	ticker := time.NewTicker(w.reaperInterval)
	defer ticker.Stop()

	w.logger.Info("Retry reaper started",
		slog.Duration("interval", w.reaperInterval),
		slog.Duration("stale_after", w.staleAfter),
	)

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reapOnce(ctx)
		}
	}
}

func (w *Worker) reapOnce(ctx context.Context) {
	rescued, err := w.store.RequeueStale(ctx, w.staleAfter)
	if err != nil {
		w.logger.Error("Failed to requeue stale jobs",
			slog.String("error", err.Error()),
		)
	} else if rescued > 0 {
		w.logger.Warn("Requeued stale jobs",
			slog.Int64("count", rescued),
		)
	}

	jobIDs, err := w.store.DueJobs(ctx, w.staleAfter, reaperBatchSize)
	if err != nil {
		w.logger.Error("Failed to fetch due jobs",
			slog.String("error", err.Error()),
		)
		return
	}

	for _, jobID := range jobIDs {
		body, err := json.Marshal(domain.JobMessage{JobID: jobID})
		if err != nil {
			continue
		}
		if err := w.rabbitClient.PublishWithRetry(ctx, body, "application/json"); err != nil {
			w.logger.Error("Failed to republish due job",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			continue
		}
		w.logger.Info("Due job republished",
			slog.String("job_id", jobID),
		)
	}
}
