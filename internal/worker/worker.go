// Package worker runs the durable-mode consumer pool: a fixed set of
// goroutines fed by a broker dispatcher, plus a reaper that redelivers
// retries and rescues jobs from crashed consumers.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/insightlab/analytics-engine/internal/domain"
	"github.com/insightlab/analytics-engine/internal/queue"
	"github.com/insightlab/analytics-engine/shared/rabbitmq"
)

// Store is the job persistence surface the pool and reaper drive.
type Store interface {
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	ScheduleRetry(ctx context.Context, jobID string, retryAt time.Time) error
	DueJobs(ctx context.Context, staleAfter time.Duration, limit int) ([]string, error)
	RequeueStale(ctx context.Context, staleAfter time.Duration) (int64, error)
}

// Executor runs one claimed job end to end. Satisfied by jobs.Executor.
type Executor interface {
	Execute(ctx context.Context, jobID, workerID string) error
}

// Config holds worker configuration
type Config struct {
	Logger         *slog.Logger
	RabbitClient   *rabbitmq.Client
	Store          Store
	Executor       Executor
	Concurrency    int
	PrefetchCount  int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	ReaperInterval time.Duration
	StaleAfter     time.Duration
}

// Worker consumes job messages from the broker and executes them on a
// fixed-size pool.
type Worker struct {
	logger         *slog.Logger
	rabbitClient   *rabbitmq.Client
	store          Store
	executor       Executor
	workerID       string
	concurrency    int
	prefetchCount  int
	backoffBase    time.Duration
	backoffCap     time.Duration
	reaperInterval time.Duration
	staleAfter     time.Duration

	jobsChan chan *domain.JobMessage
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	hostname, _ := os.Hostname()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.PrefetchCount <= 0 {
		cfg.PrefetchCount = cfg.Concurrency * 2
	}
	if cfg.ReaperInterval <= 0 {
		cfg.ReaperInterval = 5 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 2 * time.Minute
	}
	return &Worker{
		logger:         cfg.Logger,
		rabbitClient:   cfg.RabbitClient,
		store:          cfg.Store,
		executor:       cfg.Executor,
		workerID:       fmt.Sprintf("worker-%s-%s", hostname, uuid.New().String()[:8]),
		concurrency:    cfg.Concurrency,
		prefetchCount:  cfg.PrefetchCount,
		backoffBase:    cfg.BackoffBase,
		backoffCap:     cfg.BackoffCap,
		reaperInterval: cfg.ReaperInterval,
		staleAfter:     cfg.StaleAfter,
		jobsChan:       make(chan *domain.JobMessage, cfg.Concurrency),
		stopChan:       make(chan struct{}),
	}
}

// Start begins consuming and blocks until ctx is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Int("prefetch_count", w.prefetchCount),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.runReaper(ctx)
	}()

	w.startMessageDispatcher(ctx, deliveries)

	w.logger.Info("Worker dispatcher stopped, waiting for in-flight jobs")
	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// retryDelay computes the redelivery delay for this attempt.
func (w *Worker) retryDelay(attempt int) time.Duration {
	return queue.Backoff(attempt, w.backoffBase, w.backoffCap)
}
