// Package scheduler triggers recurring analytics jobs per tenant on a cron
// schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/insightlab/analytics-engine/internal/domain"
	"github.com/insightlab/analytics-engine/internal/queue"
	"github.com/robfig/cron/v3"
)

// TenantStore lists the tenants the scheduler fans out over.
type TenantStore interface {
	ListActiveTenants(ctx context.Context) ([]domain.Tenant, error)
}

// Config holds scheduler configuration.
type Config struct {
	// BriefingSpec is a standard cron expression; daily at 06:00 by default.
	BriefingSpec string
	// InsightSpec triggers the weekly insight battery; empty disables it.
	InsightSpec string
}

// Scheduler enqueues recurring jobs. Triggers are idempotent: each job
// carries a per-tenant-per-day dedupe key, so a crash-and-restart around
// trigger time cannot double-enqueue.
type Scheduler struct {
	cron    *cron.Cron
	adapter queue.Adapter
	tenants TenantStore
	logger  *slog.Logger
	cfg     Config
	now     func() time.Time
}

// New wires a scheduler. Call Start to begin triggering.
func New(adapter queue.Adapter, tenants TenantStore, logger *slog.Logger, cfg Config) *Scheduler {
	if cfg.BriefingSpec == "" {
		cfg.BriefingSpec = "0 6 * * *"
	}
	return &Scheduler{
		cron:    cron.New(),
		adapter: adapter,
		tenants: tenants,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Start registers the cron entries and launches the trigger loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.BriefingSpec, func() {
		s.TriggerDailyBriefings(ctx)
	}); err != nil {
		return fmt.Errorf("invalid briefing cron spec %q: %w", s.cfg.BriefingSpec, err)
	}

	if s.cfg.InsightSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.InsightSpec, func() {
			s.TriggerInsightGeneration(ctx)
		}); err != nil {
			return fmt.Errorf("invalid insight cron spec %q: %w", s.cfg.InsightSpec, err)
		}
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		slog.String("briefing_spec", s.cfg.BriefingSpec),
		slog.String("insight_spec", s.cfg.InsightSpec),
	)
	return nil
}

// Stop halts triggering and waits for any running trigger to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("Scheduler stopped")
}

// TriggerDailyBriefings enqueues one daily_briefing job per active tenant.
func (s *Scheduler) TriggerDailyBriefings(ctx context.Context) {
	day := s.now().UTC().Format("2006-01-02")
	s.fanOut(ctx, domain.JobTypeDailyBriefing,
		map[string]string{"date": day},
		fmt.Sprintf("daily-briefing:%s", day),
	)
}

// TriggerInsightGeneration enqueues one insight_generation job per active
// tenant.
func (s *Scheduler) TriggerInsightGeneration(ctx context.Context) {
	day := s.now().UTC().Format("2006-01-02")
	s.fanOut(ctx, domain.JobTypeInsightGeneration, nil,
		fmt.Sprintf("insight-generation:%s", day),
	)
}

func (s *Scheduler) fanOut(ctx context.Context, jobType string, payload map[string]string, dedupeKey string) {
	tenants, err := s.tenants.ListActiveTenants(ctx)
	if err != nil {
		s.logger.Error("Failed to list tenants for trigger",
			slog.String("job_type", jobType),
			slog.String("error", err.Error()),
		)
		return
	}

	enqueued := 0
	for _, tenant := range tenants {
		jobID, err := s.adapter.Enqueue(ctx, queue.Request{
			Type:      jobType,
			TenantID:  tenant.ID,
			Payload:   payload,
			DedupeKey: dedupeKey,
		})
		if err != nil {
			s.logger.Error("Failed to enqueue scheduled job",
				slog.String("job_type", jobType),
				slog.String("tenant_id", tenant.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if jobID != "" {
			enqueued++
		}
	}

	s.logger.Info("Scheduled trigger completed",
		slog.String("job_type", jobType),
		slog.Int("tenants", len(tenants)),
		slog.Int("enqueued", enqueued),
	)
}
