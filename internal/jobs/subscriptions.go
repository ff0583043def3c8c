package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/insightlab/analytics-engine/internal/bus"
	"github.com/insightlab/analytics-engine/internal/domain"
	"github.com/insightlab/analytics-engine/internal/queue"
)

// WireSubscriptions binds the platform event topics to job enqueues.
// Subscribers only submit work through the adapter; analytics never runs on
// the publisher's stack.
func WireSubscriptions(b *bus.Bus, adapter queue.Adapter, logger *slog.Logger) {
	s := &subscriptions{adapter: adapter, logger: logger}

	b.Subscribe(domain.TopicMetricsClosed, s.onMetricsClosed)
	b.Subscribe(domain.TopicInventoryUpdated, s.onInventoryUpdated)
	b.Subscribe(domain.TopicChatMessage, s.onChatMessage)
	b.Subscribe(domain.TopicOrderCreated, s.onOrderCreated)
}

type subscriptions struct {
	adapter queue.Adapter
	logger  *slog.Logger
}

// onMetricsClosed kicks off the daily briefing plus anomaly scans once a
// tenant's metrics day is closed. Dedupe keys make redelivered events safe.
func (s *subscriptions) onMetricsClosed(ctx context.Context, event domain.Event) error {
	var data struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(event.Payload, &data); err != nil {
		return fmt.Errorf("invalid metrics.daily_closed payload: %w", err)
	}
	if data.Date == "" {
		data.Date = event.EmittedAt.UTC().Format("2006-01-02")
	}

	if err := s.enqueue(ctx, queue.Request{
		Type:      domain.JobTypeDailyBriefing,
		TenantID:  event.TenantID,
		Payload:   map[string]string{"date": data.Date},
		DedupeKey: fmt.Sprintf("daily-briefing:%s", data.Date),
	}); err != nil {
		return err
	}

	for _, metric := range []string{domain.MetricRevenue, domain.MetricOrders} {
		if err := s.enqueue(ctx, queue.Request{
			Type:      domain.JobTypeAnomalyScan,
			TenantID:  event.TenantID,
			Payload:   map[string]string{"metric_type": metric},
			DedupeKey: fmt.Sprintf("anomaly-scan:%s:%s", metric, data.Date),
		}); err != nil {
			return err
		}
	}
	return nil
}

// onInventoryUpdated refreshes the demand forecast for the touched product.
func (s *subscriptions) onInventoryUpdated(ctx context.Context, event domain.Event) error {
	var data struct {
		ProductID   string `json:"product_id"`
		ProductName string `json:"product_name"`
	}
	if err := json.Unmarshal(event.Payload, &data); err != nil {
		return fmt.Errorf("invalid inventory.updated payload: %w", err)
	}
	if data.ProductID == "" {
		return fmt.Errorf("inventory.updated payload missing product_id")
	}

	day := event.EmittedAt.UTC().Format("2006-01-02")
	return s.enqueue(ctx, queue.Request{
		Type:     domain.JobTypeDemandForecast,
		TenantID: event.TenantID,
		Payload: map[string]string{
			"product_id":   data.ProductID,
			"product_name": data.ProductName,
		},
		DedupeKey: fmt.Sprintf("demand-forecast:%s:%s", data.ProductID, day),
	})
}

// onChatMessage enqueues one reply job per message. No dedupe key: every
// message deserves its own answer.
func (s *subscriptions) onChatMessage(ctx context.Context, event domain.Event) error {
	var data struct {
		UserID  string `json:"user_id"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(event.Payload, &data); err != nil {
		return fmt.Errorf("invalid conversation.message payload: %w", err)
	}
	if data.Message == "" {
		return fmt.Errorf("conversation.message payload missing message")
	}

	return s.enqueue(ctx, queue.Request{
		Type:     domain.JobTypeConversationReply,
		TenantID: event.TenantID,
		Payload: map[string]string{
			"user_id": data.UserID,
			"message": data.Message,
		},
	})
}

// onOrderCreated nudges insight generation. The per-day dedupe key collapses
// an arbitrary burst of orders into one job.
func (s *subscriptions) onOrderCreated(ctx context.Context, event domain.Event) error {
	day := event.EmittedAt.UTC().Format("2006-01-02")
	return s.enqueue(ctx, queue.Request{
		Type:      domain.JobTypeInsightGeneration,
		TenantID:  event.TenantID,
		Payload:   map[string]string{"trigger": domain.TopicOrderCreated},
		DedupeKey: fmt.Sprintf("insight-generation:%s", day),
	})
}

func (s *subscriptions) enqueue(ctx context.Context, req queue.Request) error {
	jobID, err := s.adapter.Enqueue(ctx, req)
	if err != nil {
		return err
	}
	if jobID == "" {
		s.logger.Debug("Job submission deduplicated",
			slog.String("job_type", req.Type),
			slog.String("tenant_id", req.TenantID),
			slog.String("dedupe_key", req.DedupeKey),
		)
		return nil
	}
	s.logger.Info("Job enqueued from event",
		slog.String("job_id", jobID),
		slog.String("job_type", req.Type),
		slog.String("tenant_id", req.TenantID),
	)
	return nil
}
