package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/insightlab/analytics-engine/internal/analytics"
	"github.com/insightlab/analytics-engine/internal/domain"
	"github.com/insightlab/analytics-engine/internal/notify"
)

// MetricsStore is the read-only collaborator the handlers fetch tenant data
// from. Business-entity persistence stays outside this subsystem.
type MetricsStore interface {
	GetDailyMetrics(ctx context.Context, tenantID string, date time.Time) (*domain.DailyMetrics, error)
	GetInventorySnapshot(ctx context.Context, tenantID string) ([]domain.InventoryItem, error)
	GetTimeSeries(ctx context.Context, tenantID, metricType string, days int) ([]domain.MetricSample, error)
	GetUsageSeries(ctx context.Context, tenantID, productID string, days int) ([]float64, error)
	GetPeriodSummary(ctx context.Context, tenantID string, start, end time.Time) (*domain.PeriodSummary, error)
}

// EngineConfig carries the analytics tuning knobs handlers pass to the pure
// engine functions.
type EngineConfig struct {
	Alpha             float64
	TargetDaysOfCover float64
	AnomalyWindowDays int
	AnomalyTopK       int
	ForecastWindow    int
}

// Handlers bundles the analytics job handlers and their collaborators.
type Handlers struct {
	metrics MetricsStore
	cfg     EngineConfig
	logger  *slog.Logger
}

// NewHandlers wires the handler set.
func NewHandlers(metrics MetricsStore, cfg EngineConfig, logger *slog.Logger) *Handlers {
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = analytics.DefaultAlpha
	}
	if cfg.TargetDaysOfCover <= 0 {
		cfg.TargetDaysOfCover = 20
	}
	if cfg.AnomalyWindowDays <= 0 {
		cfg.AnomalyWindowDays = 30
	}
	if cfg.AnomalyTopK <= 0 {
		cfg.AnomalyTopK = 5
	}
	if cfg.ForecastWindow <= 0 {
		cfg.ForecastWindow = 30
	}
	return &Handlers{metrics: metrics, cfg: cfg, logger: logger}
}

// RegisterAll binds every analytics job type into the registry.
func (h *Handlers) RegisterAll(r *Registry) {
	r.Register(domain.JobTypeDailyBriefing, h.DailyBriefing)
	r.Register(domain.JobTypeDemandForecast, h.DemandForecast)
	r.Register(domain.JobTypeAnomalyScan, h.AnomalyScan)
	r.Register(domain.JobTypeInsightGeneration, h.InsightGeneration)
	r.Register(domain.JobTypeConversationReply, h.ConversationReply)
}

type briefingPayload struct {
	Date string `json:"date"`
}

// DailyBriefing compares today's snapshot against yesterday's and persists
// one briefing notification per tenant per day.
func (h *Handlers) DailyBriefing(ctx context.Context, job *domain.Job) ([]notify.Draft, error) {
	var p briefingPayload
	if err := decodePayload(job.Payload, &p); err != nil {
		return nil, err
	}

	day := time.Now().UTC()
	if p.Date != "" {
		parsed, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return nil, domain.NewValidationError(fmt.Errorf("invalid briefing date %q: %w", p.Date, err))
		}
		day = parsed
	}

	today, err := h.metrics.GetDailyMetrics(ctx, job.TenantID, day)
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to fetch today's metrics: %w", err))
	}
	yesterday, err := h.metrics.GetDailyMetrics(ctx, job.TenantID, day.AddDate(0, 0, -1))
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to fetch yesterday's metrics: %w", err))
	}
	inventory, err := h.metrics.GetInventorySnapshot(ctx, job.TenantID)
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to fetch inventory snapshot: %w", err))
	}

	briefing := analytics.BuildBriefing(*today, *yesterday, inventory)
	return []notify.Draft{{
		TenantID:  job.TenantID,
		Priority:  analytics.BriefingPriority(briefing),
		Title:     fmt.Sprintf("Daily briefing for %s", day.Format("2006-01-02")),
		Message:   briefingMessage(briefing),
		Data:      briefing,
		DedupeKey: fmt.Sprintf("daily-briefing:%s", day.Format("2006-01-02")),
	}}, nil
}

func briefingMessage(b analytics.Briefing) string {
	if len(b.Highlights) == 0 {
		return "Metrics are steady versus yesterday."
	}
	return strings.Join(b.Highlights, "; ")
}

type forecastPayload struct {
	ProductID         string  `json:"product_id"`
	ProductName       string  `json:"product_name"`
	TargetDaysOfCover float64 `json:"target_days_of_cover"`
}

// DemandForecast smooths a product's trailing usage and raises a
// notification when the projected runout is near.
func (h *Handlers) DemandForecast(ctx context.Context, job *domain.Job) ([]notify.Draft, error) {
	var p forecastPayload
	if err := decodePayload(job.Payload, &p); err != nil {
		return nil, err
	}
	if p.ProductID == "" {
		return nil, domain.NewValidationError(fmt.Errorf("demand forecast payload missing product_id"))
	}
	cover := p.TargetDaysOfCover
	if cover <= 0 {
		cover = h.cfg.TargetDaysOfCover
	}

	usage, err := h.metrics.GetUsageSeries(ctx, job.TenantID, p.ProductID, h.cfg.ForecastWindow)
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to fetch usage series: %w", err))
	}
	inventory, err := h.metrics.GetInventorySnapshot(ctx, job.TenantID)
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to fetch inventory snapshot: %w", err))
	}

	stock := 0.0
	name := p.ProductName
	for _, item := range inventory {
		if item.ProductID == p.ProductID {
			stock = item.CurrentStock
			if name == "" {
				name = item.ProductName
			}
			break
		}
	}

	forecast := analytics.ForecastDemand(p.ProductID, name, usage, stock, cover, h.cfg.Alpha)
	if forecast.Urgency == analytics.UrgencyNormal {
		return nil, nil
	}

	priority := domain.PriorityHigh
	if forecast.Urgency == analytics.UrgencyCritical {
		priority = domain.PriorityCritical
	}
	return []notify.Draft{{
		TenantID: job.TenantID,
		Priority: priority,
		Title:    fmt.Sprintf("Stock runout approaching: %s", displayName(forecast)),
		Message: fmt.Sprintf("Projected runout in %.1f days at current usage; reorder %.0f units.",
			forecast.DaysToRunout, forecast.ReorderQuantity),
		Data:      forecast,
		DedupeKey: fmt.Sprintf("demand-forecast:%s", p.ProductID),
	}}, nil
}

func displayName(f analytics.DemandForecast) string {
	if f.ProductName != "" {
		return f.ProductName
	}
	return f.ProductID
}

type anomalyPayload struct {
	MetricType string `json:"metric_type"`
	WindowDays int    `json:"window_days"`
	TopK       int    `json:"top_k"`
}

// AnomalyScan z-scores a trailing metric window and reports the most
// significant outliers.
func (h *Handlers) AnomalyScan(ctx context.Context, job *domain.Job) ([]notify.Draft, error) {
	var p anomalyPayload
	if err := decodePayload(job.Payload, &p); err != nil {
		return nil, err
	}
	if p.MetricType == "" {
		return nil, domain.NewValidationError(fmt.Errorf("anomaly scan payload missing metric_type"))
	}
	window := p.WindowDays
	if window <= 0 {
		window = h.cfg.AnomalyWindowDays
	}
	topK := p.TopK
	if topK <= 0 {
		topK = h.cfg.AnomalyTopK
	}

	samples, err := h.metrics.GetTimeSeries(ctx, job.TenantID, p.MetricType, window)
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to fetch time series: %w", err))
	}

	dates := make([]time.Time, len(samples))
	values := make([]float64, len(samples))
	for i, s := range samples {
		dates[i] = s.Date
		values[i] = s.Value
	}

	anomalies := analytics.DetectAnomalies(dates, values, topK)
	if len(anomalies) == 0 {
		return nil, nil
	}

	priority := domain.PriorityHigh
	if anomalies[0].Severity == analytics.SeverityCritical {
		priority = domain.PriorityCritical
	}
	return []notify.Draft{{
		TenantID: job.TenantID,
		Priority: priority,
		Title:    fmt.Sprintf("Unusual %s activity detected", p.MetricType),
		Message: fmt.Sprintf("%d anomalies in the trailing %d days; largest on %s (z=%.1f).",
			len(anomalies), window, anomalies[0].Date.Format("2006-01-02"), anomalies[0].ZScore),
		Data:      anomalies,
		DedupeKey: fmt.Sprintf("anomaly:%s", p.MetricType),
	}}, nil
}

// InsightGeneration runs the rule battery and persists only the top insight;
// the full set rides along in the notification data.
func (h *Handlers) InsightGeneration(ctx context.Context, job *domain.Job) ([]notify.Draft, error) {
	now := time.Now().UTC()
	current, err := h.metrics.GetPeriodSummary(ctx, job.TenantID, now.AddDate(0, 0, -30), now)
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to fetch current period summary: %w", err))
	}
	previous, err := h.metrics.GetPeriodSummary(ctx, job.TenantID, now.AddDate(0, 0, -60), now.AddDate(0, 0, -30))
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to fetch previous period summary: %w", err))
	}
	revenue, err := h.metrics.GetTimeSeries(ctx, job.TenantID, domain.MetricRevenue, 30)
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to fetch revenue series: %w", err))
	}
	inventory, err := h.metrics.GetInventorySnapshot(ctx, job.TenantID)
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to fetch inventory snapshot: %w", err))
	}

	series := make([]float64, len(revenue))
	for i, s := range revenue {
		series[i] = s.Value
	}

	insights := analytics.GenerateInsights(analytics.InsightInput{
		RevenueSeries: series,
		Inventory:     inventory,
		Current:       *current,
		Previous:      *previous,
	})
	if len(insights) == 0 {
		return nil, nil
	}

	top := insights[0]
	return []notify.Draft{{
		TenantID:  job.TenantID,
		Priority:  top.Priority,
		Title:     top.Title,
		Message:   fmt.Sprintf("%s %s", top.ImpactStatement, top.Recommendation),
		Data:      insights,
		DedupeKey: fmt.Sprintf("insight:%s", top.Category),
	}}, nil
}

type conversationPayload struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// ConversationReply answers a free-text question with metrics fetched at
// reply time. The answer is persisted as a low-priority per-user
// notification.
func (h *Handlers) ConversationReply(ctx context.Context, job *domain.Job) ([]notify.Draft, error) {
	var p conversationPayload
	if err := decodePayload(job.Payload, &p); err != nil {
		return nil, err
	}
	if p.Message == "" {
		return nil, domain.NewValidationError(fmt.Errorf("conversation payload missing message"))
	}

	// Fetch fresh metrics for every reply; nothing is cached across calls.
	now := time.Now().UTC()
	summary, err := h.metrics.GetPeriodSummary(ctx, job.TenantID, now.AddDate(0, 0, -30), now)
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to fetch period summary: %w", err))
	}
	inventory, err := h.metrics.GetInventorySnapshot(ctx, job.TenantID)
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to fetch inventory snapshot: %w", err))
	}

	low := 0
	for _, item := range inventory {
		if item.CurrentStock < item.ReorderThreshold {
			low++
		}
	}

	reply := analytics.Respond(p.Message, analytics.ReplyContext{
		Summary:   *summary,
		LowStock:  low,
		TotalSKUs: len(inventory),
	})

	return []notify.Draft{{
		TenantID:  job.TenantID,
		UserID:    p.UserID,
		Priority:  domain.PriorityLow,
		Title:     "Assistant reply",
		Message:   reply.Text,
		Data:      reply,
		DedupeKey: fmt.Sprintf("conversation:%s", job.ID),
	}}, nil
}

// decodePayload unmarshals a job payload, classifying malformed JSON as a
// validation failure so it dead-letters instead of retrying.
func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.NewValidationError(fmt.Errorf("invalid job payload: %w", err))
	}
	return nil
}
