package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightlab/analytics-engine/internal/domain"
)

type fakeMetricsStore struct {
	daily     map[string]*domain.DailyMetrics
	inventory []domain.InventoryItem
	series    []domain.MetricSample
	usage     []float64
	current   *domain.PeriodSummary
	previous  *domain.PeriodSummary
	err       error
}

func (f *fakeMetricsStore) GetDailyMetrics(ctx context.Context, tenantID string, date time.Time) (*domain.DailyMetrics, error) {
	if f.err != nil {
		return nil, f.err
	}
	key := date.Format("2006-01-02")
	if m, ok := f.daily[key]; ok {
		return m, nil
	}
	return &domain.DailyMetrics{TenantID: tenantID, Date: date}, nil
}

func (f *fakeMetricsStore) GetInventorySnapshot(ctx context.Context, tenantID string) ([]domain.InventoryItem, error) {
	return f.inventory, f.err
}

func (f *fakeMetricsStore) GetTimeSeries(ctx context.Context, tenantID, metricType string, days int) ([]domain.MetricSample, error) {
	return f.series, f.err
}

func (f *fakeMetricsStore) GetUsageSeries(ctx context.Context, tenantID, productID string, days int) ([]float64, error) {
	return f.usage, f.err
}

func (f *fakeMetricsStore) GetPeriodSummary(ctx context.Context, tenantID string, start, end time.Time) (*domain.PeriodSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	// The previous period ends where the current one starts.
	if end.Before(time.Now().UTC().AddDate(0, 0, -1)) {
		return f.previous, nil
	}
	return f.current, nil
}

func newHandlers(store *fakeMetricsStore) *Handlers {
	return NewHandlers(store, EngineConfig{}, testLogger())
}

func briefingJob(date string) *domain.Job {
	return &domain.Job{
		ID:       "job-1",
		Type:     domain.JobTypeDailyBriefing,
		TenantID: "tenant-1",
		Payload:  []byte(`{"date":"` + date + `"}`),
	}
}

func TestHandlers_DailyBriefing(t *testing.T) {
	store := &fakeMetricsStore{
		daily: map[string]*domain.DailyMetrics{
			"2026-08-30": {Orders: 10, Revenue: 500},
			"2026-08-29": {Orders: 10, Revenue: 1000},
		},
	}
	h := newHandlers(store)

	drafts, err := h.DailyBriefing(context.Background(), briefingJob("2026-08-30"))

	require.NoError(t, err)
	require.Len(t, drafts, 1)
	d := drafts[0]
	assert.Equal(t, "tenant-1", d.TenantID)
	assert.Equal(t, "Daily briefing for 2026-08-30", d.Title)
	assert.Equal(t, "daily-briefing:2026-08-30", d.DedupeKey)
	// Revenue halved, so the briefing escalates.
	assert.Equal(t, domain.PriorityHigh, d.Priority)
	assert.Contains(t, d.Message, "revenue down 50.0%")
}

func TestHandlers_DailyBriefing_SteadyDay(t *testing.T) {
	store := &fakeMetricsStore{
		daily: map[string]*domain.DailyMetrics{
			"2026-08-30": {Orders: 10, Revenue: 1000, Patients: 20, Production: 5},
			"2026-08-29": {Orders: 10, Revenue: 1000, Patients: 20, Production: 5},
		},
	}
	h := newHandlers(store)

	drafts, err := h.DailyBriefing(context.Background(), briefingJob("2026-08-30"))

	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, domain.PriorityMedium, drafts[0].Priority)
	assert.Equal(t, "Metrics are steady versus yesterday.", drafts[0].Message)
}

func TestHandlers_DailyBriefing_InvalidDate(t *testing.T) {
	h := newHandlers(&fakeMetricsStore{})

	_, err := h.DailyBriefing(context.Background(), briefingJob("not-a-date"))

	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestHandlers_DailyBriefing_StoreFailureIsRetryable(t *testing.T) {
	h := newHandlers(&fakeMetricsStore{err: assert.AnError})

	_, err := h.DailyBriefing(context.Background(), briefingJob("2026-08-30"))

	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
}

func TestHandlers_DemandForecast(t *testing.T) {
	store := &fakeMetricsStore{
		usage: []float64{5, 5, 5, 5},
		inventory: []domain.InventoryItem{
			{ProductID: "p1", ProductName: "Zirconia discs", CurrentStock: 15, ReorderThreshold: 20},
		},
	}
	h := newHandlers(store)

	drafts, err := h.DemandForecast(context.Background(), &domain.Job{
		ID:       "job-1",
		TenantID: "tenant-1",
		Payload:  []byte(`{"product_id":"p1"}`),
	})

	require.NoError(t, err)
	require.Len(t, drafts, 1)
	// Three days of cover left at 5/day.
	assert.Equal(t, domain.PriorityCritical, drafts[0].Priority)
	assert.Contains(t, drafts[0].Title, "Zirconia discs")
	assert.Contains(t, drafts[0].Message, "3.0 days")
	assert.Equal(t, "demand-forecast:p1", drafts[0].DedupeKey)
}

func TestHandlers_DemandForecast_AmpleStockIsQuiet(t *testing.T) {
	store := &fakeMetricsStore{
		usage: []float64{1, 1, 1},
		inventory: []domain.InventoryItem{
			{ProductID: "p1", ProductName: "Wax", CurrentStock: 500},
		},
	}
	h := newHandlers(store)

	drafts, err := h.DemandForecast(context.Background(), &domain.Job{
		ID:       "job-1",
		TenantID: "tenant-1",
		Payload:  []byte(`{"product_id":"p1"}`),
	})

	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestHandlers_DemandForecast_MissingProductID(t *testing.T) {
	h := newHandlers(&fakeMetricsStore{})

	_, err := h.DemandForecast(context.Background(), &domain.Job{
		ID:       "job-1",
		TenantID: "tenant-1",
		Payload:  []byte(`{}`),
	})

	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestHandlers_AnomalyScan(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	values := []float64{100, 102, 98, 101, 99, 100, 500}
	samples := make([]domain.MetricSample, len(values))
	for i, v := range values {
		samples[i] = domain.MetricSample{Date: base.AddDate(0, 0, i), Value: v}
	}
	h := newHandlers(&fakeMetricsStore{series: samples})

	drafts, err := h.AnomalyScan(context.Background(), &domain.Job{
		ID:       "job-1",
		TenantID: "tenant-1",
		Payload:  []byte(`{"metric_type":"revenue"}`),
	})

	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, domain.PriorityCritical, drafts[0].Priority)
	assert.Equal(t, "Unusual revenue activity detected", drafts[0].Title)
	assert.Contains(t, drafts[0].Message, "2026-08-07")
	assert.Equal(t, "anomaly:revenue", drafts[0].DedupeKey)
}

func TestHandlers_AnomalyScan_QuietSeries(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	values := []float64{100, 101, 99, 100, 101, 99, 100}
	samples := make([]domain.MetricSample, len(values))
	for i, v := range values {
		samples[i] = domain.MetricSample{Date: base.AddDate(0, 0, i), Value: v}
	}
	h := newHandlers(&fakeMetricsStore{series: samples})

	drafts, err := h.AnomalyScan(context.Background(), &domain.Job{
		ID:       "job-1",
		TenantID: "tenant-1",
		Payload:  []byte(`{"metric_type":"revenue"}`),
	})

	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestHandlers_AnomalyScan_MissingMetricType(t *testing.T) {
	h := newHandlers(&fakeMetricsStore{})

	_, err := h.AnomalyScan(context.Background(), &domain.Job{
		ID:       "job-1",
		TenantID: "tenant-1",
		Payload:  []byte(`{}`),
	})

	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestHandlers_InsightGeneration(t *testing.T) {
	store := &fakeMetricsStore{
		current:  &domain.PeriodSummary{Patients: 70, NoShowRate: 5},
		previous: &domain.PeriodSummary{Patients: 100},
	}
	h := newHandlers(store)

	drafts, err := h.InsightGeneration(context.Background(), &domain.Job{
		ID:       "job-1",
		TenantID: "tenant-1",
	})

	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, domain.PriorityHigh, drafts[0].Priority)
	assert.Equal(t, "Patient volume down", drafts[0].Title)
	assert.Equal(t, "insight:patient", drafts[0].DedupeKey)
}

func TestHandlers_InsightGeneration_NothingToReport(t *testing.T) {
	store := &fakeMetricsStore{
		current:  &domain.PeriodSummary{Patients: 100, NoShowRate: 5},
		previous: &domain.PeriodSummary{Patients: 100},
	}
	h := newHandlers(store)

	drafts, err := h.InsightGeneration(context.Background(), &domain.Job{
		ID:       "job-1",
		TenantID: "tenant-1",
	})

	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestHandlers_ConversationReply(t *testing.T) {
	store := &fakeMetricsStore{
		current: &domain.PeriodSummary{Revenue: 12500.50, Orders: 42},
	}
	h := newHandlers(store)

	drafts, err := h.ConversationReply(context.Background(), &domain.Job{
		ID:       "job-1",
		TenantID: "tenant-1",
		Payload:  []byte(`{"user_id":"u1","message":"how is revenue?"}`),
	})

	require.NoError(t, err)
	require.Len(t, drafts, 1)
	d := drafts[0]
	assert.Equal(t, "u1", d.UserID)
	assert.Equal(t, domain.PriorityLow, d.Priority)
	assert.Equal(t, "Revenue for the current period is 12500.50 across 42 orders.", d.Message)
	// Keyed to the job so every message gets its own answer.
	assert.Equal(t, "conversation:job-1", d.DedupeKey)
}

func TestHandlers_ConversationReply_EmptyMessage(t *testing.T) {
	h := newHandlers(&fakeMetricsStore{})

	_, err := h.ConversationReply(context.Background(), &domain.Job{
		ID:       "job-1",
		TenantID: "tenant-1",
		Payload:  []byte(`{"user_id":"u1"}`),
	})

	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestHandlers_RegisterAll(t *testing.T) {
	r := NewRegistry()
	newHandlers(&fakeMetricsStore{}).RegisterAll(r)

	assert.ElementsMatch(t, []string{
		domain.JobTypeDailyBriefing,
		domain.JobTypeDemandForecast,
		domain.JobTypeAnomalyScan,
		domain.JobTypeInsightGeneration,
		domain.JobTypeConversationReply,
	}, r.Types())
}
