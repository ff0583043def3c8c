package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/insightlab/analytics-engine/internal/domain"
)

// GetDailyMetrics returns one tenant's snapshot for a single day. A day with
// no samples yields a zero-valued snapshot rather than an error.
func (s *Storage) GetDailyMetrics(ctx context.Context, tenantID string, date time.Time) (*domain.DailyMetrics, error) {
	query := `
		SELECT
			tenant_id,
			sample_date,
			COALESCE(SUM(value) FILTER (WHERE metric_type = 'orders'), 0)     AS orders,
			COALESCE(SUM(value) FILTER (WHERE metric_type = 'revenue'), 0)    AS revenue,
			COALESCE(SUM(value) FILTER (WHERE metric_type = 'patients'), 0)   AS patients,
			COALESCE(SUM(value) FILTER (WHERE metric_type = 'production'), 0) AS production
		FROM metric_samples
		WHERE tenant_id = $1 AND sample_date = $2::date
		GROUP BY tenant_id, sample_date
	`

	var m domain.DailyMetrics
	if err := s.db.GetContext(ctx, &m, query, tenantID, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.DailyMetrics{TenantID: tenantID, Date: date}, nil
		}
		return nil, fmt.Errorf("failed to get daily metrics: %w", err)
	}
	return &m, nil
}

// GetInventorySnapshot returns the tenant's current stock levels.
func (s *Storage) GetInventorySnapshot(ctx context.Context, tenantID string) ([]domain.InventoryItem, error) {
	query := `
		SELECT tenant_id, product_id, product_name, current_stock, reorder_threshold
		FROM inventory_items
		WHERE tenant_id = $1
		ORDER BY product_id
	`

	var items []domain.InventoryItem
	if err := s.db.SelectContext(ctx, &items, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to get inventory snapshot: %w", err)
	}
	return items, nil
}

// GetTimeSeries returns the last N days of one metric, oldest first. Days
// without samples are absent from the result.
func (s *Storage) GetTimeSeries(ctx context.Context, tenantID, metricType string, days int) ([]domain.MetricSample, error) {
	query := `
		SELECT tenant_id, metric_type, sample_date, SUM(value) AS value
		FROM metric_samples
		WHERE tenant_id = $1
		  AND metric_type = $2
		  AND sample_date >= CURRENT_DATE - $3::int
		GROUP BY tenant_id, metric_type, sample_date
		ORDER BY sample_date ASC
	`

	var samples []domain.MetricSample
	if err := s.db.SelectContext(ctx, &samples, query, tenantID, metricType, days); err != nil {
		return nil, fmt.Errorf("failed to get time series: %w", err)
	}
	return samples, nil
}

// GetUsageSeries returns a product's daily consumption over the last N days,
// oldest first, for demand forecasting.
func (s *Storage) GetUsageSeries(ctx context.Context, tenantID, productID string, days int) ([]float64, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0) AS value
		FROM product_usage
		WHERE tenant_id = $1
		  AND product_id = $2
		  AND usage_date >= CURRENT_DATE - $3::int
		GROUP BY usage_date
		ORDER BY usage_date ASC
	`

	var usage []float64
	if err := s.db.SelectContext(ctx, &usage, query, tenantID, productID, days); err != nil {
		return nil, fmt.Errorf("failed to get usage series: %w", err)
	}
	return usage, nil
}

// GetPeriodSummary aggregates a tenant's activity over [start, end).
func (s *Storage) GetPeriodSummary(ctx context.Context, tenantID string, start, end time.Time) (*domain.PeriodSummary, error) {
	query := `
		SELECT
			$1 AS tenant_id,
			COALESCE(SUM(value) FILTER (WHERE metric_type = 'orders'), 0)   AS orders,
			COALESCE(SUM(value) FILTER (WHERE metric_type = 'revenue'), 0)  AS revenue,
			COALESCE(SUM(value) FILTER (WHERE metric_type = 'patients'), 0) AS patients,
			COALESCE((
				SELECT AVG(no_show_rate) FROM appointment_stats
				WHERE tenant_id = $1 AND stat_date >= $2::date AND stat_date < $3::date
			), 0) AS no_show_rate,
			COALESCE((
				SELECT COUNT(*) FROM orders
				WHERE tenant_id = $1 AND status NOT IN ('completed', 'cancelled')
			), 0) AS active_orders
		FROM metric_samples
		WHERE tenant_id = $1 AND sample_date >= $2::date AND sample_date < $3::date
	`

	var summary domain.PeriodSummary
	if err := s.db.GetContext(ctx, &summary, query, tenantID, start, end); err != nil {
		return nil, fmt.Errorf("failed to get period summary: %w", err)
	}
	return &summary, nil
}
