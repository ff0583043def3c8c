package analytics

import (
	"fmt"

	"github.com/insightlab/analytics-engine/internal/domain"
)

// Trend arrows for metric deltas.
const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendFlat = "flat"
	// TrendNew marks a metric with no prior-day baseline (yesterday == 0).
	TrendNew = "new"
)

// MetricDelta is a single metric's day-over-day movement.
type MetricDelta struct {
	Metric    string  `json:"metric"`
	Today     float64 `json:"today"`
	Yesterday float64 `json:"yesterday"`
	DeltaPct  float64 `json:"delta_pct"`
	Trend     string  `json:"trend"`
}

// Briefing is the computed daily briefing for one tenant.
type Briefing struct {
	Deltas          []MetricDelta `json:"deltas"`
	Highlights      []string      `json:"highlights"`
	Recommendations []string      `json:"recommendations"`
	LowStockItems   []string      `json:"low_stock_items"`
}

// Delta computes the day-over-day percentage change. A zero baseline maps to
// the "new" trend sentinel instead of dividing by zero.
func Delta(metric string, today, yesterday float64) MetricDelta {
	d := MetricDelta{Metric: metric, Today: today, Yesterday: yesterday}
	if yesterday == 0 {
		d.Trend = TrendNew
		return d
	}
	d.DeltaPct = (today - yesterday) / yesterday * 100
	switch {
	case d.DeltaPct > 0:
		d.Trend = TrendUp
	case d.DeltaPct < 0:
		d.Trend = TrendDown
	default:
		d.Trend = TrendFlat
	}
	return d
}

// BuildBriefing computes deltas for the standard metric set and derives
// highlight and recommendation strings from threshold rules.
func BuildBriefing(today, yesterday domain.DailyMetrics, inventory []domain.InventoryItem) Briefing {
	b := Briefing{
		Deltas: []MetricDelta{
			Delta(domain.MetricOrders, today.Orders, yesterday.Orders),
			Delta(domain.MetricRevenue, today.Revenue, yesterday.Revenue),
			Delta(domain.MetricPatients, today.Patients, yesterday.Patients),
			Delta(domain.MetricProduction, today.Production, yesterday.Production),
		},
	}

	for _, d := range b.Deltas {
		switch {
		case d.Trend == TrendNew:
			b.Highlights = append(b.Highlights, fmt.Sprintf("First recorded day for %s (%.0f)", d.Metric, d.Today))
		case d.DeltaPct >= 10:
			b.Highlights = append(b.Highlights, fmt.Sprintf("%s up %.1f%% vs yesterday", d.Metric, d.DeltaPct))
		case d.DeltaPct <= -10:
			b.Highlights = append(b.Highlights, fmt.Sprintf("%s down %.1f%% vs yesterday", d.Metric, -d.DeltaPct))
		}

		if d.Metric == domain.MetricRevenue && d.Trend == TrendDown && d.DeltaPct < -10 {
			b.Recommendations = append(b.Recommendations, "Review underperforming categories and recent pricing changes")
		}
		if d.Metric == domain.MetricOrders && d.Trend == TrendDown && d.DeltaPct < -20 {
			b.Recommendations = append(b.Recommendations, "Order volume dropped sharply; check intake channels and confirm referral partners")
		}
	}

	for _, item := range inventory {
		if item.CurrentStock < item.ReorderThreshold {
			b.LowStockItems = append(b.LowStockItems, item.ProductName)
		}
	}
	if len(b.LowStockItems) > 0 {
		b.Recommendations = append(b.Recommendations,
			fmt.Sprintf("%d item(s) below reorder threshold; review purchase orders", len(b.LowStockItems)))
	}

	return b
}

// BriefingPriority derives the notification priority for a briefing: low
// stock or a double-digit revenue drop escalates it.
func BriefingPriority(b Briefing) string {
	for _, d := range b.Deltas {
		if d.Metric == domain.MetricRevenue && d.Trend == TrendDown && d.DeltaPct < -10 {
			return domain.PriorityHigh
		}
	}
	if len(b.LowStockItems) > 0 {
		return domain.PriorityHigh
	}
	return domain.PriorityMedium
}
