package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightlab/analytics-engine/internal/domain"
)

func TestDelta(t *testing.T) {
	tests := []struct {
		name      string
		today     float64
		yesterday float64
		wantPct   float64
		wantTrend string
	}{
		{name: "no baseline marks new", today: 120, yesterday: 0, wantPct: 0, wantTrend: TrendNew},
		{name: "growth", today: 110, yesterday: 100, wantPct: 10, wantTrend: TrendUp},
		{name: "decline", today: 80, yesterday: 100, wantPct: -20, wantTrend: TrendDown},
		{name: "unchanged", today: 100, yesterday: 100, wantPct: 0, wantTrend: TrendFlat},
		{name: "zero today with baseline", today: 0, yesterday: 50, wantPct: -100, wantTrend: TrendDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Delta(domain.MetricRevenue, tt.today, tt.yesterday)
			assert.InDelta(t, tt.wantPct, d.DeltaPct, 1e-9)
			assert.Equal(t, tt.wantTrend, d.Trend)
		})
	}
}

func TestBuildBriefing(t *testing.T) {
	today := domain.DailyMetrics{Orders: 12, Revenue: 800, Patients: 20, Production: 5}
	yesterday := domain.DailyMetrics{Orders: 20, Revenue: 1000, Patients: 20, Production: 5}

	b := BuildBriefing(today, yesterday, nil)

	require.Len(t, b.Deltas, 4)
	assert.Equal(t, domain.MetricOrders, b.Deltas[0].Metric)
	assert.Equal(t, TrendDown, b.Deltas[0].Trend)

	// Orders fell 40%, revenue fell 20%: both cross the 10% highlight bar.
	assert.Contains(t, b.Highlights, "orders down 40.0% vs yesterday")
	assert.Contains(t, b.Highlights, "revenue down 20.0% vs yesterday")

	assert.Contains(t, b.Recommendations, "Review underperforming categories and recent pricing changes")
	assert.Contains(t, b.Recommendations, "Order volume dropped sharply; check intake channels and confirm referral partners")
}

func TestBuildBriefing_FirstRecordedDay(t *testing.T) {
	today := domain.DailyMetrics{Revenue: 500}
	b := BuildBriefing(today, domain.DailyMetrics{}, nil)

	for _, d := range b.Deltas {
		assert.Equal(t, TrendNew, d.Trend)
	}
	assert.Contains(t, b.Highlights, "First recorded day for revenue (500)")
	assert.Empty(t, b.Recommendations)
}

func TestBuildBriefing_LowStock(t *testing.T) {
	inventory := []domain.InventoryItem{
		{ProductName: "Zirconia discs", CurrentStock: 2, ReorderThreshold: 5},
		{ProductName: "Impression trays", CurrentStock: 40, ReorderThreshold: 10},
	}
	b := BuildBriefing(domain.DailyMetrics{Revenue: 100}, domain.DailyMetrics{Revenue: 100}, inventory)

	assert.Equal(t, []string{"Zirconia discs"}, b.LowStockItems)
	assert.Contains(t, b.Recommendations, "1 item(s) below reorder threshold; review purchase orders")
}

func TestBriefingPriority(t *testing.T) {
	t.Run("steady day is medium", func(t *testing.T) {
		b := BuildBriefing(domain.DailyMetrics{Revenue: 100}, domain.DailyMetrics{Revenue: 100}, nil)
		assert.Equal(t, domain.PriorityMedium, BriefingPriority(b))
	})

	t.Run("revenue drop escalates", func(t *testing.T) {
		b := BuildBriefing(domain.DailyMetrics{Revenue: 50}, domain.DailyMetrics{Revenue: 100}, nil)
		assert.Equal(t, domain.PriorityHigh, BriefingPriority(b))
	})

	t.Run("low stock escalates", func(t *testing.T) {
		inventory := []domain.InventoryItem{{ProductName: "Wax", CurrentStock: 1, ReorderThreshold: 3}}
		b := BuildBriefing(domain.DailyMetrics{Revenue: 100}, domain.DailyMetrics{Revenue: 100}, inventory)
		assert.Equal(t, domain.PriorityHigh, BriefingPriority(b))
	})
}
