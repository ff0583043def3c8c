package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightlab/analytics-engine/internal/domain"
)

func TestGenerateInsights_QuietPeriod(t *testing.T) {
	in := InsightInput{
		RevenueSeries: []float64{100, 101, 100, 99, 100, 101, 100},
		Current:       domain.PeriodSummary{Patients: 50, NoShowRate: 5},
		Previous:      domain.PeriodSummary{Patients: 50},
	}
	assert.Empty(t, GenerateInsights(in))
}

func TestGenerateInsights_RevenueDecline(t *testing.T) {
	in := InsightInput{
		RevenueSeries: []float64{100, 95, 90, 85, 80, 75, 70},
	}
	got := GenerateInsights(in)

	require.Len(t, got, 1)
	assert.Equal(t, CategoryRevenue, got[0].Category)
	assert.Equal(t, domain.PriorityHigh, got[0].Priority)
	assert.Equal(t, "Declining revenue trend", got[0].Title)
}

func TestGenerateInsights_RevenueVolatility(t *testing.T) {
	in := InsightInput{
		RevenueSeries: []float64{100, 300, 50, 250, 50, 300, 100},
	}
	got := GenerateInsights(in)

	require.Len(t, got, 1)
	assert.Equal(t, CategoryRevenue, got[0].Category)
	assert.Equal(t, domain.PriorityMedium, got[0].Priority)
	assert.Equal(t, "High revenue volatility", got[0].Title)
}

func TestGenerateInsights_ShortRevenueSeriesSkipped(t *testing.T) {
	in := InsightInput{RevenueSeries: []float64{100, 10, 300}}
	assert.Empty(t, GenerateInsights(in))
}

func TestGenerateInsights_Inventory(t *testing.T) {
	lowItem := func(name string) domain.InventoryItem {
		return domain.InventoryItem{ProductName: name, CurrentStock: 1, ReorderThreshold: 5}
	}

	t.Run("one low item is high priority", func(t *testing.T) {
		got := GenerateInsights(InsightInput{Inventory: []domain.InventoryItem{lowItem("Wax")}})
		require.Len(t, got, 1)
		assert.Equal(t, CategoryInventory, got[0].Category)
		assert.Equal(t, domain.PriorityHigh, got[0].Priority)
		assert.Equal(t, "1 item(s) at stockout risk", got[0].Title)
	})

	t.Run("three low items escalate to critical", func(t *testing.T) {
		inv := []domain.InventoryItem{lowItem("Wax"), lowItem("Resin"), lowItem("Discs")}
		got := GenerateInsights(InsightInput{Inventory: inv})
		require.Len(t, got, 1)
		assert.Equal(t, domain.PriorityCritical, got[0].Priority)
	})
}

func TestGenerateInsights_PatientDrop(t *testing.T) {
	in := InsightInput{
		Current:  domain.PeriodSummary{Patients: 70},
		Previous: domain.PeriodSummary{Patients: 100},
	}
	got := GenerateInsights(in)

	require.Len(t, got, 1)
	assert.Equal(t, CategoryPatient, got[0].Category)
	assert.Equal(t, "Patient volume down", got[0].Title)
}

func TestGenerateInsights_NoShowRate(t *testing.T) {
	in := InsightInput{
		Current: domain.PeriodSummary{NoShowRate: 18},
	}
	got := GenerateInsights(in)

	require.Len(t, got, 1)
	assert.Equal(t, CategoryOperations, got[0].Category)
	assert.Equal(t, domain.PriorityMedium, got[0].Priority)
}

func TestGenerateInsights_SortedByPriority(t *testing.T) {
	inv := []domain.InventoryItem{
		{ProductName: "Wax", CurrentStock: 0, ReorderThreshold: 5},
		{ProductName: "Resin", CurrentStock: 0, ReorderThreshold: 5},
		{ProductName: "Discs", CurrentStock: 0, ReorderThreshold: 5},
	}
	in := InsightInput{
		Inventory: inv,
		Current:   domain.PeriodSummary{NoShowRate: 20},
	}
	got := GenerateInsights(in)

	require.Len(t, got, 2)
	assert.Equal(t, domain.PriorityCritical, got[0].Priority)
	assert.Equal(t, domain.PriorityMedium, got[1].Priority)
}
