package analytics

import (
	"fmt"
	"sort"

	"github.com/insightlab/analytics-engine/internal/domain"
)

// Insight categories.
const (
	CategoryRevenue    = "revenue"
	CategoryInventory  = "inventory"
	CategoryPatient    = "patient"
	CategoryOperations = "operations"
)

// Insight is one rule-based finding with a recommended action.
type Insight struct {
	Category        string `json:"category"`
	Priority        string `json:"priority"`
	Title           string `json:"title"`
	Recommendation  string `json:"recommendation"`
	ImpactStatement string `json:"impact_statement"`
}

// InsightInput bundles the per-tenant data the rule battery evaluates.
type InsightInput struct {
	RevenueSeries []float64
	Inventory     []domain.InventoryItem
	Current       domain.PeriodSummary
	Previous      domain.PeriodSummary
}

// insightRule produces zero or one insight from the input.
type insightRule func(in InsightInput) *Insight

// The fixed rule battery. Each category contributes at most one insight.
var insightRules = []insightRule{
	revenueInsight,
	inventoryInsight,
	patientInsight,
	operationsInsight,
}

// GenerateInsights runs the rule battery and returns all produced insights
// sorted by priority descending (most urgent first).
func GenerateInsights(in InsightInput) []Insight {
	var out []Insight
	for _, rule := range insightRules {
		if ins := rule(in); ins != nil {
			out = append(out, *ins)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return domain.PriorityRank(out[a].Priority) < domain.PriorityRank(out[b].Priority)
	})
	return out
}

func revenueInsight(in InsightInput) *Insight {
	if len(in.RevenueSeries) < 7 {
		return nil
	}
	slope := TrendSlope(in.RevenueSeries)
	m := Mean(in.RevenueSeries)
	vol := Volatility(in.RevenueSeries)

	if m > 0 && slope < 0 {
		declinePerDay := -slope / m * 100
		if declinePerDay > 1 {
			return &Insight{
				Category:        CategoryRevenue,
				Priority:        domain.PriorityHigh,
				Title:           "Declining revenue trend",
				Recommendation:  "Review pricing, promotions, and customer retention",
				ImpactStatement: fmt.Sprintf("Revenue declining %.1f%% per day over the trailing window", declinePerDay),
			}
		}
	}
	if vol > 0.3 {
		return &Insight{
			Category:        CategoryRevenue,
			Priority:        domain.PriorityMedium,
			Title:           "High revenue volatility",
			Recommendation:  "Stabilize with consistent pricing and booking policies",
			ImpactStatement: fmt.Sprintf("Daily revenue fluctuates by %.0f%% on average", vol*100),
		}
	}
	return nil
}

func inventoryInsight(in InsightInput) *Insight {
	low := 0
	for _, item := range in.Inventory {
		if item.CurrentStock < item.ReorderThreshold {
			low++
		}
	}
	if low == 0 {
		return nil
	}
	priority := domain.PriorityHigh
	if low >= 3 {
		priority = domain.PriorityCritical
	}
	return &Insight{
		Category:        CategoryInventory,
		Priority:        priority,
		Title:           fmt.Sprintf("%d item(s) at stockout risk", low),
		Recommendation:  "Place reorders for items below threshold",
		ImpactStatement: "Stockouts block order fulfilment and delay patient deliveries",
	}
}

func patientInsight(in InsightInput) *Insight {
	if in.Previous.Patients <= 0 {
		return nil
	}
	change := (in.Current.Patients - in.Previous.Patients) / in.Previous.Patients * 100
	if change >= -10 {
		return nil
	}
	return &Insight{
		Category:        CategoryPatient,
		Priority:        domain.PriorityHigh,
		Title:           "Patient volume down",
		Recommendation:  "Activate recall campaigns for lapsed patients",
		ImpactStatement: fmt.Sprintf("Patient volume fell %.1f%% vs the prior period", -change),
	}
}

func operationsInsight(in InsightInput) *Insight {
	if in.Current.NoShowRate <= 10 {
		return nil
	}
	return &Insight{
		Category:        CategoryOperations,
		Priority:        domain.PriorityMedium,
		Title:           "High no-show rate",
		Recommendation:  "Enable appointment reminders 24 hours ahead",
		ImpactStatement: fmt.Sprintf("%.1f%% of appointments end as no-shows", in.Current.NoShowRate),
	}
}
