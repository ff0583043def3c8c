package analytics

import "math"

// DefaultAlpha is the exponential smoothing level parameter.
const DefaultAlpha = 0.3

// Forecast urgency levels.
const (
	UrgencyCritical = "critical"
	UrgencyWarning  = "warning"
	UrgencyNormal   = "normal"
)

// RunoutInfinite is the sentinel for products with no measurable usage:
// current stock never runs out at a zero consumption rate.
const RunoutInfinite = -1

// DemandForecast projects constant-rate consumption for one product from its
// smoothed trailing usage.
type DemandForecast struct {
	ProductID       string  `json:"product_id"`
	ProductName     string  `json:"product_name"`
	SmoothedUsage   float64 `json:"smoothed_daily_usage"`
	CurrentStock    float64 `json:"current_stock"`
	DaysToRunout    float64 `json:"days_to_runout"`
	Urgency         string  `json:"urgency"`
	ReorderQuantity float64 `json:"reorder_quantity"`
}

// ExponentialSmoothing applies simple exponential smoothing:
// S_0 = x_0, S_t = alpha*x_t + (1-alpha)*S_{t-1}.
// Returns nil for an empty series.
func ExponentialSmoothing(data []float64, alpha float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	result := make([]float64, len(data))
	result[0] = data[0]
	for i := 1; i < len(data); i++ {
		result[i] = alpha*data[i] + (1-alpha)*result[i-1]
	}
	return result
}

// ForecastDemand computes days-to-runout and a reorder quantity from a
// trailing usage series. targetDaysOfCover is how many days of smoothed
// usage the reorder should restore.
func ForecastDemand(productID, productName string, usage []float64, currentStock, targetDaysOfCover, alpha float64) DemandForecast {
	f := DemandForecast{
		ProductID:    productID,
		ProductName:  productName,
		CurrentStock: currentStock,
		Urgency:      UrgencyNormal,
		DaysToRunout: RunoutInfinite,
	}

	smoothed := ExponentialSmoothing(usage, alpha)
	if len(smoothed) == 0 {
		return f
	}
	f.SmoothedUsage = smoothed[len(smoothed)-1]

	if f.SmoothedUsage <= 0 {
		// No consumption: runout undefined, nothing to reorder.
		return f
	}

	f.DaysToRunout = currentStock / f.SmoothedUsage
	switch {
	case f.DaysToRunout <= 7:
		f.Urgency = UrgencyCritical
	case f.DaysToRunout <= 14:
		f.Urgency = UrgencyWarning
	}

	f.ReorderQuantity = math.Max(0, targetDaysOfCover*f.SmoothedUsage-currentStock)
	return f
}
