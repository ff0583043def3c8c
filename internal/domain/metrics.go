package domain

import "time"

// Metric types tracked per tenant.
const (
	MetricOrders     = "orders"
	MetricRevenue    = "revenue"
	MetricPatients   = "patients"
	MetricProduction = "production"
)

// MetricSample is a single per-tenant daily observation. Read-only input to
// the analytics engine; owned by the metrics store collaborator.
type MetricSample struct {
	TenantID   string    `db:"tenant_id"`
	MetricType string    `db:"metric_type"`
	Date       time.Time `db:"sample_date"`
	Value      float64   `db:"value"`
}

// DailyMetrics is one tenant's snapshot for a single day.
type DailyMetrics struct {
	TenantID   string    `db:"tenant_id"`
	Date       time.Time `db:"sample_date"`
	Orders     float64   `db:"orders"`
	Revenue    float64   `db:"revenue"`
	Patients   float64   `db:"patients"`
	Production float64   `db:"production"`
}

// InventoryItem is a stock snapshot row for forecasting and briefings.
type InventoryItem struct {
	TenantID         string  `db:"tenant_id"`
	ProductID        string  `db:"product_id"`
	ProductName      string  `db:"product_name"`
	CurrentStock     float64 `db:"current_stock"`
	ReorderThreshold float64 `db:"reorder_threshold"`
}

// PeriodSummary aggregates a tenant's metrics over a date range.
type PeriodSummary struct {
	TenantID     string  `db:"tenant_id"`
	Orders       float64 `db:"orders"`
	Revenue      float64 `db:"revenue"`
	Patients     float64 `db:"patients"`
	NoShowRate   float64 `db:"no_show_rate"`
	ActiveOrders float64 `db:"active_orders"`
}

// Tenant is an isolated customer account.
type Tenant struct {
	ID       string `db:"tenant_id"`
	Name     string `db:"name"`
	Timezone string `db:"timezone"`
	Active   bool   `db:"active"`
}
