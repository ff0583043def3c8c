package analytics

import (
	"math"
	"sort"
	"time"
)

// MinStdDev is the minimum-variance guard for z-score classification. A
// window whose leave-one-out standard deviation falls below this epsilon is
// treated as constant and produces no anomalies: dividing by a near-zero
// sigma would flag any later movement as an extreme outlier.
const MinStdDev = 1e-6

// Z-score severity thresholds: |z| > 3 critical, |z| > 2 warning.
const (
	zCritical = 3.0
	zWarning  = 2.0
)

// Anomaly severity levels.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// Anomaly is a single flagged observation.
type Anomaly struct {
	Date     time.Time `json:"date"`
	Value    float64   `json:"value"`
	Expected float64   `json:"expected"`
	ZScore   float64   `json:"z_score"`
	Severity string    `json:"severity"`
}

// DetectAnomalies scans a window of daily values and returns the top-k
// anomalies ordered by |z| descending. For each day, mean and standard
// deviation are computed over the window excluding that day, so a single
// outlier does not inflate its own baseline. dates and values must be
// parallel slices.
func DetectAnomalies(dates []time.Time, values []float64, topK int) []Anomaly {
	if len(values) < 3 || len(dates) != len(values) {
		return nil
	}

	var found []Anomaly
	rest := make([]float64, 0, len(values)-1)
	for i, v := range values {
		rest = rest[:0]
		for j, o := range values {
			if j != i {
				rest = append(rest, o)
			}
		}

		sd := StdDev(rest)
		if sd < MinStdDev {
			// Constant baseline: skip rather than divide by ~0.
			continue
		}

		m := Mean(rest)
		z := (v - m) / sd
		abs := math.Abs(z)
		if abs <= zWarning {
			continue
		}

		severity := SeverityWarning
		if abs > zCritical {
			severity = SeverityCritical
		}
		found = append(found, Anomaly{
			Date:     dates[i],
			Value:    v,
			Expected: m,
			ZScore:   z,
			Severity: severity,
		})
	}

	sort.Slice(found, func(a, b int) bool {
		return math.Abs(found[a].ZScore) > math.Abs(found[b].ZScore)
	})
	if topK > 0 && len(found) > topK {
		found = found[:topK]
	}
	return found
}
