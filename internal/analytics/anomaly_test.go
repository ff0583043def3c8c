package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func days(n int) []time.Time {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = base.AddDate(0, 0, i)
	}
	return out
}

func TestDetectAnomalies(t *testing.T) {
	t.Run("too few points", func(t *testing.T) {
		assert.Nil(t, DetectAnomalies(days(2), []float64{1, 2}, 5))
	})

	t.Run("mismatched slices", func(t *testing.T) {
		assert.Nil(t, DetectAnomalies(days(3), []float64{1, 2}, 5))
	})

	t.Run("steady series produces nothing", func(t *testing.T) {
		values := []float64{100, 101, 99, 100, 101, 99, 100}
		assert.Empty(t, DetectAnomalies(days(len(values)), values, 5))
	})

	t.Run("constant baseline with one jump is skipped", func(t *testing.T) {
		// Excluding the jump, the remaining window is constant; excluding any
		// other day, the jump inflates sigma enough that |z| stays under 2.
		values := []float64{1000, 1000, 1000, 1000, 1000, 1000, 2560}
		assert.Empty(t, DetectAnomalies(days(len(values)), values, 5))
	})

	t.Run("spike against a noisy baseline", func(t *testing.T) {
		values := []float64{100, 102, 98, 101, 99, 100, 500}
		got := DetectAnomalies(days(len(values)), values, 5)

		require.Len(t, got, 1)
		assert.Equal(t, 500.0, got[0].Value)
		assert.Equal(t, SeverityCritical, got[0].Severity)
		assert.Greater(t, got[0].ZScore, zCritical)
		assert.InDelta(t, 100.0, got[0].Expected, 1.0)
	})

	t.Run("negative spike carries a negative z", func(t *testing.T) {
		values := []float64{100, 102, 98, 101, 99, 100, 5}
		got := DetectAnomalies(days(len(values)), values, 5)

		require.Len(t, got, 1)
		assert.Equal(t, 5.0, got[0].Value)
		assert.Less(t, got[0].ZScore, -zCritical)
	})

	t.Run("two spikes ranked by magnitude", func(t *testing.T) {
		values := []float64{100, 102, 98, 101, 99, 100, 97, 103, 101, 99, 550, 700}
		got := DetectAnomalies(days(len(values)), values, 0)

		require.Len(t, got, 2)
		assert.Equal(t, 700.0, got[0].Value)
		assert.Equal(t, SeverityCritical, got[0].Severity)
		assert.Equal(t, 550.0, got[1].Value)
		assert.Equal(t, SeverityWarning, got[1].Severity)
	})

	t.Run("top-k keeps the most extreme", func(t *testing.T) {
		values := []float64{100, 102, 98, 101, 99, 100, 97, 103, 101, 99, 550, 700}
		got := DetectAnomalies(days(len(values)), values, 1)

		require.Len(t, got, 1)
		assert.Equal(t, 700.0, got[0].Value)
	})
}
