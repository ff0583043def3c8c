package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_JitterRange(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{name: "first attempt", attempt: 1, want: 5 * time.Second},
		{name: "second attempt doubles", attempt: 2, want: 10 * time.Second},
		{name: "fourth attempt", attempt: 4, want: 40 * time.Second},
		{name: "zero attempt treated as first", attempt: 0, want: 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 50; i++ {
				got := Backoff(tt.attempt, 5*time.Second, 5*time.Minute)
				assert.GreaterOrEqual(t, got, tt.want/2)
				assert.LessOrEqual(t, got, tt.want)
			}
		})
	}
}

func TestBackoff_Cap(t *testing.T) {
	for i := 0; i < 50; i++ {
		got := Backoff(30, 5*time.Second, 5*time.Minute)
		assert.GreaterOrEqual(t, got, 150*time.Second)
		assert.LessOrEqual(t, got, 5*time.Minute)
	}
}

func TestBackoff_Defaults(t *testing.T) {
	got := Backoff(1, 0, 0)
	assert.GreaterOrEqual(t, got, DefaultBackoffBase/2)
	assert.LessOrEqual(t, got, DefaultBackoffBase)
}
