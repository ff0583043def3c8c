package queue

import (
	"math/rand"
	"time"
)

// Retry backoff defaults: 5s base, doubled per attempt, capped.
const (
	DefaultBackoffBase = 5 * time.Second
	DefaultBackoffCap  = 5 * time.Minute
)

// Backoff returns the delay before redelivering a job that failed on the
// given attempt (1-based): exponential doubling from base up to cap, with
// full jitter so retry storms from simultaneous failures spread out.
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if cap <= 0 {
		cap = DefaultBackoffCap
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cap {
			delay = cap
			break
		}
	}

	// Full jitter over [delay/2, delay].
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
