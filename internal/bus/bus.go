// Package bus provides the in-process event bus that maps business events to
// background job enqueues. Subscribers must only enqueue work; they never run
// analytics inline.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/insightlab/analytics-engine/internal/domain"
)

// Handler consumes one event. A failing handler never affects its siblings
// or the publisher.
type Handler func(ctx context.Context, event domain.Event) error

// Bus is an explicitly constructed in-process pub/sub. Construct one per
// process (or per test) and pass it by reference; there is no package-level
// instance.
type Bus struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[string][]Handler
	faults      atomic.Int64
}

// New creates an empty bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		logger:      logger,
		subscribers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for a topic. Multiple handlers per topic are
// invoked in registration order.
func (b *Bus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], handler)
}

// Publish dispatches an event synchronously to every subscriber of the
// topic. Handler errors and panics are logged with topic/tenant context and
// counted, never returned; Publish itself cannot fail.
func (b *Bus) Publish(ctx context.Context, topic, tenantID string, payload []byte) {
	event := domain.Event{
		ID:        uuid.New().String(),
		Topic:     topic,
		TenantID:  tenantID,
		Payload:   payload,
		EmittedAt: time.Now().UTC(),
	}

	b.mu.RLock()
	handlers := b.subscribers[topic]
	b.mu.RUnlock()

	for i, handler := range handlers {
		if err := b.dispatch(ctx, handler, event); err != nil {
			b.faults.Add(1)
			b.logger.Error("Event handler failed",
				slog.String("topic", topic),
				slog.String("tenant_id", tenantID),
				slog.String("event_id", event.ID),
				slog.Int("handler_index", i),
				slog.String("error", err.Error()),
			)
		}
	}
}

// dispatch runs one handler with panic isolation.
func (b *Bus) dispatch(ctx context.Context, handler Handler, event domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}

// Faults returns the number of handler invocations that failed since the
// bus was constructed. Exposed for the health surface.
func (b *Bus) Faults() int64 {
	return b.faults.Load()
}
