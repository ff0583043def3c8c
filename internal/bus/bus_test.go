package bus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightlab/analytics-engine/internal/domain"
)

func newTestBus() *Bus {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBus_PublishDeliversEvent(t *testing.T) {
	b := newTestBus()

	var got domain.Event
	b.Subscribe("order.created", func(ctx context.Context, event domain.Event) error {
		got = event
		return nil
	})

	b.Publish(context.Background(), "order.created", "tenant-1", []byte(`{"order_id":"o1"}`))

	assert.Equal(t, "order.created", got.Topic)
	assert.Equal(t, "tenant-1", got.TenantID)
	assert.JSONEq(t, `{"order_id":"o1"}`, string(got.Payload))
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.EmittedAt.IsZero())
}

func TestBus_HandlersRunInRegistrationOrder(t *testing.T) {
	b := newTestBus()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		b.Subscribe("metrics.daily_closed", func(ctx context.Context, event domain.Event) error {
			order = append(order, name)
			return nil
		})
	}

	b.Publish(context.Background(), "metrics.daily_closed", "tenant-1", nil)

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestBus_UnknownTopicIsNoOp(t *testing.T) {
	b := newTestBus()

	called := false
	b.Subscribe("order.created", func(ctx context.Context, event domain.Event) error {
		called = true
		return nil
	})

	b.Publish(context.Background(), "inventory.updated", "tenant-1", nil)

	assert.False(t, called)
	assert.Zero(t, b.Faults())
}

func TestBus_FailingHandlerDoesNotBlockSiblings(t *testing.T) {
	b := newTestBus()

	b.Subscribe("metrics.daily_closed", func(ctx context.Context, event domain.Event) error {
		return errors.New("boom")
	})
	delivered := 0
	b.Subscribe("metrics.daily_closed", func(ctx context.Context, event domain.Event) error {
		delivered++
		return nil
	})

	b.Publish(context.Background(), "metrics.daily_closed", "tenant-1", nil)

	assert.Equal(t, 1, delivered)
	assert.Equal(t, int64(1), b.Faults())
}

func TestBus_PanickingHandlerIsIsolated(t *testing.T) {
	b := newTestBus()

	b.Subscribe("conversation.message", func(ctx context.Context, event domain.Event) error {
		panic("handler blew up")
	})
	delivered := 0
	b.Subscribe("conversation.message", func(ctx context.Context, event domain.Event) error {
		delivered++
		return nil
	})

	require.NotPanics(t, func() {
		b.Publish(context.Background(), "conversation.message", "tenant-1", nil)
	})

	assert.Equal(t, 1, delivered)
	assert.Equal(t, int64(1), b.Faults())
}

func TestBus_FaultsAccumulate(t *testing.T) {
	b := newTestBus()

	b.Subscribe("order.created", func(ctx context.Context, event domain.Event) error {
		return errors.New("boom")
	})

	for i := 0; i < 3; i++ {
		b.Publish(context.Background(), "order.created", "tenant-1", nil)
	}

	assert.Equal(t, int64(3), b.Faults())
}
