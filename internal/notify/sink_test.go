package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightlab/analytics-engine/internal/domain"
)

type fakeStore struct {
	notifications map[string]*domain.Notification
	seen          map[string]bool
	duplicate     bool
	reads         []string
	dismissals    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		notifications: make(map[string]*domain.Notification),
		seen:          make(map[string]bool),
	}
}

// InsertNotification mirrors the unique index on
// (tenant_id, dedupe_key, day): one row per key per UTC calendar day.
func (f *fakeStore) InsertNotification(ctx context.Context, n *domain.Notification) (bool, error) {
	if f.duplicate {
		return false, nil
	}
	if n.DedupeKey != "" {
		key := n.TenantID + "|" + n.DedupeKey + "|" + DayKey(n.CreatedAt)
		if f.seen[key] {
			return false, nil
		}
		f.seen[key] = true
	}
	f.notifications[n.ID] = n
	return true, nil
}

func (f *fakeStore) GetNotification(ctx context.Context, tenantID, id string) (*domain.Notification, error) {
	n, ok := f.notifications[id]
	if !ok || n.TenantID != tenantID {
		return nil, domain.ErrNotificationNotFound
	}
	return n, nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, tenantID, id string, at time.Time) error {
	f.reads = append(f.reads, id)
	f.notifications[id].ReadAt = &at
	return nil
}

func (f *fakeStore) MarkNotificationDismissed(ctx context.Context, tenantID, id string, at time.Time) error {
	f.dismissals = append(f.dismissals, id)
	f.notifications[id].DismissedAt = &at
	return nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, tenantID, userID string, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range f.notifications {
		if n.TenantID == tenantID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func newTestSink(store Store) *Sink {
	return NewSink(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSink_Create(t *testing.T) {
	store := newFakeStore()
	sink := newTestSink(store)

	n, err := sink.Create(context.Background(), Draft{
		TenantID:  "tenant-1",
		Priority:  domain.PriorityHigh,
		Title:     "Daily briefing",
		Message:   "Revenue up 12%",
		Data:      map[string]any{"revenue": 1200},
		DedupeKey: "daily-briefing:2026-08-30",
	})

	require.NoError(t, err)
	require.NotNil(t, n)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "tenant-1", n.TenantID)
	assert.Equal(t, domain.PriorityHigh, n.Priority)
	assert.JSONEq(t, `{"revenue":1200}`, string(n.Data))
	assert.Nil(t, n.ReadAt)
	assert.Nil(t, n.DismissedAt)
}

func TestSink_Create_Deduplicated(t *testing.T) {
	sink := newTestSink(&fakeStore{duplicate: true})

	n, err := sink.Create(context.Background(), Draft{
		TenantID:  "tenant-1",
		Title:     "Daily briefing",
		DedupeKey: "daily-briefing:2026-08-30",
	})

	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestSink_Create_DedupeResetsEachDay(t *testing.T) {
	store := newFakeStore()
	sink := newTestSink(store)
	day := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	sink.now = func() time.Time { return day }

	draft := Draft{TenantID: "tenant-1", Title: "Daily briefing", DedupeKey: "daily-briefing"}

	first, err := sink.Create(context.Background(), draft)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Same key later the same day collides.
	sink.now = func() time.Time { return day.Add(8 * time.Hour) }
	dup, err := sink.Create(context.Background(), draft)
	require.NoError(t, err)
	assert.Nil(t, dup)

	// The next day opens a fresh bucket.
	sink.now = func() time.Time { return day.AddDate(0, 0, 1) }
	next, err := sink.Create(context.Background(), draft)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.NotEqual(t, first.ID, next.ID)
}

func TestSink_MarkRead(t *testing.T) {
	store := newFakeStore()
	sink := newTestSink(store)
	n, err := sink.Create(context.Background(), Draft{TenantID: "tenant-1", Title: "x"})
	require.NoError(t, err)

	t.Run("unread transitions to read", func(t *testing.T) {
		require.NoError(t, sink.MarkRead(context.Background(), "tenant-1", n.ID))
		assert.Equal(t, []string{n.ID}, store.reads)
	})

	t.Run("already read is a no-op", func(t *testing.T) {
		require.NoError(t, sink.MarkRead(context.Background(), "tenant-1", n.ID))
		assert.Len(t, store.reads, 1)
	})

	t.Run("unknown id", func(t *testing.T) {
		err := sink.MarkRead(context.Background(), "tenant-1", "missing")
		assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
	})

	t.Run("wrong tenant cannot see it", func(t *testing.T) {
		err := sink.MarkRead(context.Background(), "tenant-2", n.ID)
		assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
	})
}

func TestSink_MarkRead_DismissedIsTerminal(t *testing.T) {
	store := newFakeStore()
	sink := newTestSink(store)
	n, err := sink.Create(context.Background(), Draft{TenantID: "tenant-1", Title: "x"})
	require.NoError(t, err)

	require.NoError(t, sink.MarkDismissed(context.Background(), "tenant-1", n.ID))

	err = sink.MarkRead(context.Background(), "tenant-1", n.ID)
	assert.ErrorIs(t, err, domain.ErrNotificationDismissed)
}

func TestSink_MarkDismissed(t *testing.T) {
	store := newFakeStore()
	sink := newTestSink(store)
	n, err := sink.Create(context.Background(), Draft{TenantID: "tenant-1", Title: "x"})
	require.NoError(t, err)

	require.NoError(t, sink.MarkDismissed(context.Background(), "tenant-1", n.ID))

	// Dismissing again is a quiet no-op.
	require.NoError(t, sink.MarkDismissed(context.Background(), "tenant-1", n.ID))
	assert.Len(t, store.dismissals, 1)
}

func TestDayKey(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	at := time.Date(2026, 8, 29, 23, 30, 0, 0, loc)
	assert.Equal(t, "2026-08-30", DayKey(at))
}
