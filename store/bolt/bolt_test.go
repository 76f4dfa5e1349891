package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gehhilfe/shopflux/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func stored(aggregateID, eventType string) core.StoredEvent {
	return core.StoredEvent{
		EventID:       uuid.New(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: "Cart",
		OccurredOn:    time.Now().UTC(),
		Actor:         core.Actor{UserID: "user-1"},
		Data:          []byte(`{"carritoId":"cart-1"}`),
		Metadata:      []byte("{}"),
	}
}

func collect(t *testing.T, seq func(func(core.StoredEvent, error) bool)) []core.StoredEvent {
	t.Helper()

	var events []core.StoredEvent
	for e, err := range seq {
		require.NoError(t, err)
		events = append(events, e)
	}
	return events
}

func TestSaveSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.db")
	ctx := context.Background()

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "cart-1", []core.StoredEvent{
		stored("cart-1", "CartCreated"),
		stored("cart-1", "CartItemAdded"),
	}, 0))
	require.NoError(t, store.Close())

	store, err = NewStore(path)
	require.NoError(t, err)
	defer store.Close()

	last, err := store.LastVersion(ctx, "cart-1")
	require.NoError(t, err)
	assert.Equal(t, core.Version(2), last)

	stream, err := store.Events(ctx, "cart-1", 0)
	require.NoError(t, err)
	events := collect(t, stream)
	require.Len(t, events, 2)
	assert.Equal(t, "CartCreated", events[0].EventType)
	assert.Equal(t, core.Version(1), events[0].Version)
	assert.Equal(t, "CartItemAdded", events[1].EventType)
	assert.Equal(t, core.Version(2), events[1].Version)
}

func TestSaveRejectsStaleExpectedVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "cart-1", []core.StoredEvent{stored("cart-1", "CartCreated")}, 0))

	err := store.Save(ctx, "cart-1", []core.StoredEvent{stored("cart-1", "CartItemAdded")}, 0)
	require.Error(t, err)

	var conflict *core.ConcurrencyError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, core.Version(0), conflict.Expected)
	assert.Equal(t, core.Version(1), conflict.Actual)
}

func TestAllIsGloballyOrdered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "cart-1", []core.StoredEvent{stored("cart-1", "CartCreated")}, 0))
	require.NoError(t, store.Save(ctx, "cart-2", []core.StoredEvent{stored("cart-2", "CartCreated")}, 0))
	require.NoError(t, store.Save(ctx, "cart-1", []core.StoredEvent{stored("cart-1", "CartCheckedOut")}, 1))

	all, err := store.All(ctx)
	require.NoError(t, err)
	events := collect(t, all)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, uint64(i+1), e.Sequence)
	}
	assert.Equal(t, "cart-1", events[0].AggregateID)
	assert.Equal(t, "cart-2", events[1].AggregateID)
	assert.Equal(t, "CartCheckedOut", events[2].EventType)
}

func TestEventsAfterVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "cart-1", []core.StoredEvent{
		stored("cart-1", "CartCreated"),
		stored("cart-1", "CartItemAdded"),
		stored("cart-1", "CartCheckedOut"),
	}, 0))

	stream, err := store.Events(ctx, "cart-1", 1)
	require.NoError(t, err)
	events := collect(t, stream)
	require.Len(t, events, 2)
	assert.Equal(t, core.Version(2), events[0].Version)
}

func TestEventsUnknownStream(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Events(context.Background(), "missing", 0)
	assert.ErrorIs(t, err, core.ErrNoStream)
}

func TestOnCommitNotifiesUntilUnsubscribed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var got []core.StoredEvent
	unsub := store.OnCommit(func(events []core.StoredEvent) {
		got = append(got, events...)
	})

	require.NoError(t, store.Save(ctx, "cart-1", []core.StoredEvent{stored("cart-1", "CartCreated")}, 0))
	require.Len(t, got, 1)
	assert.Equal(t, core.Version(1), got[0].Version)

	require.NoError(t, unsub.Unsubscribe())
	require.NoError(t, store.Save(ctx, "cart-1", []core.StoredEvent{stored("cart-1", "CartItemAdded")}, 1))
	assert.Len(t, got, 1)
}
