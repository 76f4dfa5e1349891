package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gehhilfe/shopflux/audit"
	"github.com/gehhilfe/shopflux/core"
	"github.com/gehhilfe/shopflux/dispatch"
	"github.com/gehhilfe/shopflux/model"
	"github.com/gehhilfe/shopflux/store/memory"
)

func newPipeline(t *testing.T) (*dispatch.Repository, core.Store) {
	t.Helper()

	store := memory.NewStore()
	registry := core.NewRegistry()
	model.RegisterEvents(registry)

	d := dispatch.NewDispatcher()
	d.SubscribeAll(audit.NewBridge(store))

	return dispatch.NewRepository(store, registry, d), store
}

func TestSavePersistsAndClearsBuffer(t *testing.T) {
	repo, store := newPipeline(t)
	ctx := context.Background()

	cart := model.CreateCart(ctx, "cart-1", "user-1")
	require.NoError(t, cart.AddItem(ctx, "prod-42", 2, decimal.NewFromInt(10)))

	require.NoError(t, repo.Save(ctx, cart))
	assert.Empty(t, cart.Uncommitted())

	last, err := store.LastVersion(ctx, "cart-1")
	require.NoError(t, err)
	assert.Equal(t, core.Version(2), last)
}

func TestGetRehydratesAggregate(t *testing.T) {
	repo, _ := newPipeline(t)
	ctx := context.Background()

	cart := model.CreateCart(ctx, "cart-1", "user-1")
	require.NoError(t, cart.AddItem(ctx, "prod-42", 2, decimal.NewFromInt(10)))
	require.NoError(t, cart.AddItem(ctx, "prod-42", 1, decimal.NewFromInt(10)))
	require.NoError(t, repo.Save(ctx, cart))

	loaded := &model.Cart{}
	require.NoError(t, repo.Get(ctx, "cart-1", loaded))

	assert.Equal(t, "cart-1", loaded.ID())
	assert.Equal(t, core.Version(3), loaded.Version())
	assert.Equal(t, "user-1", loaded.UserID)
	require.Contains(t, loaded.Items, "prod-42")
	assert.Equal(t, 3, loaded.Items["prod-42"].Quantity)
	assert.Empty(t, loaded.Uncommitted())
}

func TestGetUnknownAggregate(t *testing.T) {
	repo, _ := newPipeline(t)

	err := repo.Get(context.Background(), "missing", &model.Cart{})
	assert.ErrorIs(t, err, core.ErrNoStream)
}

func TestFailedSaveKeepsBuffer(t *testing.T) {
	store := memory.NewStore()
	registry := core.NewRegistry()
	model.RegisterEvents(registry)

	d := dispatch.NewDispatcher()
	d.SubscribeAll(audit.NewBridge(store))
	d.SubscribeAll(dispatch.HandlerFunc(func(ctx context.Context, env core.Envelope) error {
		return errors.New("handler down")
	}))
	repo := dispatch.NewRepository(store, registry, d)

	ctx := context.Background()
	cart := model.CreateCart(ctx, "cart-1", "user-1")

	err := repo.Save(ctx, cart)
	require.Error(t, err)
	assert.Len(t, cart.Uncommitted(), 1, "buffer must survive a failed save")
}

func TestConflictingSavesSurfaceConcurrencyError(t *testing.T) {
	repo, _ := newPipeline(t)
	ctx := context.Background()

	first := model.CreateCart(ctx, "cart-1", "user-1")
	require.NoError(t, repo.Save(ctx, first))

	// Two sessions load the same cart and race their writes.
	a := &model.Cart{}
	require.NoError(t, repo.Get(ctx, "cart-1", a))
	b := &model.Cart{}
	require.NoError(t, repo.Get(ctx, "cart-1", b))

	require.NoError(t, a.AddItem(ctx, "prod-1", 1, decimal.NewFromInt(5)))
	require.NoError(t, b.AddItem(ctx, "prod-2", 1, decimal.NewFromInt(7)))

	require.NoError(t, repo.Save(ctx, a))

	err := repo.Save(ctx, b)
	require.Error(t, err)
	assert.True(t, core.IsConcurrency(err))

	// Reload and retry resolves the conflict.
	retry := &model.Cart{}
	require.NoError(t, repo.Get(ctx, "cart-1", retry))
	require.NoError(t, retry.AddItem(ctx, "prod-2", 1, decimal.NewFromInt(7)))
	require.NoError(t, repo.Save(ctx, retry))
}
