package model_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gehhilfe/shopflux/core"
	"github.com/gehhilfe/shopflux/model"
)

func TestCartLifecycle(t *testing.T) {
	ctx := context.Background()

	cart := model.CreateCart(ctx, "cart-1", "user-1")
	assert.Equal(t, "cart-1", cart.ID())
	assert.Equal(t, "user-1", cart.UserID)
	assert.Equal(t, core.Version(1), cart.Version())

	require.NoError(t, cart.AddItem(ctx, "prod-1", 2, decimal.NewFromInt(10)))
	require.NoError(t, cart.AddItem(ctx, "prod-1", 1, decimal.NewFromInt(10)))
	assert.Equal(t, 3, cart.Items["prod-1"].Quantity)

	require.NoError(t, cart.RemoveItem(ctx, "prod-1", 1))
	assert.Equal(t, 2, cart.Items["prod-1"].Quantity)

	require.NoError(t, cart.Checkout(ctx))
	assert.True(t, cart.CheckedOut)
	assert.Len(t, cart.Uncommitted(), 5)
}

func TestRemovingLastUnitDropsItem(t *testing.T) {
	ctx := context.Background()

	cart := model.CreateCart(ctx, "cart-1", "user-1")
	require.NoError(t, cart.AddItem(ctx, "prod-1", 1, decimal.NewFromInt(10)))
	require.NoError(t, cart.RemoveItem(ctx, "prod-1", 1))

	assert.NotContains(t, cart.Items, "prod-1")
}

func TestCartGuards(t *testing.T) {
	ctx := context.Background()
	price := decimal.NewFromInt(10)

	cart := model.CreateCart(ctx, "cart-1", "user-1")

	assert.ErrorIs(t, cart.AddItem(ctx, "prod-1", 0, price), model.ErrBadQuantity)
	assert.ErrorIs(t, cart.AddItem(ctx, "prod-1", -1, price), model.ErrBadQuantity)
	assert.ErrorIs(t, cart.RemoveItem(ctx, "prod-1", 1), model.ErrItemNotInCart)
	assert.ErrorIs(t, cart.Checkout(ctx), model.ErrEmptyCart)

	require.NoError(t, cart.AddItem(ctx, "prod-1", 1, price))
	require.NoError(t, cart.Checkout(ctx))

	// A checked-out cart is closed to every further command.
	assert.ErrorIs(t, cart.AddItem(ctx, "prod-1", 1, price), model.ErrCartClosed)
	assert.ErrorIs(t, cart.RemoveItem(ctx, "prod-1", 1), model.ErrCartClosed)
	assert.ErrorIs(t, cart.Checkout(ctx), model.ErrCartClosed)
}

func TestCheckoutTotal(t *testing.T) {
	ctx := context.Background()

	cart := model.CreateCart(ctx, "cart-1", "user-1")
	require.NoError(t, cart.AddItem(ctx, "prod-1", 2, decimal.RequireFromString("9.99")))
	require.NoError(t, cart.AddItem(ctx, "prod-2", 1, decimal.RequireFromString("0.01")))
	require.NoError(t, cart.Checkout(ctx))

	events := cart.Uncommitted()
	checkedOut, ok := events[len(events)-1].Payload.(*model.CartCheckedOut)
	require.True(t, ok)
	assert.True(t, checkedOut.Total.Equal(decimal.RequireFromString("19.99")),
		"got total %s", checkedOut.Total)
}

func TestFailedCommandRaisesNothing(t *testing.T) {
	ctx := context.Background()

	cart := model.CreateCart(ctx, "cart-1", "user-1")
	before := cart.Version()

	require.Error(t, cart.AddItem(ctx, "prod-1", 0, decimal.NewFromInt(10)))

	assert.Equal(t, before, cart.Version())
	assert.Len(t, cart.Uncommitted(), 1)
}
