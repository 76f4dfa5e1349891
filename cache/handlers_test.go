package cache_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gehhilfe/shopflux/cache"
	"github.com/gehhilfe/shopflux/core"
	"github.com/gehhilfe/shopflux/model"
)

func cartEnvelope(payload core.Event) core.Envelope {
	return core.Envelope{
		EventType:     payload.EventType(),
		AggregateID:   payload.AggregateID(),
		AggregateType: payload.AggregateType(),
		Version:       1,
		Payload:       payload,
	}
}

func TestMemoryInvalidate(t *testing.T) {
	mem := cache.NewMemory()
	ctx := context.Background()

	mem.Set("cart:1", []byte("a"))
	mem.Set("carts:user-1", []byte("b"))
	mem.Set("carts:user-2", []byte("c"))

	require.NoError(t, mem.Invalidate(ctx, "cart:1"))
	_, ok := mem.Get("cart:1")
	assert.False(t, ok)

	require.NoError(t, mem.InvalidatePrefix(ctx, "carts:"))
	_, ok = mem.Get("carts:user-1")
	assert.False(t, ok)
	_, ok = mem.Get("carts:user-2")
	assert.False(t, ok)
}

func TestCartInvalidatorEvictsCartKey(t *testing.T) {
	mem := cache.NewMemory()
	mem.Set("cart:cart-1", []byte("view"))
	mem.Set("cart:cart-2", []byte("view"))
	h := cache.NewCartInvalidator(mem)

	env := cartEnvelope(&model.CartItemAdded{CartID: "cart-1", ProductID: "prod-1", Quantity: 1, UnitPrice: decimal.NewFromInt(5)})
	require.NoError(t, h.Handle(context.Background(), env))

	_, ok := mem.Get("cart:cart-1")
	assert.False(t, ok)
	_, ok = mem.Get("cart:cart-2")
	assert.True(t, ok, "other carts stay cached")
}

func TestCheckoutSweepsCartListings(t *testing.T) {
	mem := cache.NewMemory()
	mem.Set("cart:cart-1", []byte("view"))
	mem.Set("carts:user-1", []byte("listing"))
	h := cache.NewCartInvalidator(mem)

	env := cartEnvelope(&model.CartCheckedOut{CartID: "cart-1", Total: decimal.NewFromInt(10)})
	require.NoError(t, h.Handle(context.Background(), env))

	_, ok := mem.Get("cart:cart-1")
	assert.False(t, ok)
	_, ok = mem.Get("carts:user-1")
	assert.False(t, ok)
}

func TestPriceChangeSweepsListingsAndProduct(t *testing.T) {
	mem := cache.NewMemory()
	mem.Set("product:prod-1", []byte("view"))
	mem.Set("products:perifericos", []byte("listing"))
	mem.Set("product:prod-2", []byte("view"))
	h := cache.NewProductInvalidator(mem)

	env := cartEnvelope(&model.ProductPriceChanged{
		ProductID: "prod-1",
		OldPrice:  decimal.NewFromInt(50),
		NewPrice:  decimal.NewFromInt(45),
	})
	require.NoError(t, h.Handle(context.Background(), env))

	_, ok := mem.Get("product:prod-1")
	assert.False(t, ok)
	_, ok = mem.Get("products:perifericos")
	assert.False(t, ok)
	_, ok = mem.Get("product:prod-2")
	assert.True(t, ok)
}

func TestStockAdjustmentEvictsSingleProduct(t *testing.T) {
	mem := cache.NewMemory()
	mem.Set("product:prod-1", []byte("view"))
	mem.Set("products:perifericos", []byte("listing"))
	h := cache.NewProductInvalidator(mem)

	env := cartEnvelope(&model.ProductStockAdjusted{ProductID: "prod-1", Delta: -1})
	require.NoError(t, h.Handle(context.Background(), env))

	_, ok := mem.Get("product:prod-1")
	assert.False(t, ok)
	_, ok = mem.Get("products:perifericos")
	assert.True(t, ok, "stock changes do not touch listings")
}
