package cache

import (
	"context"
	"errors"
	"log/slog"

	slogctx "github.com/veqryn/slog-context"

	"github.com/gehhilfe/shopflux/core"
	"github.com/gehhilfe/shopflux/model"
)

// CartInvalidator evicts cached cart views when a cart changes. It is
// registered for the cart event types only; the dispatcher runs it
// concurrently with the audit bridge, so an eviction failure never blocks
// the audit write.
type CartInvalidator struct {
	cache Invalidator
}

func NewCartInvalidator(cache Invalidator) *CartInvalidator {
	return &CartInvalidator{cache: cache}
}

// EventTypes lists the concrete event types this handler subscribes to.
func (h *CartInvalidator) EventTypes() []string {
	return []string{"CartCreated", "CartItemAdded", "CartItemRemoved", "CartCheckedOut"}
}

func (h *CartInvalidator) Handle(ctx context.Context, env core.Envelope) error {
	logger := slogctx.FromCtx(ctx)
	logger.Debug("evicting cart cache", slog.String("cart_id", env.AggregateID))

	err := h.cache.Invalidate(ctx, "cart:"+env.AggregateID)

	// A checkout also invalidates the user's cart listing.
	if _, ok := env.Payload.(*model.CartCheckedOut); ok {
		err = errors.Join(err, h.cache.InvalidatePrefix(ctx, "carts:"))
	}
	return err
}

// ProductInvalidator evicts cached product views and listings when the
// catalog changes. Creating a product or changing a price affects every
// category listing, so those sweep the listing prefix rather than one key.
type ProductInvalidator struct {
	cache Invalidator
}

func NewProductInvalidator(cache Invalidator) *ProductInvalidator {
	return &ProductInvalidator{cache: cache}
}

func (h *ProductInvalidator) EventTypes() []string {
	return []string{"ProductCreated", "ProductPriceChanged", "ProductStockAdjusted"}
}

func (h *ProductInvalidator) Handle(ctx context.Context, env core.Envelope) error {
	logger := slogctx.FromCtx(ctx)
	logger.Debug("evicting product cache", slog.String("product_id", env.AggregateID))

	switch env.Payload.(type) {
	case *model.ProductCreated:
		return h.cache.InvalidatePrefix(ctx, "products:")
	case *model.ProductPriceChanged:
		return errors.Join(
			h.cache.Invalidate(ctx, "product:"+env.AggregateID),
			h.cache.InvalidatePrefix(ctx, "products:"),
		)
	default:
		return h.cache.Invalidate(ctx, "product:"+env.AggregateID)
	}
}
