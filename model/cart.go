package model

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/gehhilfe/shopflux/core"
)

const AggregateTypeCart = "Cart"

var (
	ErrCartClosed    = errors.New("cart already checked out")
	ErrEmptyCart     = errors.New("cart is empty")
	ErrItemNotInCart = errors.New("item not in cart")
	ErrBadQuantity   = errors.New("quantity must be positive")
)

// CartItem is an item currently in a cart.
type CartItem struct {
	ProductID string          `json:"productoId"`
	Quantity  int             `json:"cantidad"`
	UnitPrice decimal.Decimal `json:"precioUnitario"`
}

// Cart is an event-sourced shopping cart. Its state is rebuilt by replaying
// its event stream.
type Cart struct {
	core.Root

	UserID     string
	Items      map[string]CartItem
	CheckedOut bool
}

func (c *Cart) Transition(env core.Envelope) {
	switch e := env.Payload.(type) {
	case *CartCreated:
		c.UserID = e.UserID
		c.Items = make(map[string]CartItem)
	case *CartItemAdded:
		item, exists := c.Items[e.ProductID]
		if !exists {
			item = CartItem{ProductID: e.ProductID, UnitPrice: e.UnitPrice}
		}
		item.Quantity += e.Quantity
		item.UnitPrice = e.UnitPrice
		c.Items[e.ProductID] = item
	case *CartItemRemoved:
		item, exists := c.Items[e.ProductID]
		if !exists {
			return
		}
		item.Quantity -= e.Quantity
		if item.Quantity <= 0 {
			delete(c.Items, e.ProductID)
		} else {
			c.Items[e.ProductID] = item
		}
	case *CartCheckedOut:
		c.CheckedOut = true
	}
}

// CreateCart starts a new cart for a user.
func CreateCart(ctx context.Context, cartID, userID string) *Cart {
	cart := &Cart{}
	core.Raise(ctx, cart, &CartCreated{CartID: cartID, UserID: userID})
	return cart
}

func (c *Cart) AddItem(ctx context.Context, productID string, quantity int, unitPrice decimal.Decimal) error {
	if c.CheckedOut {
		return ErrCartClosed
	}
	if quantity <= 0 {
		return ErrBadQuantity
	}
	core.Raise(ctx, c, &CartItemAdded{
		CartID:    c.ID(),
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
	})
	return nil
}

func (c *Cart) RemoveItem(ctx context.Context, productID string, quantity int) error {
	if c.CheckedOut {
		return ErrCartClosed
	}
	if quantity <= 0 {
		return ErrBadQuantity
	}
	if _, exists := c.Items[productID]; !exists {
		return ErrItemNotInCart
	}
	core.Raise(ctx, c, &CartItemRemoved{
		CartID:    c.ID(),
		ProductID: productID,
		Quantity:  quantity,
	})
	return nil
}

func (c *Cart) Checkout(ctx context.Context) error {
	if c.CheckedOut {
		return ErrCartClosed
	}
	if len(c.Items) == 0 {
		return ErrEmptyCart
	}
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	core.Raise(ctx, c, &CartCheckedOut{CartID: c.ID(), Total: total})
	return nil
}

// Events

type CartCreated struct {
	CartID string `json:"carritoId"`
	UserID string `json:"usuarioId"`
}

func (e *CartCreated) AggregateID() string   { return e.CartID }
func (e *CartCreated) AggregateType() string { return AggregateTypeCart }
func (e *CartCreated) EventType() string     { return "CartCreated" }

type CartItemAdded struct {
	CartID    string          `json:"carritoId"`
	ProductID string          `json:"productoId"`
	Quantity  int             `json:"cantidad"`
	UnitPrice decimal.Decimal `json:"precioUnitario"`
}

func (e *CartItemAdded) AggregateID() string   { return e.CartID }
func (e *CartItemAdded) AggregateType() string { return AggregateTypeCart }
func (e *CartItemAdded) EventType() string     { return "CartItemAdded" }

type CartItemRemoved struct {
	CartID    string `json:"carritoId"`
	ProductID string `json:"productoId"`
	Quantity  int    `json:"cantidad"`
}

func (e *CartItemRemoved) AggregateID() string   { return e.CartID }
func (e *CartItemRemoved) AggregateType() string { return AggregateTypeCart }
func (e *CartItemRemoved) EventType() string     { return "CartItemRemoved" }

type CartCheckedOut struct {
	CartID string          `json:"carritoId"`
	Total  decimal.Decimal `json:"total"`
}

func (e *CartCheckedOut) AggregateID() string   { return e.CartID }
func (e *CartCheckedOut) AggregateType() string { return AggregateTypeCart }
func (e *CartCheckedOut) EventType() string     { return "CartCheckedOut" }
