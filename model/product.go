package model

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/gehhilfe/shopflux/core"
)

const AggregateTypeProduct = "Product"

var (
	ErrBadPrice      = errors.New("price must not be negative")
	ErrStockExceeded = errors.New("stock adjustment below zero")
)

// Product is an event-sourced catalog product.
type Product struct {
	core.Root

	Name     string
	Category string
	Price    decimal.Decimal
	Stock    int
}

func (p *Product) Transition(env core.Envelope) {
	switch e := env.Payload.(type) {
	case *ProductCreated:
		p.Name = e.Name
		p.Category = e.Category
		p.Price = e.Price
		p.Stock = e.Stock
	case *ProductPriceChanged:
		p.Price = e.NewPrice
	case *ProductStockAdjusted:
		p.Stock += e.Delta
	}
}

// CreateProduct registers a new catalog product.
func CreateProduct(ctx context.Context, productID, name, category string, price decimal.Decimal, stock int) (*Product, error) {
	if price.IsNegative() {
		return nil, ErrBadPrice
	}
	product := &Product{}
	core.Raise(ctx, product, &ProductCreated{
		ProductID: productID,
		Name:      name,
		Category:  category,
		Price:     price,
		Stock:     stock,
	})
	return product, nil
}

func (p *Product) ChangePrice(ctx context.Context, newPrice decimal.Decimal) error {
	if newPrice.IsNegative() {
		return ErrBadPrice
	}
	if newPrice.Equal(p.Price) {
		return nil
	}
	core.Raise(ctx, p, &ProductPriceChanged{
		ProductID: p.ID(),
		OldPrice:  p.Price,
		NewPrice:  newPrice,
	})
	return nil
}

func (p *Product) AdjustStock(ctx context.Context, delta int) error {
	if p.Stock+delta < 0 {
		return ErrStockExceeded
	}
	core.Raise(ctx, p, &ProductStockAdjusted{
		ProductID: p.ID(),
		Delta:     delta,
	})
	return nil
}

// Events

type ProductCreated struct {
	ProductID string          `json:"productoId"`
	Name      string          `json:"nombre"`
	Category  string          `json:"categoria"`
	Price     decimal.Decimal `json:"precio"`
	Stock     int             `json:"stock"`
}

func (e *ProductCreated) AggregateID() string   { return e.ProductID }
func (e *ProductCreated) AggregateType() string { return AggregateTypeProduct }
func (e *ProductCreated) EventType() string     { return "ProductCreated" }

type ProductPriceChanged struct {
	ProductID string          `json:"productoId"`
	OldPrice  decimal.Decimal `json:"precioAnterior"`
	NewPrice  decimal.Decimal `json:"precioNuevo"`
}

func (e *ProductPriceChanged) AggregateID() string   { return e.ProductID }
func (e *ProductPriceChanged) AggregateType() string { return AggregateTypeProduct }
func (e *ProductPriceChanged) EventType() string     { return "ProductPriceChanged" }

type ProductStockAdjusted struct {
	ProductID string `json:"productoId"`
	Delta     int    `json:"ajuste"`
}

func (e *ProductStockAdjusted) AggregateID() string   { return e.ProductID }
func (e *ProductStockAdjusted) AggregateType() string { return AggregateTypeProduct }
func (e *ProductStockAdjusted) EventType() string     { return "ProductStockAdjusted" }
