package model

import "github.com/gehhilfe/shopflux/core"

// RegisterEvents adds every domain event factory to the registry. Called
// once at process start.
func RegisterEvents(reg *core.Registry) {
	reg.Register(
		func() core.Event { return &CartCreated{} },
		func() core.Event { return &CartItemAdded{} },
		func() core.Event { return &CartItemRemoved{} },
		func() core.Event { return &CartCheckedOut{} },
		func() core.Event { return &ProductCreated{} },
		func() core.Event { return &ProductPriceChanged{} },
		func() core.Event { return &ProductStockAdjusted{} },
	)
}
