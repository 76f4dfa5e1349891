package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gehhilfe/shopflux/core"
	"github.com/gehhilfe/shopflux/dispatch"
	"github.com/gehhilfe/shopflux/model"
)

// writeCommandError maps write-path failures: concurrency conflicts are 409
// (retryable by the client once contention clears), unknown aggregates 404,
// guard violations 400.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case core.IsConcurrency(err):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, core.ErrNoStream):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, model.ErrCartClosed),
		errors.Is(err, model.ErrEmptyCart),
		errors.Is(err, model.ErrItemNotInCart),
		errors.Is(err, model.ErrBadQuantity),
		errors.Is(err, model.ErrBadPrice),
		errors.Is(err, model.ErrStockExceeded):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type createCartDto struct {
	UserID string `json:"usuarioId"`
}

func CreateCartHandler(repo *dispatch.Repository) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		dto := createCartDto{}
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		cart := model.CreateCart(r.Context(), uuid.NewString(), dto.UserID)
		if err := repo.Save(r.Context(), cart); err != nil {
			writeCommandError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"carritoId": cart.ID()})
	}
}

type addItemDto struct {
	ProductID string          `json:"productoId"`
	Quantity  int             `json:"cantidad"`
	UnitPrice decimal.Decimal `json:"precioUnitario"`
}

func AddCartItemHandler(repo *dispatch.Repository) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		dto := addItemDto{}
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		cart := &model.Cart{}
		if err := repo.Get(r.Context(), r.PathValue("id"), cart); err != nil {
			writeCommandError(w, err)
			return
		}
		if err := cart.AddItem(r.Context(), dto.ProductID, dto.Quantity, dto.UnitPrice); err != nil {
			writeCommandError(w, err)
			return
		}
		if err := repo.Save(r.Context(), cart); err != nil {
			writeCommandError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func RemoveCartItemHandler(repo *dispatch.Repository) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		quantity, err := intParam(r, "cantidad", 1)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		cart := &model.Cart{}
		if err := repo.Get(r.Context(), r.PathValue("id"), cart); err != nil {
			writeCommandError(w, err)
			return
		}
		if err := cart.RemoveItem(r.Context(), r.PathValue("productoId"), quantity); err != nil {
			writeCommandError(w, err)
			return
		}
		if err := repo.Save(r.Context(), cart); err != nil {
			writeCommandError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func CheckoutCartHandler(repo *dispatch.Repository) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		cart := &model.Cart{}
		if err := repo.Get(r.Context(), r.PathValue("id"), cart); err != nil {
			writeCommandError(w, err)
			return
		}
		if err := cart.Checkout(r.Context()); err != nil {
			writeCommandError(w, err)
			return
		}
		if err := repo.Save(r.Context(), cart); err != nil {
			writeCommandError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

type createProductDto struct {
	Name     string          `json:"nombre"`
	Category string          `json:"categoria"`
	Price    decimal.Decimal `json:"precio"`
	Stock    int             `json:"stock"`
}

func (d *createProductDto) IsValid() error {
	if d.Name == "" {
		return &invalidFieldError{"nombre"}
	}
	if d.Category == "" {
		return &invalidFieldError{"categoria"}
	}
	return nil
}

func CreateProductHandler(repo *dispatch.Repository) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		dto := createProductDto{}
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		if err := dto.IsValid(); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		product, err := model.CreateProduct(r.Context(), uuid.NewString(), dto.Name, dto.Category, dto.Price, dto.Stock)
		if err != nil {
			writeCommandError(w, err)
			return
		}
		if err := repo.Save(r.Context(), product); err != nil {
			writeCommandError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"productoId": product.ID()})
	}
}

type changePriceDto struct {
	Price decimal.Decimal `json:"precio"`
}

func ChangeProductPriceHandler(repo *dispatch.Repository) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		dto := changePriceDto{}
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		product := &model.Product{}
		if err := repo.Get(r.Context(), r.PathValue("id"), product); err != nil {
			writeCommandError(w, err)
			return
		}
		if err := product.ChangePrice(r.Context(), dto.Price); err != nil {
			writeCommandError(w, err)
			return
		}
		if err := repo.Save(r.Context(), product); err != nil {
			writeCommandError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
