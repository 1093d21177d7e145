package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/bookswap/bookswap-backend/api/responses"
	"github.com/bookswap/bookswap-backend/api/validators"
	"github.com/bookswap/bookswap-backend/internal/cart"
	pkgerrors "github.com/bookswap/bookswap-backend/pkg/errors"
	"github.com/bookswap/bookswap-backend/pkg/logger"
)

type cartItemRequest struct {
	ListingID string `json:"listingId" validate:"required,uuid"`
	Quantity  *int   `json:"quantity" validate:"omitempty,min=1,max=1000"`
}

func (c cartItemRequest) quantityOr(fallback int) int {
	if c.Quantity == nil {
		return fallback
	}
	return *c.Quantity
}

// cartUpdateRequest allows zero and negative quantities, which remove the line.
type cartUpdateRequest struct {
	ListingID string `json:"listingId" validate:"required,uuid"`
	Quantity  *int   `json:"quantity" validate:"omitempty,max=1000"`
}

func decodeCartItem(r *http.Request) (uuid.UUID, cartItemRequest, error) {
	var body cartItemRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return uuid.Nil, body, err
	}
	// validate:"uuid" already guarantees a parseable id.
	return uuid.MustParse(body.ListingID), body, nil
}

func CartAdd(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listingID, body, err := decodeCartItem(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.AddItem(r.Context(), caller.UserID, listingID, body.quantityOr(1))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "Item added to cart", map[string]any{
			"cart":       view,
			"totalItems": view.TotalItems,
		})
	}
}

// CartGet returns the caller's cart after dropping lines whose listing is
// gone or out of stock.
func CartGet(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.ReadCart(r.Context(), caller.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartUpdate(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body cartUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.Quantity == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "quantity is required"))
			return
		}
		view, err := svc.UpdateItem(r.Context(), caller.UserID, uuid.MustParse(body.ListingID), *body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "Cart updated", map[string]any{"cart": view})
	}
}

func CartRemove(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listingID, err := uuidParam(r, "listingId", "listing id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.RemoveItem(r.Context(), caller.UserID, listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "Item removed from cart", map[string]any{"cart": view})
	}
}

func CartClear(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Clear(r.Context(), caller.UserID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "Cart cleared", map[string]any{
			"items":      []cart.ItemView{},
			"totalPrice": 0,
			"totalItems": 0,
		})
	}
}
