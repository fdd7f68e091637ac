package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/giftlane/giftlane-backend/api/responses"
	"github.com/giftlane/giftlane-backend/api/validators"
	cartsvc "github.com/giftlane/giftlane-backend/internal/cart"
	"github.com/giftlane/giftlane-backend/pkg/db/models"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/logger"
	"github.com/giftlane/giftlane-backend/pkg/types"
)

type cartAddRequest struct {
	ItemID          uuid.UUID     `json:"item_id" validate:"required"`
	VariantID       *uuid.UUID    `json:"variant_id,omitempty"`
	Quantity        int           `json:"quantity" validate:"required,min=1"`
	AddOns          types.JSONMap `json:"add_ons,omitempty"`
	Personalization bool          `json:"personalization"`
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=0"`
}

type cartLineResponse struct {
	ID              uuid.UUID     `json:"id"`
	ItemID          uuid.UUID     `json:"item_id"`
	VariantID       *uuid.UUID    `json:"variant_id,omitempty"`
	Quantity        int           `json:"quantity"`
	AddOns          types.JSONMap `json:"add_ons,omitempty"`
	Personalization bool          `json:"personalization"`
}

// CartAdd puts an item in the caller's cart, reserving stock for it.
func CartAdd(svc *cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		ownerKey, _, err := ownerKeyFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartAddRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		line, err := svc.Add(r.Context(), cartsvc.AddInput{
			OwnerKey:        ownerKey,
			ItemID:          payload.ItemID,
			VariantID:       payload.VariantID,
			Quantity:        payload.Quantity,
			AddOns:          payload.AddOns,
			Personalization: payload.Personalization,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCartLine(line))
	}
}

// CartUpdateQuantity changes a line's quantity; zero removes the line.
func CartUpdateQuantity(svc *cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		ownerKey, _, err := ownerKeyFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lineID, err := parsePathUUID(chi.URLParam(r, "lineID"), "line id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.UpdateQuantity(r.Context(), ownerKey, lineID, payload.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"line_id": lineID, "quantity": payload.Quantity})
	}
}

// CartRemove deletes a line and releases its stock hold.
func CartRemove(svc *cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		ownerKey, _, err := ownerKeyFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lineID, err := parsePathUUID(chi.URLParam(r, "lineID"), "line id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Remove(r.Context(), ownerKey, lineID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"line_id": lineID, "removed": true})
	}
}

// CartFetch lists the caller's cart lines.
func CartFetch(svc *cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		ownerKey, _, err := ownerKeyFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines, err := svc.List(r.Context(), ownerKey)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]cartLineResponse, 0, len(lines))
		for i := range lines {
			out = append(out, newCartLine(&lines[i]))
		}
		responses.WriteSuccess(w, map[string]any{"lines": out})
	}
}

// CartClear empties the cart and releases every hold behind it.
func CartClear(svc *cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		ownerKey, _, err := ownerKeyFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Clear(r.Context(), ownerKey); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"cleared": true})
	}
}

func newCartLine(line *models.CartItem) cartLineResponse {
	return cartLineResponse{
		ID:              line.ID,
		ItemID:          line.ItemID,
		VariantID:       line.VariantID,
		Quantity:        line.Quantity,
		AddOns:          line.AddOns,
		Personalization: line.Personalization,
	}
}
