package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/giftlane/giftlane-backend/api/responses"
	"github.com/giftlane/giftlane-backend/api/validators"
	checkoutsvc "github.com/giftlane/giftlane-backend/internal/checkout"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/logger"
)

type checkoutBeginRequest struct {
	AddressID  uuid.UUID `json:"address_id" validate:"required"`
	DistanceKm string    `json:"distance_km,omitempty"`
	CouponCode *string   `json:"coupon_code,omitempty"`
	UseWallet  bool      `json:"use_wallet"`
	GSTIN      *string   `json:"gstin,omitempty"`
}

type checkoutBeginResponse struct {
	DraftOrderID   uuid.UUID `json:"draft_order_id"`
	GatewayOrderID string    `json:"gateway_order_id"`
	GatewayKeyID   string    `json:"gateway_key_id,omitempty"`
	AmountMinor    int64     `json:"amount_minor"`
	Subtotal       string    `json:"subtotal"`
	Tax            string    `json:"tax"`
	DeliveryFee    string    `json:"delivery_fee"`
	PlatformFee    string    `json:"platform_fee"`
	Discount       string    `json:"discount"`
	WalletApplied  string    `json:"wallet_applied"`
	GrandTotal     string    `json:"grand_total"`
}

type gatewayKeyer interface {
	KeyID() string
}

// CheckoutBegin prices the cart and opens a gateway order for it.
func CheckoutBegin(svc *checkoutsvc.Service, keys gatewayKeyer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		ownerKey, userID, err := ownerKeyFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutBeginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		distance := decimal.Zero
		if payload.DistanceKm != "" {
			distance, err = decimal.NewFromString(payload.DistanceKm)
			if err != nil || distance.IsNegative() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "distance_km must be a non-negative number"))
				return
			}
		}

		result, err := svc.Begin(r.Context(), checkoutsvc.BeginInput{
			OwnerKey:   ownerKey,
			UserID:     userID,
			AddressID:  payload.AddressID,
			DistanceKm: distance,
			CouponCode: payload.CouponCode,
			UseWallet:  payload.UseWallet,
			GSTIN:      payload.GSTIN,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := checkoutBeginResponse{
			DraftOrderID:   result.DraftOrderID,
			GatewayOrderID: result.GatewayOrderID,
			AmountMinor:    result.AmountMinor,
			Subtotal:       result.Quote.Subtotal.String(),
			Tax:            result.Quote.Tax.String(),
			DeliveryFee:    result.Quote.DeliveryFee.String(),
			PlatformFee:    result.Quote.PlatformFee.String(),
			Discount:       result.Quote.Discount.String(),
			WalletApplied:  result.Quote.WalletApplied.String(),
			GrandTotal:     result.Quote.GrandTotal.String(),
		}
		if keys != nil {
			out.GatewayKeyID = keys.KeyID()
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}
