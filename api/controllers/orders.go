package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/giftlane/giftlane-backend/api/middleware"
	"github.com/giftlane/giftlane-backend/api/responses"
	"github.com/giftlane/giftlane-backend/api/validators"
	orderssvc "github.com/giftlane/giftlane-backend/internal/orders"
	paymentssvc "github.com/giftlane/giftlane-backend/internal/payments"
	"github.com/giftlane/giftlane-backend/pkg/db/models"
	"github.com/giftlane/giftlane-backend/pkg/enums"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/logger"
	"github.com/giftlane/giftlane-backend/pkg/types"
)

type orderTransitionRequest struct {
	To       string        `json:"to" validate:"required"`
	Reason   string        `json:"reason,omitempty"`
	Metadata types.JSONMap `json:"metadata,omitempty"`
}

type orderCancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Lifecycle moves each role may request through the API. Cancellation and
// refunds go through the dedicated cancel endpoint, and courier-driven moves
// arrive on the courier webhook, so neither appears here.
var transitionTargetsByRole = map[string][]enums.OrderStatus{
	string(enums.ActorRoleCustomer): {
		enums.OrderStatusDetailsReceived,
		enums.OrderStatusRevisionRequested,
		enums.OrderStatusApproved,
	},
	string(enums.ActorRolePartner): {
		enums.OrderStatusConfirmed,
		enums.OrderStatusPreviewReady,
		enums.OrderStatusInProduction,
		enums.OrderStatusPacked,
		enums.OrderStatusDispatched,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
	},
}

// OrdersList returns the caller's orders, newest first.
func OrdersList(svc *orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		ownerKey, _, err := ownerKeyFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.Repo().ListForOwner(r.Context(), ownerKey, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]map[string]any, 0, len(orders))
		for i := range orders {
			out = append(out, orderSummary(&orders[i]))
		}
		responses.WriteSuccess(w, map[string]any{"orders": out})
	}
}

// OrderFetch returns one order with its lines.
func OrderFetch(svc *orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		order, err := loadVisibleOrder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orderDetail(order))
	}
}

// OrderHistory returns the append-only audit trail for an order.
func OrderHistory(svc *orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		order, err := loadVisibleOrder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.Repo().History(r.Context(), order.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]map[string]any, 0, len(entries))
		for i := range entries {
			out = append(out, historyEntry(&entries[i]))
		}
		responses.WriteSuccess(w, map[string]any{"order_id": order.ID, "history": out})
	}
}

// OrderTransition applies a role-gated lifecycle move.
func OrderTransition(svc *orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		order, err := loadVisibleOrder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderTransitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		to, err := enums.ParseOrderStatus(payload.To)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status"))
			return
		}

		role := middleware.RoleFromContext(r.Context())
		if !roleMayRequest(role, to) {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeForbidden, "role may not request this transition").WithDetails(map[string]any{"to": to.String()}))
			return
		}

		updated, err := svc.Transition(r.Context(), orderssvc.TransitionInput{
			OrderID:  order.ID,
			To:       to,
			Actor:    role,
			Reason:   payload.Reason,
			Metadata: payload.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orderSummary(updated))
	}
}

// OrderCancel cancels an order and pushes the paid amount back through the
// gateway and wallet.
func OrderCancel(orders *orderssvc.Service, payments *paymentssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if orders == nil || payments == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		order, err := loadVisibleOrder(r, orders)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderCancelRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role := middleware.RoleFromContext(r.Context())
		if role == "" {
			role = string(enums.ActorRoleCustomer)
		}
		reason := payload.Reason
		if reason == "" {
			reason = "cancelled via api"
		}

		updated, err := payments.CancelWithRefund(r.Context(), order.ID, role, reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orderSummary(updated))
	}
}

func loadVisibleOrder(r *http.Request, svc *orderssvc.Service) (*models.Order, error) {
	orderID, err := parsePathUUID(chi.URLParam(r, "orderID"), "order id")
	if err != nil {
		return nil, err
	}

	order, err := svc.Repo().FindByID(r.Context(), orderID)
	if err != nil {
		return nil, err
	}

	role := middleware.RoleFromContext(r.Context())
	switch role {
	case string(enums.ActorRoleAdmin):
		return order, nil
	case string(enums.ActorRolePartner):
		if middleware.PartnerIDFromContext(r.Context()) == order.PartnerID.String() {
			return order, nil
		}
	default:
		ownerKey, _, err := ownerKeyFromRequest(r)
		if err != nil {
			return nil, err
		}
		if ownerKey == order.OwnerKey {
			return order, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func roleMayRequest(role string, to enums.OrderStatus) bool {
	if role == string(enums.ActorRoleAdmin) {
		return true
	}
	for _, allowed := range transitionTargetsByRole[role] {
		if allowed == to {
			return true
		}
	}
	return false
}

func orderSummary(order *models.Order) map[string]any {
	out := map[string]any{
		"id":              order.ID,
		"order_number":    order.OrderNumber,
		"status":          order.Status,
		"payment_status":  order.PaymentStatus,
		"delivery_mode":   order.DeliveryMode,
		"grand_total":     order.GrandTotal.String(),
		"wallet_applied":  order.WalletApplied.String(),
		"personalization": order.HasPersonalization,
		"created_at":      order.CreatedAt,
	}
	if order.AWB != nil {
		out["awb"] = *order.AWB
	}
	if order.TrackingURL != nil {
		out["tracking_url"] = *order.TrackingURL
	}
	return out
}

func orderDetail(order *models.Order) map[string]any {
	out := orderSummary(order)
	out["subtotal"] = order.Subtotal.String()
	out["tax"] = order.Tax.String()
	out["delivery_fee"] = order.DeliveryFee.String()
	out["platform_fee"] = order.PlatformFee.String()
	out["discount"] = order.Discount.String()
	out["accept_deadline"] = order.AcceptDeadline
	if order.DesignDeadline != nil {
		out["design_deadline"] = *order.DesignDeadline
	}

	items := make([]map[string]any, 0, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		entry := map[string]any{
			"id":         item.ID,
			"item_id":    item.ItemID,
			"name":       item.Name,
			"quantity":   item.Quantity,
			"unit_price": item.UnitPrice.String(),
			"line_total": item.LineTotal.String(),
		}
		if item.Personalization {
			entry["personalization_status"] = item.PersonalizationStatus
		}
		items = append(items, entry)
	}
	out["items"] = items
	return out
}

func historyEntry(entry *models.OrderStatusHistory) map[string]any {
	out := map[string]any{
		"id":         entry.ID,
		"type":       entry.Type,
		"title":      entry.Title,
		"created_at": entry.CreatedAt,
	}
	if entry.Description != "" {
		out["description"] = entry.Description
	}
	if entry.FromStatus != nil {
		out["from_status"] = *entry.FromStatus
	}
	if entry.ToStatus != nil {
		out["to_status"] = *entry.ToStatus
	}
	if entry.Metadata != nil {
		out["metadata"] = entry.Metadata
	}
	return out
}
