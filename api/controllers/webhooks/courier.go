package webhooks

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/giftlane/giftlane-backend/api/responses"
	"github.com/giftlane/giftlane-backend/api/validators"
	orderssvc "github.com/giftlane/giftlane-backend/internal/orders"
	"github.com/giftlane/giftlane-backend/pkg/enums"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/logger"
	"github.com/giftlane/giftlane-backend/pkg/types"
)

const courierTokenHeader = "X-Courier-Token"

type courierEventRequest struct {
	ClientOrderID string        `json:"order_id" validate:"required"`
	AWB           string        `json:"awb,omitempty"`
	Status        string        `json:"status" validate:"required"`
	Location      string        `json:"location,omitempty"`
	Metadata      types.JSONMap `json:"metadata,omitempty"`
}

// CourierWebhook maps courier tracking pushes onto the order lifecycle.
// Unknown statuses and out-of-order deliveries acknowledge with 200; the
// courier retries on anything else and these events cannot be acted on.
func CourierWebhook(svc *orderssvc.Service, token string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "courier webhook unavailable"))
			return
		}

		if token == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "courier webhook disabled"))
			return
		}
		presented := strings.TrimSpace(r.Header.Get(courierTokenHeader))
		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid courier token"))
			return
		}

		var payload courierEventRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status, err := enums.ParseCourierStatus(payload.Status)
		if err != nil {
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{"client_order_id": payload.ClientOrderID, "courier_status": payload.Status})
				logg.Warn(ctx, "unrecognized courier status acknowledged")
			}
			responses.WriteSuccess(w, map[string]any{"status": "ignored"})
			return
		}

		meta := payload.Metadata
		if payload.Location != "" {
			if meta == nil {
				meta = types.JSONMap{}
			}
			meta["location"] = payload.Location
		}

		order, err := svc.ApplyCourierEvent(ctx, payload.ClientOrderID, status, meta)
		if err != nil {
			// A repeated or out-of-order push loses the status swap. That
			// is the normal shape of courier retries, so acknowledge it.
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				responses.WriteSuccess(w, map[string]any{"status": "ignored"})
				return
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"status": "applied", "order_id": order.ID, "order_status": order.Status})
	}
}
