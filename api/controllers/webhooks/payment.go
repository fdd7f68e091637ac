package webhooks

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/giftlane/giftlane-backend/api/responses"
	paymentssvc "github.com/giftlane/giftlane-backend/internal/payments"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/logger"
)

const (
	razorpaySignatureHeader = "X-Razorpay-Signature"
	razorpayEventIDHeader   = "X-Razorpay-Event-Id"

	eventPaymentCaptured = "payment.captured"
)

type signatureVerifier interface {
	VerifyWebhookSignature(body []byte, signature string) bool
}

// razorpayEvent mirrors the slice of the webhook payload we consume.
type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Amount  int64  `json:"amount"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// PaymentWebhook consumes gateway payment events. The signature is checked
// over the raw body before anything is parsed. Once authenticated, replays
// and anomalies acknowledge with 200 so the gateway stops retrying; only
// transient failures return an error status.
func PaymentWebhook(svc *paymentssvc.Service, verifier signatureVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment webhook unavailable"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(razorpaySignatureHeader)
		if signature == "" || !verifier.VerifyWebhookSignature(body, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		var event razorpayEvent
		if err := json.Unmarshal(body, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload"))
			return
		}

		if event.Event != eventPaymentCaptured {
			if logg != nil {
				ctx = logg.WithField(ctx, "event", event.Event)
				logg.Info(ctx, "ignoring unhandled gateway event")
			}
			responses.WriteSuccess(w, map[string]any{"status": "ignored"})
			return
		}

		result, err := svc.ConfirmCapture(ctx, paymentssvc.CaptureEvent{
			EventID:          r.Header.Get(razorpayEventIDHeader),
			GatewayOrderID:   event.Payload.Payment.Entity.OrderID,
			GatewayPaymentID: event.Payload.Payment.Entity.ID,
			AmountMinor:      event.Payload.Payment.Entity.Amount,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		switch {
		case result.Anomaly != "":
			responses.WriteSuccess(w, map[string]any{"status": "anomaly", "detail": result.Anomaly})
		case result.Replay:
			responses.WriteSuccess(w, map[string]any{"status": "replay", "order_id": result.Order.ID})
		default:
			responses.WriteSuccess(w, map[string]any{"status": "created", "order_id": result.Order.ID})
		}
	}
}
