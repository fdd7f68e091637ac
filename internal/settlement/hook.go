package settlement

import (
	"context"

	"github.com/giftlane/giftlane-backend/pkg/db/models"
	"github.com/giftlane/giftlane-backend/pkg/enums"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
)

// Hook settles orders as they enter DELIVERED, whether the transition came
// from the partner API or the courier webhook.
type Hook struct {
	svc *Service
}

func NewHook(svc *Service) *Hook {
	return &Hook{svc: svc}
}

func (h *Hook) AfterTransition(ctx context.Context, order *models.Order, _, to enums.OrderStatus) {
	if to != enums.OrderStatusDelivered {
		return
	}
	if _, err := h.svc.Settle(ctx, order.ID); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeIdempotency) {
			return
		}
		h.svc.logg.Error(ctx, "settlement after delivery failed", err)
	}
}
