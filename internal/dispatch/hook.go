package dispatch

import (
	"context"

	"github.com/giftlane/giftlane-backend/pkg/db/models"
	"github.com/giftlane/giftlane-backend/pkg/enums"
)

// Hook books a courier pickup whenever an order enters PACKED. Booking runs
// off the caller's request because the retry delays are long; the caller's
// cancellation must not abort a booking already underway.
type Hook struct {
	svc *Service
}

func NewHook(svc *Service) *Hook {
	return &Hook{svc: svc}
}

func (h *Hook) AfterTransition(ctx context.Context, order *models.Order, _, to enums.OrderStatus) {
	if to != enums.OrderStatusPacked {
		return
	}
	go func() {
		detached := context.WithoutCancel(ctx)
		if _, err := h.svc.Dispatch(detached, order.ID); err != nil {
			h.svc.logg.Error(detached, "dispatch after packing failed", err)
		}
	}()
}
