package orders

import (
	"github.com/giftlane/giftlane-backend/pkg/enums"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
)

// forward holds the forward edges of the lifecycle. CANCELLED and REFUNDED
// are handled separately: both are reachable from any non-terminal status.
var forward = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPlaced:            {enums.OrderStatusConfirmed},
	enums.OrderStatusConfirmed:         {enums.OrderStatusDetailsReceived, enums.OrderStatusInProduction},
	enums.OrderStatusDetailsReceived:   {enums.OrderStatusPreviewReady},
	enums.OrderStatusPreviewReady:      {enums.OrderStatusRevisionRequested, enums.OrderStatusApproved},
	enums.OrderStatusRevisionRequested: {enums.OrderStatusPreviewReady},
	enums.OrderStatusApproved:          {enums.OrderStatusInProduction},
	enums.OrderStatusInProduction:      {enums.OrderStatusPacked},
	enums.OrderStatusPacked:            {enums.OrderStatusDispatched},
	enums.OrderStatusDispatched:        {enums.OrderStatusOutForDelivery},
	enums.OrderStatusOutForDelivery:    {enums.OrderStatusDelivered},
}

// ValidateTransition checks a single lifecycle edge. Orders with
// personalization must pass through the design loop after confirmation;
// orders without it jump straight to production and may never enter the
// design statuses.
func ValidateTransition(current, to enums.OrderStatus, hasPersonalization bool) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	if current.IsTerminal() {
		return stateConflict(current, to)
	}
	if to == enums.OrderStatusCancelled || to == enums.OrderStatusRefunded {
		return nil
	}

	allowed := false
	for _, next := range forward[current] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return stateConflict(current, to)
	}

	if current == enums.OrderStatusConfirmed {
		if hasPersonalization && to == enums.OrderStatusInProduction {
			return stateConflict(current, to)
		}
		if !hasPersonalization && to == enums.OrderStatusDetailsReceived {
			return stateConflict(current, to)
		}
	}
	if !hasPersonalization && isDesignStatus(to) {
		return stateConflict(current, to)
	}
	return nil
}

func isDesignStatus(s enums.OrderStatus) bool {
	switch s {
	case enums.OrderStatusDetailsReceived, enums.OrderStatusPreviewReady,
		enums.OrderStatusRevisionRequested, enums.OrderStatusApproved:
		return true
	default:
		return false
	}
}

func stateConflict(current, to enums.OrderStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid order status transition").
		WithDetails(map[string]any{"from": current.String(), "to": to.String()})
}

// FromCourierStatus maps a courier tracking event to the lifecycle status it
// should advance the order to. Terminal courier failures do not map; they are
// handled as manual-mode follow-ups, not automatic transitions.
func FromCourierStatus(cs enums.CourierStatus) (enums.OrderStatus, bool) {
	switch cs {
	case enums.CourierStatusPickedUp:
		return enums.OrderStatusDispatched, true
	case enums.CourierStatusInTransit:
		return enums.OrderStatusOutForDelivery, true
	case enums.CourierStatusDelivered:
		return enums.OrderStatusDelivered, true
	default:
		return "", false
	}
}
