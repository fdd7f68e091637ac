package enums

import "fmt"

// OrderStatus tracks the canonical lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPlaced            OrderStatus = "placed"
	OrderStatusConfirmed         OrderStatus = "confirmed"
	OrderStatusDetailsReceived   OrderStatus = "details_received"
	OrderStatusPreviewReady      OrderStatus = "preview_ready"
	OrderStatusRevisionRequested OrderStatus = "revision_requested"
	OrderStatusApproved          OrderStatus = "approved"
	OrderStatusInProduction      OrderStatus = "in_production"
	OrderStatusPacked            OrderStatus = "packed"
	OrderStatusDispatched        OrderStatus = "dispatched"
	OrderStatusOutForDelivery    OrderStatus = "out_for_delivery"
	OrderStatusDelivered         OrderStatus = "delivered"
	OrderStatusCancelled         OrderStatus = "cancelled"
	OrderStatusRefunded          OrderStatus = "refunded"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPlaced,
	OrderStatusConfirmed,
	OrderStatusDetailsReceived,
	OrderStatusPreviewReady,
	OrderStatusRevisionRequested,
	OrderStatusApproved,
	OrderStatusInProduction,
	OrderStatusPacked,
	OrderStatusDispatched,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from this status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
