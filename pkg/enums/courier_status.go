package enums

import "fmt"

// CourierStatus is the small enum of courier-side delivery states accepted on
// the courier webhook. Unrecognized values are acknowledged and ignored at the
// boundary, so ParseCourierStatus failure is not an error condition there.
type CourierStatus string

const (
	CourierStatusPickedUp  CourierStatus = "picked_up"
	CourierStatusInTransit CourierStatus = "in_transit"
	CourierStatusDelivered CourierStatus = "delivered"
	CourierStatusCancelled CourierStatus = "cancelled"
	CourierStatusFailed    CourierStatus = "failed"
)

var validCourierStatuses = []CourierStatus{
	CourierStatusPickedUp,
	CourierStatusInTransit,
	CourierStatusDelivered,
	CourierStatusCancelled,
	CourierStatusFailed,
}

// String implements fmt.Stringer.
func (c CourierStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CourierStatus.
func (c CourierStatus) IsValid() bool {
	for _, candidate := range validCourierStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCourierStatus converts raw input into a CourierStatus.
func ParseCourierStatus(value string) (CourierStatus, error) {
	for _, candidate := range validCourierStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("unrecognized courier status %q", value)
}
