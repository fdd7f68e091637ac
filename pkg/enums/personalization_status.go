package enums

import "fmt"

// PersonalizationStatus is the per-item sub-state for custom text/art items.
// It is orthogonal to the parent order's status: the order machine only asks
// whether every personalized item is resolved.
type PersonalizationStatus string

const (
	PersonalizationStatusNone              PersonalizationStatus = "none"
	PersonalizationStatusPendingDetails    PersonalizationStatus = "pending_details"
	PersonalizationStatusDetailsReceived   PersonalizationStatus = "details_received"
	PersonalizationStatusPreviewReady      PersonalizationStatus = "preview_ready"
	PersonalizationStatusRevisionRequested PersonalizationStatus = "revision_requested"
	PersonalizationStatusApproved          PersonalizationStatus = "approved"
)

var validPersonalizationStatuses = []PersonalizationStatus{
	PersonalizationStatusNone,
	PersonalizationStatusPendingDetails,
	PersonalizationStatusDetailsReceived,
	PersonalizationStatusPreviewReady,
	PersonalizationStatusRevisionRequested,
	PersonalizationStatusApproved,
}

// String implements fmt.Stringer.
func (p PersonalizationStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PersonalizationStatus.
func (p PersonalizationStatus) IsValid() bool {
	for _, candidate := range validPersonalizationStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsResolved reports whether the item no longer blocks production.
func (p PersonalizationStatus) IsResolved() bool {
	return p == PersonalizationStatusNone || p == PersonalizationStatusApproved
}

// ParsePersonalizationStatus converts raw input into a PersonalizationStatus.
func ParsePersonalizationStatus(value string) (PersonalizationStatus, error) {
	for _, candidate := range validPersonalizationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid personalization status %q", value)
}
