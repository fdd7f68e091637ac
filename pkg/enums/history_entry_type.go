package enums

import "fmt"

// HistoryEntryType classifies entries in the order status history ledger.
type HistoryEntryType string

const (
	HistoryEntryStatusChange   HistoryEntryType = "status_change"
	HistoryEntrySystemAction   HistoryEntryType = "system_action"
	HistoryEntryRefundIssued   HistoryEntryType = "refund_issued"
	HistoryEntryRefundFailed   HistoryEntryType = "refund_failed"
	HistoryEntryDispatchFailed HistoryEntryType = "dispatch_failed"
	HistoryEntrySettlement     HistoryEntryType = "settlement"
	HistoryEntryCashback       HistoryEntryType = "cashback"
	HistoryEntryAnomaly        HistoryEntryType = "anomaly"
)

var validHistoryEntryTypes = []HistoryEntryType{
	HistoryEntryStatusChange,
	HistoryEntrySystemAction,
	HistoryEntryRefundIssued,
	HistoryEntryRefundFailed,
	HistoryEntryDispatchFailed,
	HistoryEntrySettlement,
	HistoryEntryCashback,
	HistoryEntryAnomaly,
}

// String implements fmt.Stringer.
func (h HistoryEntryType) String() string {
	return string(h)
}

// IsValid reports whether the value is a known HistoryEntryType.
func (h HistoryEntryType) IsValid() bool {
	for _, candidate := range validHistoryEntryTypes {
		if candidate == h {
			return true
		}
	}
	return false
}

// ParseHistoryEntryType converts raw input into a HistoryEntryType.
func ParseHistoryEntryType(value string) (HistoryEntryType, error) {
	for _, candidate := range validHistoryEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid history entry type %q", value)
}
