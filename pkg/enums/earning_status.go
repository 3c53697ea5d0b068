package enums

import "fmt"

// EarningStatus tracks a payout entry through the settlement pipeline.
type EarningStatus string

const (
	EarningStatusPending   EarningStatus = "pending"
	EarningStatusProcessed EarningStatus = "processed"
	EarningStatusPaid      EarningStatus = "paid"
)

var validEarningStatuses = []EarningStatus{
	EarningStatusPending,
	EarningStatusProcessed,
	EarningStatusPaid,
}

// IsValid reports whether the value is a known EarningStatus.
func (e EarningStatus) IsValid() bool {
	for _, candidate := range validEarningStatuses {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEarningStatus converts raw input into an EarningStatus.
func ParseEarningStatus(value string) (EarningStatus, error) {
	for _, candidate := range validEarningStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid earning status %q", value)
}
