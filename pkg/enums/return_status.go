package enums

import "fmt"

// ReturnStatus is the state-machine position of a return request.
type ReturnStatus string

const (
	ReturnStatusRequested             ReturnStatus = "requested"
	ReturnStatusApproved              ReturnStatus = "approved"
	ReturnStatusPickupScheduled       ReturnStatus = "pickup_scheduled"
	ReturnStatusPickedUp              ReturnStatus = "picked_up"
	ReturnStatusReceived              ReturnStatus = "received"
	ReturnStatusQualityCheck          ReturnStatus = "quality_check"
	ReturnStatusQualityCheckCompleted ReturnStatus = "quality_check_completed"
	ReturnStatusRefunded              ReturnStatus = "refunded"
	ReturnStatusRejected              ReturnStatus = "rejected"
	ReturnStatusCancelled             ReturnStatus = "cancelled"
)

var validReturnStatuses = []ReturnStatus{
	ReturnStatusRequested,
	ReturnStatusApproved,
	ReturnStatusPickupScheduled,
	ReturnStatusPickedUp,
	ReturnStatusReceived,
	ReturnStatusQualityCheck,
	ReturnStatusQualityCheckCompleted,
	ReturnStatusRefunded,
	ReturnStatusRejected,
	ReturnStatusCancelled,
}

// String implements fmt.Stringer.
func (s ReturnStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the return can no longer move.
func (s ReturnStatus) IsTerminal() bool {
	switch s {
	case ReturnStatusRefunded, ReturnStatusRejected, ReturnStatusCancelled:
		return true
	}
	return false
}

// IsValid reports whether the value is a known ReturnStatus.
func (s ReturnStatus) IsValid() bool {
	for _, candidate := range validReturnStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReturnStatus converts raw input into a ReturnStatus.
func ParseReturnStatus(value string) (ReturnStatus, error) {
	for _, candidate := range validReturnStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return status %q", value)
}
