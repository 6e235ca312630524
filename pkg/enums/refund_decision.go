package enums

import "fmt"

// RefundDecision is the outcome an admin records after quality check.
type RefundDecision string

const (
	RefundDecisionApprove RefundDecision = "approve"
	RefundDecisionPartial RefundDecision = "partial"
	RefundDecisionReject  RefundDecision = "reject"
)

var validRefundDecisions = []RefundDecision{
	RefundDecisionApprove,
	RefundDecisionPartial,
	RefundDecisionReject,
}

// String implements fmt.Stringer.
func (d RefundDecision) String() string {
	return string(d)
}

// IsValid reports whether the value is a known RefundDecision.
func (d RefundDecision) IsValid() bool {
	for _, candidate := range validRefundDecisions {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseRefundDecision converts raw input into a RefundDecision.
func ParseRefundDecision(value string) (RefundDecision, error) {
	for _, candidate := range validRefundDecisions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund decision %q", value)
}
