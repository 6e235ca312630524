package enums

import "fmt"

// WithdrawalStatus is the settlement position of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalStatusRequested  WithdrawalStatus = "requested"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
	WithdrawalStatusCancelled  WithdrawalStatus = "cancelled"
)

var validWithdrawalStatuses = []WithdrawalStatus{
	WithdrawalStatusRequested,
	WithdrawalStatusProcessing,
	WithdrawalStatusCompleted,
	WithdrawalStatusFailed,
	WithdrawalStatusCancelled,
}

// String implements fmt.Stringer.
func (s WithdrawalStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further settlement activity is possible.
func (s WithdrawalStatus) IsTerminal() bool {
	switch s {
	case WithdrawalStatusCompleted, WithdrawalStatusFailed, WithdrawalStatusCancelled:
		return true
	}
	return false
}

// IsValid reports whether the value is a known WithdrawalStatus.
func (s WithdrawalStatus) IsValid() bool {
	for _, candidate := range validWithdrawalStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseWithdrawalStatus converts raw input into a WithdrawalStatus.
func ParseWithdrawalStatus(value string) (WithdrawalStatus, error) {
	for _, candidate := range validWithdrawalStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid withdrawal status %q", value)
}
