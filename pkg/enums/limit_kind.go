package enums

import "fmt"

// LimitKind names which transaction cap a check tripped.
type LimitKind string

const (
	LimitKindSingleTransaction LimitKind = "single_transaction"
	LimitKindMaximumWithdrawal LimitKind = "maximum_withdrawal"
	LimitKindDailyWithdrawal   LimitKind = "daily_withdrawal"
	LimitKindMonthlyWithdrawal LimitKind = "monthly_withdrawal"
	LimitKindMinimumWithdrawal LimitKind = "minimum_withdrawal"
)

var validLimitKinds = []LimitKind{
	LimitKindSingleTransaction,
	LimitKindMaximumWithdrawal,
	LimitKindDailyWithdrawal,
	LimitKindMonthlyWithdrawal,
	LimitKindMinimumWithdrawal,
}

// String implements fmt.Stringer.
func (k LimitKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known LimitKind.
func (k LimitKind) IsValid() bool {
	for _, candidate := range validLimitKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseLimitKind converts raw input into a LimitKind.
func ParseLimitKind(value string) (LimitKind, error) {
	for _, candidate := range validLimitKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid limit kind %q", value)
}
