package enums

import "fmt"

// WalletKind identifies which purse an owner is operating on.
type WalletKind string

const (
	WalletKindMain      WalletKind = "main"
	WalletKindVendor    WalletKind = "vendor"
	WalletKindAffiliate WalletKind = "affiliate"
	WalletKindCashback  WalletKind = "cashback"
)

var validWalletKinds = []WalletKind{
	WalletKindMain,
	WalletKindVendor,
	WalletKindAffiliate,
	WalletKindCashback,
}

// AllWalletKinds returns every purse type provisioned per owner.
func AllWalletKinds() []WalletKind {
	kinds := make([]WalletKind, len(validWalletKinds))
	copy(kinds, validWalletKinds)
	return kinds
}

// String implements fmt.Stringer.
func (k WalletKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known WalletKind.
func (k WalletKind) IsValid() bool {
	for _, candidate := range validWalletKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseWalletKind converts raw input into a WalletKind.
func ParseWalletKind(value string) (WalletKind, error) {
	for _, candidate := range validWalletKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet kind %q", value)
}
