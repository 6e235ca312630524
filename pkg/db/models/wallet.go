package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradebazaar/finance-backend/pkg/enums"
)

// Wallet is one purse held by an owner. The ledger keeps the invariant
// Balance == AvailableBalance + PendingAmount + FrozenAmount at every
// observable point; AvailableBalance never goes below zero.
type Wallet struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerID          uuid.UUID        `gorm:"column:owner_id;type:uuid;not null;index:idx_wallets_owner_kind,unique" json:"owner_id"`
	Kind             enums.WalletKind `gorm:"column:kind;type:wallet_kind_enum;not null;index:idx_wallets_owner_kind,unique" json:"kind"`
	Balance          decimal.Decimal  `gorm:"column:balance;type:numeric(18,2);not null" json:"balance"`
	AvailableBalance decimal.Decimal  `gorm:"column:available_balance;type:numeric(18,2);not null" json:"available_balance"`
	PendingAmount    decimal.Decimal  `gorm:"column:pending_amount;type:numeric(18,2);not null" json:"pending_amount"`
	FrozenAmount     decimal.Decimal  `gorm:"column:frozen_amount;type:numeric(18,2);not null" json:"frozen_amount"`
	CreditLimit      *decimal.Decimal `gorm:"column:credit_limit;type:numeric(18,2)" json:"credit_limit,omitempty"`
	UsedCredit       *decimal.Decimal `gorm:"column:used_credit;type:numeric(18,2)" json:"used_credit,omitempty"`
	Currency         enums.Currency   `gorm:"column:currency;type:varchar(3);not null;default:INR" json:"currency"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the default naming.
func (Wallet) TableName() string {
	return "wallets"
}
