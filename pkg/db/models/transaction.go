package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradebazaar/finance-backend/pkg/enums"
)

// Transaction is one immutable ledger row. IdempotencyKey is unique per
// wallet; replaying a command with the same key returns the prior row
// instead of applying the movement twice.
type Transaction struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	WalletID       uuid.UUID               `gorm:"column:wallet_id;type:uuid;not null;index;index:idx_transactions_wallet_key,unique" json:"wallet_id"`
	Type           enums.TransactionType   `gorm:"column:type;type:transaction_type_enum;not null" json:"type"`
	Amount         decimal.Decimal         `gorm:"column:amount;type:numeric(18,2);not null" json:"amount"`
	Fee            decimal.Decimal         `gorm:"column:fee;type:numeric(18,2);not null" json:"fee"`
	Tax            decimal.Decimal         `gorm:"column:tax;type:numeric(18,2);not null" json:"tax"`
	BalanceAfter   decimal.Decimal         `gorm:"column:balance_after;type:numeric(18,2);not null" json:"balance_after"`
	Status         enums.TransactionStatus `gorm:"column:status;type:transaction_status_enum;not null" json:"status"`
	Reference      string                  `gorm:"column:reference;type:text;not null" json:"reference"`
	Description    string                  `gorm:"column:description;type:text" json:"description,omitempty"`
	IdempotencyKey string                  `gorm:"column:idempotency_key;type:text;not null;index:idx_transactions_wallet_key,unique" json:"idempotency_key"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName overrides the default naming.
func (Transaction) TableName() string {
	return "transactions"
}
