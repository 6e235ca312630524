package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionLimits holds the per-owner withdrawal caps the limit
// enforcer consults. Rows are read-mostly; only an explicit limits
// update mutates them.
type TransactionLimits struct {
	OwnerID           uuid.UUID       `gorm:"column:owner_id;type:uuid;primaryKey" json:"owner_id"`
	DailyWithdrawal   decimal.Decimal `gorm:"column:daily_withdrawal;type:numeric(18,2);not null" json:"daily_withdrawal"`
	MonthlyWithdrawal decimal.Decimal `gorm:"column:monthly_withdrawal;type:numeric(18,2);not null" json:"monthly_withdrawal"`
	MinimumWithdrawal decimal.Decimal `gorm:"column:minimum_withdrawal;type:numeric(18,2);not null" json:"minimum_withdrawal"`
	MaximumWithdrawal decimal.Decimal `gorm:"column:maximum_withdrawal;type:numeric(18,2);not null" json:"maximum_withdrawal"`
	SingleTransaction decimal.Decimal `gorm:"column:single_transaction;type:numeric(18,2);not null" json:"single_transaction"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the default naming.
func (TransactionLimits) TableName() string {
	return "transaction_limits"
}
