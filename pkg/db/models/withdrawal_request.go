package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradebazaar/finance-backend/pkg/enums"
)

// WithdrawalRequest tracks a payout from availableBalance to a bank.
// Creation moves the amount into the wallet's pending hold; terminal
// states either settle the debit or release the hold intact.
type WithdrawalRequest struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	WalletID      uuid.UUID              `gorm:"column:wallet_id;type:uuid;not null;index" json:"wallet_id"`
	OwnerID       uuid.UUID              `gorm:"column:owner_id;type:uuid;not null;index" json:"owner_id"`
	Amount        decimal.Decimal        `gorm:"column:amount;type:numeric(18,2);not null" json:"amount"`
	Fee           decimal.Decimal        `gorm:"column:fee;type:numeric(18,2);not null" json:"fee"`
	BankReference string                 `gorm:"column:bank_reference;type:text;not null" json:"bank_reference"`
	Status        enums.WithdrawalStatus `gorm:"column:status;type:withdrawal_status_enum;not null" json:"status"`
	Attempts      int                    `gorm:"column:attempts;not null;default:0" json:"attempts"`
	FailureReason *string                `gorm:"column:failure_reason;type:text" json:"failure_reason,omitempty"`
	RequestedAt   time.Time              `gorm:"column:requested_at;not null" json:"requested_at"`
	CompletedAt   *time.Time             `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the default naming.
func (WithdrawalRequest) TableName() string {
	return "withdrawal_requests"
}

// NetAmount is the payout after the processing fee.
func (w WithdrawalRequest) NetAmount() decimal.Decimal {
	return w.Amount.Sub(w.Fee)
}
