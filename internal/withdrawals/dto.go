package withdrawals

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradebazaar/finance-backend/pkg/db/models"
	"github.com/tradebazaar/finance-backend/pkg/pagination"
)

// CreateInput opens a withdrawal from a wallet toward a bank account.
// Amount is gross; the processing fee is deducted from the payout.
type CreateInput struct {
	OwnerID       uuid.UUID
	WalletID      uuid.UUID
	Amount        decimal.Decimal
	BankReference string
	ActorID       uuid.UUID
}

// WithdrawalList wraps one page of an owner's withdrawal history.
type WithdrawalList struct {
	Withdrawals []models.WithdrawalRequest `json:"withdrawals"`
	Pagination  pagination.Page            `json:"pagination"`
}
