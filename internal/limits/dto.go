package limits

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradebazaar/finance-backend/pkg/db/models"
)

// UpdateInput carries a partial limits update; nil fields keep the
// owner's current value.
type UpdateInput struct {
	OwnerID           uuid.UUID
	ActorID           uuid.UUID
	DailyWithdrawal   *decimal.Decimal
	MonthlyWithdrawal *decimal.Decimal
	MinimumWithdrawal *decimal.Decimal
	MaximumWithdrawal *decimal.Decimal
	SingleTransaction *decimal.Decimal
}

func (u UpdateInput) applyTo(limits *models.TransactionLimits) {
	if u.DailyWithdrawal != nil {
		limits.DailyWithdrawal = *u.DailyWithdrawal
	}
	if u.MonthlyWithdrawal != nil {
		limits.MonthlyWithdrawal = *u.MonthlyWithdrawal
	}
	if u.MinimumWithdrawal != nil {
		limits.MinimumWithdrawal = *u.MinimumWithdrawal
	}
	if u.MaximumWithdrawal != nil {
		limits.MaximumWithdrawal = *u.MaximumWithdrawal
	}
	if u.SingleTransaction != nil {
		limits.SingleTransaction = *u.SingleTransaction
	}
}
