package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradebazaar/finance-backend/pkg/db/models"
	"github.com/tradebazaar/finance-backend/pkg/enums"
	"github.com/tradebazaar/finance-backend/pkg/pagination"
)

// CreditInput moves money into a wallet. IdempotencyKey makes retries
// return the original transaction instead of applying twice.
type CreditInput struct {
	WalletID       uuid.UUID
	Amount         decimal.Decimal
	Fee            decimal.Decimal
	Tax            decimal.Decimal
	Reference      string
	Description    string
	IdempotencyKey string
	ActorID        uuid.UUID
}

// DebitInput moves money out of a wallet's available balance.
type DebitInput struct {
	WalletID       uuid.UUID
	Amount         decimal.Decimal
	Fee            decimal.Decimal
	Tax            decimal.Decimal
	Reference      string
	Description    string
	IdempotencyKey string
	ActorID        uuid.UUID
}

// HoldInput reserves available funds without finalizing a debit.
type HoldInput struct {
	WalletID uuid.UUID
	Amount   decimal.Decimal
	ActorID  uuid.UUID
	Reason   string
}

// ReleaseInput returns previously held funds to the available balance.
type ReleaseInput struct {
	WalletID uuid.UUID
	Amount   decimal.Decimal
	ActorID  uuid.UUID
	Reason   string
}

// TransactionFilters narrow the transaction history listing.
type TransactionFilters struct {
	Type     *enums.TransactionType
	DateFrom *time.Time
	DateTo   *time.Time
}

// TransactionList wraps one page of ledger history.
type TransactionList struct {
	Transactions []models.Transaction `json:"transactions"`
	Pagination   pagination.Page      `json:"pagination"`
}
