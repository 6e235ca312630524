package withdrawals

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradebazaar/finance-backend/internal/wallet"
	"github.com/tradebazaar/finance-backend/pkg/db/models"
	"github.com/tradebazaar/finance-backend/pkg/enums"
	"github.com/tradebazaar/finance-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ledger is the slice of the wallet ledger the processor needs. The InTx
// calls keep the hold, release, and debit inside the same transaction as
// the withdrawal status change.
type ledger interface {
	GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)
	HoldInTx(ctx context.Context, tx *gorm.DB, input wallet.HoldInput) error
	ReleaseInTx(ctx context.Context, tx *gorm.DB, input wallet.ReleaseInput) error
	DebitInTx(ctx context.Context, tx *gorm.DB, input wallet.DebitInput) (*models.Transaction, error)
}

// limitChecker validates the withdrawal against the owner's caps.
type limitChecker interface {
	Check(ctx context.Context, ownerID uuid.UUID, operation enums.TransactionType, amount decimal.Decimal) error
}

// scorer runs fraud scoring over a ledger transaction. Settlement calls
// it after the commit; a scoring failure never unwinds the payout.
type scorer interface {
	Evaluate(ctx context.Context, transactionID uuid.UUID) (*models.FraudScore, error)
}

// Repository is the persistence surface the processor depends on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.WithdrawalRequest) error
	Find(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	Save(ctx context.Context, request *models.WithdrawalRequest) error
	BumpAttempts(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, bool, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, params pagination.Params) ([]models.WithdrawalRequest, int64, error)
	ListUnsettled(ctx context.Context, limit int) ([]models.WithdrawalRequest, error)
}
