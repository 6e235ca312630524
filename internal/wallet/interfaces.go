package wallet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradebazaar/finance-backend/pkg/db/models"
	"github.com/tradebazaar/finance-backend/pkg/enums"
	"github.com/tradebazaar/finance-backend/pkg/pagination"
)

// Repository is the persistence surface the ledger service depends on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	FindWalletForUpdate(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	FindOwnerWallets(ctx context.Context, ownerID uuid.UUID) ([]models.Wallet, error)
	FindOwnerWallet(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*models.Wallet, error)
	CreateWallet(ctx context.Context, wallet *models.Wallet) (*models.Wallet, error)
	SaveWallet(ctx context.Context, wallet *models.Wallet) error
	FindTransactionByKey(ctx context.Context, walletID uuid.UUID, idempotencyKey string) (*models.Transaction, error)
	CreateTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params, filters TransactionFilters) ([]models.Transaction, int64, error)
}
