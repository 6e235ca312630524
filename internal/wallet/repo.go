package wallet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tradebazaar/finance-backend/pkg/db/models"
	"github.com/tradebazaar/finance-backend/pkg/enums"
	"github.com/tradebazaar/finance-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a wallet repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// FindWalletForUpdate takes the per-wallet row lock. Every mutating
// ledger operation goes through this so writes to one wallet serialize
// while other wallets proceed in parallel.
func (r *repository) FindWalletForUpdate(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindOwnerWallets(ctx context.Context, ownerID uuid.UUID) ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("kind ASC").
		Find(&wallets).Error
	if err != nil {
		return nil, err
	}
	return wallets, nil
}

func (r *repository) FindOwnerWallet(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND kind = ?", ownerID, kind).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) CreateWallet(ctx context.Context, wallet *models.Wallet) (*models.Wallet, error) {
	if err := r.db.WithContext(ctx).Create(wallet).Error; err != nil {
		return nil, err
	}
	return wallet, nil
}

func (r *repository) SaveWallet(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Save(wallet).Error
}

func (r *repository) FindTransactionByKey(ctx context.Context, walletID uuid.UUID, idempotencyKey string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ? AND idempotency_key = ?", walletID, idempotencyKey).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *repository) ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params, filters TransactionFilters) ([]models.Transaction, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("wallet_id = ?", walletID)

	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var transactions []models.Transaction
	normalized := params.Normalize()
	err := query.
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(normalized.Limit).
		Find(&transactions).Error
	if err != nil {
		return nil, 0, err
	}
	return transactions, total, nil
}
