package fraud

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tradebazaar/finance-backend/pkg/db/models"
	"github.com/tradebazaar/finance-backend/pkg/pagination"
)

// Repository is the persistence surface the fraud scorer depends on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	RecentTransactions(ctx context.Context, walletID uuid.UUID, since time.Time) ([]models.Transaction, error)
	FindScoreByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.FraudScore, error)
	CreateScore(ctx context.Context, score *models.FraudScore) error
	ListReviewQueue(ctx context.Context, params pagination.Params) ([]models.FraudScore, int64, error)
	SaveScore(ctx context.Context, score *models.FraudScore) error
	FindScore(ctx context.Context, id uuid.UUID) (*models.FraudScore, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a fraud repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) RecentTransactions(ctx context.Context, walletID uuid.UUID, since time.Time) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Where("created_at >= ?", since).
		Order("created_at DESC").
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *repository) FindScoreByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.FraudScore, error) {
	var score models.FraudScore
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&score).Error
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// CreateScore is idempotent per transaction; a concurrent duplicate
// insert is silently dropped and the caller re-reads the winner.
func (r *repository) CreateScore(ctx context.Context, score *models.FraudScore) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_id"}},
			DoNothing: true,
		}).
		Create(score).Error
}

func (r *repository) ListReviewQueue(ctx context.Context, params pagination.Params) ([]models.FraudScore, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.FraudScore{}).
		Where("flagged = ? AND reviewed = ?", true, false)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var scores []models.FraudScore
	normalized := params.Normalize()
	err := query.
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(normalized.Limit).
		Find(&scores).Error
	if err != nil {
		return nil, 0, err
	}
	return scores, total, nil
}

func (r *repository) SaveScore(ctx context.Context, score *models.FraudScore) error {
	return r.db.WithContext(ctx).Save(score).Error
}

func (r *repository) FindScore(ctx context.Context, id uuid.UUID) (*models.FraudScore, error) {
	var score models.FraudScore
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&score).Error; err != nil {
		return nil, err
	}
	return &score, nil
}
