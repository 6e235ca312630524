package limits

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tradebazaar/finance-backend/pkg/db/models"
	"github.com/tradebazaar/finance-backend/pkg/enums"
)

// Repository is the persistence surface the limit enforcer depends on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindLimits(ctx context.Context, ownerID uuid.UUID) (*models.TransactionLimits, error)
	UpsertLimits(ctx context.Context, limits *models.TransactionLimits) error
	SumWithdrawalsSince(ctx context.Context, ownerID uuid.UUID, since time.Time) (decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a limits repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindLimits(ctx context.Context, ownerID uuid.UUID) (*models.TransactionLimits, error) {
	var limits models.TransactionLimits
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&limits).Error
	if err != nil {
		return nil, err
	}
	return &limits, nil
}

func (r *repository) UpsertLimits(ctx context.Context, limits *models.TransactionLimits) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"daily_withdrawal",
				"monthly_withdrawal",
				"minimum_withdrawal",
				"maximum_withdrawal",
				"single_transaction",
				"updated_at",
			}),
		}).
		Create(limits).Error
}

// SumWithdrawalsSince totals the owner's withdrawals inside the rolling
// window. Failed and cancelled requests released their hold, so they do
// not count against the caps.
func (r *repository) SumWithdrawalsSince(ctx context.Context, ownerID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	var raw *string
	err := r.db.WithContext(ctx).
		Model(&models.WithdrawalRequest{}).
		Select("SUM(amount)").
		Where("owner_id = ?", ownerID).
		Where("status NOT IN ?", []enums.WithdrawalStatus{
			enums.WithdrawalStatusFailed,
			enums.WithdrawalStatusCancelled,
		}).
		Where("requested_at >= ?", since).
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}
