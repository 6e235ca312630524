package withdrawals

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

// NewRepository builds a withdrawals repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.WithdrawalRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var request models.WithdrawalRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// FindForUpdate locks the withdrawal row so concurrent settlement
// attempts for the same request serialize.
func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var request models.WithdrawalRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) Save(ctx context.Context, request *models.WithdrawalRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

// BumpAttempts increments the attempt counter only while the request is
// still processing, so a retry loop cannot clobber a settlement that
// landed through the webhook between attempts. The bool reports whether
// the bump took; the refreshed row is returned either way.
func (r *repository) BumpAttempts(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.WithdrawalRequest{}).
		Where("id = ? AND status = ?", id, enums.WithdrawalStatusProcessing).
		UpdateColumn("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return nil, false, res.Error
	}
	request, err := r.Find(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return request, res.RowsAffected > 0, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, params pagination.Params) ([]models.WithdrawalRequest, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.WithdrawalRequest{}).
		Where("owner_id = ?", ownerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []models.WithdrawalRequest
	normalized := params.Normalize()
	err := query.
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(normalized.Limit).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// ListUnsettled returns requests the settlement worker still owes work:
// freshly requested ones and ones stranded mid-processing by a restart.
func (r *repository) ListUnsettled(ctx context.Context, limit int) ([]models.WithdrawalRequest, error) {
	var requests []models.WithdrawalRequest
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.WithdrawalStatus{
			enums.WithdrawalStatusRequested,
			enums.WithdrawalStatusProcessing,
		}).
		Order("requested_at ASC").
		Limit(limit).
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}
