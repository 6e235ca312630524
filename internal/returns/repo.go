package returns

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tradebazaar/finance-backend/pkg/db/models"
	"github.com/tradebazaar/finance-backend/pkg/enums"
	"github.com/tradebazaar/finance-backend/pkg/pagination"
)

// Repository is the persistence surface the lifecycle engine depends on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.ReturnRequest) error
	Find(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	Save(ctx context.Context, request *models.ReturnRequest) error
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.ReturnRequest, int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a returns repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.ReturnRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var request models.ReturnRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// FindForUpdate locks the return row so concurrent transition attempts
// serialize; the loser re-reads a state it can no longer move from.
func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var request models.ReturnRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) Save(ctx context.Context, request *models.ReturnRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

// ListFilters narrows the returns listing.
type ListFilters struct {
	CustomerID *uuid.UUID
	VendorID   *uuid.UUID
	Status     *enums.ReturnStatus
}

func (r *repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.ReturnRequest, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ReturnRequest{})
	if filters.CustomerID != nil {
		query = query.Where("customer_id = ?", *filters.CustomerID)
	}
	if filters.VendorID != nil {
		query = query.Where("vendor_id = ?", *filters.VendorID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []models.ReturnRequest
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
