package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradebazaar/finance-backend/pkg/enums"
	"github.com/tradebazaar/finance-backend/pkg/types"
)

// ReturnRequest is the aggregate the return lifecycle engine owns. Status
// is the state-machine position; every transition appends to Timeline.
// At most one Refund is ever attached.
type ReturnRequest struct {
	ID              uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID         uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	CustomerID      uuid.UUID                 `gorm:"column:customer_id;type:uuid;not null;index" json:"customer_id"`
	VendorID        uuid.UUID                 `gorm:"column:vendor_id;type:uuid;not null;index" json:"vendor_id"`
	Items           types.ReturnItems         `gorm:"column:items;type:jsonb;not null" json:"items"`
	PrimaryReason   string                    `gorm:"column:primary_reason;type:text;not null" json:"primary_reason"`
	Description     string                    `gorm:"column:description;type:text" json:"description,omitempty"`
	EstimatedRefund decimal.Decimal           `gorm:"column:estimated_refund;type:numeric(18,2);not null" json:"estimated_refund"`
	Status          enums.ReturnStatus        `gorm:"column:status;type:return_status_enum;not null" json:"status"`
	Pickup          *types.PickupSchedule     `gorm:"column:pickup;type:jsonb" json:"pickup,omitempty"`
	QualityCheck    *types.QualityCheckResult `gorm:"column:quality_check;type:jsonb" json:"quality_check,omitempty"`
	Refund          *types.RefundRecord       `gorm:"column:refund;type:jsonb" json:"refund,omitempty"`
	Timeline        types.Timeline            `gorm:"column:timeline;type:jsonb;not null" json:"timeline"`
	CreatedAt       time.Time                 `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                 `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the default naming.
func (ReturnRequest) TableName() string {
	return "return_requests"
}
