package returns

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradebazaar/finance-backend/pkg/db/models"
	"github.com/tradebazaar/finance-backend/pkg/pagination"
	"github.com/tradebazaar/finance-backend/pkg/types"
)

// CreateInput opens a return request against a delivered order.
type CreateInput struct {
	OrderID         uuid.UUID
	CustomerID      uuid.UUID
	VendorID        uuid.UUID
	Items           types.ReturnItems
	PrimaryReason   string
	Description     string
	EstimatedRefund decimal.Decimal
	ActorID         uuid.UUID
}

// PickupInput books a courier pickup for an approved return.
type PickupInput struct {
	Date           string
	TimeSlot       string
	Address        string
	CourierPartner string
	ActorID        uuid.UUID
}

// QualityCheckInput records the inspection outcome for a received item.
type QualityCheckInput struct {
	Condition         string
	Notes             string
	RefundEligibility string
	RefundPercentage  int
	AdminDecision     string
	ActorID           uuid.UUID
}

// ReturnList wraps one page of return requests.
type ReturnList struct {
	Returns    []models.ReturnRequest `json:"returns"`
	Pagination pagination.Page        `json:"pagination"`
}
