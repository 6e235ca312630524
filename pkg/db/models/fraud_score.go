package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tradebazaar/finance-backend/pkg/enums"
)

// FraudScore is one risk evaluation of a ledger transaction. Flagged
// scores land in the review queue; they never block the movement.
type FraudScore struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TransactionID uuid.UUID       `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex" json:"transaction_id"`
	OwnerID       uuid.UUID       `gorm:"column:owner_id;type:uuid;not null;index" json:"owner_id"`
	Score         float64         `gorm:"column:score;not null" json:"score"`
	RiskLevel     enums.RiskLevel `gorm:"column:risk_level;type:risk_level_enum;not null" json:"risk_level"`
	Flagged       bool            `gorm:"column:flagged;not null" json:"flagged"`
	Reasons       pq.StringArray  `gorm:"column:reasons;type:text[]" json:"reasons"`
	Reviewed      bool            `gorm:"column:reviewed;not null;default:false" json:"reviewed"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName overrides the default naming.
func (FraudScore) TableName() string {
	return "fraud_scores"
}
