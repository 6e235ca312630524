package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one append-only record of a state change across the
// ledger, withdrawals, and returns. Rows are never updated or deleted.
type AuditEntry struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	EntityType string          `gorm:"column:entity_type;type:text;not null;index:idx_audit_entity" json:"entity_type"`
	EntityID   uuid.UUID       `gorm:"column:entity_id;type:uuid;not null;index:idx_audit_entity" json:"entity_id"`
	Action     string          `gorm:"column:action;type:text;not null" json:"action"`
	ActorID    uuid.UUID       `gorm:"column:actor_id;type:uuid" json:"actor_id"`
	Detail     json.RawMessage `gorm:"column:detail;type:jsonb" json:"detail,omitempty"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName overrides the default naming.
func (AuditEntry) TableName() string {
	return "audit_entries"
}
