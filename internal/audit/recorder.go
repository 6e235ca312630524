package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradebazaar/finance-backend/pkg/db/models"
	"github.com/tradebazaar/finance-backend/pkg/pagination"
)

// Entry is the write-side shape for one audit record.
type Entry struct {
	EntityType string
	EntityID   uuid.UUID
	Action     string
	ActorID    uuid.UUID
	Detail     map[string]any
}

// Recorder appends audit entries inside the caller's transaction so the
// trail commits or rolls back together with the state change it records.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
}

// Reader exposes the trail to admin collaborators.
type Reader interface {
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*EntryList, error)
}

// ListFilters narrows the audit listing.
type ListFilters struct {
	EntityType string
	EntityID   *uuid.UUID
}

// EntryList wraps one page of audit entries.
type EntryList struct {
	Entries    []models.AuditEntry `json:"entries"`
	Pagination pagination.Page     `json:"pagination"`
}

type recorder struct {
	db *gorm.DB
}

// NewRecorder builds the append-only audit store.
func NewRecorder(db *gorm.DB) Recorder {
	return &recorder{db: db}
}

func (r *recorder) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	if entry.EntityType == "" || entry.Action == "" {
		return fmt.Errorf("audit entry requires entity type and action")
	}
	conn := r.db
	if tx != nil {
		conn = tx
	}

	var detail json.RawMessage
	if len(entry.Detail) > 0 {
		raw, err := json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("marshal audit detail: %w", err)
		}
		detail = raw
	}

	row := models.AuditEntry{
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		ActorID:    entry.ActorID,
		Detail:     detail,
	}
	return conn.WithContext(ctx).Create(&row).Error
}

type reader struct {
	db *gorm.DB
}

// NewReader builds the read-side audit listing.
func NewReader(db *gorm.DB) Reader {
	return &reader{db: db}
}

func (r *reader) List(ctx context.Context, filters ListFilters, params pagination.Params) (*EntryList, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditEntry{})
	if filters.EntityType != "" {
		query = query.Where("entity_type = ?", filters.EntityType)
	}
	if filters.EntityID != nil {
		query = query.Where("entity_id = ?", *filters.EntityID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var entries []models.AuditEntry
	normalized := params.Normalize()
	err := query.
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(normalized.Limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	return &EntryList{
		Entries:    entries,
		Pagination: pagination.PageOf(params, total),
	}, nil
}
