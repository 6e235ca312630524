package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReturnItem is one order line item included in a return request.
type ReturnItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// ReturnItems stores the item list as a jsonb column.
type ReturnItems []ReturnItem

// Value marshals the item list for storage.
func (r ReturnItems) Value() (driver.Value, error) {
	return jsonValue(r)
}

// Scan decodes the stored jsonb payload.
func (r *ReturnItems) Scan(value any) error {
	return jsonScan(value, r)
}

// PickupSchedule is attached when a courier pickup is booked.
type PickupSchedule struct {
	Date           string    `json:"date"`
	TimeSlot       string    `json:"time_slot"`
	Address        string    `json:"address"`
	CourierPartner string    `json:"courier_partner"`
	TrackingNumber string    `json:"tracking_number"`
	ScheduledBy    uuid.UUID `json:"scheduled_by"`
	ScheduledAt    time.Time `json:"scheduled_at"`
}

// Value marshals the pickup schedule for storage.
func (p PickupSchedule) Value() (driver.Value, error) {
	return jsonValue(p)
}

// Scan decodes the stored jsonb payload.
func (p *PickupSchedule) Scan(value any) error {
	return jsonScan(value, p)
}

// QualityCheckResult is attached when the returned item is inspected.
type QualityCheckResult struct {
	CheckedBy         uuid.UUID `json:"checked_by"`
	CheckedAt         time.Time `json:"checked_at"`
	Condition         string    `json:"condition"`
	Notes             string    `json:"notes,omitempty"`
	RefundEligibility string    `json:"refund_eligibility"`
	RefundPercentage  int       `json:"refund_percentage"`
	AdminDecision     string    `json:"admin_decision"`
}

// Value marshals the quality check result for storage.
func (q QualityCheckResult) Value() (driver.Value, error) {
	return jsonValue(q)
}

// Scan decodes the stored jsonb payload.
func (q *QualityCheckResult) Scan(value any) error {
	return jsonScan(value, q)
}

// RefundRecord links a finalized return to its ledger credit.
type RefundRecord struct {
	Amount        decimal.Decimal `json:"amount"`
	Decision      string          `json:"decision"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	InitiatedBy   uuid.UUID       `json:"initiated_by"`
	InitiatedAt   time.Time       `json:"initiated_at"`
	Reference     string          `json:"reference"`
}

// Value marshals the refund record for storage.
func (r RefundRecord) Value() (driver.Value, error) {
	return jsonValue(r)
}

// Scan decodes the stored jsonb payload.
func (r *RefundRecord) Scan(value any) error {
	return jsonScan(value, r)
}

// TimelineEntry records one state transition on a return request.
type TimelineEntry struct {
	At        time.Time `json:"at"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	Actor     uuid.UUID `json:"actor"`
	Note      string    `json:"note,omitempty"`
}

// Timeline stores the transition history as a jsonb array.
type Timeline []TimelineEntry

// Value marshals the timeline for storage.
func (t Timeline) Value() (driver.Value, error) {
	return jsonValue(t)
}

// Scan decodes the stored jsonb payload.
func (t *Timeline) Scan(value any) error {
	return jsonScan(value, t)
}

func jsonValue(v any) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func jsonScan(value any, dest any) error {
	if value == nil {
		return nil
	}
	switch raw := value.(type) {
	case []byte:
		return json.Unmarshal(raw, dest)
	case string:
		return json.Unmarshal([]byte(raw), dest)
	default:
		return fmt.Errorf("unsupported jsonb source %T", value)
	}
}
