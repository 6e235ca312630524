package returns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradebazaar/finance-backend/internal/audit"
	"github.com/tradebazaar/finance-backend/pkg/courier"
	"github.com/tradebazaar/finance-backend/pkg/db/models"
	"github.com/tradebazaar/finance-backend/pkg/enums"
	pkgerrors "github.com/tradebazaar/finance-backend/pkg/errors"
	"github.com/tradebazaar/finance-backend/pkg/pagination"
	"github.com/tradebazaar/finance-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// transitions is the exhaustive adjacency table. A move not listed here
// is rejected without touching the row.
var transitions = map[enums.ReturnStatus][]enums.ReturnStatus{
	enums.ReturnStatusRequested: {
		enums.ReturnStatusApproved,
		enums.ReturnStatusPickupScheduled,
		enums.ReturnStatusCancelled,
	},
	enums.ReturnStatusApproved: {
		enums.ReturnStatusPickupScheduled,
		enums.ReturnStatusCancelled,
	},
	enums.ReturnStatusPickupScheduled: {
		enums.ReturnStatusPickedUp,
	},
	enums.ReturnStatusPickedUp: {
		enums.ReturnStatusReceived,
	},
	enums.ReturnStatusReceived: {
		enums.ReturnStatusQualityCheck,
		enums.ReturnStatusQualityCheckCompleted,
	},
	enums.ReturnStatusQualityCheck: {
		enums.ReturnStatusQualityCheckCompleted,
	},
	enums.ReturnStatusQualityCheckCompleted: {
		enums.ReturnStatusRefunded,
		enums.ReturnStatusRejected,
	},
}

func canTransition(from, to enums.ReturnStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Service is the return lifecycle engine. It owns every ReturnRequest
// mutation; collaborators that need to write back (the refund creditor)
// go through the InTx accessors instead of touching rows directly.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.ReturnRequest, error)
	Approve(ctx context.Context, id, actorID uuid.UUID) (*models.ReturnRequest, error)
	SchedulePickup(ctx context.Context, id uuid.UUID, input PickupInput) (*models.ReturnRequest, error)
	MarkPickedUp(ctx context.Context, id, actorID uuid.UUID) (*models.ReturnRequest, error)
	MarkReceived(ctx context.Context, id, actorID uuid.UUID) (*models.ReturnRequest, error)
	StartQualityCheck(ctx context.Context, id, actorID uuid.UUID) (*models.ReturnRequest, error)
	SubmitQualityCheck(ctx context.Context, id uuid.UUID, input QualityCheckInput) (*models.ReturnRequest, error)
	Cancel(ctx context.Context, id, actorID uuid.UUID) (*models.ReturnRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*ReturnList, error)

	FinalizeInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, decision enums.RefundDecision, actorID uuid.UUID) (*models.ReturnRequest, error)
	AttachRefundInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, record types.RefundRecord) error
}

type service struct {
	repo    Repository
	tx      txRunner
	courier courier.Booker
	auditor audit.Recorder
}

// NewService builds the lifecycle engine with the required dependencies.
func NewService(repo Repository, tx txRunner, booker courier.Booker, auditor audit.Recorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("returns repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if booker == nil {
		return nil, fmt.Errorf("courier booker required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		courier: booker,
		auditor: auditor,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.ReturnRequest, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.CustomerID == uuid.Nil || input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer and vendor ids required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}
	if input.PrimaryReason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "primary reason required")
	}
	if input.EstimatedRefund.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "estimated refund cannot be negative")
	}

	request := &models.ReturnRequest{
		ID:              uuid.New(),
		OrderID:         input.OrderID,
		CustomerID:      input.CustomerID,
		VendorID:        input.VendorID,
		Items:           input.Items,
		PrimaryReason:   input.PrimaryReason,
		Description:     input.Description,
		EstimatedRefund: input.EstimatedRefund,
		Status:          enums.ReturnStatusRequested,
		Timeline: types.Timeline{{
			At:      time.Now().UTC(),
			ToState: enums.ReturnStatusRequested.String(),
			Actor:   input.ActorID,
			Note:    "return created",
		}},
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, request); err != nil {
			return err
		}
		return s.auditor.Record(ctx, tx, audit.Entry{
			EntityType: "return_request",
			EntityID:   request.ID,
			Action:     "return.requested",
			ActorID:    input.ActorID,
			Detail: map[string]any{
				"order_id":         input.OrderID,
				"estimated_refund": input.EstimatedRefund,
				"items":            len(input.Items),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) Approve(ctx context.Context, id, actorID uuid.UUID) (*models.ReturnRequest, error) {
	return s.transition(ctx, id, enums.ReturnStatusApproved, actorID, "return.approved", nil)
}

// SchedulePickup validates the move, books the courier, then applies the
// transition. The partner keys bookings by the return id, so a crash
// between booking and commit is absorbed by the retried booking.
func (s *service) SchedulePickup(ctx context.Context, id uuid.UUID, input PickupInput) (*models.ReturnRequest, error) {
	if input.Date == "" || input.TimeSlot == "" || input.Address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup date, time slot, and address required")
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(current.Status, enums.ReturnStatusPickupScheduled) {
		return nil, invalidTransition(current.Status, enums.ReturnStatusPickupScheduled)
	}

	booking, err := s.courier.BookPickup(ctx, courier.BookingRequest{
		OperationID:    id.String(),
		Date:           input.Date,
		TimeSlot:       input.TimeSlot,
		Address:        input.Address,
		CourierPartner: input.CourierPartner,
	})
	if err != nil {
		return nil, err
	}
	if !booking.Accepted {
		reason := booking.Reason
		if reason == "" {
			reason = "courier partner declined the pickup"
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency, reason)
	}

	schedule := &types.PickupSchedule{
		Date:           input.Date,
		TimeSlot:       input.TimeSlot,
		Address:        input.Address,
		CourierPartner: input.CourierPartner,
		TrackingNumber: booking.TrackingNumber,
		ScheduledBy:    input.ActorID,
		ScheduledAt:    time.Now().UTC(),
	}
	return s.transition(ctx, id, enums.ReturnStatusPickupScheduled, input.ActorID, "return.pickup_scheduled", func(request *models.ReturnRequest) error {
		request.Pickup = schedule
		return nil
	})
}

func (s *service) MarkPickedUp(ctx context.Context, id, actorID uuid.UUID) (*models.ReturnRequest, error) {
	return s.transition(ctx, id, enums.ReturnStatusPickedUp, actorID, "return.picked_up", nil)
}

func (s *service) MarkReceived(ctx context.Context, id, actorID uuid.UUID) (*models.ReturnRequest, error) {
	return s.transition(ctx, id, enums.ReturnStatusReceived, actorID, "return.received", nil)
}

func (s *service) StartQualityCheck(ctx context.Context, id, actorID uuid.UUID) (*models.ReturnRequest, error) {
	return s.transition(ctx, id, enums.ReturnStatusQualityCheck, actorID, "return.quality_check_started", nil)
}

// SubmitQualityCheck stores the inspection result. The admin decision
// drives refund eligibility but the terminal move belongs to finalize.
func (s *service) SubmitQualityCheck(ctx context.Context, id uuid.UUID, input QualityCheckInput) (*models.ReturnRequest, error) {
	if input.Condition == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "condition required")
	}
	if input.RefundEligibility == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund eligibility required")
	}
	if input.RefundPercentage < 0 || input.RefundPercentage > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund percentage must be between 0 and 100")
	}

	result := &types.QualityCheckResult{
		CheckedBy:         input.ActorID,
		CheckedAt:         time.Now().UTC(),
		Condition:         input.Condition,
		Notes:             input.Notes,
		RefundEligibility: input.RefundEligibility,
		RefundPercentage:  input.RefundPercentage,
		AdminDecision:     input.AdminDecision,
	}
	return s.transition(ctx, id, enums.ReturnStatusQualityCheckCompleted, input.ActorID, "return.quality_check_completed", func(request *models.ReturnRequest) error {
		request.QualityCheck = result
		return nil
	})
}

func (s *service) Cancel(ctx context.Context, id, actorID uuid.UUID) (*models.ReturnRequest, error) {
	return s.transition(ctx, id, enums.ReturnStatusCancelled, actorID, "return.cancelled", nil)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	request, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		return nil, err
	}
	return request, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*ReturnList, error) {
	requests, total, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, err
	}
	return &ReturnList{
		Returns:    requests,
		Pagination: pagination.PageOf(params, total),
	}, nil
}

// FinalizeInTx applies the terminal transition inside the caller's
// transaction so the refund credit and the state change land together.
func (s *service) FinalizeInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, decision enums.RefundDecision, actorID uuid.UUID) (*models.ReturnRequest, error) {
	if !decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid refund decision")
	}
	target := enums.ReturnStatusRefunded
	if decision == enums.RefundDecisionReject {
		target = enums.ReturnStatusRejected
	}
	return s.transitionInTx(ctx, tx, id, target, actorID, "return.finalized", func(request *models.ReturnRequest) error {
		if request.QualityCheck == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "return has no quality check result")
		}
		return nil
	})
}

// AttachRefundInTx records the refund outcome on the return. The row
// must already be refunded; at most one record is ever attached.
func (s *service) AttachRefundInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, record types.RefundRecord) error {
	repo := s.repo.WithTx(tx)
	request, err := repo.FindForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		return err
	}
	if request.Status != enums.ReturnStatusRefunded {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "refund can only attach to a refunded return")
	}
	if request.Refund != nil {
		return nil
	}
	request.Refund = &record
	return repo.Save(ctx, request)
}

// transition wraps one state move in its own transaction.
func (s *service) transition(ctx context.Context, id uuid.UUID, to enums.ReturnStatus, actorID uuid.UUID, action string, mutate func(*models.ReturnRequest) error) (*models.ReturnRequest, error) {
	var request *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		request, err = s.transitionInTx(ctx, tx, id, to, actorID, action, mutate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// transitionInTx validates adjacency under the row lock, applies the
// mutation, appends the timeline entry, and audits. An invalid move
// rolls the transaction back, leaving status and timeline untouched.
func (s *service) transitionInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, to enums.ReturnStatus, actorID uuid.UUID, action string, mutate func(*models.ReturnRequest) error) (*models.ReturnRequest, error) {
	repo := s.repo.WithTx(tx)
	request, err := repo.FindForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		return nil, err
	}

	from := request.Status
	if !canTransition(from, to) {
		return nil, invalidTransition(from, to)
	}
	if mutate != nil {
		if err := mutate(request); err != nil {
			return nil, err
		}
	}

	request.Status = to
	request.Timeline = append(request.Timeline, types.TimelineEntry{
		At:        time.Now().UTC(),
		FromState: from.String(),
		ToState:   to.String(),
		Actor:     actorID,
	})
	if err := repo.Save(ctx, request); err != nil {
		return nil, err
	}

	err = s.auditor.Record(ctx, tx, audit.Entry{
		EntityType: "return_request",
		EntityID:   request.ID,
		Action:     action,
		ActorID:    actorID,
		Detail: map[string]any{
			"from": from,
			"to":   to,
		},
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func invalidTransition(from, to enums.ReturnStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("return cannot move from %s to %s", from, to))
}
