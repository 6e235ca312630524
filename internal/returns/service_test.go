package returns

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradebazaar/finance-backend/internal/audit"
	"github.com/tradebazaar/finance-backend/pkg/courier"
	"github.com/tradebazaar/finance-backend/pkg/db/models"
	"github.com/tradebazaar/finance-backend/pkg/enums"
	pkgerrors "github.com/tradebazaar/finance-backend/pkg/errors"
	"github.com/tradebazaar/finance-backend/pkg/pagination"
	"github.com/tradebazaar/finance-backend/pkg/types"
)

type stubRepo struct {
	requests map[uuid.UUID]*models.ReturnRequest
}

func newStubRepo() *stubRepo {
	return &stubRepo{requests: make(map[uuid.UUID]*models.ReturnRequest)}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) Create(ctx context.Context, request *models.ReturnRequest) error {
	copied := *request
	s.requests[request.ID] = &copied
	return nil
}

func (s *stubRepo) Find(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	if r, ok := s.requests[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	return s.Find(ctx, id)
}

func (s *stubRepo) Save(ctx context.Context, request *models.ReturnRequest) error {
	copied := *request
	s.requests[request.ID] = &copied
	return nil
}

func (s *stubRepo) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.ReturnRequest, int64, error) {
	var out []models.ReturnRequest
	for _, r := range s.requests {
		if filters.Status != nil && r.Status != *filters.Status {
			continue
		}
		out = append(out, *r)
	}
	return out, int64(len(out)), nil
}

type stubCourier struct {
	result courier.BookingResult
	err    error
	calls  int
}

func (s *stubCourier) BookPickup(ctx context.Context, req courier.BookingRequest) (courier.BookingResult, error) {
	s.calls++
	if s.err != nil {
		return courier.BookingResult{}, s.err
	}
	return s.result, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubAuditor struct {
	entries []audit.Entry
}

func (s *stubAuditor) Record(ctx context.Context, tx *gorm.DB, entry audit.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func acceptingCourier() *stubCourier {
	return &stubCourier{result: courier.BookingResult{Accepted: true, TrackingNumber: "TRK-001"}}
}

func newTestService(t *testing.T, repo Repository, booker courier.Booker) Service {
	t.Helper()
	svc, err := NewService(repo, stubTx{}, booker, &stubAuditor{})
	if err != nil {
		t.Fatalf("unexpected error building service: %v", err)
	}
	return svc
}

func createReturn(t *testing.T, svc Service) *models.ReturnRequest {
	t.Helper()
	request, err := svc.Create(context.Background(), CreateInput{
		OrderID:    uuid.New(),
		CustomerID: uuid.New(),
		VendorID:   uuid.New(),
		Items: types.ReturnItems{{
			ProductID: uuid.New(),
			Name:      "Steel bolts 10mm (box)",
			Quantity:  2,
			Price:     decimal.NewFromInt(300),
		}},
		PrimaryReason:   "damaged in transit",
		EstimatedRefund: decimal.NewFromInt(599),
		ActorID:         uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return request
}

func schedulePickup(t *testing.T, svc Service, id uuid.UUID) *models.ReturnRequest {
	t.Helper()
	request, err := svc.SchedulePickup(context.Background(), id, PickupInput{
		Date:           "2026-09-02",
		TimeSlot:       "10:00-13:00",
		Address:        "14 Industrial Estate, Pune",
		CourierPartner: "bluedart",
		ActorID:        uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return request
}

func TestCreateValidatesInput(t *testing.T) {
	svc := newTestService(t, newStubRepo(), acceptingCourier())

	_, err := svc.Create(context.Background(), CreateInput{
		OrderID:       uuid.New(),
		CustomerID:    uuid.New(),
		VendorID:      uuid.New(),
		PrimaryReason: "damaged",
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for empty items, got %v", err)
	}
}

func TestCreateStartsInRequested(t *testing.T) {
	svc := newTestService(t, newStubRepo(), acceptingCourier())
	request := createReturn(t, svc)

	if request.Status != enums.ReturnStatusRequested {
		t.Fatalf("expected requested, got %s", request.Status)
	}
	if len(request.Timeline) != 1 {
		t.Fatalf("expected one timeline entry, got %d", len(request.Timeline))
	}
}

func TestFullLifecycleToQualityCheckCompleted(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, acceptingCourier())
	request := createReturn(t, svc)

	scheduled := schedulePickup(t, svc, request.ID)
	if scheduled.Status != enums.ReturnStatusPickupScheduled {
		t.Fatalf("expected pickup_scheduled, got %s", scheduled.Status)
	}
	if scheduled.Pickup == nil || scheduled.Pickup.TrackingNumber != "TRK-001" {
		t.Fatalf("expected pickup schedule with tracking number, got %+v", scheduled.Pickup)
	}

	if _, err := svc.MarkPickedUp(context.Background(), request.ID, uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	received, err := svc.MarkReceived(context.Background(), request.ID, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received.Status != enums.ReturnStatusReceived {
		t.Fatalf("expected received, got %s", received.Status)
	}

	checked, err := svc.SubmitQualityCheck(context.Background(), request.ID, QualityCheckInput{
		Condition:         "good",
		RefundEligibility: "full",
		RefundPercentage:  100,
		AdminDecision:     "approve",
		ActorID:           uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checked.Status != enums.ReturnStatusQualityCheckCompleted {
		t.Fatalf("expected quality_check_completed, got %s", checked.Status)
	}
	if checked.QualityCheck == nil || checked.QualityCheck.RefundEligibility != "full" {
		t.Fatalf("expected stored quality check, got %+v", checked.QualityCheck)
	}

	// One timeline entry per transition plus creation.
	if len(checked.Timeline) != 5 {
		t.Fatalf("expected 5 timeline entries, got %d", len(checked.Timeline))
	}
}

func TestInvalidTransitionLeavesStateUntouched(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, acceptingCourier())
	request := createReturn(t, svc)

	// received is not adjacent to requested.
	_, err := svc.MarkReceived(context.Background(), request.ID, uuid.New())
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}

	stored := repo.requests[request.ID]
	if stored.Status != enums.ReturnStatusRequested {
		t.Fatalf("failed transition must not change status, got %s", stored.Status)
	}
	if len(stored.Timeline) != 1 {
		t.Fatalf("failed transition must not append to timeline, got %d entries", len(stored.Timeline))
	}
}

func TestSchedulePickupRejectedBooking(t *testing.T) {
	repo := newStubRepo()
	booker := &stubCourier{result: courier.BookingResult{Accepted: false, Reason: "no coverage"}}
	svc := newTestService(t, repo, booker)
	request := createReturn(t, svc)

	_, err := svc.SchedulePickup(context.Background(), request.ID, PickupInput{
		Date:     "2026-09-02",
		TimeSlot: "10:00-13:00",
		Address:  "14 Industrial Estate, Pune",
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if repo.requests[request.ID].Status != enums.ReturnStatusRequested {
		t.Fatal("declined booking must not move the return")
	}
}

func TestSchedulePickupSkipsBookingFromInvalidState(t *testing.T) {
	repo := newStubRepo()
	booker := acceptingCourier()
	svc := newTestService(t, repo, booker)
	request := createReturn(t, svc)

	schedulePickup(t, svc, request.ID)
	if _, err := svc.MarkPickedUp(context.Background(), request.ID, uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.SchedulePickup(context.Background(), request.ID, PickupInput{
		Date:     "2026-09-03",
		TimeSlot: "10:00-13:00",
		Address:  "14 Industrial Estate, Pune",
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if booker.calls != 1 {
		t.Fatalf("booking must not run for an invalid state, got %d calls", booker.calls)
	}
}

func TestCancelAllowedBeforePickup(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, acceptingCourier())
	request := createReturn(t, svc)

	cancelled, err := svc.Cancel(context.Background(), request.ID, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != enums.ReturnStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	// Terminal states reject every further move.
	_, err = svc.Approve(context.Background(), request.ID, uuid.New())
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCancelBlockedAfterPickup(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, acceptingCourier())
	request := createReturn(t, svc)

	schedulePickup(t, svc, request.ID)
	if _, err := svc.MarkPickedUp(context.Background(), request.ID, uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Cancel(context.Background(), request.ID, uuid.New())
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestFinalizeRequiresQualityCheck(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, acceptingCourier())
	request := createReturn(t, svc)

	// Force the state without a stored quality check result.
	stored := repo.requests[request.ID]
	stored.Status = enums.ReturnStatusQualityCheckCompleted

	_, err := svc.FinalizeInTx(context.Background(), nil, request.ID, enums.RefundDecisionApprove, uuid.New())
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestFinalizeRejectMovesToRejected(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, acceptingCourier())
	request := createReturn(t, svc)

	schedulePickup(t, svc, request.ID)
	_, _ = svc.MarkPickedUp(context.Background(), request.ID, uuid.New())
	_, _ = svc.MarkReceived(context.Background(), request.ID, uuid.New())
	if _, err := svc.SubmitQualityCheck(context.Background(), request.ID, QualityCheckInput{
		Condition:         "damaged by customer",
		RefundEligibility: "none",
		RefundPercentage:  0,
		AdminDecision:     "reject",
		ActorID:           uuid.New(),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	finalized, err := svc.FinalizeInTx(context.Background(), nil, request.ID, enums.RefundDecisionReject, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finalized.Status != enums.ReturnStatusRejected {
		t.Fatalf("expected rejected, got %s", finalized.Status)
	}
}

func TestAttachRefundOnlyOnRefunded(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, acceptingCourier())
	request := createReturn(t, svc)

	record := types.RefundRecord{
		Amount:        decimal.NewFromInt(599),
		Decision:      enums.RefundDecisionApprove.String(),
		TransactionID: uuid.New(),
	}
	err := svc.AttachRefundInTx(context.Background(), nil, request.ID, record)
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}

	stored := repo.requests[request.ID]
	stored.Status = enums.ReturnStatusRefunded
	if err := svc.AttachRefundInTx(context.Background(), nil, request.ID, record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.requests[request.ID].Refund == nil {
		t.Fatal("expected refund record attached")
	}

	// A second attach is a no-op.
	other := record
	other.TransactionID = uuid.New()
	if err := svc.AttachRefundInTx(context.Background(), nil, request.ID, other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.requests[request.ID].Refund.TransactionID != record.TransactionID {
		t.Fatal("repeat attach must not overwrite the original record")
	}
}
