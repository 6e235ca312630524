package refunds

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradebazaar/finance-backend/internal/audit"
	"github.com/tradebazaar/finance-backend/internal/wallet"
	"github.com/tradebazaar/finance-backend/pkg/db/models"
	"github.com/tradebazaar/finance-backend/pkg/enums"
	pkgerrors "github.com/tradebazaar/finance-backend/pkg/errors"
	"github.com/tradebazaar/finance-backend/pkg/types"
)

type stubLifecycle struct {
	requests map[uuid.UUID]*models.ReturnRequest
}

func newStubLifecycle() *stubLifecycle {
	return &stubLifecycle{requests: make(map[uuid.UUID]*models.ReturnRequest)}
}

func (s *stubLifecycle) addQualityChecked(customerID uuid.UUID, estimated decimal.Decimal, percentage int) *models.ReturnRequest {
	request := &models.ReturnRequest{
		ID:              uuid.New(),
		OrderID:         uuid.New(),
		CustomerID:      customerID,
		VendorID:        uuid.New(),
		EstimatedRefund: estimated,
		Status:          enums.ReturnStatusQualityCheckCompleted,
		QualityCheck: &types.QualityCheckResult{
			Condition:         "good",
			RefundEligibility: "full",
			RefundPercentage:  percentage,
		},
	}
	s.requests[request.ID] = request
	return request
}

func (s *stubLifecycle) Get(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	if r, ok := s.requests[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
}

func (s *stubLifecycle) FinalizeInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, decision enums.RefundDecision, actorID uuid.UUID) (*models.ReturnRequest, error) {
	request, ok := s.requests[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
	}
	if request.Status != enums.ReturnStatusQualityCheckCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "return cannot be finalized")
	}
	if decision == enums.RefundDecisionReject {
		request.Status = enums.ReturnStatusRejected
	} else {
		request.Status = enums.ReturnStatusRefunded
	}
	copied := *request
	return &copied, nil
}

func (s *stubLifecycle) AttachRefundInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, record types.RefundRecord) error {
	request := s.requests[id]
	if request.Status != enums.ReturnStatusRefunded {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "refund can only attach to a refunded return")
	}
	if request.Refund != nil {
		return nil
	}
	request.Refund = &record
	return nil
}

type stubLedger struct {
	wallets map[uuid.UUID]*models.Wallet
	credits map[string]*models.Transaction
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		wallets: make(map[uuid.UUID]*models.Wallet),
		credits: make(map[string]*models.Transaction),
	}
}

func (s *stubLedger) addWallet(ownerID uuid.UUID) *models.Wallet {
	w := &models.Wallet{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Kind:    enums.WalletKindMain,
	}
	s.wallets[w.ID] = w
	return w
}

func (s *stubLedger) OwnerWallet(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*models.Wallet, error) {
	for _, w := range s.wallets {
		if w.OwnerID == ownerID && w.Kind == kind {
			return w, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
}

func (s *stubLedger) CreditInTx(ctx context.Context, tx *gorm.DB, input wallet.CreditInput) (*models.Transaction, error) {
	if prior, ok := s.credits[input.IdempotencyKey]; ok {
		return prior, nil
	}
	w := s.wallets[input.WalletID]
	w.Balance = w.Balance.Add(input.Amount)
	w.AvailableBalance = w.AvailableBalance.Add(input.Amount)
	txn := &models.Transaction{
		ID:             uuid.New(),
		WalletID:       input.WalletID,
		Type:           enums.TransactionTypeCredit,
		Amount:         input.Amount,
		BalanceAfter:   w.Balance,
		Status:         enums.TransactionStatusCompleted,
		IdempotencyKey: input.IdempotencyKey,
	}
	s.credits[input.IdempotencyKey] = txn
	return txn, nil
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

func newTestService(t *testing.T, ldg ledger, lc lifecycle) Service {
	t.Helper()
	svc, err := NewService(stubTx{}, ldg, lc, &stubAuditor{})
	if err != nil {
		t.Fatalf("unexpected error building service: %v", err)
	}
	return svc
}

func TestProcessApproveCreditsFullEstimate(t *testing.T) {
	customerID := uuid.New()
	lc := newStubLifecycle()
	request := lc.addQualityChecked(customerID, decimal.NewFromInt(599), 100)
	ldg := newStubLedger()
	w := ldg.addWallet(customerID)
	svc := newTestService(t, ldg, lc)

	record, err := svc.Process(context.Background(), request.ID, enums.RefundDecisionApprove, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record == nil {
		t.Fatal("expected a refund record")
	}
	if !record.Amount.Equal(decimal.NewFromInt(599)) {
		t.Fatalf("expected amount 599, got %s", record.Amount)
	}
	if record.WalletID != w.ID {
		t.Fatal("refund must land in the customer's main wallet")
	}
	if len(ldg.credits) != 1 {
		t.Fatalf("expected exactly one credit, got %d", len(ldg.credits))
	}
	if !ldg.wallets[w.ID].Balance.Equal(decimal.NewFromInt(599)) {
		t.Fatalf("expected wallet balance 599, got %s", ldg.wallets[w.ID].Balance)
	}
	if lc.requests[request.ID].Refund == nil {
		t.Fatal("expected refund record attached to the return")
	}
}

func TestProcessRetryReturnsExistingRecord(t *testing.T) {
	customerID := uuid.New()
	lc := newStubLifecycle()
	request := lc.addQualityChecked(customerID, decimal.NewFromInt(599), 100)
	ldg := newStubLedger()
	w := ldg.addWallet(customerID)
	svc := newTestService(t, ldg, lc)

	first, err := svc.Process(context.Background(), request.ID, enums.RefundDecisionApprove, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Process(context.Background(), request.ID, enums.RefundDecisionApprove, uuid.New())
	if err != nil {
		t.Fatalf("retry should be a no-op: %v", err)
	}
	if second == nil || second.TransactionID != first.TransactionID {
		t.Fatal("retry must return the original refund record")
	}
	if len(ldg.credits) != 1 {
		t.Fatalf("retry must not credit again, got %d credits", len(ldg.credits))
	}
	if !ldg.wallets[w.ID].Balance.Equal(decimal.NewFromInt(599)) {
		t.Fatalf("balance must change exactly once, got %s", ldg.wallets[w.ID].Balance)
	}
}

func TestProcessPartialUsesQualityCheckPercentage(t *testing.T) {
	customerID := uuid.New()
	lc := newStubLifecycle()
	request := lc.addQualityChecked(customerID, decimal.NewFromInt(1000), 40)
	ldg := newStubLedger()
	ldg.addWallet(customerID)
	svc := newTestService(t, ldg, lc)

	record, err := svc.Process(context.Background(), request.ID, enums.RefundDecisionPartial, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !record.Amount.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("expected amount 400, got %s", record.Amount)
	}
}

func TestProcessRejectMovesNoMoney(t *testing.T) {
	customerID := uuid.New()
	lc := newStubLifecycle()
	request := lc.addQualityChecked(customerID, decimal.NewFromInt(599), 0)
	ldg := newStubLedger()
	ldg.addWallet(customerID)
	svc := newTestService(t, ldg, lc)

	record, err := svc.Process(context.Background(), request.ID, enums.RefundDecisionReject, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record != nil {
		t.Fatal("rejected return has no refund record")
	}
	if len(ldg.credits) != 0 {
		t.Fatal("rejected return must not credit")
	}
	if lc.requests[request.ID].Status != enums.ReturnStatusRejected {
		t.Fatalf("expected rejected, got %s", lc.requests[request.ID].Status)
	}
}

func TestProcessCancelledReturnConflicts(t *testing.T) {
	lc := newStubLifecycle()
	request := lc.addQualityChecked(uuid.New(), decimal.NewFromInt(599), 100)
	lc.requests[request.ID].Status = enums.ReturnStatusCancelled
	svc := newTestService(t, newStubLedger(), lc)

	_, err := svc.Process(context.Background(), request.ID, enums.RefundDecisionApprove, uuid.New())
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
