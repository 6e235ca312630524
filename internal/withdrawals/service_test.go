package withdrawals

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradebazaar/finance-backend/internal/audit"
	"github.com/tradebazaar/finance-backend/internal/wallet"
	"github.com/tradebazaar/finance-backend/pkg/config"
	"github.com/tradebazaar/finance-backend/pkg/db/models"
	"github.com/tradebazaar/finance-backend/pkg/enums"
	pkgerrors "github.com/tradebazaar/finance-backend/pkg/errors"
	"github.com/tradebazaar/finance-backend/pkg/pagination"
	"github.com/tradebazaar/finance-backend/pkg/payout"
)

type stubRepo struct {
	requests map[uuid.UUID]*models.WithdrawalRequest
}

func newStubRepo() *stubRepo {
	return &stubRepo{requests: make(map[uuid.UUID]*models.WithdrawalRequest)}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) Create(ctx context.Context, request *models.WithdrawalRequest) error {
	copied := *request
	s.requests[request.ID] = &copied
	return nil
}

func (s *stubRepo) Find(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	if r, ok := s.requests[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	return s.Find(ctx, id)
}

func (s *stubRepo) Save(ctx context.Context, request *models.WithdrawalRequest) error {
	copied := *request
	s.requests[request.ID] = &copied
	return nil
}

func (s *stubRepo) BumpAttempts(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, bool, error) {
	r, ok := s.requests[id]
	if !ok {
		return nil, false, gorm.ErrRecordNotFound
	}
	if r.Status != enums.WithdrawalStatusProcessing {
		copied := *r
		return &copied, false, nil
	}
	r.Attempts++
	copied := *r
	return &copied, true, nil
}

func (s *stubRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, params pagination.Params) ([]models.WithdrawalRequest, int64, error) {
	var out []models.WithdrawalRequest
	for _, r := range s.requests {
		if r.OwnerID == ownerID {
			out = append(out, *r)
		}
	}
	return out, int64(len(out)), nil
}

func (s *stubRepo) ListUnsettled(ctx context.Context, limit int) ([]models.WithdrawalRequest, error) {
	var out []models.WithdrawalRequest
	for _, r := range s.requests {
		if !r.Status.IsTerminal() {
			out = append(out, *r)
		}
	}
	return out, nil
}

type stubLedger struct {
	wallets map[uuid.UUID]*models.Wallet
	debits  map[string]*models.Transaction
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		wallets: make(map[uuid.UUID]*models.Wallet),
		debits:  make(map[string]*models.Transaction),
	}
}

func (s *stubLedger) addWallet(available decimal.Decimal) *models.Wallet {
	w := &models.Wallet{
		ID:               uuid.New(),
		OwnerID:          uuid.New(),
		Kind:             enums.WalletKindMain,
		Balance:          available,
		AvailableBalance: available,
		PendingAmount:    decimal.Zero,
		FrozenAmount:     decimal.Zero,
		Currency:         enums.CurrencyINR,
	}
	s.wallets[w.ID] = w
	return w
}

func (s *stubLedger) GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	if w, ok := s.wallets[walletID]; ok {
		copied := *w
		return &copied, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
}

func (s *stubLedger) HoldInTx(ctx context.Context, tx *gorm.DB, input wallet.HoldInput) error {
	w := s.wallets[input.WalletID]
	if input.Amount.GreaterThan(w.AvailableBalance) {
		return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "hold exceeds available balance")
	}
	w.AvailableBalance = w.AvailableBalance.Sub(input.Amount)
	w.PendingAmount = w.PendingAmount.Add(input.Amount)
	return nil
}

func (s *stubLedger) ReleaseInTx(ctx context.Context, tx *gorm.DB, input wallet.ReleaseInput) error {
	w := s.wallets[input.WalletID]
	if input.Amount.GreaterThan(w.PendingAmount) {
		return pkgerrors.New(pkgerrors.CodeInvalidHoldState, "release exceeds pending amount")
	}
	w.PendingAmount = w.PendingAmount.Sub(input.Amount)
	w.AvailableBalance = w.AvailableBalance.Add(input.Amount)
	return nil
}

func (s *stubLedger) DebitInTx(ctx context.Context, tx *gorm.DB, input wallet.DebitInput) (*models.Transaction, error) {
	if prior, ok := s.debits[input.IdempotencyKey]; ok {
		return prior, nil
	}
	w := s.wallets[input.WalletID]
	if input.Amount.GreaterThan(w.AvailableBalance) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "debit exceeds available balance")
	}
	w.Balance = w.Balance.Sub(input.Amount)
	w.AvailableBalance = w.AvailableBalance.Sub(input.Amount)
	txn := &models.Transaction{
		ID:             uuid.New(),
		WalletID:       w.ID,
		Type:           enums.TransactionTypeDebit,
		Amount:         input.Amount,
		BalanceAfter:   w.Balance,
		Status:         enums.TransactionStatusCompleted,
		IdempotencyKey: input.IdempotencyKey,
	}
	s.debits[input.IdempotencyKey] = txn
	return txn, nil
}

type stubLimits struct {
	err   error
	calls int
}

func (s *stubLimits) Check(ctx context.Context, ownerID uuid.UUID, operation enums.TransactionType, amount decimal.Decimal) error {
	s.calls++
	return s.err
}

type stubSubmitter struct {
	results []submitOutcome
	calls   int
}

type submitOutcome struct {
	result payout.SubmitResult
	err    error
}

func (s *stubSubmitter) Submit(ctx context.Context, req payout.SubmitRequest) (payout.SubmitResult, error) {
	outcome := s.results[s.calls]
	s.calls++
	return outcome.result, outcome.err
}

type stubScorer struct {
	scored []uuid.UUID
	err    error
}

func (s *stubScorer) Evaluate(ctx context.Context, transactionID uuid.UUID) (*models.FraudScore, error) {
	s.scored = append(s.scored, transactionID)
	if s.err != nil {
		return nil, s.err
	}
	return &models.FraudScore{ID: uuid.New(), TransactionID: transactionID}, nil
}

type funcSubmitter struct {
	fn func(ctx context.Context, req payout.SubmitRequest) (payout.SubmitResult, error)
}

func (s *funcSubmitter) Submit(ctx context.Context, req payout.SubmitRequest) (payout.SubmitResult, error) {
	return s.fn(ctx, req)
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

func testConfig() config.WithdrawalsConfig {
	return config.WithdrawalsConfig{
		ProcessingFee: "25.00",
		MaxAttempts:   3,
		RetryBackoff:  time.Millisecond,
		PollInterval:  time.Second,
	}
}

func newTestService(t *testing.T, repo Repository, ldg ledger, limits limitChecker, submitter payout.Submitter) Service {
	t.Helper()
	svc, err := NewService(repo, stubTx{}, ldg, limits, submitter, &stubScorer{}, &stubAuditor{}, nil, testConfig())
	if err != nil {
		t.Fatalf("unexpected error building service: %v", err)
	}
	return svc
}

func TestRequestPlacesHold(t *testing.T) {
	repo := newStubRepo()
	ldg := newStubLedger()
	w := ldg.addWallet(decimal.NewFromInt(1000))
	limits := &stubLimits{}
	svc := newTestService(t, repo, ldg, limits, &stubSubmitter{})

	request, err := svc.Request(context.Background(), CreateInput{
		OwnerID:       w.OwnerID,
		WalletID:      w.ID,
		Amount:        decimal.NewFromInt(600),
		BankReference: "HDFC-001",
		ActorID:       w.OwnerID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if request.Status != enums.WithdrawalStatusRequested {
		t.Fatalf("expected requested status, got %s", request.Status)
	}
	if limits.calls != 1 {
		t.Fatal("limit check must run before the hold")
	}

	updated := ldg.wallets[w.ID]
	if !updated.AvailableBalance.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("expected available 400, got %s", updated.AvailableBalance)
	}
	if !updated.PendingAmount.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("expected pending 600, got %s", updated.PendingAmount)
	}
}

func TestRequestRejectsInsufficientBalance(t *testing.T) {
	repo := newStubRepo()
	ldg := newStubLedger()
	w := ldg.addWallet(decimal.NewFromInt(400))
	svc := newTestService(t, repo, ldg, &stubLimits{}, &stubSubmitter{})

	_, err := svc.Request(context.Background(), CreateInput{
		OwnerID:       w.OwnerID,
		WalletID:      w.ID,
		Amount:        decimal.NewFromInt(600),
		BankReference: "HDFC-001",
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeInsufficientBalance {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if !ldg.wallets[w.ID].Balance.Equal(decimal.NewFromInt(400)) {
		t.Fatal("rejected withdrawal must not change the balance")
	}
}

func TestRequestPropagatesLimitViolation(t *testing.T) {
	repo := newStubRepo()
	ldg := newStubLedger()
	w := ldg.addWallet(decimal.NewFromInt(100000))
	limits := &stubLimits{err: pkgerrors.New(pkgerrors.CodeLimitExceeded, "daily cap exceeded")}
	svc := newTestService(t, repo, ldg, limits, &stubSubmitter{})

	_, err := svc.Request(context.Background(), CreateInput{
		OwnerID:       w.OwnerID,
		WalletID:      w.ID,
		Amount:        decimal.NewFromInt(60000),
		BankReference: "HDFC-001",
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeLimitExceeded {
		t.Fatalf("expected limit exceeded, got %v", err)
	}
	if !ldg.wallets[w.ID].PendingAmount.IsZero() {
		t.Fatal("limit violation must block the hold")
	}
}

func TestRequestRejectsAmountAtOrBelowFee(t *testing.T) {
	repo := newStubRepo()
	ldg := newStubLedger()
	w := ldg.addWallet(decimal.NewFromInt(1000))
	svc := newTestService(t, repo, ldg, &stubLimits{}, &stubSubmitter{})

	_, err := svc.Request(context.Background(), CreateInput{
		OwnerID:       w.OwnerID,
		WalletID:      w.ID,
		Amount:        decimal.NewFromInt(25),
		BankReference: "HDFC-001",
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func requestWithdrawal(t *testing.T, svc Service, w *models.Wallet, amount int64) *models.WithdrawalRequest {
	t.Helper()
	request, err := svc.Request(context.Background(), CreateInput{
		OwnerID:       w.OwnerID,
		WalletID:      w.ID,
		Amount:        decimal.NewFromInt(amount),
		BankReference: "HDFC-001",
		ActorID:       w.OwnerID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return request
}

func TestProcessSettlesAcceptedPayout(t *testing.T) {
	repo := newStubRepo()
	ldg := newStubLedger()
	w := ldg.addWallet(decimal.NewFromInt(1000))
	submitter := &stubSubmitter{results: []submitOutcome{
		{result: payout.SubmitResult{Accepted: true}},
	}}
	svc := newTestService(t, repo, ldg, &stubLimits{}, submitter)

	request := requestWithdrawal(t, svc, w, 600)
	settled, err := svc.Process(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settled.Status != enums.WithdrawalStatusCompleted {
		t.Fatalf("expected completed, got %s", settled.Status)
	}
	if settled.CompletedAt == nil {
		t.Fatal("expected completion timestamp")
	}

	updated := ldg.wallets[w.ID]
	if !updated.Balance.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("expected balance 400, got %s", updated.Balance)
	}
	if !updated.PendingAmount.IsZero() {
		t.Fatalf("expected pending 0, got %s", updated.PendingAmount)
	}
	if len(ldg.debits) != 1 {
		t.Fatalf("expected one settle debit, got %d", len(ldg.debits))
	}
}

func TestProcessRetriesTransientFailures(t *testing.T) {
	repo := newStubRepo()
	ldg := newStubLedger()
	w := ldg.addWallet(decimal.NewFromInt(1000))
	submitter := &stubSubmitter{results: []submitOutcome{
		{err: pkgerrors.New(pkgerrors.CodeDependency, "partner unreachable")},
		{err: pkgerrors.New(pkgerrors.CodeDependency, "partner unreachable")},
		{result: payout.SubmitResult{Accepted: true}},
	}}
	svc := newTestService(t, repo, ldg, &stubLimits{}, submitter)

	request := requestWithdrawal(t, svc, w, 600)
	settled, err := svc.Process(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settled.Status != enums.WithdrawalStatusCompleted {
		t.Fatalf("expected completed after retries, got %s", settled.Status)
	}
	if submitter.calls != 3 {
		t.Fatalf("expected 3 submit attempts, got %d", submitter.calls)
	}
}

func TestProcessExhaustedRetriesReleasesHold(t *testing.T) {
	repo := newStubRepo()
	ldg := newStubLedger()
	w := ldg.addWallet(decimal.NewFromInt(1000))
	submitter := &stubSubmitter{results: []submitOutcome{
		{err: pkgerrors.New(pkgerrors.CodeDependency, "partner unreachable")},
		{err: pkgerrors.New(pkgerrors.CodeDependency, "partner unreachable")},
		{err: pkgerrors.New(pkgerrors.CodeDependency, "partner unreachable")},
	}}
	svc := newTestService(t, repo, ldg, &stubLimits{}, submitter)

	request := requestWithdrawal(t, svc, w, 600)
	settled, err := svc.Process(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settled.Status != enums.WithdrawalStatusFailed {
		t.Fatalf("expected failed, got %s", settled.Status)
	}
	if settled.FailureReason == nil {
		t.Fatal("expected a failure reason")
	}

	updated := ldg.wallets[w.ID]
	if !updated.AvailableBalance.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected hold released intact, got available %s", updated.AvailableBalance)
	}
	if !updated.PendingAmount.IsZero() {
		t.Fatalf("expected pending 0, got %s", updated.PendingAmount)
	}
	if len(ldg.debits) != 0 {
		t.Fatal("failed withdrawal must not debit")
	}
}

func TestProcessRejectedPayoutFails(t *testing.T) {
	repo := newStubRepo()
	ldg := newStubLedger()
	w := ldg.addWallet(decimal.NewFromInt(1000))
	submitter := &stubSubmitter{results: []submitOutcome{
		{result: payout.SubmitResult{Accepted: false, Reason: "account closed"}},
	}}
	svc := newTestService(t, repo, ldg, &stubLimits{}, submitter)

	request := requestWithdrawal(t, svc, w, 600)
	settled, err := svc.Process(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settled.Status != enums.WithdrawalStatusFailed {
		t.Fatalf("expected failed, got %s", settled.Status)
	}
	if settled.FailureReason == nil || *settled.FailureReason != "account closed" {
		t.Fatalf("expected partner reason, got %v", settled.FailureReason)
	}
}

func TestProcessResumesStrandedProcessing(t *testing.T) {
	repo := newStubRepo()
	ldg := newStubLedger()
	w := ldg.addWallet(decimal.NewFromInt(1000))
	submitter := &stubSubmitter{results: []submitOutcome{
		{result: payout.SubmitResult{Accepted: true}},
	}}
	svc := newTestService(t, repo, ldg, &stubLimits{}, submitter)

	request := requestWithdrawal(t, svc, w, 600)

	// Simulate a crash after the transition to processing.
	stranded, _ := repo.Find(context.Background(), request.ID)
	stranded.Status = enums.WithdrawalStatusProcessing
	stranded.Attempts = 1
	_ = repo.Save(context.Background(), stranded)

	settled, err := svc.Process(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settled.Status != enums.WithdrawalStatusCompleted {
		t.Fatalf("expected completed after resume, got %s", settled.Status)
	}
}

func TestProcessRetryYieldsToWebhookCompletion(t *testing.T) {
	repo := newStubRepo()
	ldg := newStubLedger()
	w := ldg.addWallet(decimal.NewFromInt(1000))

	// The partner accepts the payout and confirms through the webhook,
	// but the submit response is lost in transit so the worker sees a
	// transport failure and enters its retry backoff.
	var svc Service
	submits := 0
	submitter := &funcSubmitter{fn: func(ctx context.Context, req payout.SubmitRequest) (payout.SubmitResult, error) {
		submits++
		if _, err := svc.Complete(ctx, uuid.MustParse(req.OperationID)); err != nil {
			t.Fatalf("webhook completion failed: %v", err)
		}
		return payout.SubmitResult{}, pkgerrors.New(pkgerrors.CodeDependency, "partner timed out")
	}}

	svc, err := NewService(repo, stubTx{}, ldg, &stubLimits{}, submitter, &stubScorer{}, &stubAuditor{}, nil, testConfig())
	if err != nil {
		t.Fatalf("unexpected error building service: %v", err)
	}

	request := requestWithdrawal(t, svc, w, 600)
	settled, err := svc.Process(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settled.Status != enums.WithdrawalStatusCompleted {
		t.Fatalf("expected completed, got %s", settled.Status)
	}
	if submits != 1 {
		t.Fatalf("expected a single submit attempt, got %d", submits)
	}

	stored, _ := repo.Find(context.Background(), request.ID)
	if stored.Status != enums.WithdrawalStatusCompleted {
		t.Fatalf("retry loop must not revert a settled request, got %s", stored.Status)
	}
	if stored.CompletedAt == nil {
		t.Fatal("settled request must keep its completion timestamp")
	}
	if len(ldg.debits) != 1 {
		t.Fatalf("expected one settle debit, got %d", len(ldg.debits))
	}
	if !ldg.wallets[w.ID].PendingAmount.IsZero() {
		t.Fatalf("expected pending 0, got %s", ldg.wallets[w.ID].PendingAmount)
	}
}

func TestCompleteScoresSettlementDebit(t *testing.T) {
	repo := newStubRepo()
	ldg := newStubLedger()
	w := ldg.addWallet(decimal.NewFromInt(1000))
	submitter := &stubSubmitter{results: []submitOutcome{
		{result: payout.SubmitResult{Accepted: true}},
	}}
	scored := &stubScorer{}
	svc, err := NewService(repo, stubTx{}, ldg, &stubLimits{}, submitter, scored, &stubAuditor{}, nil, testConfig())
	if err != nil {
		t.Fatalf("unexpected error building service: %v", err)
	}

	request := requestWithdrawal(t, svc, w, 600)
	if _, err := svc.Process(context.Background(), request.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	debit := ldg.debits["withdrawal:"+request.ID.String()]
	if debit == nil {
		t.Fatal("expected a settle debit")
	}
	if len(scored.scored) != 1 || scored.scored[0] != debit.ID {
		t.Fatalf("expected the settle debit to be scored once, got %v", scored.scored)
	}

	// A replayed completion moves no money and must not re-score.
	if _, err := svc.Complete(context.Background(), request.ID); err != nil {
		t.Fatalf("repeat complete should be a no-op: %v", err)
	}
	if len(scored.scored) != 1 {
		t.Fatalf("replay must not re-score, got %d evaluations", len(scored.scored))
	}
}

func TestCompleteSettlesWhenScoringFails(t *testing.T) {
	repo := newStubRepo()
	ldg := newStubLedger()
	w := ldg.addWallet(decimal.NewFromInt(1000))
	submitter := &stubSubmitter{results: []submitOutcome{
		{result: payout.SubmitResult{Accepted: true}},
	}}
	scored := &stubScorer{err: pkgerrors.New(pkgerrors.CodeDependency, "scoring unavailable")}
	svc, err := NewService(repo, stubTx{}, ldg, &stubLimits{}, submitter, scored, &stubAuditor{}, nil, testConfig())
	if err != nil {
		t.Fatalf("unexpected error building service: %v", err)
	}

	request := requestWithdrawal(t, svc, w, 600)
	settled, err := svc.Process(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("scoring failure must not fail settlement: %v", err)
	}
	if settled.Status != enums.WithdrawalStatusCompleted {
		t.Fatalf("expected completed, got %s", settled.Status)
	}
	if len(ldg.debits) != 1 {
		t.Fatalf("expected one settle debit, got %d", len(ldg.debits))
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	repo := newStubRepo()
	ldg := newStubLedger()
	w := ldg.addWallet(decimal.NewFromInt(1000))
	submitter := &stubSubmitter{results: []submitOutcome{
		{result: payout.SubmitResult{Accepted: true}},
	}}
	svc := newTestService(t, repo, ldg, &stubLimits{}, submitter)

	request := requestWithdrawal(t, svc, w, 600)
	if _, err := svc.Process(context.Background(), request.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	again, err := svc.Complete(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("repeat complete should be a no-op: %v", err)
	}
	if again.Status != enums.WithdrawalStatusCompleted {
		t.Fatalf("expected completed, got %s", again.Status)
	}
	if len(ldg.debits) != 1 {
		t.Fatalf("expected a single settle debit, got %d", len(ldg.debits))
	}
	if !ldg.wallets[w.ID].Balance.Equal(decimal.NewFromInt(400)) {
		t.Fatal("repeat complete must not move money again")
	}
}

func TestCompleteRequiresProcessing(t *testing.T) {
	repo := newStubRepo()
	ldg := newStubLedger()
	w := ldg.addWallet(decimal.NewFromInt(1000))
	svc := newTestService(t, repo, ldg, &stubLimits{}, &stubSubmitter{})

	request := requestWithdrawal(t, svc, w, 600)
	_, err := svc.Complete(context.Background(), request.ID)
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCancelOnlyFromRequested(t *testing.T) {
	repo := newStubRepo()
	ldg := newStubLedger()
	w := ldg.addWallet(decimal.NewFromInt(1000))
	submitter := &stubSubmitter{results: []submitOutcome{
		{result: payout.SubmitResult{Accepted: true}},
	}}
	svc := newTestService(t, repo, ldg, &stubLimits{}, submitter)

	request := requestWithdrawal(t, svc, w, 600)
	cancelled, err := svc.Cancel(context.Background(), request.ID, w.OwnerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != enums.WithdrawalStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if !ldg.wallets[w.ID].AvailableBalance.Equal(decimal.NewFromInt(1000)) {
		t.Fatal("cancel must release the hold")
	}

	second := requestWithdrawal(t, svc, w, 600)
	if _, err := svc.Process(context.Background(), second.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = svc.Cancel(context.Background(), second.ID, w.OwnerID)
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict cancelling a settled withdrawal, got %v", err)
	}
}
