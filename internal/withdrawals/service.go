package withdrawals

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/tradebazaar/finance-backend/pkg/logger"
	"github.com/tradebazaar/finance-backend/pkg/pagination"
	"github.com/tradebazaar/finance-backend/pkg/payout"
)

// Service drives a withdrawal through requested, processing, and one of
// the terminal states. Every money movement rides the ledger; the hold,
// release, and settle debit share a transaction with the status change
// so a crash leaves the request resumable, never half-settled.
type Service interface {
	Request(ctx context.Context, input CreateInput) (*models.WithdrawalRequest, error)
	Process(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	Complete(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	Fail(ctx context.Context, id uuid.UUID, reason string) (*models.WithdrawalRequest, error)
	Cancel(ctx context.Context, id, actorID uuid.UUID) (*models.WithdrawalRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	List(ctx context.Context, ownerID uuid.UUID, params pagination.Params) (*WithdrawalList, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	ledger      ledger
	limits      limitChecker
	payout      payout.Submitter
	fraud       scorer
	auditor     audit.Recorder
	logger      *logger.Logger
	fee         decimal.Decimal
	maxAttempts int
	backoff     time.Duration
}

// NewService parses the fee configuration and builds the processor.
func NewService(repo Repository, tx txRunner, ldg ledger, limits limitChecker, submitter payout.Submitter, fraudScorer scorer, auditor audit.Recorder, logg *logger.Logger, cfg config.WithdrawalsConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("withdrawals repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ldg == nil {
		return nil, fmt.Errorf("wallet ledger required")
	}
	if limits == nil {
		return nil, fmt.Errorf("limit checker required")
	}
	if submitter == nil {
		return nil, fmt.Errorf("payout submitter required")
	}
	if fraudScorer == nil {
		return nil, fmt.Errorf("fraud scorer required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}

	fee, err := decimal.NewFromString(cfg.ProcessingFee)
	if err != nil {
		return nil, fmt.Errorf("parsing processing fee %q: %w", cfg.ProcessingFee, err)
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1")
	}

	return &service{
		repo:        repo,
		tx:          tx,
		ledger:      ldg,
		limits:      limits,
		payout:      submitter,
		fraud:       fraudScorer,
		auditor:     auditor,
		logger:      logg,
		fee:         fee,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.RetryBackoff,
	}, nil
}

// Request validates the withdrawal, checks the owner's caps, and places
// the hold. The request starts in requested; the settlement worker or an
// explicit Process call moves it forward.
func (s *service) Request(ctx context.Context, input CreateInput) (*models.WithdrawalRequest, error) {
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.Amount.LessThanOrEqual(s.fee) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must exceed the processing fee")
	}
	if input.BankReference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank reference required")
	}

	w, err := s.ledger.GetWallet(ctx, input.WalletID)
	if err != nil {
		return nil, err
	}
	if w.OwnerID != input.OwnerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet does not belong to the owner")
	}

	if err := s.limits.Check(ctx, input.OwnerID, enums.TransactionTypeDebit, input.Amount); err != nil {
		return nil, err
	}

	request := &models.WithdrawalRequest{
		ID:            uuid.New(),
		WalletID:      input.WalletID,
		OwnerID:       input.OwnerID,
		Amount:        input.Amount,
		Fee:           s.fee,
		BankReference: input.BankReference,
		Status:        enums.WithdrawalStatusRequested,
		RequestedAt:   time.Now().UTC(),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, request); err != nil {
			return err
		}
		if err := s.ledger.HoldInTx(ctx, tx, wallet.HoldInput{
			WalletID: input.WalletID,
			Amount:   input.Amount,
			ActorID:  input.ActorID,
			Reason:   "withdrawal " + request.ID.String(),
		}); err != nil {
			return err
		}
		return s.auditor.Record(ctx, tx, audit.Entry{
			EntityType: "withdrawal_request",
			EntityID:   request.ID,
			Action:     "withdrawal.requested",
			ActorID:    input.ActorID,
			Detail: map[string]any{
				"wallet_id": input.WalletID,
				"amount":    input.Amount,
				"fee":       s.fee,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Process submits the payout to the bank partner and settles the
// request. It accepts requested and processing states so the worker can
// resume a request stranded by a restart; transport failures retry with
// backoff until the attempts are exhausted, then the hold is released.
// Each attempt is counted with a status-guarded update so a settlement
// that arrived through the webhook mid-retry stays terminal.
func (s *service) Process(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	request, err := s.markProcessing(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status.IsTerminal() {
		return request, nil
	}

	for {
		refreshed, bumped, err := s.repo.BumpAttempts(ctx, id)
		if err != nil {
			return nil, err
		}
		request = refreshed
		if !bumped {
			// Another driver settled the request between attempts,
			// usually the payout webhook. The refreshed row carries
			// the terminal state.
			return request, nil
		}

		result, err := s.payout.Submit(ctx, payout.SubmitRequest{
			OperationID:   request.ID.String(),
			Amount:        request.NetAmount(),
			Currency:      enums.CurrencyINR.String(),
			BankReference: request.BankReference,
		})
		if err != nil {
			if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
				return nil, err
			}
			if s.logger != nil {
				s.logger.Warn(ctx, "withdrawal payout attempt failed: "+err.Error())
			}
			if request.Attempts >= s.maxAttempts {
				return s.Fail(ctx, id, "payout attempts exhausted")
			}
			select {
			case <-time.After(s.backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		if !result.Accepted {
			reason := result.Reason
			if reason == "" {
				reason = "payout rejected by the bank partner"
			}
			return s.Fail(ctx, id, reason)
		}
		return s.Complete(ctx, id)
	}
}

// markProcessing transitions requested to processing. Already-processing
// requests pass through untouched; terminal ones are returned as-is so
// Process can report them without re-settling.
func (s *service) markProcessing(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var request *models.WithdrawalRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal request not found")
			}
			return err
		}
		request = found

		switch request.Status {
		case enums.WithdrawalStatusProcessing, enums.WithdrawalStatusCompleted,
			enums.WithdrawalStatusFailed, enums.WithdrawalStatusCancelled:
			return nil
		case enums.WithdrawalStatusRequested:
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "withdrawal cannot start processing from "+request.Status.String())
		}

		request.Status = enums.WithdrawalStatusProcessing
		if err := repo.Save(ctx, request); err != nil {
			return err
		}
		return s.auditor.Record(ctx, tx, audit.Entry{
			EntityType: "withdrawal_request",
			EntityID:   request.ID,
			Action:     "withdrawal.processing",
			ActorID:    request.OwnerID,
			Detail:     map[string]any{"attempts": request.Attempts},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Complete settles a processing request: the hold is released and the
// same amount debited in one transaction with the status change, so
// either all three land or the request stays processing. Completing an
// already-completed request is a no-op. The settlement debit is fraud
// scored after the commit.
func (s *service) Complete(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var request *models.WithdrawalRequest
	var settleTxn *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal request not found")
			}
			return err
		}
		request = found

		if request.Status == enums.WithdrawalStatusCompleted {
			return nil
		}
		if request.Status != enums.WithdrawalStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "withdrawal cannot complete from "+request.Status.String())
		}

		if err := s.ledger.ReleaseInTx(ctx, tx, wallet.ReleaseInput{
			WalletID: request.WalletID,
			Amount:   request.Amount,
			ActorID:  request.OwnerID,
			Reason:   "withdrawal " + request.ID.String() + " settled",
		}); err != nil {
			return err
		}
		txn, err := s.ledger.DebitInTx(ctx, tx, wallet.DebitInput{
			WalletID:       request.WalletID,
			Amount:         request.Amount,
			Fee:            request.Fee,
			Reference:      request.BankReference,
			Description:    "withdrawal payout",
			IdempotencyKey: "withdrawal:" + request.ID.String(),
			ActorID:        request.OwnerID,
		})
		if err != nil {
			return err
		}
		settleTxn = txn

		now := time.Now().UTC()
		request.Status = enums.WithdrawalStatusCompleted
		request.CompletedAt = &now
		if err := repo.Save(ctx, request); err != nil {
			return err
		}
		return s.auditor.Record(ctx, tx, audit.Entry{
			EntityType: "withdrawal_request",
			EntityID:   request.ID,
			Action:     "withdrawal.completed",
			ActorID:    request.OwnerID,
			Detail: map[string]any{
				"transaction_id": txn.ID,
				"amount":         request.Amount,
				"net_amount":     request.NetAmount(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	// Replays leave settleTxn nil; the debit was scored when it first
	// landed. Scoring flags for review and never fails the settlement.
	if settleTxn != nil {
		if _, scoreErr := s.fraud.Evaluate(ctx, settleTxn.ID); scoreErr != nil && s.logger != nil {
			s.logger.Warn(ctx, "fraud scoring failed for withdrawal "+request.ID.String()+": "+scoreErr.Error())
		}
	}
	return request, nil
}

// Fail releases the hold intact and parks the request in failed. This is
// the one place a failure triggers a compensating ledger action.
func (s *service) Fail(ctx context.Context, id uuid.UUID, reason string) (*models.WithdrawalRequest, error) {
	var request *models.WithdrawalRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal request not found")
			}
			return err
		}
		request = found

		if request.Status == enums.WithdrawalStatusFailed {
			return nil
		}
		if request.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "withdrawal cannot fail from "+request.Status.String())
		}

		if err := s.ledger.ReleaseInTx(ctx, tx, wallet.ReleaseInput{
			WalletID: request.WalletID,
			Amount:   request.Amount,
			ActorID:  request.OwnerID,
			Reason:   "withdrawal " + request.ID.String() + " failed",
		}); err != nil {
			return err
		}

		request.Status = enums.WithdrawalStatusFailed
		request.FailureReason = &reason
		if err := repo.Save(ctx, request); err != nil {
			return err
		}
		return s.auditor.Record(ctx, tx, audit.Entry{
			EntityType: "withdrawal_request",
			EntityID:   request.ID,
			Action:     "withdrawal.failed",
			ActorID:    request.OwnerID,
			Detail:     map[string]any{"reason": reason},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Cancel aborts a withdrawal the owner changed their mind about. Only
// requested withdrawals can be cancelled; once processing starts the
// payout may already be in flight.
func (s *service) Cancel(ctx context.Context, id, actorID uuid.UUID) (*models.WithdrawalRequest, error) {
	var request *models.WithdrawalRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal request not found")
			}
			return err
		}
		request = found

		if request.Status != enums.WithdrawalStatusRequested {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "withdrawal cannot be cancelled from "+request.Status.String())
		}

		if err := s.ledger.ReleaseInTx(ctx, tx, wallet.ReleaseInput{
			WalletID: request.WalletID,
			Amount:   request.Amount,
			ActorID:  actorID,
			Reason:   "withdrawal " + request.ID.String() + " cancelled",
		}); err != nil {
			return err
		}

		request.Status = enums.WithdrawalStatusCancelled
		if err := repo.Save(ctx, request); err != nil {
			return err
		}
		return s.auditor.Record(ctx, tx, audit.Entry{
			EntityType: "withdrawal_request",
			EntityID:   request.ID,
			Action:     "withdrawal.cancelled",
			ActorID:    actorID,
			Detail:     map[string]any{"amount": request.Amount},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	request, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal request not found")
		}
		return nil, err
	}
	return request, nil
}

func (s *service) List(ctx context.Context, ownerID uuid.UUID, params pagination.Params) (*WithdrawalList, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	requests, total, err := s.repo.ListByOwner(ctx, ownerID, params)
	if err != nil {
		return nil, err
	}
	return &WithdrawalList{
		Withdrawals: requests,
		Pagination:  pagination.PageOf(params, total),
	}, nil
}
