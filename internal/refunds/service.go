package refunds

import (
	"context"
	"fmt"
	"time"

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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ledger is the slice of the wallet ledger the creditor needs.
type ledger interface {
	OwnerWallet(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*models.Wallet, error)
	CreditInTx(ctx context.Context, tx *gorm.DB, input wallet.CreditInput) (*models.Transaction, error)
}

// lifecycle is the slice of the return engine the creditor needs. All
// return mutations go through it; the creditor never touches rows.
type lifecycle interface {
	Get(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	FinalizeInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, decision enums.RefundDecision, actorID uuid.UUID) (*models.ReturnRequest, error)
	AttachRefundInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, record types.RefundRecord) error
}

// Service finalizes a quality-checked return and credits the approved
// amount back to the customer. The ledger credit is keyed by the return
// id, so even a retried finalize can move money at most once.
type Service interface {
	Process(ctx context.Context, returnID uuid.UUID, decision enums.RefundDecision, actorID uuid.UUID) (*types.RefundRecord, error)
}

type service struct {
	tx      txRunner
	ledger  ledger
	returns lifecycle
	auditor audit.Recorder
}

// NewService builds the refund creditor with the required dependencies.
func NewService(tx txRunner, ldg ledger, returns lifecycle, auditor audit.Recorder) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ldg == nil {
		return nil, fmt.Errorf("wallet ledger required")
	}
	if returns == nil {
		return nil, fmt.Errorf("return lifecycle engine required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{
		tx:      tx,
		ledger:  ldg,
		returns: returns,
		auditor: auditor,
	}, nil
}

// Process drives finalize and, for an approving decision, the credit.
// A return already in a terminal state replays its outcome instead of
// moving money again.
func (s *service) Process(ctx context.Context, returnID uuid.UUID, decision enums.RefundDecision, actorID uuid.UUID) (*types.RefundRecord, error) {
	if !decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid refund decision")
	}

	current, err := s.returns.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case enums.ReturnStatusRefunded:
		return current.Refund, nil
	case enums.ReturnStatusRejected:
		return nil, nil
	case enums.ReturnStatusCancelled:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled return cannot be finalized")
	}

	amount, err := refundAmount(current, decision)
	if err != nil {
		return nil, err
	}

	var record *types.RefundRecord
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		finalized, err := s.returns.FinalizeInTx(ctx, tx, returnID, decision, actorID)
		if err != nil {
			return err
		}
		if finalized.Status != enums.ReturnStatusRefunded {
			return nil
		}

		destination, err := s.ledger.OwnerWallet(ctx, finalized.CustomerID, enums.WalletKindMain)
		if err != nil {
			return err
		}

		result := types.RefundRecord{
			Amount:      amount,
			Decision:    decision.String(),
			WalletID:    destination.ID,
			InitiatedBy: actorID,
			InitiatedAt: time.Now().UTC(),
			Reference:   "return " + returnID.String(),
		}
		if amount.IsPositive() {
			txn, err := s.ledger.CreditInTx(ctx, tx, wallet.CreditInput{
				WalletID:       destination.ID,
				Amount:         amount,
				Reference:      "return " + returnID.String(),
				Description:    "refund for returned items",
				IdempotencyKey: returnID.String(),
				ActorID:        actorID,
			})
			if err != nil {
				return err
			}
			result.TransactionID = txn.ID
		}

		if err := s.returns.AttachRefundInTx(ctx, tx, returnID, result); err != nil {
			return err
		}
		record = &result

		return s.auditor.Record(ctx, tx, audit.Entry{
			EntityType: "return_request",
			EntityID:   returnID,
			Action:     "refund.credited",
			ActorID:    actorID,
			Detail: map[string]any{
				"amount":         amount,
				"decision":       decision,
				"wallet_id":      destination.ID,
				"transaction_id": result.TransactionID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// refundAmount computes the credit from the admin decision: the full
// estimate, the quality-check percentage of it, or nothing.
func refundAmount(request *models.ReturnRequest, decision enums.RefundDecision) (decimal.Decimal, error) {
	switch decision {
	case enums.RefundDecisionApprove:
		return request.EstimatedRefund, nil
	case enums.RefundDecisionPartial:
		if request.QualityCheck == nil {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeStateConflict, "return has no quality check result")
		}
		percentage := decimal.NewFromInt(int64(request.QualityCheck.RefundPercentage))
		return request.EstimatedRefund.Mul(percentage).Div(decimal.NewFromInt(100)).Round(2), nil
	case enums.RefundDecisionReject:
		return decimal.Zero, nil
	}
	return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "invalid refund decision")
}
