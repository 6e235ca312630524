package fraud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradebazaar/finance-backend/internal/audit"
	"github.com/tradebazaar/finance-backend/pkg/db/models"
	"github.com/tradebazaar/finance-backend/pkg/enums"
	pkgerrors "github.com/tradebazaar/finance-backend/pkg/errors"
	"github.com/tradebazaar/finance-backend/pkg/metrics"
	"github.com/tradebazaar/finance-backend/pkg/pagination"
)

const historyWindow = 24 * time.Hour

var (
	largeAmountThreshold  = decimal.NewFromInt(10000)
	roundAmountStep       = decimal.NewFromInt(1000)
	deviationMultiplier   = decimal.NewFromInt(3)
	velocityCountPerHour  = 5
	highRiskThreshold     = 0.8
	mediumRiskThreshold   = 0.5
	weightLargeAmount     = 0.35
	weightHistoryDeviance = 0.3
	weightVelocity        = 0.3
	weightRoundAmount     = 0.1
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service evaluates ledger transactions for fraud risk. A flagged score
// lands in the review queue; it never blocks or reverses the movement.
type Service interface {
	Evaluate(ctx context.Context, transactionID uuid.UUID) (*models.FraudScore, error)
	GetByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.FraudScore, error)
	ReviewQueue(ctx context.Context, params pagination.Params) (*ScoreList, error)
	MarkReviewed(ctx context.Context, scoreID, actorID uuid.UUID) (*models.FraudScore, error)
}

// ScoreList wraps one page of flagged scores awaiting review.
type ScoreList struct {
	Scores     []models.FraudScore `json:"scores"`
	Pagination pagination.Page     `json:"pagination"`
}

type service struct {
	repo    Repository
	tx      txRunner
	auditor audit.Recorder
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

// NewService builds the fraud scorer with the required dependencies.
func NewService(repo Repository, tx txRunner, auditor audit.Recorder, ledgerMetrics *metrics.LedgerMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("fraud repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		auditor: auditor,
		metrics: ledgerMetrics,
		now:     time.Now,
	}, nil
}

// Evaluate scores one transaction against the wallet's recent history.
// Repeat calls for the same transaction return the stored score.
func (s *service) Evaluate(ctx context.Context, transactionID uuid.UUID) (*models.FraudScore, error) {
	if transactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}

	if existing, err := s.repo.FindScoreByTransaction(ctx, transactionID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	txn, err := s.repo.FindTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, err
	}
	wallet, err := s.repo.FindWallet(ctx, txn.WalletID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.RecentTransactions(ctx, txn.WalletID, txn.CreatedAt.Add(-historyWindow))
	if err != nil {
		return nil, err
	}

	scoreValue, reasons := scoreTransaction(txn, history)
	level := riskLevel(scoreValue)

	score := &models.FraudScore{
		ID:            uuid.New(),
		TransactionID: txn.ID,
		OwnerID:       wallet.OwnerID,
		Score:         scoreValue,
		RiskLevel:     level,
		Flagged:       level == enums.RiskLevelMedium || level == enums.RiskLevelHigh,
		Reasons:       pq.StringArray(reasons),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateScore(ctx, score); err != nil {
			return err
		}
		if !score.Flagged {
			return nil
		}
		return s.auditor.Record(ctx, tx, audit.Entry{
			EntityType: "fraud_score",
			EntityID:   score.ID,
			Action:     "fraud.flagged",
			ActorID:    wallet.OwnerID,
			Detail: map[string]any{
				"transaction_id": txn.ID,
				"score":          scoreValue,
				"risk_level":     level,
				"reasons":        reasons,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if score.Flagged {
		s.metrics.IncFlagged()
	}

	// A concurrent evaluation may have won the insert.
	stored, err := s.repo.FindScoreByTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *service) GetByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.FraudScore, error) {
	score, err := s.repo.FindScoreByTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fraud score not found")
		}
		return nil, err
	}
	return score, nil
}

func (s *service) ReviewQueue(ctx context.Context, params pagination.Params) (*ScoreList, error) {
	scores, total, err := s.repo.ListReviewQueue(ctx, params)
	if err != nil {
		return nil, err
	}
	return &ScoreList{
		Scores:     scores,
		Pagination: pagination.PageOf(params, total),
	}, nil
}

func (s *service) MarkReviewed(ctx context.Context, scoreID, actorID uuid.UUID) (*models.FraudScore, error) {
	score, err := s.repo.FindScore(ctx, scoreID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "fraud score not found")
		}
		return nil, err
	}
	if score.Reviewed {
		return score, nil
	}

	score.Reviewed = true
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SaveScore(ctx, score); err != nil {
			return err
		}
		return s.auditor.Record(ctx, tx, audit.Entry{
			EntityType: "fraud_score",
			EntityID:   score.ID,
			Action:     "fraud.reviewed",
			ActorID:    actorID,
			Detail:     map[string]any{"transaction_id": score.TransactionID},
		})
	})
	if err != nil {
		return nil, err
	}
	return score, nil
}

// scoreTransaction is deterministic: identical inputs produce the same
// score and reasons. History excludes the transaction being scored.
func scoreTransaction(txn *models.Transaction, history []models.Transaction) (float64, []string) {
	var score float64
	var reasons []string

	if txn.Amount.GreaterThanOrEqual(largeAmountThreshold) {
		score += weightLargeAmount
		reasons = append(reasons, "amount at or above the large transaction threshold")
	}

	var priorCount int
	priorSum := decimal.Zero
	recentHour := 0
	for _, prior := range history {
		if prior.ID == txn.ID {
			continue
		}
		priorCount++
		priorSum = priorSum.Add(prior.Amount)
		if txn.CreatedAt.Sub(prior.CreatedAt) <= time.Hour {
			recentHour++
		}
	}

	if priorCount > 0 {
		average := priorSum.Div(decimal.NewFromInt(int64(priorCount)))
		if average.IsPositive() && txn.Amount.GreaterThan(average.Mul(deviationMultiplier)) {
			score += weightHistoryDeviance
			reasons = append(reasons, "amount deviates sharply from recent history")
		}
	}

	if recentHour >= velocityCountPerHour {
		score += weightVelocity
		reasons = append(reasons, "high transaction velocity in the past hour")
	}

	if txn.Amount.GreaterThanOrEqual(largeAmountThreshold) && txn.Amount.Mod(roundAmountStep).IsZero() {
		score += weightRoundAmount
		reasons = append(reasons, "large round amount")
	}

	if score > 1 {
		score = 1
	}
	return score, reasons
}

func riskLevel(score float64) enums.RiskLevel {
	switch {
	case score > highRiskThreshold:
		return enums.RiskLevelHigh
	case score > mediumRiskThreshold:
		return enums.RiskLevelMedium
	default:
		return enums.RiskLevelLow
	}
}
