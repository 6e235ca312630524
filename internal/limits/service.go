package limits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradebazaar/finance-backend/internal/audit"
	"github.com/tradebazaar/finance-backend/pkg/config"
	"github.com/tradebazaar/finance-backend/pkg/db/models"
	"github.com/tradebazaar/finance-backend/pkg/enums"
	pkgerrors "github.com/tradebazaar/finance-backend/pkg/errors"
)

const (
	dailyWindow   = 24 * time.Hour
	monthlyWindow = 30 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service enforces per-owner caps on money leaving a wallet. Checks are
// advisory for credits and mandatory for withdrawals and escrow debits.
type Service interface {
	Check(ctx context.Context, ownerID uuid.UUID, operation enums.TransactionType, amount decimal.Decimal) error
	GetLimits(ctx context.Context, ownerID uuid.UUID) (*models.TransactionLimits, error)
	UpdateLimits(ctx context.Context, input UpdateInput) (*models.TransactionLimits, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	auditor  audit.Recorder
	defaults models.TransactionLimits
	now      func() time.Time
}

// NewService parses the configured default caps and builds the enforcer.
func NewService(repo Repository, tx txRunner, auditor audit.Recorder, cfg config.LimitsConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("limits repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}

	defaults, err := parseDefaults(cfg)
	if err != nil {
		return nil, err
	}

	return &service{
		repo:     repo,
		tx:       tx,
		auditor:  auditor,
		defaults: defaults,
		now:      time.Now,
	}, nil
}

func parseDefaults(cfg config.LimitsConfig) (models.TransactionLimits, error) {
	var out models.TransactionLimits
	fields := []struct {
		name  string
		raw   string
		value *decimal.Decimal
	}{
		{"daily withdrawal", cfg.DailyWithdrawal, &out.DailyWithdrawal},
		{"monthly withdrawal", cfg.MonthlyWithdrawal, &out.MonthlyWithdrawal},
		{"minimum withdrawal", cfg.MinimumWithdrawal, &out.MinimumWithdrawal},
		{"maximum withdrawal", cfg.MaximumWithdrawal, &out.MaximumWithdrawal},
		{"single transaction", cfg.SingleTransaction, &out.SingleTransaction},
	}
	for _, f := range fields {
		parsed, err := decimal.NewFromString(f.raw)
		if err != nil {
			return out, fmt.Errorf("parsing %s limit %q: %w", f.name, f.raw, err)
		}
		*f.value = parsed
	}
	return out, nil
}

// Check validates the operation against the owner's caps. Credits are
// never blocked. The single transaction cap wins over the daily cap
// when one amount trips both.
func (s *service) Check(ctx context.Context, ownerID uuid.UUID, operation enums.TransactionType, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if operation == enums.TransactionTypeCredit {
		return nil
	}

	limits, err := s.ownerLimits(ctx, ownerID)
	if err != nil {
		return err
	}

	if amount.LessThan(limits.MinimumWithdrawal) {
		return limitExceeded(enums.LimitKindMinimumWithdrawal, limits.MinimumWithdrawal,
			"amount is below the minimum withdrawal")
	}
	if amount.GreaterThan(limits.SingleTransaction) {
		return limitExceeded(enums.LimitKindSingleTransaction, limits.SingleTransaction,
			"amount exceeds the single transaction cap")
	}
	if amount.GreaterThan(limits.MaximumWithdrawal) {
		return limitExceeded(enums.LimitKindMaximumWithdrawal, limits.MaximumWithdrawal,
			"amount exceeds the maximum withdrawal")
	}

	now := s.now()

	dailySum, err := s.repo.SumWithdrawalsSince(ctx, ownerID, now.Add(-dailyWindow))
	if err != nil {
		return err
	}
	if dailySum.Add(amount).GreaterThan(limits.DailyWithdrawal) {
		return limitExceeded(enums.LimitKindDailyWithdrawal, limits.DailyWithdrawal,
			"amount exceeds the rolling daily withdrawal cap")
	}

	monthlySum, err := s.repo.SumWithdrawalsSince(ctx, ownerID, now.Add(-monthlyWindow))
	if err != nil {
		return err
	}
	if monthlySum.Add(amount).GreaterThan(limits.MonthlyWithdrawal) {
		return limitExceeded(enums.LimitKindMonthlyWithdrawal, limits.MonthlyWithdrawal,
			"amount exceeds the rolling monthly withdrawal cap")
	}

	return nil
}

func (s *service) GetLimits(ctx context.Context, ownerID uuid.UUID) (*models.TransactionLimits, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	return s.ownerLimits(ctx, ownerID)
}

func (s *service) UpdateLimits(ctx context.Context, input UpdateInput) (*models.TransactionLimits, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}

	current, err := s.ownerLimits(ctx, input.OwnerID)
	if err != nil {
		return nil, err
	}
	input.applyTo(current)

	if current.MinimumWithdrawal.GreaterThan(current.MaximumWithdrawal) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum withdrawal cannot exceed maximum withdrawal")
	}
	if current.DailyWithdrawal.GreaterThan(current.MonthlyWithdrawal) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "daily withdrawal cannot exceed monthly withdrawal")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpsertLimits(ctx, current); err != nil {
			return err
		}
		return s.auditor.Record(ctx, tx, audit.Entry{
			EntityType: "transaction_limits",
			EntityID:   input.OwnerID,
			Action:     "limits.updated",
			ActorID:    input.ActorID,
			Detail: map[string]any{
				"daily_withdrawal":   current.DailyWithdrawal,
				"monthly_withdrawal": current.MonthlyWithdrawal,
				"minimum_withdrawal": current.MinimumWithdrawal,
				"maximum_withdrawal": current.MaximumWithdrawal,
				"single_transaction": current.SingleTransaction,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}

// ownerLimits returns the stored caps, falling back to the configured
// defaults for owners that never customized theirs.
func (s *service) ownerLimits(ctx context.Context, ownerID uuid.UUID) (*models.TransactionLimits, error) {
	limits, err := s.repo.FindLimits(ctx, ownerID)
	if err == nil {
		return limits, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	fallback := s.defaults
	fallback.OwnerID = ownerID
	return &fallback, nil
}

func limitExceeded(kind enums.LimitKind, limit decimal.Decimal, message string) error {
	return pkgerrors.New(pkgerrors.CodeLimitExceeded, message).WithDetails(map[string]any{
		"kind":  kind,
		"limit": limit,
	})
}
