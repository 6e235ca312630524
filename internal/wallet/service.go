package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradebazaar/finance-backend/internal/audit"
	"github.com/tradebazaar/finance-backend/pkg/db"
	"github.com/tradebazaar/finance-backend/pkg/db/models"
	"github.com/tradebazaar/finance-backend/pkg/enums"
	pkgerrors "github.com/tradebazaar/finance-backend/pkg/errors"
	"github.com/tradebazaar/finance-backend/pkg/metrics"
	"github.com/tradebazaar/finance-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the wallet ledger, the only component allowed to mutate
// balances. The InTx variants run inside the caller's transaction so an
// orchestrator can link a ledger movement to its own state change; the
// plain variants wrap one movement in its own transaction.
type Service interface {
	Credit(ctx context.Context, input CreditInput) (*models.Transaction, error)
	Debit(ctx context.Context, input DebitInput) (*models.Transaction, error)
	Hold(ctx context.Context, input HoldInput) error
	Release(ctx context.Context, input ReleaseInput) error

	CreditInTx(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.Transaction, error)
	DebitInTx(ctx context.Context, tx *gorm.DB, input DebitInput) (*models.Transaction, error)
	HoldInTx(ctx context.Context, tx *gorm.DB, input HoldInput) error
	ReleaseInTx(ctx context.Context, tx *gorm.DB, input ReleaseInput) error

	GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)
	OwnerWallets(ctx context.Context, ownerID uuid.UUID) ([]models.Wallet, error)
	OwnerWallet(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*models.Wallet, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params, filters TransactionFilters) (*TransactionList, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	auditor audit.Recorder
	metrics *metrics.LedgerMetrics
}

// NewService builds the ledger with the required dependencies.
func NewService(repo Repository, tx txRunner, auditor audit.Recorder, ledgerMetrics *metrics.LedgerMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
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
	}, nil
}

func (s *service) Credit(ctx context.Context, input CreditInput) (*models.Transaction, error) {
	return s.move(ctx, "credit", input.WalletID, input.IdempotencyKey, func(tx *gorm.DB) (*models.Transaction, error) {
		return s.CreditInTx(ctx, tx, input)
	})
}

func (s *service) Debit(ctx context.Context, input DebitInput) (*models.Transaction, error) {
	return s.move(ctx, "debit", input.WalletID, input.IdempotencyKey, func(tx *gorm.DB) (*models.Transaction, error) {
		return s.DebitInTx(ctx, tx, input)
	})
}

// move wraps one ledger movement in its own transaction. When two
// racing calls carry the same idempotency key, the loser's insert trips
// the unique index and the winner's transaction is replayed.
func (s *service) move(ctx context.Context, operation string, walletID uuid.UUID, idempotencyKey string, fn func(tx *gorm.DB) (*models.Transaction, error)) (*models.Transaction, error) {
	start := time.Now()
	var result *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = fn(tx)
		return err
	})
	if err != nil {
		if db.IsUniqueViolation(err, "idx_transactions_wallet_key") {
			return s.repo.FindTransactionByKey(ctx, walletID, idempotencyKey)
		}
		s.metrics.IncRejection(operation, string(pkgerrors.As(err).Code()))
		return nil, err
	}
	s.metrics.IncOperation(operation)
	s.metrics.ObserveDuration(operation, time.Since(start))
	return result, nil
}

// CreditInTx applies a credit inside the caller's transaction. A key
// already applied to the wallet returns the prior transaction untouched.
func (s *service) CreditInTx(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.Transaction, error) {
	if err := validateMovement(input.Amount, input.IdempotencyKey); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)

	if prior, err := repo.FindTransactionByKey(ctx, input.WalletID, input.IdempotencyKey); err == nil {
		return prior, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	wallet, err := s.lockWallet(ctx, repo, input.WalletID)
	if err != nil {
		return nil, err
	}

	wallet.Balance = wallet.Balance.Add(input.Amount)
	wallet.AvailableBalance = wallet.AvailableBalance.Add(input.Amount)
	if err := repo.SaveWallet(ctx, wallet); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		ID:             uuid.New(),
		WalletID:       wallet.ID,
		Type:           enums.TransactionTypeCredit,
		Amount:         input.Amount,
		Fee:            input.Fee,
		Tax:            input.Tax,
		BalanceAfter:   wallet.Balance,
		Status:         enums.TransactionStatusCompleted,
		Reference:      input.Reference,
		Description:    input.Description,
		IdempotencyKey: input.IdempotencyKey,
	}
	if _, err := repo.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	err = s.auditor.Record(ctx, tx, audit.Entry{
		EntityType: "wallet",
		EntityID:   wallet.ID,
		Action:     "wallet.credit",
		ActorID:    input.ActorID,
		Detail: map[string]any{
			"transaction_id": txn.ID,
			"amount":         input.Amount,
			"reference":      input.Reference,
		},
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// DebitInTx applies a debit inside the caller's transaction. It never
// lets the available balance go negative.
func (s *service) DebitInTx(ctx context.Context, tx *gorm.DB, input DebitInput) (*models.Transaction, error) {
	if err := validateMovement(input.Amount, input.IdempotencyKey); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)

	if prior, err := repo.FindTransactionByKey(ctx, input.WalletID, input.IdempotencyKey); err == nil {
		return prior, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	wallet, err := s.lockWallet(ctx, repo, input.WalletID)
	if err != nil {
		return nil, err
	}

	if input.Amount.GreaterThan(wallet.AvailableBalance) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "debit exceeds available balance")
	}

	wallet.Balance = wallet.Balance.Sub(input.Amount)
	wallet.AvailableBalance = wallet.AvailableBalance.Sub(input.Amount)
	if err := repo.SaveWallet(ctx, wallet); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		ID:             uuid.New(),
		WalletID:       wallet.ID,
		Type:           enums.TransactionTypeDebit,
		Amount:         input.Amount,
		Fee:            input.Fee,
		Tax:            input.Tax,
		BalanceAfter:   wallet.Balance,
		Status:         enums.TransactionStatusCompleted,
		Reference:      input.Reference,
		Description:    input.Description,
		IdempotencyKey: input.IdempotencyKey,
	}
	if _, err := repo.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	err = s.auditor.Record(ctx, tx, audit.Entry{
		EntityType: "wallet",
		EntityID:   wallet.ID,
		Action:     "wallet.debit",
		ActorID:    input.ActorID,
		Detail: map[string]any{
			"transaction_id": txn.ID,
			"amount":         input.Amount,
			"reference":      input.Reference,
		},
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) Hold(ctx context.Context, input HoldInput) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.HoldInTx(ctx, tx, input)
	})
	if err != nil {
		s.metrics.IncRejection("hold", string(pkgerrors.As(err).Code()))
		return err
	}
	s.metrics.IncOperation("hold")
	return nil
}

// HoldInTx moves funds from available to pending without writing a
// ledger transaction; the eventual settle or release accounts for it.
func (s *service) HoldInTx(ctx context.Context, tx *gorm.DB, input HoldInput) error {
	if !input.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "hold amount must be positive")
	}
	repo := s.repo.WithTx(tx)

	wallet, err := s.lockWallet(ctx, repo, input.WalletID)
	if err != nil {
		return err
	}

	if input.Amount.GreaterThan(wallet.AvailableBalance) {
		return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "hold exceeds available balance")
	}

	wallet.AvailableBalance = wallet.AvailableBalance.Sub(input.Amount)
	wallet.PendingAmount = wallet.PendingAmount.Add(input.Amount)
	if err := repo.SaveWallet(ctx, wallet); err != nil {
		return err
	}

	return s.auditor.Record(ctx, tx, audit.Entry{
		EntityType: "wallet",
		EntityID:   wallet.ID,
		Action:     "wallet.hold",
		ActorID:    input.ActorID,
		Detail: map[string]any{
			"amount": input.Amount,
			"reason": input.Reason,
		},
	})
}

func (s *service) Release(ctx context.Context, input ReleaseInput) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ReleaseInTx(ctx, tx, input)
	})
	if err != nil {
		s.metrics.IncRejection("release", string(pkgerrors.As(err).Code()))
		return err
	}
	s.metrics.IncOperation("release")
	return nil
}

// ReleaseInTx returns held funds to available. It refuses to push the
// pending amount negative.
func (s *service) ReleaseInTx(ctx context.Context, tx *gorm.DB, input ReleaseInput) error {
	if !input.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "release amount must be positive")
	}
	repo := s.repo.WithTx(tx)

	wallet, err := s.lockWallet(ctx, repo, input.WalletID)
	if err != nil {
		return err
	}

	if input.Amount.GreaterThan(wallet.PendingAmount) {
		return pkgerrors.New(pkgerrors.CodeInvalidHoldState, "release exceeds pending amount")
	}

	wallet.PendingAmount = wallet.PendingAmount.Sub(input.Amount)
	wallet.AvailableBalance = wallet.AvailableBalance.Add(input.Amount)
	if err := repo.SaveWallet(ctx, wallet); err != nil {
		return err
	}

	return s.auditor.Record(ctx, tx, audit.Entry{
		EntityType: "wallet",
		EntityID:   wallet.ID,
		Action:     "wallet.release",
		ActorID:    input.ActorID,
		Detail: map[string]any{
			"amount": input.Amount,
			"reason": input.Reason,
		},
	})
}

func (s *service) GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.repo.FindWallet(ctx, walletID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, err
	}
	return wallet, nil
}

// OwnerWallets returns all four purses for an owner, provisioning any
// that do not exist yet.
func (s *service) OwnerWallets(ctx context.Context, ownerID uuid.UUID) ([]models.Wallet, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}

	existing, err := s.repo.FindOwnerWallets(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	byKind := make(map[enums.WalletKind]bool, len(existing))
	for _, w := range existing {
		byKind[w.Kind] = true
	}
	if len(byKind) == len(enums.AllWalletKinds()) {
		return existing, nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, kind := range enums.AllWalletKinds() {
			if byKind[kind] {
				continue
			}
			wallet := &models.Wallet{
				ID:               uuid.New(),
				OwnerID:          ownerID,
				Kind:             kind,
				Balance:          decimal.Zero,
				AvailableBalance: decimal.Zero,
				PendingAmount:    decimal.Zero,
				FrozenAmount:     decimal.Zero,
				Currency:         enums.CurrencyINR,
			}
			if _, err := repo.CreateWallet(ctx, wallet); err != nil {
				if db.IsUniqueViolation(err, "idx_wallets_owner_kind") {
					continue
				}
				return err
			}
			if err := s.auditor.Record(ctx, tx, audit.Entry{
				EntityType: "wallet",
				EntityID:   wallet.ID,
				Action:     "wallet.provisioned",
				ActorID:    ownerID,
				Detail:     map[string]any{"kind": kind},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.FindOwnerWallets(ctx, ownerID)
}

func (s *service) OwnerWallet(ctx context.Context, ownerID uuid.UUID, kind enums.WalletKind) (*models.Wallet, error) {
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid wallet kind")
	}
	wallet, err := s.repo.FindOwnerWallet(ctx, ownerID, kind)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, err
	}
	return wallet, nil
}

func (s *service) ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params, filters TransactionFilters) (*TransactionList, error) {
	if walletID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id required")
	}
	transactions, total, err := s.repo.ListTransactions(ctx, walletID, params, filters)
	if err != nil {
		return nil, err
	}
	return &TransactionList{
		Transactions: transactions,
		Pagination:   pagination.PageOf(params, total),
	}, nil
}

func (s *service) lockWallet(ctx context.Context, repo Repository, walletID uuid.UUID) (*models.Wallet, error) {
	wallet, err := repo.FindWalletForUpdate(ctx, walletID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, err
	}
	return wallet, nil
}

func validateMovement(amount decimal.Decimal, idempotencyKey string) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if idempotencyKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	return nil
}
