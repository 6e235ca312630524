package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tradebazaar/finance-backend/api/middleware"
	"github.com/tradebazaar/finance-backend/api/responses"
	"github.com/tradebazaar/finance-backend/api/validators"
	"github.com/tradebazaar/finance-backend/internal/wallet"
	"github.com/tradebazaar/finance-backend/pkg/enums"
	pkgerrors "github.com/tradebazaar/finance-backend/pkg/errors"
	"github.com/tradebazaar/finance-backend/pkg/logger"
)

type movementBody struct {
	Amount         decimal.Decimal `json:"amount"`
	Reference      string          `json:"reference" validate:"max=255"`
	Description    string          `json:"description" validate:"max=500"`
	IdempotencyKey string          `json:"idempotency_key" validate:"required,max=128"`
}

// CreditWallet applies a ledger credit to the wallet in the path.
func CreditWallet(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		walletID, err := parseUUIDParam(r, "walletId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing"))
			return
		}

		var body movementBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Credit(r.Context(), wallet.CreditInput{
			WalletID:       walletID,
			Amount:         body.Amount,
			Reference:      body.Reference,
			Description:    body.Description,
			IdempotencyKey: body.IdempotencyKey,
			ActorID:        actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, txn)
	}
}

// DebitWallet applies a ledger debit against the wallet's available balance.
func DebitWallet(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		walletID, err := parseUUIDParam(r, "walletId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing"))
			return
		}

		var body movementBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Debit(r.Context(), wallet.DebitInput{
			WalletID:       walletID,
			Amount:         body.Amount,
			Reference:      body.Reference,
			Description:    body.Description,
			IdempotencyKey: body.IdempotencyKey,
			ActorID:        actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, txn)
	}
}

// WalletSnapshot returns the current balances for one wallet.
func WalletSnapshot(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		walletID, err := parseUUIDParam(r, "walletId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.GetWallet(r.Context(), walletID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// OwnerWallets returns the owner's wallets, provisioning any missing kinds.
func OwnerWallets(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		ownerID, err := parseUUIDParam(r, "ownerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wallets, err := svc.OwnerWallets(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"wallets": wallets})
	}
}

// WalletTransactions returns a page of the wallet's ledger history.
func WalletTransactions(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		walletID, err := parseUUIDParam(r, "walletId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := wallet.TransactionFilters{}
		if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
			txnType, err := enums.ParseTransactionType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction type"))
				return
			}
			filters.Type = &txnType
		}
		if filters.DateFrom, err = validators.ParseQueryTime(r, "date_from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filters.DateTo, err = validators.ParseQueryTime(r, "date_to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListTransactions(r.Context(), walletID, params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
