package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tradebazaar/finance-backend/api/middleware"
	"github.com/tradebazaar/finance-backend/api/responses"
	"github.com/tradebazaar/finance-backend/api/validators"
	"github.com/tradebazaar/finance-backend/internal/limits"
	pkgerrors "github.com/tradebazaar/finance-backend/pkg/errors"
	"github.com/tradebazaar/finance-backend/pkg/logger"
)

type limitsBody struct {
	DailyWithdrawal   *decimal.Decimal `json:"daily_withdrawal"`
	MonthlyWithdrawal *decimal.Decimal `json:"monthly_withdrawal"`
	MinimumWithdrawal *decimal.Decimal `json:"minimum_withdrawal"`
	MaximumWithdrawal *decimal.Decimal `json:"maximum_withdrawal"`
	SingleTransaction *decimal.Decimal `json:"single_transaction"`
}

// GetLimits returns the owner's effective withdrawal caps.
func GetLimits(svc limits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "limits service unavailable"))
			return
		}

		ownerID, err := parseUUIDParam(r, "ownerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		current, err := svc.GetLimits(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, current)
	}
}

// UpdateLimits overrides a subset of the owner's caps.
func UpdateLimits(svc limits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "limits service unavailable"))
			return
		}

		ownerID, err := parseUUIDParam(r, "ownerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing"))
			return
		}

		var body limitsBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateLimits(r.Context(), limits.UpdateInput{
			OwnerID:           ownerID,
			ActorID:           actorID,
			DailyWithdrawal:   body.DailyWithdrawal,
			MonthlyWithdrawal: body.MonthlyWithdrawal,
			MinimumWithdrawal: body.MinimumWithdrawal,
			MaximumWithdrawal: body.MaximumWithdrawal,
			SingleTransaction: body.SingleTransaction,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}
