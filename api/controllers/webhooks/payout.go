package webhooks

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"

	"github.com/tradebazaar/finance-backend/api/responses"
	"github.com/tradebazaar/finance-backend/api/validators"
	"github.com/tradebazaar/finance-backend/pkg/db/models"
	pkgerrors "github.com/tradebazaar/finance-backend/pkg/errors"
	"github.com/tradebazaar/finance-backend/pkg/logger"
)

const signatureHeader = "X-Payout-Signature"

// settlementService is the slice of the withdrawal processor the payout
// callback drives.
type settlementService interface {
	Complete(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	Fail(ctx context.Context, id uuid.UUID, reason string) (*models.WithdrawalRequest, error)
}

type payoutEventBody struct {
	OperationID   uuid.UUID `json:"operation_id" validate:"required"`
	Status        string    `json:"status" validate:"required,oneof=completed failed"`
	FailureReason string    `json:"failure_reason" validate:"max=500"`
}

// PayoutWebhook handles completion callbacks from the bank payout
// partner. Both outcomes are idempotent downstream, so partner retries
// are safe.
func PayoutWebhook(svc settlementService, webhookSecret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "withdrawals service unavailable"))
			return
		}

		if webhookSecret != "" {
			signature := r.Header.Get(signatureHeader)
			if subtle.ConstantTimeCompare([]byte(signature), []byte(webhookSecret)) != 1 {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
				return
			}
		}

		var body payoutEventBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var err error
		switch body.Status {
		case "completed":
			_, err = svc.Complete(ctx, body.OperationID)
		case "failed":
			reason := body.FailureReason
			if reason == "" {
				reason = "payout failed at partner"
			}
			_, err = svc.Fail(ctx, body.OperationID, reason)
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"operation_id": body.OperationID,
				"status":       body.Status,
			})
			logg.Info(ctx, "payout.webhook.processed")
		}
		responses.WriteSuccess(w, nil)
	}
}
