package controllers

import (
	"net/http"

	"github.com/tradebazaar/finance-backend/api/middleware"
	"github.com/tradebazaar/finance-backend/api/responses"
	"github.com/tradebazaar/finance-backend/api/validators"
	"github.com/tradebazaar/finance-backend/internal/fraud"
	pkgerrors "github.com/tradebazaar/finance-backend/pkg/errors"
	"github.com/tradebazaar/finance-backend/pkg/logger"
)

// FraudCheck scores the transaction in the path, or returns the stored
// score when one already exists.
func FraudCheck(svc fraud.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fraud service unavailable"))
			return
		}

		transactionID, err := parseUUIDParam(r, "transactionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		score, err := svc.Evaluate(r.Context(), transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, score)
	}
}

// FraudReviewQueue lists flagged scores awaiting manual review.
func FraudReviewQueue(svc fraud.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fraud service unavailable"))
			return
		}

		params, err := validators.ParsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ReviewQueue(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// FraudMarkReviewed records that an analyst looked at a flagged score.
func FraudMarkReviewed(svc fraud.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fraud service unavailable"))
			return
		}

		scoreID, err := parseUUIDParam(r, "scoreId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing"))
			return
		}

		score, err := svc.MarkReviewed(r.Context(), scoreID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, score)
	}
}
