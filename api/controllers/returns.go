package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradebazaar/finance-backend/api/middleware"
	"github.com/tradebazaar/finance-backend/api/responses"
	"github.com/tradebazaar/finance-backend/api/validators"
	"github.com/tradebazaar/finance-backend/internal/refunds"
	"github.com/tradebazaar/finance-backend/internal/returns"
	"github.com/tradebazaar/finance-backend/pkg/enums"
	pkgerrors "github.com/tradebazaar/finance-backend/pkg/errors"
	"github.com/tradebazaar/finance-backend/pkg/logger"
	"github.com/tradebazaar/finance-backend/pkg/types"
)

type createReturnBody struct {
	OrderID         uuid.UUID          `json:"order_id" validate:"required"`
	VendorID        uuid.UUID          `json:"vendor_id" validate:"required"`
	Items           []types.ReturnItem `json:"items" validate:"required,min=1,dive"`
	PrimaryReason   string             `json:"primary_reason" validate:"required,max=255"`
	Description     string             `json:"description" validate:"max=2000"`
	EstimatedRefund decimal.Decimal    `json:"estimated_refund"`
}

type pickupBody struct {
	Date           string `json:"date" validate:"required"`
	TimeSlot       string `json:"time_slot" validate:"required"`
	Address        string `json:"address" validate:"required,max=500"`
	CourierPartner string `json:"courier_partner" validate:"required,max=100"`
}

type qualityCheckBody struct {
	Condition         string `json:"condition" validate:"required,max=100"`
	Notes             string `json:"notes" validate:"max=2000"`
	RefundEligibility string `json:"refund_eligibility" validate:"required,oneof=full partial none"`
	RefundPercentage  int    `json:"refund_percentage" validate:"min=0,max=100"`
	AdminDecision     string `json:"admin_decision" validate:"max=255"`
}

type finalizeBody struct {
	Decision string `json:"decision" validate:"required,oneof=approve partial reject"`
}

// CreateReturn opens a return request for the calling customer.
func CreateReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		actorID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing"))
			return
		}

		var body createReturnBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Create(r.Context(), returns.CreateInput{
			OrderID:         body.OrderID,
			CustomerID:      actorID,
			VendorID:        body.VendorID,
			Items:           types.ReturnItems(body.Items),
			PrimaryReason:   body.PrimaryReason,
			Description:     body.Description,
			EstimatedRefund: body.EstimatedRefund,
			ActorID:         actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

// ListReturns returns a page of return requests, optionally by status.
func ListReturns(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		params, err := validators.ParsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := returns.ListFilters{}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseReturnStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid return status"))
				return
			}
			filters.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("customer_id")); raw != "" {
			customerID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id"))
				return
			}
			filters.CustomerID = &customerID
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("vendor_id")); raw != "" {
			vendorID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid vendor id"))
				return
			}
			filters.VendorID = &vendorID
		}

		list, err := svc.List(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ReturnDetail returns one return request with its timeline.
func ReturnDetail(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		id, err := parseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

type transitionFunc func(r *http.Request, svc returns.Service, id, actorID uuid.UUID) (any, error)

func returnTransition(svc returns.Service, logg *logger.Logger, apply transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		id, err := parseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing"))
			return
		}

		result, err := apply(r, svc, id, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ApproveReturn moves a requested return to approved.
func ApproveReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnTransition(svc, logg, func(r *http.Request, svc returns.Service, id, actorID uuid.UUID) (any, error) {
		return svc.Approve(r.Context(), id, actorID)
	})
}

// SchedulePickup books a courier pickup for an approved return.
func SchedulePickup(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnTransition(svc, logg, func(r *http.Request, svc returns.Service, id, actorID uuid.UUID) (any, error) {
		var body pickupBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.SchedulePickup(r.Context(), id, returns.PickupInput{
			Date:           body.Date,
			TimeSlot:       body.TimeSlot,
			Address:        body.Address,
			CourierPartner: body.CourierPartner,
			ActorID:        actorID,
		})
	})
}

// MarkPickedUp records that the courier collected the items.
func MarkPickedUp(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnTransition(svc, logg, func(r *http.Request, svc returns.Service, id, actorID uuid.UUID) (any, error) {
		return svc.MarkPickedUp(r.Context(), id, actorID)
	})
}

// MarkReceived records that the warehouse received the items.
func MarkReceived(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnTransition(svc, logg, func(r *http.Request, svc returns.Service, id, actorID uuid.UUID) (any, error) {
		return svc.MarkReceived(r.Context(), id, actorID)
	})
}

// StartQualityCheck moves a received return into inspection.
func StartQualityCheck(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnTransition(svc, logg, func(r *http.Request, svc returns.Service, id, actorID uuid.UUID) (any, error) {
		return svc.StartQualityCheck(r.Context(), id, actorID)
	})
}

// SubmitQualityCheck records the inspection outcome.
func SubmitQualityCheck(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnTransition(svc, logg, func(r *http.Request, svc returns.Service, id, actorID uuid.UUID) (any, error) {
		var body qualityCheckBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		return svc.SubmitQualityCheck(r.Context(), id, returns.QualityCheckInput{
			Condition:         body.Condition,
			Notes:             body.Notes,
			RefundEligibility: body.RefundEligibility,
			RefundPercentage:  body.RefundPercentage,
			AdminDecision:     body.AdminDecision,
			ActorID:           actorID,
		})
	})
}

// CancelReturn cancels a return that has not been picked up yet.
func CancelReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return returnTransition(svc, logg, func(r *http.Request, svc returns.Service, id, actorID uuid.UUID) (any, error) {
		return svc.Cancel(r.Context(), id, actorID)
	})
}

// FinalizeReturn applies the admin refund decision and, when approving,
// credits the customer's main wallet.
func FinalizeReturn(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		id, err := parseUUIDParam(r, "returnId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, ok := middleware.ActorIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing"))
			return
		}

		var body finalizeBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		decision, err := enums.ParseRefundDecision(body.Decision)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid refund decision"))
			return
		}

		record, err := svc.Process(r.Context(), id, decision, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"refund": record})
	}
}
