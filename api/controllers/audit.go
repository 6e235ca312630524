package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tradebazaar/finance-backend/api/responses"
	"github.com/tradebazaar/finance-backend/api/validators"
	"github.com/tradebazaar/finance-backend/internal/audit"
	pkgerrors "github.com/tradebazaar/finance-backend/pkg/errors"
	"github.com/tradebazaar/finance-backend/pkg/logger"
)

// AuditTrail lists audit entries filtered by entity.
func AuditTrail(reader audit.Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit reader unavailable"))
			return
		}

		params, err := validators.ParsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := audit.ListFilters{
			EntityType: strings.TrimSpace(r.URL.Query().Get("entity_type")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("entity_id")); raw != "" {
			entityID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid entity id"))
				return
			}
			filters.EntityID = &entityID
		}

		list, err := reader.List(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
