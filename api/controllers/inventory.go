package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marketpulse/marketpulse-backend/api/responses"
	"github.com/marketpulse/marketpulse-backend/api/validators"
	historysvc "github.com/marketpulse/marketpulse-backend/internal/history"
	inventorysvc "github.com/marketpulse/marketpulse-backend/internal/inventory"
	supplysvc "github.com/marketpulse/marketpulse-backend/internal/supply"
	"github.com/marketpulse/marketpulse-backend/pkg/db/models"
	pkgerrors "github.com/marketpulse/marketpulse-backend/pkg/errors"
	"github.com/marketpulse/marketpulse-backend/pkg/logger"
	"github.com/marketpulse/marketpulse-backend/pkg/pagination"
)

// InventoryDetail returns the per-combination stock breakdown for a product.
func InventoryDetail(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.GetProductInventory(r.Context(), actor, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, detail)
	}
}

type adjustStockRequest struct {
	CombinationID string  `json:"combination_id" validate:"required,uuid"`
	Adjustment    int     `json:"adjustment" validate:"required"`
	Note          *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// InventoryAdjust applies a signed stock delta to one variant combination.
func InventoryAdjust(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		combinationID, err := uuid.Parse(payload.CombinationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid combination id"))
			return
		}

		result, err := svc.Adjust(r.Context(), inventorysvc.AdjustInput{
			ProductID:     productID,
			CombinationID: combinationID,
			Adjustment:    payload.Adjustment,
			Note:          payload.Note,
			Actor:         actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// InventoryLowStock lists active combinations at or below the threshold.
func InventoryLowStock(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		threshold, err := validators.ParseOptionalQueryInt(r, "threshold", 0, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.LowStock(r.Context(), actor, threshold)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"items": items, "count": len(items)})
	}
}

// InventoryHistory pages through a product's stock movement audit trail.
func InventoryHistory(svc historysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "history service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters, err := buildHistoryFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters.ProductID = &productID

		page, err := parsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Query(r.Context(), actor, filters, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type suppliesResponse struct {
	Supplies []models.Supply `json:"supplies"`
	Count    int64           `json:"count"`
}

// InventorySupplies lists a product's restock deliveries, newest first.
func InventorySupplies(svc supplysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "supply service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		supplies, err := svc.ListByProduct(r.Context(), actor, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		count, err := svc.CountByProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, suppliesResponse{Supplies: supplies, Count: count})
	}
}

func parsePageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

func buildHistoryFilters(r *http.Request) (historysvc.QueryFilters, error) {
	var filters historysvc.QueryFilters

	combinationID, err := validators.ParseOptionalQueryUUID(r, "combination_id")
	if err != nil {
		return filters, err
	}
	filters.CombinationID = combinationID

	from, err := parseDateParam(r.URL.Query().Get("from"), "from")
	if err != nil {
		return filters, err
	}
	filters.From = from

	to, err := parseDateParam(r.URL.Query().Get("to"), "to")
	if err != nil {
		return filters, err
	}
	filters.To = to

	return filters, nil
}

func parseDateParam(value, field string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		t, err = time.Parse(time.RFC3339, value)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid %s", field))
		}
	}
	return &t, nil
}
