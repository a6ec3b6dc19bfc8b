package httpapi

import (
	"net/http"
	"strings"
	"time"

	"storepos/backend/internal/apperr"
	"storepos/backend/internal/domain"
	"storepos/backend/internal/service"
)

const dateLayout = "2006-01-02"

// saleBody accepts the store_id older clients send. The store always comes
// from the session; a mismatching id is refused.
type saleBody struct {
	domain.SaleRequest
	StoreID *int64 `json:"store_id,omitempty"`
}

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var body saleBody
	if err := decodeJSON(r, &body); err != nil {
		a.writeError(w, r, err)
		return
	}
	if body.StoreID != nil {
		if p, ok := service.ActorFromContext(r.Context()); ok && p.HasStore() && *body.StoreID != p.StoreID {
			a.writeError(w, r, apperr.New(apperr.CodeForbidden, "store_id does not match your store"))
			return
		}
	}
	sale, err := a.service.CreateSale(r.Context(), body.SaleRequest)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccessMessage(w, http.StatusCreated, sale, "Sale completed")
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	filter, err := a.saleFilter(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	sales, err := a.service.ListSales(r.Context(), filter)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, sales)
}

// saleFilter reads start_date, end_date, cashier_kind, cashier_id and limit.
// Date-only bounds cover whole days in the store timezone.
func (a *API) saleFilter(r *http.Request) (domain.SaleFilter, error) {
	query := r.URL.Query()
	var filter domain.SaleFilter

	if raw := strings.TrimSpace(query.Get("start_date")); raw != "" {
		start, err := a.parseBound(raw, false)
		if err != nil {
			return filter, apperr.New(apperr.CodeValidation, "start_date must be YYYY-MM-DD or RFC3339")
		}
		filter.StartDate = &start
	}
	if raw := strings.TrimSpace(query.Get("end_date")); raw != "" {
		end, err := a.parseBound(raw, true)
		if err != nil {
			return filter, apperr.New(apperr.CodeValidation, "end_date must be YYYY-MM-DD or RFC3339")
		}
		filter.EndDate = &end
	}

	kind := strings.TrimSpace(query.Get("cashier_kind"))
	id := strings.TrimSpace(query.Get("cashier_id"))
	if kind != "" || id != "" {
		actor, err := domain.ParseActor(domain.ActorKind(kind), id)
		if err != nil {
			return filter, apperr.Wrap(apperr.CodeValidation, err, "cashier_kind and cashier_id must name a manager or cashier")
		}
		filter.Cashier = &actor
	}

	if raw := query.Get("limit"); raw != "" {
		filter.Limit = parsePositiveLimit(raw, 100, 500)
	}
	return filter, nil
}

func (a *API) parseBound(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	day, err := time.ParseInLocation(dateLayout, raw, a.loc)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		day = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return day.UTC(), nil
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	saleID, err := idParam(r, "saleID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	sale, err := a.service.GetSale(r.Context(), saleID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, sale)
}

func (a *API) handlePartialCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := a.service.ListPartialCustomers(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, customers)
}
