package inventory

import (
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/backend-koperasi/internal/common"
)

// Handler exposes purchasing and stock endpoints to administrators.
type Handler struct {
	Svc          *Service
	DefaultRange time.Duration
}

// RecordPurchase handles POST /admin/purchases.
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	var in PurchaseInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.Svc.RecordPurchase(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": p})
}

// ListPurchases handles GET /admin/purchases?from=&to=.
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	window := h.DefaultRange
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	from, to, err := common.ParseDateRange(r, h.Svc.now(), window)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	rows, err := h.Svc.ListPurchases(r.Context(), from, to)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(len(rows)))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":  rows,
		"range": map[string]time.Time{"from": from, "to": to},
	})
}

// LowStock handles GET /admin/inventory/low-stock.
func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.LowStock(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}
