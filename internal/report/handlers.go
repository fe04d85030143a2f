package report

import (
	"net/http"
	"time"

	"github.com/noah-isme/backend-koperasi/internal/common"
)

// Handler exposes the admin report endpoints.
type Handler struct {
	Svc *Service
}

func (h *Handler) parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "REPORT_NOT_CONFIGURED", "report service not configured", nil)
		return time.Time{}, time.Time{}, false
	}
	window := h.Svc.DefaultRange
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	from, to, err := common.ParseDateRange(r, h.Svc.now(), window)
	if err != nil {
		common.WriteError(w, err)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "REPORT_ERROR", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": data})
}

// Sales handles GET /admin/reports/sales.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	out, err := h.Svc.Sales(r.Context(), from, to)
	respond(w, out, err)
}

// Financial handles GET /admin/reports/financial.
func (h *Handler) Financial(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	out, err := h.Svc.Financial(r.Context(), from, to)
	respond(w, out, err)
}

// ProfitLoss handles GET /admin/reports/profit-loss.
func (h *Handler) ProfitLoss(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	out, err := h.Svc.ProfitLoss(r.Context(), from, to)
	respond(w, out, err)
}

// Purchases handles GET /admin/reports/purchases.
func (h *Handler) Purchases(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	out, err := h.Svc.Purchases(r.Context(), from, to)
	respond(w, out, err)
}

// Inventory handles GET /admin/reports/inventory.
func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "REPORT_NOT_CONFIGURED", "report service not configured", nil)
		return
	}
	out, err := h.Svc.Inventory(r.Context())
	respond(w, out, err)
}
