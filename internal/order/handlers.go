package order

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-koperasi/internal/common"
)

// Handler serves order history.
type Handler struct {
	Store Store
}

// staff may read every order; everyone else only their own
func isStaff(role common.Role) bool {
	return role == common.RoleSuperAdmin || role == common.RoleAdmin || role == common.RoleCashier
}

// List returns orders for the caller, or all orders for staff.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	page := common.ParsePagination(r, 20, 100)
	filter := ListFilter{Limit: page.PerPage, Offset: page.Offset()}
	role, _ := common.RoleFrom(r.Context())
	if !isStaff(role) {
		filter.UserID = userID
	}
	q := r.URL.Query()
	if ch := Channel(strings.ToLower(strings.TrimSpace(q.Get("channel")))); ch != "" {
		if !ch.Valid() {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown channel", nil)
			return
		}
		filter.Channel = ch
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		st, ok := ParseStatus(raw)
		if !ok {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown status", nil)
			return
		}
		filter.Statuses = []Status{st}
	}

	orders, total, err := h.Store.ListOrders(r.Context(), filter)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       orders,
		"pagination": common.NewPagination(page.Page, page.PerPage, total),
	})
}

// Get returns one order. Customers get 404 for orders that are not theirs.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	o, err := h.Store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, ToAppError(err))
		return
	}
	role, _ := common.RoleFrom(r.Context())
	if !isStaff(role) && o.UserID != userID {
		common.WriteError(w, ToAppError(ErrOrderNotFound))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}
