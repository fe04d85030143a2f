package shipping

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-koperasi/internal/common"
	"github.com/noah-isme/backend-koperasi/internal/order"
)

// Handler exposes assignment, status updates and the courier work list.
type Handler struct {
	Svc *Service
}

type assignRequest struct {
	CourierID      string `json:"courierId" validate:"required"`
	TrackingNumber string `json:"trackingNumber"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Assign handles POST /admin/orders/{id}/assign.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	o, err := h.Svc.Assign(r.Context(), chi.URLParam(r, "id"), req.CourierID, req.TrackingNumber)
	if err != nil {
		common.WriteError(w, toAppError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// PatchStatus handles PATCH /admin/orders/{id}/status.
func (h *Handler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	to, ok := decodeStatus(w, r)
	if !ok {
		return
	}
	o, err := h.Svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), to)
	if err != nil {
		common.WriteError(w, toAppError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// CourierOrders handles GET /shipping/orders.
func (h *Handler) CourierOrders(w http.ResponseWriter, r *http.Request) {
	courierID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	orders, err := h.Svc.ListForCourier(r.Context(), courierID)
	if err != nil {
		common.WriteError(w, toAppError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orders})
}

// CourierPatchStatus handles PATCH /shipping/orders/{id}/status.
func (h *Handler) CourierPatchStatus(w http.ResponseWriter, r *http.Request) {
	courierID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	to, ok := decodeStatus(w, r)
	if !ok {
		return
	}
	o, err := h.Svc.UpdateStatusAsCourier(r.Context(), courierID, chi.URLParam(r, "id"), to)
	if err != nil {
		common.WriteError(w, toAppError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// Cancel handles POST /orders/{id}/cancel for the ordering customer.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	o, err := h.Svc.CancelOwn(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, toAppError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

func decodeStatus(w http.ResponseWriter, r *http.Request) (order.Status, bool) {
	var req statusRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return "", false
	}
	to, ok := order.ParseStatus(req.Status)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown status", map[string]string{"status": req.Status})
		return "", false
	}
	return to, true
}

func toAppError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return common.NewAppError("INVALID_TRANSITION", err.Error(), http.StatusConflict, err)
	case errors.Is(err, ErrOrderNotEligible):
		return common.NewAppError("NOT_ELIGIBLE", err.Error(), http.StatusConflict, err)
	case errors.Is(err, ErrNotAssigned):
		return common.NewAppError("FORBIDDEN", err.Error(), http.StatusForbidden, err)
	default:
		return order.ToAppError(err)
	}
}
