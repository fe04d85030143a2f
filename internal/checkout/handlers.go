package checkout

import (
	"context"
	"net/http"

	"github.com/noah-isme/backend-koperasi/internal/common"
	"github.com/noah-isme/backend-koperasi/internal/order"
)

// Handler exposes online checkout and POS submission.
type Handler struct {
	Svc *Service
}

// Checkout handles POST /checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, h.Svc.Online)
}

// POSOrder handles POST /pos/orders.
func (h *Handler) POSOrder(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, h.Svc.POS)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, place func(context.Context, string, Input) (order.Order, error)) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload Input
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := place(r.Context(), userID, payload)
	if err != nil {
		common.WriteError(w, order.ToAppError(err))
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}
