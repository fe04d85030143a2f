package catalog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-koperasi/internal/common"
	"github.com/noah-isme/backend-koperasi/internal/pricing"
)

// FeeSource supplies the application fee charged on online orders.
type FeeSource interface {
	ApplicationFee(ctx context.Context) (pricing.Money, error)
}

// Handler exposes catalog endpoints.
type Handler struct {
	service *Service
	fees    FeeSource
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
	Fees    FeeSource
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, fees: cfg.Fees}
}

// Products handles GET /api/v1/products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	filter, err := h.service.ParseListFilter(r.URL.Query())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		common.WriteError(w, toAppError(err))
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(result.Total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": common.NewPagination(result.Page, result.Limit, result.Total),
	})
}

// ProductDetail handles GET /api/v1/products/{id}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Lookup handles GET /api/v1/products/lookup?code=.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.FindByCode(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

type quoteRequest struct {
	Items []QuoteLine `json:"items" validate:"required,min=1,dive"`
}

// Quote handles POST /api/v1/cart/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	fee := pricing.NewMoney(0)
	if h.fees != nil {
		f, err := h.fees.ApplicationFee(r.Context())
		if err != nil {
			common.WriteError(w, err)
			return
		}
		fee = f
	}
	summary, err := h.service.Quote(r.Context(), req.Items, fee)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

// Create handles POST /api/v1/admin/products.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	scopeToSupplier(r, &in)
	p, err := h.service.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": p})
}

// Update handles PUT /api/v1/admin/products/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if !h.ownsProduct(w, r, id) {
		return
	}
	scopeToSupplier(r, &in)
	p, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Delete handles DELETE /api/v1/admin/products/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.ownsProduct(w, r, id) {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// suppliers can only manage their own products
func scopeToSupplier(r *http.Request, in *ProductInput) {
	if role, _ := common.RoleFrom(r.Context()); role == common.RoleSupplier {
		in.SupplierID, _ = common.UserID(r.Context())
	}
}

func (h *Handler) ownsProduct(w http.ResponseWriter, r *http.Request, id string) bool {
	role, _ := common.RoleFrom(r.Context())
	if role != common.RoleSupplier {
		return true
	}
	p, err := h.service.store.GetProduct(r.Context(), id)
	if err != nil {
		common.WriteError(w, toAppError(err))
		return false
	}
	userID, _ := common.UserID(r.Context())
	if p.SupplierID != userID {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "product belongs to another supplier", nil)
		return false
	}
	return true
}
