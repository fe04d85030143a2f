package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-koperasi/internal/common"
	"github.com/noah-isme/backend-koperasi/internal/pricing"
)

type staticFee struct{ fee pricing.Money }

func (s staticFee) ApplicationFee(context.Context) (pricing.Money, error) { return s.fee, nil }

func newTestRouter(t *testing.T, store *fakeStore) http.Handler {
	t.Helper()
	svc := newTestService(t, store, nil)
	h := NewHandler(HandlerConfig{Service: svc, Fees: staticFee{fee: pricing.NewMoney(2000)}})

	r := chi.NewRouter()
	r.Use(common.GatewayIdentity)
	r.Get("/products", h.Products)
	r.Get("/products/lookup", h.Lookup)
	r.Get("/products/{id}", h.ProductDetail)
	r.Post("/cart/quote", h.Quote)
	r.Post("/admin/products", h.Create)
	r.Put("/admin/products/{id}", h.Update)
	r.Delete("/admin/products/{id}", h.Delete)
	return r
}

func TestHandlersListAndDetail(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, newFakeStore(riceProduct()))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products?q=beras", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-Total-Count"))

	var list struct {
		Data       []Product         `json:"data"`
		Pagination common.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	require.Equal(t, 2, list.Data[0].Tiers.Len())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/lookup?code=BRS-5", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products/missing", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerQuote(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, newFakeStore(riceProduct()))

	body := `{"items":[{"productId":"p-rice","quantity":40}]}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/cart/quote", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data pricing.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	// 40 * 2700 + 2000
	require.True(t, resp.Data.Total.Equal(pricing.NewMoney(110000)), resp.Data.Total.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/cart/quote", strings.NewReader(`{"items":[]}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSupplierCanOnlyEditOwnProducts(t *testing.T) {
	t.Parallel()
	owned := riceProduct()
	owned.SupplierID = "sup-1"
	store := newFakeStore(owned)
	router := newTestRouter(t, store)

	body := `{"name":"Beras Premium 5kg","sellingPrice":"3200","stock":80}`

	req := httptest.NewRequest(http.MethodPut, "/admin/products/p-rice", strings.NewReader(body))
	req.Header.Set(common.HeaderUserID, "sup-2")
	req.Header.Set(common.HeaderUserRole, "SUPPLIER")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodPut, "/admin/products/p-rice", strings.NewReader(body))
	req.Header.Set(common.HeaderUserID, "sup-1")
	req.Header.Set(common.HeaderUserRole, "SUPPLIER")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "sup-1", store.products["p-rice"].SupplierID)
}

func TestSupplierCreateIsScoped(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	router := newTestRouter(t, store)

	body := `{"name":"Kopi Bubuk","sellingPrice":"12000","supplierId":"someone-else"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/products", strings.NewReader(body))
	req.Header.Set(common.HeaderUserID, "sup-9")
	req.Header.Set(common.HeaderUserRole, "SUPPLIER")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp struct {
		Data Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "sup-9", resp.Data.SupplierID)
}
