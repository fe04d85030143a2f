package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-koperasi/internal/app"
	"github.com/noah-isme/backend-koperasi/internal/config"
	"github.com/noah-isme/backend-koperasi/internal/store/memory"
)

type apiClient struct {
	t *testing.T
	h http.Handler
}

func newTestAPI(t *testing.T) (*apiClient, *memory.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg, err := config.LoadForTests(map[string]string{
		"DB_DRIVER": "memory",
		"REDIS_URL": "redis://" + mr.Addr() + "/0",
	})
	require.NoError(t, err)

	store := memory.New()
	deps := &app.Dependencies{Store: store, Redis: rdb}
	h, err := newRouter(cfg, zerolog.Nop(), deps, routerOptions{})
	require.NoError(t, err)
	return &apiClient{t: t, h: h}, store
}

func (c *apiClient) do(method, path, userID, role string, body any, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
		req.Header.Set("X-User-Role", role)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	return rec
}

type productEnvelope struct {
	Data struct {
		ID    string `json:"id"`
		Stock int    `json:"stock"`
	} `json:"data"`
}

type orderEnvelope struct {
	Data struct {
		ID             string          `json:"id"`
		Status         string          `json:"status"`
		Subtotal       decimal.Decimal `json:"subtotal"`
		ApplicationFee decimal.Decimal `json:"applicationFee"`
		Total          decimal.Decimal `json:"total"`
	} `json:"data"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createProduct(t *testing.T, c *apiClient, stock int) string {
	t.Helper()
	rec := c.do(http.MethodPost, "/api/v1/admin/products", "admin-1", "ADMIN", map[string]any{
		"name":         "Beras 5kg",
		"barcode":      "8991234567890",
		"costPrice":    "60000",
		"sellingPrice": "70000",
		"stock":        stock,
		"priceTiers":   []map[string]any{{"minQuantity": 5, "price": "65000"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[productEnvelope](t, rec).Data.ID
}

func TestCheckoutCancelFlow(t *testing.T) {
	c, _ := newTestAPI(t)
	id := createProduct(t, c, 10)

	rec := c.do(http.MethodPut, "/api/v1/admin/settings", "admin-1", "ADMIN", map[string]any{
		"applicationFee":        "2000",
		"lowStockThreshold":     3,
		"enabledPaymentMethods": []string{"COD", "CASH"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/api/v1/checkout", "cust-1", "CUSTOMER", map[string]any{
		"items":           []map[string]any{{"productId": id, "quantity": 3}, {"productId": id, "quantity": 2}},
		"paymentMethod":   "COD",
		"shippingAddress": "Jl. Merdeka 1",
	}, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	placed := decode[orderEnvelope](t, rec).Data
	require.Equal(t, "AWAITING_ASSIGNMENT", placed.Status)
	require.True(t, decimal.NewFromInt(325000).Equal(placed.Subtotal), placed.Subtotal.String())
	require.True(t, decimal.NewFromInt(327000).Equal(placed.Total), placed.Total.String())

	rec = c.do(http.MethodGet, "/api/v1/products/"+id, "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, decode[productEnvelope](t, rec).Data.Stock)

	rec = c.do(http.MethodGet, "/api/v1/orders/"+placed.ID, "cust-2", "CUSTOMER", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodPost, "/api/v1/orders/"+placed.ID+"/cancel", "cust-1", "CUSTOMER", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "CANCELLED", decode[orderEnvelope](t, rec).Data.Status)

	rec = c.do(http.MethodGet, "/api/v1/products/"+id, "", "", nil)
	require.Equal(t, 10, decode[productEnvelope](t, rec).Data.Stock)
}

func TestCheckoutRejectsOversell(t *testing.T) {
	c, _ := newTestAPI(t)
	id := createProduct(t, c, 2)

	rec := c.do(http.MethodPost, "/api/v1/checkout", "cust-1", "CUSTOMER", map[string]any{
		"items":           []map[string]any{{"productId": id, "quantity": 3}},
		"paymentMethod":   "COD",
		"shippingAddress": "Jl. Merdeka 1",
	})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/api/v1/products/"+id, "", "", nil)
	require.Equal(t, 2, decode[productEnvelope](t, rec).Data.Stock)
}

func TestIdempotentReplayIsRejected(t *testing.T) {
	c, _ := newTestAPI(t)
	id := createProduct(t, c, 10)
	body := map[string]any{
		"items":         []map[string]any{{"productId": id, "quantity": 1}},
		"paymentMethod": "CASH",
	}
	rec := c.do(http.MethodPost, "/api/v1/pos/orders", "kasir-1", "CASHIER", body, "Idempotency-Key", "pos-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "DELIVERED", decode[orderEnvelope](t, rec).Data.Status)

	rec = c.do(http.MethodPost, "/api/v1/pos/orders", "kasir-1", "CASHIER", body, "Idempotency-Key", "pos-1")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(http.MethodGet, "/api/v1/products/"+id, "", "", nil)
	require.Equal(t, 9, decode[productEnvelope](t, rec).Data.Stock)
}

func TestRoleGating(t *testing.T) {
	c, _ := newTestAPI(t)

	rec := c.do(http.MethodPost, "/api/v1/checkout", "", "", map[string]any{})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(http.MethodGet, "/api/v1/admin/reports/sales", "cust-1", "CUSTOMER", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = c.do(http.MethodGet, "/api/v1/admin/reports/sales", "root", "SUPER_ADMIN", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/api/v1/pos/orders", "courier-1", "SHIPPING", map[string]any{})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCourierWebhookNeedsNoGatewayIdentity(t *testing.T) {
	c, _ := newTestAPI(t)

	rec := c.do(http.MethodPost, "/api/v1/shipping/webhook/jne", "", "", map[string]any{
		"orderId":        "ORD-404",
		"externalStatus": "delivered",
	})
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/api/v1/shipping/orders", "", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSalesReportAfterPOSOrder(t *testing.T) {
	c, _ := newTestAPI(t)
	id := createProduct(t, c, 10)

	rec := c.do(http.MethodPost, "/api/v1/pos/orders", "kasir-1", "CASHIER", map[string]any{
		"items":         []map[string]any{{"productId": id, "quantity": 5}},
		"paymentMethod": "CASH",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/api/v1/admin/reports/sales", "admin-1", "ADMIN", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[struct {
		Data struct {
			OrderCount int             `json:"orderCount"`
			Revenue    decimal.Decimal `json:"revenue"`
			ItemsSold  int             `json:"itemsSold"`
		} `json:"data"`
	}](t, rec)
	require.Equal(t, 1, report.Data.OrderCount)
	require.Equal(t, 5, report.Data.ItemsSold)
	require.True(t, decimal.NewFromInt(325000).Equal(report.Data.Revenue), report.Data.Revenue.String())
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	c, _ := newTestAPI(t)

	rec := c.do(http.MethodGet, "/health/live", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, "/health/ready", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
