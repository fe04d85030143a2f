package shipping

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-koperasi/internal/common"
	"github.com/noah-isme/backend-koperasi/internal/order"
)

func newWebhookRouter(t *testing.T, svc *Service) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	wh := Webhook{Svc: svc, Replay: client, ReplayTTL: time.Minute}
	r := chi.NewRouter()
	r.Post("/shipping/webhook/{courier}", wh.Handle)
	return r
}

func postWebhook(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/shipping/webhook/jne", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookAdvancesOrderAndBlocksReplay(t *testing.T) {
	store := newFakeStore(onlineOrder("ORD-1", "cust-1", baseTime))
	svc, _, _ := newTestService(store)
	_, err := svc.Assign(context.Background(), "ORD-1", "kurir-1", "JNE123")
	require.NoError(t, err)
	router := newWebhookRouter(t, svc)

	body := `{"orderId":"ORD-1","trackingNumber":"jne123","externalStatus":"picked_up"}`
	rec := postWebhook(router, body)
	require.Equal(t, http.StatusNoContent, rec.Code)
	o, _ := store.GetOrder(context.Background(), "ORD-1")
	require.Equal(t, order.StatusInTransit, o.Status)

	rec = postWebhook(router, body)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "REPLAY")
}

func TestWebhookRejectsBadPayloads(t *testing.T) {
	store := newFakeStore(onlineOrder("ORD-1", "cust-1", baseTime))
	svc, _, _ := newTestService(store)
	_, err := svc.Assign(context.Background(), "ORD-1", "kurir-1", "JNE123")
	require.NoError(t, err)
	router := newWebhookRouter(t, svc)

	rec := postWebhook(router, `{"orderId":"ORD-1","externalStatus":"teleported"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postWebhook(router, `{"externalStatus":"delivered"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postWebhook(router, `{"orderId":"ORD-1","trackingNumber":"TIKI9","externalStatus":"delivered"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	// skipping IN_TRANSIT is not allowed
	rec = postWebhook(router, `{"orderId":"ORD-1","externalStatus":"delivered"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = postWebhook(router, `{"orderId":"ORD-404","externalStatus":"delivered"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// a broken body must not fall through to the query string
	req := httptest.NewRequest(http.MethodPost, "/shipping/webhook/jne?orderId=ORD-1&status=picked_up", strings.NewReader(`{"orderId":`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	o, _ := store.GetOrder(context.Background(), "ORD-1")
	require.Equal(t, order.StatusPendingPickup, o.Status)
}

func TestWebhookQueryCallbacksAreFingerprintedPerEvent(t *testing.T) {
	store := newFakeStore(onlineOrder("ORD-1", "cust-1", baseTime), onlineOrder("ORD-2", "cust-2", baseTime))
	svc, _, _ := newTestService(store)
	for _, id := range []string{"ORD-1", "ORD-2"} {
		_, err := svc.Assign(context.Background(), id, "kurir-1", "")
		require.NoError(t, err)
	}
	router := newWebhookRouter(t, svc)

	send := func(query string) int {
		req := httptest.NewRequest(http.MethodPost, "/shipping/webhook/jne?"+query, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}
	require.Equal(t, http.StatusNoContent, send("orderId=ORD-1&status=picked_up"))
	require.Equal(t, http.StatusNoContent, send("orderId=ORD-2&status=picked_up"))
	require.Equal(t, http.StatusConflict, send("orderId=ORD-1&status=picked_up"))
	require.Equal(t, http.StatusNoContent, send("orderId=ORD-1&status=delivered"))

	o, _ := store.GetOrder(context.Background(), "ORD-1")
	require.Equal(t, order.StatusDelivered, o.Status)
	o, _ = store.GetOrder(context.Background(), "ORD-2")
	require.Equal(t, order.StatusInTransit, o.Status)
}

func TestWebhookAcknowledgesPickupLabels(t *testing.T) {
	store := newFakeStore(onlineOrder("ORD-1", "cust-1", baseTime))
	svc, _, _ := newTestService(store)
	router := newWebhookRouter(t, svc)

	rec := postWebhook(router, `{"orderId":"ORD-1","externalStatus":"assigned"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	o, _ := store.GetOrder(context.Background(), "ORD-1")
	require.Equal(t, order.StatusAwaitingAssignment, o.Status)
}

func TestCourierHandlers(t *testing.T) {
	store := newFakeStore(onlineOrder("ORD-1", "cust-1", baseTime))
	svc, _, _ := newTestService(store)
	h := &Handler{Svc: svc}

	r := chi.NewRouter()
	r.Use(common.GatewayIdentity)
	r.Post("/admin/orders/{id}/assign", h.Assign)
	r.Patch("/admin/orders/{id}/status", h.PatchStatus)
	r.Get("/shipping/orders", h.CourierOrders)
	r.Patch("/shipping/orders/{id}/status", h.CourierPatchStatus)

	do := func(method, path, user, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(common.HeaderUserID, user)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/admin/orders/ORD-1/assign", "admin-1", `{"trackingNumber":"X"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodPost, "/admin/orders/ORD-1/assign", "admin-1", `{"courierId":"kurir-1","trackingNumber":"X"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(http.MethodGet, "/shipping/orders", "kurir-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ORD-1")

	rec = do(http.MethodPatch, "/shipping/orders/ORD-1/status", "kurir-2", `{"status":"IN_TRANSIT"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(http.MethodPatch, "/shipping/orders/ORD-1/status", "kurir-1", `{"status":"flying"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodPatch, "/shipping/orders/ORD-1/status", "kurir-1", `{"status":"in_transit"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(http.MethodPatch, "/admin/orders/ORD-1/status", "admin-1", `{"status":"AWAITING_ASSIGNMENT"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(http.MethodPatch, "/admin/orders/ORD-1/status", "admin-1", `{"status":"DELIVERED"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookSignatureAndRetryAfterFailure(t *testing.T) {
	store := newFakeStore(onlineOrder("ORD-1", "cust-1", baseTime))
	svc, _, _ := newTestService(store)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	wh := Webhook{Svc: svc, Replay: client, ReplayTTL: time.Minute, Secret: "courier-key"}
	r := chi.NewRouter()
	r.Post("/shipping/webhook/{courier}", wh.Handle)

	send := func(body, sig string) int {
		req := httptest.NewRequest(http.MethodPost, "/shipping/webhook/jne", strings.NewReader(body))
		if sig != "" {
			req.Header.Set(common.SignatureHeader, sig)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}
	body := `{"orderId":"ORD-1","externalStatus":"picked_up"}`

	require.Equal(t, http.StatusUnauthorized, send(body, ""))
	require.Equal(t, http.StatusUnauthorized, send(body, "sha256=deadbeef"))

	// not yet assigned, so picking up is rejected and the fingerprint is released
	require.Equal(t, http.StatusConflict, send(body, common.SignBody("courier-key", []byte(body))))

	_, err := svc.Assign(context.Background(), "ORD-1", "kurir-1", "JNE123")
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, send(body, "sha256="+common.SignBody("courier-key", []byte(body))))
}

func TestSignedWebhookIgnoresQueryParameters(t *testing.T) {
	store := newFakeStore(onlineOrder("ORD-9", "cust-1", baseTime))
	svc, _, _ := newTestService(store)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	wh := Webhook{Svc: svc, Replay: client, ReplayTTL: time.Minute, Secret: "s3cret"}
	r := chi.NewRouter()
	r.Post("/shipping/webhook/{courier}", wh.Handle)

	send := func(query, body string) int {
		req := httptest.NewRequest(http.MethodPost, "/shipping/webhook/jne?"+query, strings.NewReader(body))
		req.Header.Set(common.SignatureHeader, common.SignBody("s3cret", []byte(body)))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusUnauthorized, send("orderId=ORD-9&status=cancelled", ""))
	// signed body without the event fields cannot borrow them from the query
	require.Equal(t, http.StatusBadRequest, send("orderId=ORD-9&status=cancelled", `{}`))

	o, _ := store.GetOrder(context.Background(), "ORD-9")
	require.Equal(t, order.StatusAwaitingAssignment, o.Status)
	require.Empty(t, store.restocked)
}
